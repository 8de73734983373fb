package testutil

import (
	"context"
	"errors"
	"math/big"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
)

// ServeRPC exposes the chain over HTTP JSON-RPC and returns its URL. Only
// the eth_ methods ethclient needs to deploy a contract are served, and
// every raw transaction is mined into its own block right away.
func (c *Chain) ServeRPC(t *testing.T) string {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", &ethService{backend: c.Backend}))

	httpServer := httptest.NewServer(server)
	t.Cleanup(func() {
		httpServer.Close()
		server.Stop()
	})
	return httpServer.URL
}

type ethService struct {
	backend *backends.SimulatedBackend
}

type callArgs struct {
	From                 common.Address  `json:"from"`
	To                   *common.Address `json:"to"`
	Input                hexutil.Bytes   `json:"input"`
	Value                *hexutil.Big    `json:"value"`
	Gas                  *hexutil.Uint64 `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
}

func (s *ethService) ChainId() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(SimulatedChainID))
}

func (s *ethService) GetBlockByNumber(ctx context.Context, number string, _ bool) (*types.Header, error) {
	var n *big.Int
	switch number {
	case "latest", "pending":
	default:
		v, err := hexutil.DecodeBig(number)
		if err != nil {
			return nil, err
		}
		n = v
	}
	return s.backend.HeaderByNumber(ctx, n)
}

func (s *ethService) GetCode(ctx context.Context, address common.Address, _ string) (hexutil.Bytes, error) {
	return s.backend.CodeAt(ctx, address, nil)
}

func (s *ethService) GetTransactionCount(ctx context.Context, address common.Address, _ string) (hexutil.Uint64, error) {
	nonce, err := s.backend.PendingNonceAt(ctx, address)
	return hexutil.Uint64(nonce), err
}

func (s *ethService) GasPrice(ctx context.Context) (*hexutil.Big, error) {
	price, err := s.backend.SuggestGasPrice(ctx)
	return (*hexutil.Big)(price), err
}

func (s *ethService) MaxPriorityFeePerGas(ctx context.Context) (*hexutil.Big, error) {
	tip, err := s.backend.SuggestGasTipCap(ctx)
	return (*hexutil.Big)(tip), err
}

func (s *ethService) EstimateGas(ctx context.Context, args callArgs) (hexutil.Uint64, error) {
	msg := ethereum.CallMsg{
		From:      args.From,
		To:        args.To,
		Data:      args.Input,
		Value:     (*big.Int)(args.Value),
		GasPrice:  (*big.Int)(args.GasPrice),
		GasFeeCap: (*big.Int)(args.MaxFeePerGas),
		GasTipCap: (*big.Int)(args.MaxPriorityFeePerGas),
	}
	if args.Gas != nil {
		msg.Gas = uint64(*args.Gas)
	}
	gas, err := s.backend.EstimateGas(ctx, msg)
	return hexutil.Uint64(gas), err
}

func (s *ethService) SendRawTransaction(ctx context.Context, input hexutil.Bytes) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(input); err != nil {
		return common.Hash{}, err
	}
	if err := s.backend.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, err
	}
	s.backend.Commit()
	return tx.Hash(), nil
}

// GetTransactionReceipt answers null for unknown transactions, which
// ethclient reports as ethereum.NotFound.
func (s *ethService) GetTransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := s.backend.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if receipt.Logs == nil {
		receipt.Logs = []*types.Log{}
	}
	return receipt, nil
}
