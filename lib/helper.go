package lib

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/toursecure/digitalid-deployer/lib/config"
	"github.com/toursecure/digitalid-deployer/lib/util"
)

// Network is a connection to the target chain. Chain parameters are
// fetched on first use so that nothing touches the node before a
// deployment is actually attempted.
type Network struct {
	Client *ethclient.Client

	rpc             *rpc.Client
	expectedChainId int64
	chainId         *big.Int
	eip1559         bool
}

// Dial connects to cfg.RpcUrl. For http endpoints no request is made yet.
func Dial(ctx context.Context, cfg *config.Config) (*Network, error) {
	rpcClient, err := rpc.DialContext(ctx, cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RpcUrl, err)
	}
	return newNetwork(rpcClient, cfg.ChainId), nil
}

func newNetwork(rpcClient *rpc.Client, expectedChainId int64) *Network {
	return &Network{
		Client:          ethclient.NewClient(rpcClient),
		rpc:             rpcClient,
		expectedChainId: expectedChainId,
	}
}

// Params returns the node's chain id, checked against the configured one,
// and whether the chain prices transactions with a base fee.
func (n *Network) Params(ctx context.Context) (*big.Int, bool, error) {
	if n.chainId != nil {
		return n.chainId, n.eip1559, nil
	}

	chainId, err := n.Client.ChainID(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("get chain id: %w", err)
	}
	if n.expectedChainId != 0 && chainId.Cmp(big.NewInt(n.expectedChainId)) != 0 {
		return nil, false, fmt.Errorf("connected to chain %v, expected %d", chainId, n.expectedChainId)
	}

	eip1559, err := util.CheckEIP1559(ctx, n.rpc)
	if err != nil {
		return nil, false, err
	}

	n.chainId, n.eip1559 = chainId, eip1559
	return chainId, eip1559, nil
}

func (n *Network) Close() {
	n.Client.Close()
}
