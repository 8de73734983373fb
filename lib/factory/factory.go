package factory

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/toursecure/digitalid-deployer/lib/account"
	"github.com/toursecure/digitalid-deployer/lib/artifact"
	"github.com/toursecure/digitalid-deployer/lib/util"
)

// Backend is the chain access a deployment needs. *ethclient.Client and
// the simulated backend both satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Chain supplies the chain id and fee model used to sign deployments.
type Chain interface {
	Params(ctx context.Context) (chainID *big.Int, eip1559 bool, err error)
}

// StaticChain is a Chain with fixed parameters.
type StaticChain struct {
	ID      *big.Int
	EIP1559 bool
}

func (c StaticChain) Params(context.Context) (*big.Int, bool, error) {
	return c.ID, c.EIP1559, nil
}

type Options struct {
	// GasLimit of zero lets the backend estimate.
	GasLimit uint64
	// GasPriceBump is added to the suggested gas price on chains without
	// a base fee. Ignored for dynamic fee transactions.
	GasPriceBump   *big.Int
	Confirmations  uint64
	ConfirmTimeout time.Duration
	// PollInterval paces the head polling for confirmations beyond the
	// first. Receipts are polled by bind.WaitMined.
	PollInterval time.Duration
}

// ContractFactory deploys one artifact signed by one account.
type ContractFactory struct {
	artifact *artifact.Artifact
	signer   *account.Account
	backend  Backend
	chain    Chain
	opts     Options
	log      zerolog.Logger
}

func New(art *artifact.Artifact, signer *account.Account, backend Backend, chain Chain, opts Options, log zerolog.Logger) *ContractFactory {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Confirmations == 0 {
		opts.Confirmations = 1
	}
	return &ContractFactory{
		artifact: art,
		signer:   signer,
		backend:  backend,
		chain:    chain,
		opts:     opts,
		log: log.With().
			Str("contract", art.ContractName).
			Str("deployer", signer.Address.Hex()).
			Logger(),
	}
}

func (f *ContractFactory) Artifact() *artifact.Artifact {
	return f.artifact
}

// Deploy signs and broadcasts the creation transaction and returns without
// waiting for it to be mined.
func (f *ContractFactory) Deploy(ctx context.Context, args ...interface{}) (*PendingDeployment, error) {
	name := f.artifact.ContractName
	if got, want := len(args), len(f.artifact.ABI.Constructor.Inputs); got != want {
		return nil, &SubmissionError{Contract: name, Err: fmt.Errorf("%s expects %d arguments, got %d", f.artifact.ConstructorSignature(), want, got)}
	}

	auth, chainID, err := f.prepareTransactionAuth(ctx)
	if err != nil {
		return nil, &SubmissionError{Contract: name, Err: err}
	}

	address, tx, _, err := bind.DeployContract(auth, f.artifact.ABI, f.artifact.Bytecode, f.backend, args...)
	if err != nil {
		return nil, &SubmissionError{Contract: name, Err: err}
	}

	f.log.Debug().
		Str("tx", tx.Hash().Hex()).
		Uint64("nonce", tx.Nonce()).
		Uint64("gas", tx.Gas()).
		Str("address", address.Hex()).
		Msg("deployment transaction sent")

	return &PendingDeployment{
		Contract: name,
		Address:  address,
		Deployer: f.signer.Address,
		ChainID:  chainID,
		Tx:       tx,
		backend:  f.backend,
		opts:     f.opts,
		log:      f.log,
	}, nil
}

func (f *ContractFactory) prepareTransactionAuth(ctx context.Context) (*bind.TransactOpts, *big.Int, error) {
	chainID, eip1559, err := f.chain.Params(ctx)
	if err != nil {
		return nil, nil, err
	}

	auth, err := f.signer.Transactor(chainID)
	if err != nil {
		return nil, nil, err
	}
	auth.Context = ctx
	auth.GasLimit = f.opts.GasLimit

	if !eip1559 {
		gasPrice, err := f.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("suggest gas price: %w", err)
		}
		if f.opts.GasPriceBump != nil {
			gasPrice = new(big.Int).Add(gasPrice, f.opts.GasPriceBump)
		}
		auth.GasPrice = gasPrice
	}

	return auth, chainID, nil
}

// PendingDeployment is a broadcast creation transaction. Address is where
// the contract will live once the transaction succeeds.
type PendingDeployment struct {
	Contract string
	Address  common.Address
	Deployer common.Address
	ChainID  *big.Int
	Tx       *types.Transaction

	backend Backend
	opts    Options
	log     zerolog.Logger
}

// Deployment is a confirmed contract instance.
type Deployment struct {
	Contract    string
	Address     common.Address
	Deployer    common.Address
	ChainID     *big.Int
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
}

// Wait blocks until the transaction is mined with the configured number of
// confirmations and code exists at the contract address.
func (p *PendingDeployment) Wait(ctx context.Context) (*Deployment, error) {
	if p.opts.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.ConfirmTimeout)
		defer cancel()
	}

	txHash := p.Tx.Hash()
	fail := func(err error) (*Deployment, error) {
		return nil, &ConfirmationError{Contract: p.Contract, TxHash: txHash, Err: err}
	}

	p.log.Debug().Str("tx", txHash.Hex()).Msg("waiting for deployment receipt")

	receipt, err := bind.WaitMined(ctx, p.backend, p.Tx)
	if err != nil {
		return fail(err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fail(fmt.Errorf("%w in block %v", ErrReverted, receipt.BlockNumber))
	}

	address := p.Address
	if receipt.ContractAddress != (common.Address{}) {
		address = receipt.ContractAddress
	}

	if p.opts.Confirmations > 1 {
		if _, err := util.WaitForConfirmations(ctx, p.backend, receipt.BlockNumber, p.opts.Confirmations, p.opts.PollInterval); err != nil {
			return fail(err)
		}
	}

	code, err := p.backend.CodeAt(ctx, address, nil)
	if err != nil {
		return fail(fmt.Errorf("get code: %w", err))
	}
	if len(code) == 0 {
		return fail(ErrNoCode)
	}

	p.log.Debug().
		Str("address", address.Hex()).
		Uint64("block", receipt.BlockNumber.Uint64()).
		Uint64("gas_used", receipt.GasUsed).
		Msg("deployment confirmed")

	return &Deployment{
		Contract:    p.Contract,
		Address:     address,
		Deployer:    p.Deployer,
		ChainID:     p.ChainID,
		TxHash:      txHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}
