package lib

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/toursecure/digitalid-deployer/lib/account"
	"github.com/toursecure/digitalid-deployer/lib/artifact"
	"github.com/toursecure/digitalid-deployer/lib/config"
	"github.com/toursecure/digitalid-deployer/lib/factory"
	"github.com/toursecure/digitalid-deployer/lib/store"
)

type SignerProvider interface {
	Signers() ([]*account.Account, error)
}

type FactoryProvider interface {
	ContractFactory(name string, signer *account.Account) (Factory, error)
}

type Factory interface {
	Deploy(ctx context.Context, args ...interface{}) (Pending, error)
}

type Pending interface {
	Wait(ctx context.Context) (*factory.Deployment, error)
}

type Recorder interface {
	Persist(r store.Record) error
}

// Runner deploys a single contract with the default signer as its initial
// owner and reports the result on Out.
type Runner struct {
	Contract  string
	Network   string
	Signers   SignerProvider
	Factories FactoryProvider
	// Recorder is optional.
	Recorder Recorder
	Out      io.Writer
	Log      zerolog.Logger
}

// NewRunner wires the runner to configured signers and artifacts, deploying
// through backend.
func NewRunner(cfg *config.Config, backend factory.Backend, chain factory.Chain, out io.Writer, log zerolog.Logger) *Runner {
	r := &Runner{
		Contract: cfg.ContractName,
		Network:  cfg.Network,
		Signers:  account.NewProvider(cfg),
		Factories: &Factories{
			Store:   artifact.NewStore(cfg.ArtifactsDir),
			Backend: backend,
			Chain:   chain,
			Options: factory.Options{
				GasLimit:       cfg.GasLimit,
				GasPriceBump:   cfg.GasPriceBump,
				Confirmations:  cfg.Confirmations,
				ConfirmTimeout: cfg.ConfirmTimeout,
				PollInterval:   cfg.PollInterval,
			},
			Log: log,
		},
		Out: out,
		Log: log,
	}
	if cfg.RecordPath != "" {
		r.Recorder = store.NewStore(cfg.RecordPath)
	}
	return r
}

// Run performs exactly one deployment. Errors from the signer, artifact,
// submission and confirmation steps are returned as produced.
func (r *Runner) Run(ctx context.Context) (common.Address, error) {
	signers, err := r.Signers.Signers()
	if err != nil {
		return common.Address{}, err
	}
	deployer, err := account.First(signers)
	if err != nil {
		return common.Address{}, err
	}
	fmt.Fprintln(r.Out, "Deploying with:", deployer.Address.Hex())

	f, err := r.Factories.ContractFactory(r.Contract, deployer)
	if err != nil {
		return common.Address{}, err
	}

	// the deployer becomes the contract's initial owner
	pending, err := f.Deploy(ctx, deployer.Address)
	if err != nil {
		return common.Address{}, err
	}

	deployment, err := pending.Wait(ctx)
	if err != nil {
		return common.Address{}, err
	}
	fmt.Fprintf(r.Out, "%s deployed to: %s\n", r.Contract, deployment.Address.Hex())

	r.record(deployment)
	return deployment.Address, nil
}

// record failures are logged only: the contract already exists on chain
// and its address has been reported.
func (r *Runner) record(d *factory.Deployment) {
	if r.Recorder == nil {
		return
	}
	rec := store.Record{
		Contract:    d.Contract,
		Address:     d.Address.Hex(),
		Deployer:    d.Deployer.Hex(),
		Network:     r.Network,
		TxHash:      d.TxHash.Hex(),
		BlockNumber: d.BlockNumber,
		GasUsed:     d.GasUsed,
		DeployedAt:  time.Now().UTC(),
	}
	if d.ChainID != nil {
		rec.ChainId = d.ChainID.String()
	}
	if err := r.Recorder.Persist(rec); err != nil {
		r.Log.Error().Err(err).Msg("could not write deployment record")
	}
}

// Factories builds contract factories from compiled artifacts.
type Factories struct {
	Store   *artifact.Store
	Backend factory.Backend
	Chain   factory.Chain
	Options factory.Options
	Log     zerolog.Logger
}

func (p *Factories) ContractFactory(name string, signer *account.Account) (Factory, error) {
	art, err := p.Store.Resolve(name)
	if err != nil {
		return nil, err
	}
	p.Log.Debug().Str("artifact", art.Path).Msg("resolved contract artifact")
	return contractFactory{factory.New(art, signer, p.Backend, p.Chain, p.Options, p.Log)}, nil
}

type contractFactory struct {
	*factory.ContractFactory
}

func (c contractFactory) Deploy(ctx context.Context, args ...interface{}) (Pending, error) {
	pending, err := c.ContractFactory.Deploy(ctx, args...)
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// DeployContract runs one deployment against the configured network and
// returns the hex address of the new contract. Signers are resolved before
// the node is dialed, so missing credentials never depend on connectivity.
func DeployContract(ctx context.Context, cfg *config.Config, out io.Writer, log zerolog.Logger) (string, error) {
	signers, err := account.NewProvider(cfg).Signers()
	if err != nil {
		return "", err
	}
	if _, err := account.First(signers); err != nil {
		return "", err
	}

	network, err := Dial(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer network.Close()

	runner := NewRunner(cfg, network.Client, network, out, log)
	runner.Signers = signerList(signers)

	address, err := runner.Run(ctx)
	if err != nil {
		return "", err
	}
	return address.Hex(), nil
}

// signerList is a SignerProvider over accounts resolved earlier.
type signerList []*account.Account

func (s signerList) Signers() ([]*account.Account, error) {
	return s, nil
}
