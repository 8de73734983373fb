package factory

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toursecure/digitalid-deployer/lib/account"
	"github.com/toursecure/digitalid-deployer/lib/artifact"
	"github.com/toursecure/digitalid-deployer/lib/testutil"
)

var simulatedChain = StaticChain{ID: big.NewInt(testutil.SimulatedChainID), EIP1559: true}

func loadArtifact(t *testing.T, bytecode string) *artifact.Artifact {
	t.Helper()
	path := testutil.WriteHardhatArtifact(t, t.TempDir(), testutil.ContractName, testutil.ConstructorABI, bytecode)
	art, err := artifact.ReadArtifact(path)
	require.NoError(t, err)
	return art
}

func newFactory(t *testing.T, chain *testutil.Chain, bytecode string, params Chain, opts Options) *ContractFactory {
	t.Helper()
	if opts.PollInterval == 0 {
		opts.PollInterval = 5 * time.Millisecond
	}
	return New(loadArtifact(t, bytecode), account.NewAccountFromKey(chain.Key), chain.Backend, params, opts, zerolog.Nop())
}

func TestDeployAndWait(t *testing.T) {
	chain := testutil.NewChain(t)
	f := newFactory(t, chain, testutil.DeployableBin, simulatedChain, Options{})

	pending, err := f.Deploy(context.Background(), chain.Address)
	require.NoError(t, err)
	assert.Equal(t, crypto.CreateAddress(chain.Address, 0), pending.Address)
	assert.Equal(t, chain.Address, pending.Deployer)
	assert.Equal(t, uint8(types.DynamicFeeTxType), pending.Tx.Type())

	chain.Backend.Commit()

	deployment, err := pending.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pending.Address, deployment.Address)
	assert.Equal(t, pending.Tx.Hash(), deployment.TxHash)
	assert.Equal(t, uint64(1), deployment.BlockNumber)
	assert.NotZero(t, deployment.GasUsed)
	assert.Equal(t, int64(testutil.SimulatedChainID), deployment.ChainID.Int64())

	code, err := chain.Backend.CodeAt(context.Background(), deployment.Address, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x2a, 0x60, 0x00, 0x52, 0x60, 0x20, 0x60, 0x00, 0xf3}, code)
}

func TestDeployLegacyAppliesGasPriceBump(t *testing.T) {
	chain := testutil.NewChain(t)
	bump := big.NewInt(2_000_000_000)
	f := newFactory(t, chain, testutil.DeployableBin, StaticChain{ID: big.NewInt(testutil.SimulatedChainID)}, Options{GasPriceBump: bump})

	suggested, err := chain.Backend.SuggestGasPrice(context.Background())
	require.NoError(t, err)

	pending, err := f.Deploy(context.Background(), chain.Address)
	require.NoError(t, err)
	assert.Equal(t, uint8(types.LegacyTxType), pending.Tx.Type())
	assert.Equal(t, new(big.Int).Add(suggested, bump), pending.Tx.GasPrice())

	chain.Backend.Commit()
	_, err = pending.Wait(context.Background())
	require.NoError(t, err)
}

func TestDeployRejectsBadArguments(t *testing.T) {
	chain := testutil.NewChain(t)
	f := newFactory(t, chain, testutil.DeployableBin, simulatedChain, Options{})

	_, err := f.Deploy(context.Background())
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Contains(t, err.Error(), "constructor(address) expects 1 arguments, got 0")

	_, err = f.Deploy(context.Background(), "not an address")
	require.ErrorAs(t, err, &subErr)

	nonce, err := chain.Backend.PendingNonceAt(context.Background(), chain.Address)
	require.NoError(t, err)
	assert.Zero(t, nonce, "nothing was broadcast")
}

func TestDeployChainParamsFailure(t *testing.T) {
	chain := testutil.NewChain(t)
	boom := errors.New("chain id mismatch")
	f := newFactory(t, chain, testutil.DeployableBin, failingChain{boom}, Options{})

	_, err := f.Deploy(context.Background(), chain.Address)
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.ErrorIs(t, err, boom)
}

func TestDeployRevertingEstimateIsSubmissionError(t *testing.T) {
	chain := testutil.NewChain(t)
	f := newFactory(t, chain, testutil.RevertingBin, simulatedChain, Options{})

	_, err := f.Deploy(context.Background(), chain.Address)
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
}

func TestWaitReportsRevert(t *testing.T) {
	chain := testutil.NewChain(t)
	f := newFactory(t, chain, testutil.RevertingBin, simulatedChain, Options{GasLimit: 200_000})

	pending, err := f.Deploy(context.Background(), chain.Address)
	require.NoError(t, err)
	chain.Backend.Commit()

	_, err = pending.Wait(context.Background())
	var confErr *ConfirmationError
	require.ErrorAs(t, err, &confErr)
	assert.ErrorIs(t, err, ErrReverted)
	assert.Equal(t, pending.Tx.Hash(), confErr.TxHash)
}

func TestWaitTimesOut(t *testing.T) {
	chain := testutil.NewChain(t)
	f := newFactory(t, chain, testutil.DeployableBin, simulatedChain, Options{ConfirmTimeout: 30 * time.Millisecond})

	pending, err := f.Deploy(context.Background(), chain.Address)
	require.NoError(t, err)

	// never mined
	_, err = pending.Wait(context.Background())
	var confErr *ConfirmationError
	require.ErrorAs(t, err, &confErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForExtraConfirmations(t *testing.T) {
	chain := testutil.NewChain(t)
	f := newFactory(t, chain, testutil.DeployableBin, simulatedChain, Options{Confirmations: 3})

	pending, err := f.Deploy(context.Background(), chain.Address)
	require.NoError(t, err)
	chain.AutoCommit(t, 5*time.Millisecond)

	deployment, err := pending.Wait(context.Background())
	require.NoError(t, err)

	head, err := chain.Backend.HeaderByNumber(context.Background(), nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, head.Number.Uint64(), deployment.BlockNumber+2)
}

func TestWaitRetriesReceiptErrors(t *testing.T) {
	chain := testutil.NewChain(t)
	backend := &flakyReceipts{Backend: chain.Backend}
	backend.failures.Store(1)

	f := New(loadArtifact(t, testutil.DeployableBin), account.NewAccountFromKey(chain.Key), backend, simulatedChain, Options{}, zerolog.Nop())
	pending, err := f.Deploy(context.Background(), chain.Address)
	require.NoError(t, err)
	chain.Backend.Commit()

	deployment, err := pending.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pending.Address, deployment.Address)
	assert.GreaterOrEqual(t, backend.calls.Load(), int32(2))
}

func TestErrNoCodeIsBindSentinel(t *testing.T) {
	assert.ErrorIs(t, &ConfirmationError{Err: ErrNoCode}, bind.ErrNoCodeAfterDeploy)
}

func TestSuccessfulDeployIsQuietAtInfo(t *testing.T) {
	chain := testutil.NewChain(t)
	var logs bytes.Buffer
	log := zerolog.New(&logs).Level(zerolog.InfoLevel)

	f := New(loadArtifact(t, testutil.DeployableBin), account.NewAccountFromKey(chain.Key), chain.Backend, simulatedChain, Options{}, log)
	pending, err := f.Deploy(context.Background(), chain.Address)
	require.NoError(t, err)
	chain.Backend.Commit()

	_, err = pending.Wait(context.Background())
	require.NoError(t, err)
	assert.Empty(t, logs.String())
}

// flakyReceipts fails the first receipt lookups the way a briefly
// unreachable node would.
type flakyReceipts struct {
	Backend
	failures atomic.Int32
	calls    atomic.Int32
}

func (b *flakyReceipts) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.calls.Add(1)
	if b.failures.Add(-1) >= 0 {
		return nil, errors.New("connection reset by peer")
	}
	return b.Backend.TransactionReceipt(ctx, txHash)
}

type failingChain struct {
	err error
}

func (c failingChain) Params(context.Context) (*big.Int, bool, error) {
	return nil, false, c.err
}
