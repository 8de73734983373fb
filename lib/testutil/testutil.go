// Package testutil holds fixtures shared by package tests: a tiny compiled
// contract and an in-process chain that mines on its own.
package testutil

import (
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

const (
	ContractName = "TourSecureDigitalID"

	// ConstructorABI declares constructor(address initialOwner).
	ConstructorABI = `[{"inputs":[{"internalType":"address","name":"initialOwner","type":"address"}],"stateMutability":"nonpayable","type":"constructor"}]`

	// DeployableBin ignores its constructor argument and installs a runtime
	// that returns 42 for any call.
	DeployableBin = "0x69602a60005260206000f3600052600a6016f3"

	// RevertingBin reverts during construction.
	RevertingBin = "0x60006000fd"

	// SimulatedChainID is the chain id of go-ethereum's simulated backend.
	SimulatedChainID = 1337
)

// WriteHardhatArtifact writes dir/contracts/<name>.sol/<name>.json the way
// hardhat lays out compiled contracts and returns the file path.
func WriteHardhatArtifact(t *testing.T, dir, name, abiJSON, bytecode string) string {
	t.Helper()
	return writeArtifact(t, filepath.Join(dir, "contracts", name+".sol"), name, map[string]interface{}{
		"_format":      "hh-sol-artifact-1",
		"contractName": name,
		"sourceName":   "contracts/" + name + ".sol",
		"abi":          json.RawMessage(abiJSON),
		"bytecode":     bytecode,
	})
}

// WriteFoundryArtifact writes dir/<name>.sol/<name>.json in forge's layout.
func WriteFoundryArtifact(t *testing.T, dir, name, abiJSON, bytecode string) string {
	t.Helper()
	return writeArtifact(t, filepath.Join(dir, name+".sol"), name, map[string]interface{}{
		"abi":      json.RawMessage(abiJSON),
		"bytecode": map[string]interface{}{"object": bytecode, "linkReferences": map[string]interface{}{}},
	})
}

func writeArtifact(t *testing.T, dir, name string, body map[string]interface{}) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.MarshalIndent(body, "", "  ")
	require.NoError(t, err)
	path := filepath.Join(dir, name+".json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// Chain is a simulated chain with one funded key.
type Chain struct {
	Backend *backends.SimulatedBackend
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// NewChain starts a simulated chain funding a fresh key. The backend is
// closed when the test ends.
func NewChain(t *testing.T) *Chain {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	balance, _ := new(big.Int).SetString("1000000000000000000000", 10)
	sim := backends.NewSimulatedBackend(core.GenesisAlloc{
		addr: {Balance: balance},
	}, 30_000_000)
	t.Cleanup(func() { _ = sim.Close() })

	return &Chain{Backend: sim, Key: key, Address: addr}
}

// AutoCommit mines a block every interval until the test ends.
func (c *Chain) AutoCommit(t *testing.T, interval time.Duration) {
	t.Helper()
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.Backend.Commit()
			}
		}
	}()
	// registered after the backend's Close, so it runs first
	t.Cleanup(func() {
		close(done)
		<-stopped
	})
}
