package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Record describes one confirmed deployment.
type Record struct {
	Contract    string    `json:"contract"`
	Address     string    `json:"address"`
	Deployer    string    `json:"deployer"`
	Network     string    `json:"network"`
	ChainId     string    `json:"chainId"`
	TxHash      string    `json:"txHash"`
	BlockNumber uint64    `json:"blockNumber"`
	GasUsed     uint64    `json:"gasUsed"`
	DeployedAt  time.Time `json:"deployedAt"`
}

// Store persists deployment records as a single JSON document.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Persist writes r, replacing any previous record at the same path.
func (s *Store) Persist(r Record) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create record dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the record at the store's path.
func (s *Store) Load() (Record, error) {
	var r Record
	data, err := os.ReadFile(s.path)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("unmarshal record %s: %w", s.path, err)
	}
	return r, nil
}
