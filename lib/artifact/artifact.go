package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrArtifactNotFound  = errors.New("artifact not found")
	ErrAmbiguousArtifact = errors.New("multiple artifacts match")
	ErrNotDeployable     = errors.New("artifact has no creation bytecode")
	ErrUnlinkedLibrary   = errors.New("artifact bytecode has unlinked library references")
)

// Artifact is a compiled contract: its ABI and creation bytecode.
type Artifact struct {
	ContractName string
	SourceName   string
	Path         string
	ABI          abi.ABI
	Bytecode     []byte
}

// ConstructorSignature renders the constructor inputs, e.g. constructor(address).
func (a *Artifact) ConstructorSignature() string {
	types := make([]string, len(a.ABI.Constructor.Inputs))
	for i, input := range a.ABI.Constructor.Inputs {
		types[i] = input.Type.String()
	}
	return "constructor(" + strings.Join(types, ",") + ")"
}

// artifactFile covers both hardhat ("bytecode": "0x...") and foundry
// ("bytecode": {"object": "0x..."}) artifact layouts.
type artifactFile struct {
	ContractName string          `json:"contractName"`
	SourceName   string          `json:"sourceName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

type foundryBytecode struct {
	Object string `json:"object"`
}

// ReadArtifact loads and validates a single artifact file.
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal artifact %s: %w", path, err)
	}
	if len(file.ABI) == 0 {
		return nil, fmt.Errorf("artifact %s has no abi", path)
	}

	parsedABI, err := abi.JSON(bytes.NewReader(file.ABI))
	if err != nil {
		return nil, fmt.Errorf("parse abi of %s: %w", path, err)
	}

	name := file.ContractName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), ".json")
	}

	bytecode, err := decodeBytecode(file.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return &Artifact{
		ContractName: name,
		SourceName:   file.SourceName,
		Path:         path,
		ABI:          parsedABI,
		Bytecode:     bytecode,
	}, nil
}

func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	var hexCode string
	if err := json.Unmarshal(raw, &hexCode); err != nil {
		var obj foundryBytecode
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("unrecognised bytecode field: %w", err)
		}
		hexCode = obj.Object
	}

	hexCode = strings.TrimSpace(hexCode)
	if strings.Contains(hexCode, "__") {
		return nil, ErrUnlinkedLibrary
	}
	if !strings.HasPrefix(hexCode, "0x") {
		hexCode = "0x" + hexCode
	}
	code, err := hexutil.Decode(hexCode)
	if err != nil {
		return nil, fmt.Errorf("decode bytecode: %w", err)
	}
	if len(code) == 0 {
		return nil, ErrNotDeployable
	}
	return code, nil
}

// Store resolves contract names to artifacts under a compiler output
// directory (hardhat artifacts/ or foundry out/).
type Store struct {
	Dir string
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Resolve finds the artifact for name. name is either a bare contract name
// or a fully qualified "contracts/File.sol:Name".
func (s *Store) Resolve(name string) (*Artifact, error) {
	if source, contract, ok := strings.Cut(name, ":"); ok {
		path := filepath.Join(s.Dir, filepath.FromSlash(source), contract+".json")
		art, err := ReadArtifact(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s in %s", ErrArtifactNotFound, name, s.Dir)
		}
		return art, err
	}

	paths, err := s.find(name)
	if err != nil {
		return nil, err
	}
	switch len(paths) {
	case 0:
		return nil, fmt.Errorf("%w: %s in %s", ErrArtifactNotFound, name, s.Dir)
	case 1:
		return ReadArtifact(paths[0])
	default:
		return nil, fmt.Errorf("%w %s: %s; use a fully qualified name", ErrAmbiguousArtifact, name, strings.Join(paths, ", "))
	}
}

// List returns the names of every contract artifact in the store.
func (s *Store) List() ([]string, error) {
	var names []string
	err := s.walk(func(path string) {
		names = append(names, strings.TrimSuffix(filepath.Base(path), ".json"))
	})
	return names, err
}

func (s *Store) find(name string) ([]string, error) {
	var paths []string
	err := s.walk(func(path string) {
		if filepath.Base(path) == name+".json" {
			paths = append(paths, path)
		}
	})
	return paths, err
}

// walk visits contract artifact files: <Source>.sol/<Name>.json, skipping
// debug files and compiler bookkeeping directories.
func (s *Store) walk(visit func(path string)) error {
	err := filepath.WalkDir(s.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch d.Name() {
			case "build-info", "cache":
				return filepath.SkipDir
			}
			return nil
		}
		base := d.Name()
		if !strings.HasSuffix(base, ".json") || strings.HasSuffix(base, ".dbg.json") {
			return nil
		}
		if !strings.HasSuffix(filepath.Base(filepath.Dir(path)), ".sol") {
			return nil
		}
		visit(path)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: directory %s does not exist, compile the contracts first", ErrArtifactNotFound, s.Dir)
	}
	return err
}
