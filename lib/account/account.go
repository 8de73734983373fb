package account

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
	"github.com/tyler-smith/go-bip39"
)

// DefaultDerivationBase is the BIP-44 Ethereum path; account i is
// derived at DefaultDerivationBase + "/i".
const DefaultDerivationBase = "m/44'/60'/0'/0"

// ErrNoSignerAvailable is returned when no credentials yield an account.
var ErrNoSignerAvailable = errors.New("no signer available")

// Account is a signing identity: an address and the key that controls it.
type Account struct {
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
}

func NewAccountFromKey(key *ecdsa.PrivateKey) *Account {
	return &Account{
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}
}

// NewAccountFromHex parses a hex private key, with or without 0x prefix.
func NewAccountFromHex(hexKey string) (*Account, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewAccountFromKey(key), nil
}

// NewAccountFromKeystore decrypts a go-ethereum/geth keystore file.
func NewAccountFromKeystore(path, password string) (*Account, error) {
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore %s: %w", path, err)
	}
	return &Account{Address: key.Address, PrivateKey: key.PrivateKey}, nil
}

// DeriveAccounts derives count accounts from a BIP-39 mnemonic along the
// default Ethereum path, in index order.
func DeriveAccounts(mnemonic string, count int) ([]*Account, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}
	wallet, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("open hd wallet: %w", err)
	}

	accounts := make([]*Account, 0, count)
	for i := 0; i < count; i++ {
		path, err := hdwallet.ParseDerivationPath(fmt.Sprintf("%s/%d", DefaultDerivationBase, i))
		if err != nil {
			return nil, err
		}
		derived, err := wallet.Derive(path, false)
		if err != nil {
			return nil, fmt.Errorf("derive account %d: %w", i, err)
		}
		key, err := wallet.PrivateKey(derived)
		if err != nil {
			return nil, fmt.Errorf("derive key %d: %w", i, err)
		}
		accounts = append(accounts, &Account{Address: derived.Address, PrivateKey: key})
	}
	return accounts, nil
}

// Transactor returns transaction options signing with the account's key
// for the given chain.
func (a *Account) Transactor(chainID *big.Int) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(a.PrivateKey, chainID)
	if err != nil {
		return nil, err
	}
	auth.Value = big.NewInt(0)
	return auth, nil
}
