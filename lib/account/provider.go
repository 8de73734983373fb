package account

import (
	"fmt"

	"github.com/toursecure/digitalid-deployer/lib/config"
)

// Provider yields the configured signing identities in a stable order:
// raw private keys first, then the keystore, then mnemonic-derived accounts.
type Provider struct {
	privateKeys      []string
	keystorePath     string
	keystorePassword string
	mnemonic         string
	mnemonicCount    int
}

func NewProvider(cfg *config.Config) *Provider {
	return &Provider{
		privateKeys:      cfg.PrivateKeys,
		keystorePath:     cfg.KeystorePath,
		keystorePassword: cfg.KeystorePassword,
		mnemonic:         cfg.Mnemonic,
		mnemonicCount:    cfg.MnemonicCount,
	}
}

// Signers returns every configured account. An empty result is not an
// error; callers decide whether they need one.
func (p *Provider) Signers() ([]*Account, error) {
	var signers []*Account

	for i, hexKey := range p.privateKeys {
		acc, err := NewAccountFromHex(hexKey)
		if err != nil {
			return nil, fmt.Errorf("private key %d: %w", i, err)
		}
		signers = append(signers, acc)
	}

	if p.keystorePath != "" {
		acc, err := NewAccountFromKeystore(p.keystorePath, p.keystorePassword)
		if err != nil {
			return nil, err
		}
		signers = append(signers, acc)
	}

	if p.mnemonic != "" {
		derived, err := DeriveAccounts(p.mnemonic, p.mnemonicCount)
		if err != nil {
			return nil, err
		}
		signers = append(signers, derived...)
	}

	return signers, nil
}

// First returns the default signer, the first one configured.
func First(signers []*Account) (*Account, error) {
	if len(signers) == 0 {
		return nil, ErrNoSignerAvailable
	}
	return signers[0], nil
}
