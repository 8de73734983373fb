package util

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
)

type HeaderReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// WaitForConfirmations blocks until the chain head is confirmations-1
// blocks past minedAt, so the including block counts as the first
// confirmation.
func WaitForConfirmations(ctx context.Context, h HeaderReader, minedAt *big.Int, confirmations uint64, interval time.Duration) (*big.Int, error) {
	if confirmations <= 1 {
		return new(big.Int).Set(minedAt), nil
	}
	target := new(big.Int).Add(minedAt, new(big.Int).SetUint64(confirmations-1))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		head, err := h.HeaderByNumber(ctx, nil)
		if err != nil {
			return nil, err
		}
		if head.Number.Cmp(target) >= 0 {
			return head.Number, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
