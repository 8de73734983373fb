package factory

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrReverted = errors.New("deployment transaction reverted")
	ErrNoCode   = bind.ErrNoCodeAfterDeploy
)

// SubmissionError means the deployment never reached the pending state:
// argument packing, signing, fee lookup or broadcast failed.
type SubmissionError struct {
	Contract string
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s deployment: %v", e.Contract, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// ConfirmationError means the transaction was broadcast but did not end
// up as a live contract: reverted, no code, timed out or cancelled.
type ConfirmationError struct {
	Contract string
	TxHash   common.Hash
	Err      error
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("confirm %s deployment %s: %v", e.Contract, e.TxHash.Hex(), e.Err)
}

func (e *ConfirmationError) Unwrap() error { return e.Err }
