package proxy

import (
	"errors"
	"fmt"
)

// Phase names the chain-write step an error occurred in.
type Phase string

const (
	PhaseSimulate Phase = "simulate"
	PhaseSend     Phase = "send"
	PhaseConfirm  Phase = "confirm"
)

// ErrNoProxyWallet is returned when a trade is requested for a user that has
// no deployed proxy wallet. Trades never auto-deploy.
var ErrNoProxyWallet = errors.New("no proxy wallet deployed for user")

// PhaseError wraps a chain-write failure with the phase it happened in and,
// when the transaction left the building, its hash. A non-empty TxHash means
// the transaction was broadcast: the caller cannot assume it never landed.
type PhaseError struct {
	Phase  Phase
	TxHash string
	Err    error
}

func (e *PhaseError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("%s failed (tx=%s): %v", e.Phase, e.TxHash, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

func phaseErr(phase Phase, txHash string, err error) *PhaseError {
	return &PhaseError{Phase: phase, TxHash: txHash, Err: err}
}
