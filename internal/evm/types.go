// Package evm provides the chain access layer: a read interface for
// contract getters and a write interface implementing the simulate -> send
// -> confirm sequence every state-changing call goes through.
package evm

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrConfirmTimeout marks a confirmation wait that gave up before a receipt
// arrived. The transaction outcome is UNKNOWN: it may still land. Callers
// must re-query status before retrying, or they risk double-submission.
var ErrConfirmTimeout = errors.New("evm: confirmation timed out, outcome unknown")

// Call describes a contract call to simulate or execute.
type Call struct {
	From  common.Address
	To    common.Address
	Value *big.Int // nil = zero
	Data  []byte   // ABI-encoded calldata
}

// PreparedTx is a signed transaction ready to broadcast. Produced during
// simulation so send never has to rebuild or re-sign.
type PreparedTx struct {
	Tx *types.Transaction
}

// Hash returns the transaction hash.
func (p *PreparedTx) Hash() common.Hash {
	return p.Tx.Hash()
}

// SimResult is the outcome of a successful dry-run: the call's return data
// at current chain state plus the prepared transaction for submission. The
// return data is authoritative — e.g. a factory deploy call's simulated
// result already carries the address it will deploy to.
type SimResult struct {
	ReturnData []byte
	Prepared   *PreparedTx
}

// Receipt is the confirmation result of a mined transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	Status      uint64 // types.ReceiptStatusSuccessful or ...Failed
}

// Success reports whether the transaction executed without reverting.
func (r *Receipt) Success() bool {
	return r.Status == types.ReceiptStatusSuccessful
}

// Reader issues read-only contract calls.
type Reader interface {
	// CallContract executes a read-only call at the latest block.
	CallContract(ctx context.Context, call Call) ([]byte, error)
}

// Writer executes the three-phase write sequence. Implementations are
// stateless and safe for concurrent callers sharing one client.
type Writer interface {
	// Simulate dry-runs the call against current chain state and, on
	// success, returns the prepared signed transaction. A revert surfaces
	// here before any gas is spent.
	Simulate(ctx context.Context, call Call) (*SimResult, error)

	// Send broadcasts a prepared transaction.
	Send(ctx context.Context, prepared *PreparedTx) (common.Hash, error)

	// WaitForReceipt blocks until the transaction is mined or the wait
	// budget runs out (ErrConfirmTimeout).
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error)
}

// Client combines chain reads and writes.
type Client interface {
	Reader
	Writer
}
