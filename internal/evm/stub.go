package evm

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// StubClient is a programmable Client for tests and stub mode. Every phase
// can be made to fail independently, and all sent transactions are recorded
// so tests can assert exactly how many on-chain writes happened.
type StubClient struct {
	mu sync.Mutex

	simReturn   []byte
	simErr      error
	sendErr     error
	receiptErr  error
	receiptStat uint64

	readReturns map[common.Address][]byte

	simCount  int
	sentTxs   []common.Hash
	nextNonce uint64
}

var _ Client = (*StubClient)(nil)

// NewStubClient creates a stub whose phases all succeed by default.
func NewStubClient() *StubClient {
	return &StubClient{
		receiptStat: types.ReceiptStatusSuccessful,
		readReturns: make(map[common.Address][]byte),
	}
}

// SetSimReturn sets the return data simulation yields.
func (s *StubClient) SetSimReturn(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simReturn = data
}

// FailSimulate makes Simulate return err (nil restores success).
func (s *StubClient) FailSimulate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simErr = err
}

// FailSend makes Send return err.
func (s *StubClient) FailSend(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErr = err
}

// FailConfirm makes WaitForReceipt return err.
func (s *StubClient) FailConfirm(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receiptErr = err
}

// SetReceiptStatus sets the status of confirmed receipts
// (types.ReceiptStatusFailed models an on-chain revert after inclusion).
func (s *StubClient) SetReceiptStatus(status uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receiptStat = status
}

// SetReadReturn programs the response for read calls to a contract.
func (s *StubClient) SetReadReturn(to common.Address, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readReturns[to] = data
}

// SentCount returns how many transactions Send accepted.
func (s *StubClient) SentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sentTxs)
}

// SimCount returns how many simulations ran.
func (s *StubClient) SimCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simCount
}

func (s *StubClient) CallContract(_ context.Context, call Call) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data, ok := s.readReturns[call.To]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("stub: no read return configured for %s", call.To.Hex())
}

func (s *StubClient) Simulate(_ context.Context, call Call) (*SimResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.simCount++
	if s.simErr != nil {
		return nil, s.simErr
	}

	nonce := s.nextNonce
	s.nextNonce++

	tx := types.NewTx(&types.LegacyTx{
		Nonce: nonce,
		To:    &call.To,
		Value: call.Value,
		Data:  call.Data,
	})

	return &SimResult{ReturnData: s.simReturn, Prepared: &PreparedTx{Tx: tx}}, nil
}

func (s *StubClient) Send(_ context.Context, prepared *PreparedTx) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sendErr != nil {
		return common.Hash{}, s.sendErr
	}

	hash := prepared.Hash()
	s.sentTxs = append(s.sentTxs, hash)
	return hash, nil
}

func (s *StubClient) WaitForReceipt(_ context.Context, txHash common.Hash) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.receiptErr != nil {
		return nil, s.receiptErr
	}

	return &Receipt{
		TxHash:      txHash,
		BlockNumber: 1,
		Status:      s.receiptStat,
	}, nil
}

// AddressReturn ABI-encodes an address as a 32-byte return word. Helper for
// programming factory deploy simulations.
func AddressReturn(addr common.Address) []byte {
	word := make([]byte, 32)
	copy(word[12:], addr.Bytes())
	return word
}

// DeterministicAddress derives a stable fake address from a seed string.
// Stub-mode helper.
func DeterministicAddress(seed string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(seed))[12:])
}
