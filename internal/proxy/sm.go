package proxy

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// TradeState is the lifecycle state of one on-chain write attempt.
type TradeState string

const (
	StateRequested TradeState = "REQUESTED"
	StateSimulated TradeState = "SIMULATED"
	StateSubmitted TradeState = "SUBMITTED"
	StateExecuted  TradeState = "EXECUTED"
	StateSimFailed TradeState = "SIMULATION_FAILED"
	StateFailed    TradeState = "FAILED"
)

// TradeEvent triggers a state transition.
type TradeEvent string

const (
	EventSimulateOK   TradeEvent = "SIMULATE_OK"
	EventSimulateFail TradeEvent = "SIMULATE_FAIL"
	EventSubmit       TradeEvent = "SUBMIT"
	EventConfirmOK    TradeEvent = "CONFIRM_OK"
	EventConfirmFail  TradeEvent = "CONFIRM_FAIL"
)

// transition defines an allowed state machine edge.
type transition struct {
	from  TradeState
	event TradeEvent
}

// transitions is the authoritative transition table. Every valid
// (currentState, event) pair maps to exactly one target state. Terminal
// states have no outgoing edges: nothing leaves EXECUTED, SIMULATION_FAILED,
// or FAILED.
var transitions = map[transition]TradeState{
	{StateRequested, EventSimulateOK}:   StateSimulated,
	{StateRequested, EventSimulateFail}: StateSimFailed,
	{StateSimulated, EventSubmit}:       StateSubmitted,
	{StateSubmitted, EventConfirmOK}:    StateExecuted,
	{StateSubmitted, EventConfirmFail}:  StateFailed,
}

// TradeMachine walks one attempt through REQUESTED -> ... -> terminal. It
// makes the fail-clean guarantee explicit: persistence decisions key off the
// machine's terminal state, not off nested error handling.
type TradeMachine struct {
	TradeID   string
	State     TradeState
	TxHash    string
	StartedAt time.Time
	UpdatedAt time.Time
}

// NewTradeMachine creates a machine in REQUESTED.
func NewTradeMachine(tradeID string) *TradeMachine {
	now := time.Now()
	return &TradeMachine{
		TradeID:   tradeID,
		State:     StateRequested,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Apply advances the machine. Invalid transitions (including any event
// against a terminal state) return an error and leave the state untouched.
func (m *TradeMachine) Apply(event TradeEvent) error {
	key := transition{from: m.State, event: event}
	next, ok := transitions[key]
	if !ok {
		return fmt.Errorf("invalid trade transition: state=%s event=%s", m.State, event)
	}

	prev := m.State
	m.State = next
	m.UpdatedAt = time.Now()

	log.Debug().
		Str("trade_id", m.TradeID).
		Str("prev_state", string(prev)).
		Str("event", string(event)).
		Str("new_state", string(m.State)).
		Str("tx_hash", m.TxHash).
		Msg("trade state transition")

	return nil
}

// IsTerminal reports whether the machine reached a terminal state.
func (m *TradeMachine) IsTerminal() bool {
	switch m.State {
	case StateExecuted, StateSimFailed, StateFailed:
		return true
	default:
		return false
	}
}
