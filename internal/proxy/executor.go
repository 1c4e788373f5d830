package proxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/talon-trading/talon/internal/evm"
	"github.com/talon-trading/talon/internal/storage"
)

// TradeRequest describes one swap to run through a user's proxy wallet.
type TradeRequest struct {
	TokenIn      string
	TokenOut     string
	AmountIn     decimal.Decimal
	MinAmountOut decimal.Decimal
	Deadline     time.Time
}

// TerminalFunc is invoked once per trade that reaches a terminal state with
// a persisted record (EXECUTED or FAILED). Simulation failures never produce
// a record and never fire the hook.
type TerminalFunc func(ownerIdentity string, trade *storage.ProxyTrade)

// Executor runs trades and approval updates through deployed proxy wallets.
// Persistence is terminal-only: a row hits the trade store exactly when the
// attempt ends in EXECUTED or FAILED, never for in-flight or pre-gas states.
type Executor struct {
	chain     evm.Client
	wallets   storage.WalletStore
	trades    storage.TradeStore
	approvals storage.ApprovalStore

	onTerminal TerminalFunc
}

func NewExecutor(chain evm.Client, wallets storage.WalletStore, trades storage.TradeStore, approvals storage.ApprovalStore) *Executor {
	return &Executor{
		chain:     chain,
		wallets:   wallets,
		trades:    trades,
		approvals: approvals,
	}
}

// OnTerminal registers the terminal-state hook. Call before first use; the
// executor does not lock around it.
func (e *Executor) OnTerminal(fn TerminalFunc) { e.onTerminal = fn }

// ExecuteTrade runs one trade through the user's proxy wallet. The trade id
// is generated before submission so every log line and the eventual record
// share it. Returns the trade id together with any error; an empty id means
// the request failed before a trade attempt existed.
//
// Outcome handling follows the state machine strictly:
//   - simulate failure: terminal SIMULATION_FAILED, nothing persisted, no
//     gas spent, error returned.
//   - send failure: nothing broadcast reached the chain, nothing persisted,
//     error returned.
//   - confirmed revert: terminal FAILED, record persisted with the tx hash.
//   - confirmation timeout: outcome unknown, nothing persisted, the error
//     wraps evm.ErrConfirmTimeout and carries the tx hash.
//   - confirmed success: terminal EXECUTED, record persisted.
func (e *Executor) ExecuteTrade(ctx context.Context, userAddress, identity string, req TradeRequest) (string, error) {
	wallet, err := e.wallets.Get(ctx, userAddress, identity)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrNoProxyWallet
		}
		return "", fmt.Errorf("wallet lookup: %w", err)
	}

	tradeID := uuid.NewString()
	machine := NewTradeMachine(tradeID)

	log.Info().
		Str("trade_id", tradeID).
		Str("user", userAddress).
		Str("proxy", wallet.ProxyAddress).
		Str("token_in", req.TokenIn).
		Str("token_out", req.TokenOut).
		Str("amount_in", req.AmountIn.String()).
		Msg("trade requested")

	data, err := packExecuteTrade(
		common.HexToAddress(req.TokenIn),
		common.HexToAddress(req.TokenOut),
		req.AmountIn, req.MinAmountOut, req.Deadline.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("encode executeTrade: %w", err)
	}

	sim, err := e.chain.Simulate(ctx, evm.Call{To: common.HexToAddress(wallet.ProxyAddress), Data: data})
	if err != nil {
		_ = machine.Apply(EventSimulateFail)
		log.Warn().Str("trade_id", tradeID).Err(err).Msg("trade simulation failed")
		return tradeID, phaseErr(PhaseSimulate, "", err)
	}
	_ = machine.Apply(EventSimulateOK)

	txHash, err := e.chain.Send(ctx, sim.Prepared)
	if err != nil {
		return tradeID, phaseErr(PhaseSend, "", err)
	}
	_ = machine.Apply(EventSubmit)
	machine.TxHash = txHash.Hex()

	receipt, err := e.chain.WaitForReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, evm.ErrConfirmTimeout) {
			// Unknown outcome. Writing FAILED here could contradict a
			// transaction that lands seconds later, so nothing is persisted
			// and the caller must re-query.
			return tradeID, phaseErr(PhaseConfirm, txHash.Hex(), err)
		}
		_ = machine.Apply(EventConfirmFail)
		perr := phaseErr(PhaseConfirm, txHash.Hex(), err)
		e.persistTerminal(ctx, identity, machine, wallet, req, perr.Error())
		return tradeID, perr
	}

	if !receipt.Success() {
		_ = machine.Apply(EventConfirmFail)
		perr := phaseErr(PhaseConfirm, txHash.Hex(), fmt.Errorf("trade transaction reverted"))
		e.persistTerminal(ctx, identity, machine, wallet, req, perr.Error())
		return tradeID, perr
	}

	_ = machine.Apply(EventConfirmOK)
	e.persistTerminal(ctx, identity, machine, wallet, req, "")

	log.Info().
		Str("trade_id", tradeID).
		Str("tx_hash", txHash.Hex()).
		Uint64("block", receipt.BlockNumber).
		Msg("trade executed")

	return tradeID, nil
}

// persistTerminal writes the trade record for a terminal machine state and
// fires the terminal hook. Store failures are logged, not raised: the chain
// outcome already happened and must not be masked by a persistence error.
func (e *Executor) persistTerminal(ctx context.Context, identity string, machine *TradeMachine, wallet *storage.ProxyWallet, req TradeRequest, failReason string) {
	status := storage.TradeExecuted
	if machine.State == StateFailed {
		status = storage.TradeFailed
	}

	trade := &storage.ProxyTrade{
		TradeID:      machine.TradeID,
		UserAddress:  wallet.UserAddress,
		ProxyAddress: wallet.ProxyAddress,
		TokenIn:      req.TokenIn,
		TokenOut:     req.TokenOut,
		AmountIn:     req.AmountIn,
		MinAmountOut: req.MinAmountOut,
		Deadline:     req.Deadline,
		Status:       status,
		TxHash:       machine.TxHash,
		FailReason:   failReason,
		ExecutedAt:   time.Now(),
	}

	if err := e.trades.Insert(ctx, trade); err != nil {
		log.Error().
			Str("trade_id", trade.TradeID).
			Str("status", string(status)).
			Err(err).
			Msg("failed to persist trade record")
	}

	if e.onTerminal != nil {
		e.onTerminal(identity, trade)
	}
}

// UpdateApproval runs a setApproval call through the user's proxy wallet and
// upserts the stored approval on confirmed success. Same three-phase write
// and fail-clean rules as trades.
func (e *Executor) UpdateApproval(ctx context.Context, userAddress, identity, tokenAddress string, amount decimal.Decimal) (string, error) {
	wallet, err := e.wallets.Get(ctx, userAddress, identity)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrNoProxyWallet
		}
		return "", fmt.Errorf("wallet lookup: %w", err)
	}

	data, err := packSetApproval(common.HexToAddress(tokenAddress), amount)
	if err != nil {
		return "", fmt.Errorf("encode setApproval: %w", err)
	}

	sim, err := e.chain.Simulate(ctx, evm.Call{To: common.HexToAddress(wallet.ProxyAddress), Data: data})
	if err != nil {
		return "", phaseErr(PhaseSimulate, "", err)
	}

	txHash, err := e.chain.Send(ctx, sim.Prepared)
	if err != nil {
		return "", phaseErr(PhaseSend, "", err)
	}

	receipt, err := e.chain.WaitForReceipt(ctx, txHash)
	if err != nil {
		return txHash.Hex(), phaseErr(PhaseConfirm, txHash.Hex(), err)
	}
	if !receipt.Success() {
		return txHash.Hex(), phaseErr(PhaseConfirm, txHash.Hex(), fmt.Errorf("approval transaction reverted"))
	}

	approval := &storage.ProxyApproval{
		UserAddress:  userAddress,
		TokenAddress: tokenAddress,
		Amount:       amount,
		TxHash:       txHash.Hex(),
		UpdatedAt:    time.Now(),
	}
	if err := e.approvals.Upsert(ctx, approval); err != nil {
		return txHash.Hex(), fmt.Errorf("persist approval: %w", err)
	}

	log.Info().
		Str("user", userAddress).
		Str("token", tokenAddress).
		Str("amount", amount.String()).
		Str("tx_hash", txHash.Hex()).
		Msg("approval updated")

	return txHash.Hex(), nil
}
