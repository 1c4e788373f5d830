package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/talon-trading/talon/internal/sniper"
)

// Sentinel errors shared by every store implementation.
var (
	ErrNotFound     = errors.New("storage: not found")
	ErrDuplicateKey = errors.New("storage: duplicate key")
)

// ---------------------------------------------------------------------------
// Persistent models
// ---------------------------------------------------------------------------

// ProxyWallet is a deployed per-user proxy contract holding capped,
// delegated trading authority. Exactly one live wallet exists per
// (UserAddress, OwnerIdentity) pair.
type ProxyWallet struct {
	UserAddress    string          `json:"user_address"`
	OwnerIdentity  string          `json:"owner_identity"`
	ProxyAddress   string          `json:"proxy_address"`
	MaxTradeAmount decimal.Decimal `json:"max_trade_amount"`
	MaxSlippagePct decimal.Decimal `json:"max_slippage_pct"`
	DailyLimit     decimal.Decimal `json:"daily_limit"`
	IsActive       bool            `json:"is_active"`
	DeployedAt     time.Time       `json:"deployed_at"`
}

// TradeStatus is the terminal status of a persisted trade. Only terminal
// outcomes are ever written; there is no pending row.
type TradeStatus string

const (
	TradeExecuted TradeStatus = "executed"
	TradeFailed   TradeStatus = "failed"
)

// ProxyTrade is one terminal trade outcome.
type ProxyTrade struct {
	TradeID      string          `json:"trade_id"` // 128-bit uuid
	UserAddress  string          `json:"user_address"`
	ProxyAddress string          `json:"proxy_address"`
	TokenIn      string          `json:"token_in"`
	TokenOut     string          `json:"token_out"`
	AmountIn     decimal.Decimal `json:"amount_in"`
	MinAmountOut decimal.Decimal `json:"min_amount_out"`
	Deadline     time.Time       `json:"deadline"`
	Status       TradeStatus     `json:"status"`
	TxHash       string          `json:"tx_hash"`
	FailReason   string          `json:"fail_reason,omitempty"`
	ExecutedAt   time.Time       `json:"executed_at"`
}

// ProxyApproval is the current spending approval for (user, token).
// Upserted in place, never appended.
type ProxyApproval struct {
	UserAddress  string          `json:"user_address"`
	TokenAddress string          `json:"token_address"`
	Amount       decimal.Decimal `json:"amount"`
	TxHash       string          `json:"tx_hash"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Alert is a delivered notification, persisted with a full metadata snapshot
// of the triggering pool and matched config fields for audit replay.
type Alert struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"` // pool_match|trade_executed|trade_failed
	Severity      string         `json:"severity"`
	OwnerIdentity string         `json:"owner_identity"`
	Message       string         `json:"message"`
	Metadata      map[string]any `json:"metadata"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ---------------------------------------------------------------------------
// Store interfaces
// ---------------------------------------------------------------------------

// WalletStore persists proxy wallets.
type WalletStore interface {
	// Get returns the wallet for (userAddress, ownerIdentity), or ErrNotFound.
	Get(ctx context.Context, userAddress, ownerIdentity string) (*ProxyWallet, error)

	// Insert adds a new wallet. Returns ErrDuplicateKey if one already
	// exists for the identity pair.
	Insert(ctx context.Context, w *ProxyWallet) error

	// SetActive flips the wallet's activity flag.
	SetActive(ctx context.Context, userAddress, ownerIdentity string, active bool) error
}

// TradeStore persists terminal trade outcomes.
type TradeStore interface {
	// Insert writes one terminal trade row. Returns ErrDuplicateKey on a
	// repeated trade id.
	Insert(ctx context.Context, t *ProxyTrade) error

	// ListByUser returns the user's trades, newest first.
	ListByUser(ctx context.Context, userAddress string, limit int) ([]ProxyTrade, error)
}

// ApprovalStore persists token approvals keyed by (user, token).
type ApprovalStore interface {
	// Upsert inserts or replaces the approval for (UserAddress, TokenAddress).
	Upsert(ctx context.Context, a *ProxyApproval) error

	// ListByUser returns the user's current approvals.
	ListByUser(ctx context.Context, userAddress string) ([]ProxyApproval, error)
}

// SniperConfigStore reads the user configs evaluated each discovery cycle.
// Config mutation belongs to the collaborator layer.
type SniperConfigStore interface {
	// ListActive returns every active config.
	ListActive(ctx context.Context) ([]sniper.Config, error)
}

// AlertStore persists delivered alerts for audit replay.
type AlertStore interface {
	Insert(ctx context.Context, a *Alert) error
	ListByIdentity(ctx context.Context, ownerIdentity string, limit int) ([]Alert, error)
}
