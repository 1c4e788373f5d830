// Package memory provides mutex-guarded in-memory store implementations.
// They are the test doubles for every storage interface and the default
// runtime stores when no Postgres DSN is configured (the relational schema
// belongs to an external collaborator).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/talon-trading/talon/internal/sniper"
	"github.com/talon-trading/talon/internal/storage"
)

func walletKey(userAddress, ownerIdentity string) string {
	return userAddress + "|" + ownerIdentity
}

// ---------------------------------------------------------------------------
// WalletStore
// ---------------------------------------------------------------------------

// WalletStore is an in-memory storage.WalletStore.
type WalletStore struct {
	mu      sync.RWMutex
	wallets map[string]storage.ProxyWallet
}

var _ storage.WalletStore = (*WalletStore)(nil)

// NewWalletStore creates an empty wallet store.
func NewWalletStore() *WalletStore {
	return &WalletStore{wallets: make(map[string]storage.ProxyWallet)}
}

func (s *WalletStore) Get(_ context.Context, userAddress, ownerIdentity string) (*storage.ProxyWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[walletKey(userAddress, ownerIdentity)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := w
	return &out, nil
}

func (s *WalletStore) Insert(_ context.Context, w *storage.ProxyWallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := walletKey(w.UserAddress, w.OwnerIdentity)
	if _, ok := s.wallets[key]; ok {
		return storage.ErrDuplicateKey
	}
	s.wallets[key] = *w
	return nil
}

func (s *WalletStore) SetActive(_ context.Context, userAddress, ownerIdentity string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := walletKey(userAddress, ownerIdentity)
	w, ok := s.wallets[key]
	if !ok {
		return storage.ErrNotFound
	}
	w.IsActive = active
	s.wallets[key] = w
	return nil
}

// ---------------------------------------------------------------------------
// TradeStore
// ---------------------------------------------------------------------------

// TradeStore is an in-memory storage.TradeStore.
type TradeStore struct {
	mu     sync.RWMutex
	trades []storage.ProxyTrade
	byID   map[string]struct{}
}

var _ storage.TradeStore = (*TradeStore)(nil)

// NewTradeStore creates an empty trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{byID: make(map[string]struct{})}
}

func (s *TradeStore) Insert(_ context.Context, t *storage.ProxyTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[t.TradeID]; ok {
		return storage.ErrDuplicateKey
	}
	s.byID[t.TradeID] = struct{}{}
	s.trades = append(s.trades, *t)
	return nil
}

func (s *TradeStore) ListByUser(_ context.Context, userAddress string, limit int) ([]storage.ProxyTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []storage.ProxyTrade
	for _, t := range s.trades {
		if t.UserAddress == userAddress {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExecutedAt.After(out[j].ExecutedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the total number of persisted trades. Test helper.
func (s *TradeStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trades)
}

// ---------------------------------------------------------------------------
// ApprovalStore
// ---------------------------------------------------------------------------

// ApprovalStore is an in-memory storage.ApprovalStore.
type ApprovalStore struct {
	mu        sync.RWMutex
	approvals map[string]storage.ProxyApproval
}

var _ storage.ApprovalStore = (*ApprovalStore)(nil)

// NewApprovalStore creates an empty approval store.
func NewApprovalStore() *ApprovalStore {
	return &ApprovalStore{approvals: make(map[string]storage.ProxyApproval)}
}

func (s *ApprovalStore) Upsert(_ context.Context, a *storage.ProxyApproval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.approvals[walletKey(a.UserAddress, a.TokenAddress)] = *a
	return nil
}

func (s *ApprovalStore) ListByUser(_ context.Context, userAddress string) ([]storage.ProxyApproval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []storage.ProxyApproval
	for _, a := range s.approvals {
		if a.UserAddress == userAddress {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TokenAddress < out[j].TokenAddress
	})
	return out, nil
}

// ---------------------------------------------------------------------------
// SniperConfigStore
// ---------------------------------------------------------------------------

// ConfigStore is an in-memory storage.SniperConfigStore with mutation
// helpers for tests and the stub runtime.
type ConfigStore struct {
	mu      sync.RWMutex
	configs map[string]sniper.Config
}

var _ storage.SniperConfigStore = (*ConfigStore)(nil)

// NewConfigStore creates an empty config store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{configs: make(map[string]sniper.Config)}
}

// Put inserts or replaces a config.
func (s *ConfigStore) Put(cfg sniper.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.UpdatedAt = time.Now()
	s.configs[cfg.ID] = cfg
}

func (s *ConfigStore) ListActive(_ context.Context) ([]sniper.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []sniper.Config
	for _, cfg := range s.configs {
		if cfg.IsActive {
			out = append(out, cfg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---------------------------------------------------------------------------
// AlertStore
// ---------------------------------------------------------------------------

// AlertStore is an in-memory storage.AlertStore.
type AlertStore struct {
	mu     sync.RWMutex
	alerts []storage.Alert
}

var _ storage.AlertStore = (*AlertStore)(nil)

// NewAlertStore creates an empty alert store.
func NewAlertStore() *AlertStore {
	return &AlertStore{}
}

func (s *AlertStore) Insert(_ context.Context, a *storage.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, *a)
	return nil
}

func (s *AlertStore) ListByIdentity(_ context.Context, ownerIdentity string, limit int) ([]storage.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []storage.Alert
	for i := len(s.alerts) - 1; i >= 0; i-- {
		if s.alerts[i].OwnerIdentity == ownerIdentity {
			out = append(out, s.alerts[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
