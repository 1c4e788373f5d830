package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/talon-trading/talon/internal/storage"
)

// WalletStore implements storage.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *Pool
}

// NewWalletStore creates a new WalletStore.
func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

// Get returns the wallet for (userAddress, ownerIdentity), or ErrNotFound.
func (s *WalletStore) Get(ctx context.Context, userAddress, ownerIdentity string) (*storage.ProxyWallet, error) {
	query := `
		SELECT user_address, owner_identity, proxy_address,
		       max_trade_amount, max_slippage_pct, daily_limit,
		       is_active, deployed_at
		FROM proxy_wallets
		WHERE user_address = $1 AND owner_identity = $2
	`

	var w storage.ProxyWallet
	err := s.pool.QueryRow(ctx, query, userAddress, ownerIdentity).Scan(
		&w.UserAddress, &w.OwnerIdentity, &w.ProxyAddress,
		&w.MaxTradeAmount, &w.MaxSlippagePct, &w.DailyLimit,
		&w.IsActive, &w.DeployedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get proxy wallet: %w", err)
	}
	return &w, nil
}

// Insert adds a new wallet. Returns ErrDuplicateKey if one exists for the
// identity pair.
func (s *WalletStore) Insert(ctx context.Context, w *storage.ProxyWallet) error {
	query := `
		INSERT INTO proxy_wallets (
			user_address, owner_identity, proxy_address,
			max_trade_amount, max_slippage_pct, daily_limit,
			is_active, deployed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		w.UserAddress, w.OwnerIdentity, w.ProxyAddress,
		w.MaxTradeAmount, w.MaxSlippagePct, w.DailyLimit,
		w.IsActive, w.DeployedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert proxy wallet: %w", err)
	}
	return nil
}

// SetActive flips the wallet's activity flag.
func (s *WalletStore) SetActive(ctx context.Context, userAddress, ownerIdentity string, active bool) error {
	query := `
		UPDATE proxy_wallets
		SET is_active = $3
		WHERE user_address = $1 AND owner_identity = $2
	`

	tag, err := s.pool.Exec(ctx, query, userAddress, ownerIdentity, active)
	if err != nil {
		return fmt.Errorf("set proxy wallet active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
