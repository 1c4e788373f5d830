package postgres

import (
	"context"
	"fmt"

	"github.com/talon-trading/talon/internal/sniper"
	"github.com/talon-trading/talon/internal/storage"
)

// SniperConfigStore implements storage.SniperConfigStore using PostgreSQL.
// The core only reads configs; writes belong to the collaborator layer that
// owns user management.
type SniperConfigStore struct {
	pool *Pool
}

// NewSniperConfigStore creates a new SniperConfigStore.
func NewSniperConfigStore(pool *Pool) *SniperConfigStore {
	return &SniperConfigStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SniperConfigStore = (*SniperConfigStore)(nil)

// ListActive returns every active config.
func (s *SniperConfigStore) ListActive(ctx context.Context) ([]sniper.Config, error) {
	query := `
		SELECT id, owner_identity, user_address,
		       target_chains, target_dexs,
		       min_liquidity, min_market_cap, max_market_cap,
		       max_buy_tax, max_sell_tax,
		       honeypot_check, lock_check,
		       blacklist, whitelist,
		       auto_trade, trade_amount,
		       is_active, updated_at
		FROM sniper_configs
		WHERE is_active = TRUE
		ORDER BY updated_at DESC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active sniper configs: %w", err)
	}
	defer rows.Close()

	var configs []sniper.Config
	for rows.Next() {
		var c sniper.Config
		err := rows.Scan(
			&c.ID, &c.OwnerIdentity, &c.UserAddress,
			&c.TargetChains, &c.TargetDexs,
			&c.MinLiquidity, &c.MinMarketCap, &c.MaxMarketCap,
			&c.MaxBuyTax, &c.MaxSellTax,
			&c.HoneypotCheck, &c.LockCheck,
			&c.Blacklist, &c.Whitelist,
			&c.AutoTrade, &c.TradeAmount,
			&c.IsActive, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sniper config: %w", err)
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}
