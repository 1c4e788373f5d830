package postgres

import (
	"context"
	"fmt"

	"github.com/talon-trading/talon/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert writes one terminal trade row. Returns ErrDuplicateKey on a
// repeated trade id.
func (s *TradeStore) Insert(ctx context.Context, t *storage.ProxyTrade) error {
	query := `
		INSERT INTO proxy_trades (
			trade_id, user_address, proxy_address,
			token_in, token_out, amount_in, min_amount_out,
			deadline, status, tx_hash, fail_reason, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TradeID, t.UserAddress, t.ProxyAddress,
		t.TokenIn, t.TokenOut, t.AmountIn, t.MinAmountOut,
		t.Deadline, t.Status, t.TxHash, t.FailReason, t.ExecutedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert proxy trade: %w", err)
	}
	return nil
}

// ListByUser returns the user's trades, newest first.
func (s *TradeStore) ListByUser(ctx context.Context, userAddress string, limit int) ([]storage.ProxyTrade, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT trade_id, user_address, proxy_address,
		       token_in, token_out, amount_in, min_amount_out,
		       deadline, status, tx_hash, fail_reason, executed_at
		FROM proxy_trades
		WHERE user_address = $1
		ORDER BY executed_at DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, userAddress, limit)
	if err != nil {
		return nil, fmt.Errorf("list proxy trades: %w", err)
	}
	defer rows.Close()

	var trades []storage.ProxyTrade
	for rows.Next() {
		var t storage.ProxyTrade
		if err := rows.Scan(
			&t.TradeID, &t.UserAddress, &t.ProxyAddress,
			&t.TokenIn, &t.TokenOut, &t.AmountIn, &t.MinAmountOut,
			&t.Deadline, &t.Status, &t.TxHash, &t.FailReason, &t.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("scan proxy trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proxy trades: %w", err)
	}
	return trades, nil
}
