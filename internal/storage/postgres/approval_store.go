package postgres

import (
	"context"
	"fmt"

	"github.com/talon-trading/talon/internal/storage"
)

// ApprovalStore implements storage.ApprovalStore using PostgreSQL.
type ApprovalStore struct {
	pool *Pool
}

// NewApprovalStore creates a new ApprovalStore.
func NewApprovalStore(pool *Pool) *ApprovalStore {
	return &ApprovalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ApprovalStore = (*ApprovalStore)(nil)

// Upsert inserts or replaces the approval for (UserAddress, TokenAddress).
func (s *ApprovalStore) Upsert(ctx context.Context, a *storage.ProxyApproval) error {
	query := `
		INSERT INTO proxy_approvals (
			user_address, token_address, amount, tx_hash, updated_at
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_address, token_address) DO UPDATE SET
			amount = EXCLUDED.amount,
			tx_hash = EXCLUDED.tx_hash,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		a.UserAddress, a.TokenAddress, a.Amount, a.TxHash, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert proxy approval: %w", err)
	}
	return nil
}

// ListByUser returns the user's current approvals.
func (s *ApprovalStore) ListByUser(ctx context.Context, userAddress string) ([]storage.ProxyApproval, error) {
	query := `
		SELECT user_address, token_address, amount, tx_hash, updated_at
		FROM proxy_approvals
		WHERE user_address = $1
		ORDER BY token_address
	`

	rows, err := s.pool.Query(ctx, query, userAddress)
	if err != nil {
		return nil, fmt.Errorf("list proxy approvals: %w", err)
	}
	defer rows.Close()

	var approvals []storage.ProxyApproval
	for rows.Next() {
		var a storage.ProxyApproval
		if err := rows.Scan(&a.UserAddress, &a.TokenAddress, &a.Amount, &a.TxHash, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan proxy approval: %w", err)
		}
		approvals = append(approvals, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proxy approvals: %w", err)
	}
	return approvals, nil
}
