package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/talon-trading/talon/internal/storage"
)

// AlertStore implements storage.AlertStore using PostgreSQL. Metadata is
// stored as JSONB so the full pool+config snapshot survives for replay.
type AlertStore struct {
	pool *Pool
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(pool *Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

func (s *AlertStore) Insert(ctx context.Context, a *storage.Alert) error {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshal alert metadata: %w", err)
	}

	query := `
		INSERT INTO alerts (
			id, type, severity, owner_identity, message, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.pool.Exec(ctx, query,
		a.ID, a.Type, a.Severity, a.OwnerIdentity, a.Message, meta, a.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *AlertStore) ListByIdentity(ctx context.Context, ownerIdentity string, limit int) ([]storage.Alert, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, type, severity, owner_identity, message, metadata, created_at
		FROM alerts
		WHERE owner_identity = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, ownerIdentity, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []storage.Alert
	for rows.Next() {
		var a storage.Alert
		var meta []byte
		if err := rows.Scan(&a.ID, &a.Type, &a.Severity, &a.OwnerIdentity, &a.Message, &meta, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &a.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal alert metadata: %w", err)
			}
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return alerts, nil
}
