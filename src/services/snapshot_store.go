// backend/src/services/snapshot_store.go
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/chamasats/backend/src/models"
)

// SnapshotStore persists the latest unified snapshot of every transaction
// the service has seen. Actions are never stored: they are recomputed per
// viewer at materialization time.
type SnapshotStore interface {
	Upsert(ctx context.Context, tx models.UnifiedTransaction) error
	Get(ctx context.Context, txContext models.TxContext, id string) (models.UnifiedTransaction, bool, error)
	List(ctx context.Context, f ListFilter) ([]models.UnifiedTransaction, int, error)
}

type sqlSnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore returns a SnapshotStore backed by the given database.
func NewSnapshotStore(db *sql.DB) SnapshotStore {
	return &sqlSnapshotStore{db: db}
}

func (s *sqlSnapshotStore) Upsert(ctx context.Context, tx models.UnifiedTransaction) error {
	meta, err := json.Marshal(tx.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling transaction metadata: %w", err)
	}

	var updatedAt any
	if tx.UpdatedAt != nil {
		updatedAt = *tx.UpdatedAt
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO unified_transactions
			(tx_context, tx_id, tx_type, status, amount, currency, user_id, user_name, metadata, created_at, updated_at, refreshed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tx_context, tx_id) DO UPDATE SET
			tx_type = excluded.tx_type,
			status = excluded.status,
			amount = excluded.amount,
			currency = excluded.currency,
			user_name = excluded.user_name,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at,
			refreshed_at = excluded.refreshed_at`,
		string(tx.Context), tx.ID, string(tx.Type), string(tx.Status),
		tx.Amount.Value.String(), tx.Amount.Currency,
		tx.UserID, tx.UserName, string(meta),
		tx.CreatedAt, updatedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upserting transaction snapshot %s: %w", tx.Key(), err)
	}
	return nil
}

func (s *sqlSnapshotStore) Get(ctx context.Context, txContext models.TxContext, id string) (models.UnifiedTransaction, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tx_context, tx_id, tx_type, status, amount, currency, user_id, user_name, metadata, created_at, updated_at
		FROM unified_transactions
		WHERE tx_context = ? AND tx_id = ?`,
		string(txContext), id)

	tx, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return models.UnifiedTransaction{}, false, nil
	}
	if err != nil {
		return models.UnifiedTransaction{}, false, err
	}
	return tx, true, nil
}

func (s *sqlSnapshotStore) List(ctx context.Context, f ListFilter) ([]models.UnifiedTransaction, int, error) {
	where := "1=1"
	args := []any{}
	if f.Context != "" {
		where += " AND tx_context = ?"
		args = append(args, string(f.Context))
	}
	if f.Type != "" {
		where += " AND tx_type = ?"
		args = append(args, string(f.Type))
	}
	if f.Status != "" {
		where += " AND status = ?"
		args = append(args, string(f.Status))
	}
	if f.UserID != "" {
		where += " AND user_id = ?"
		args = append(args, f.UserID)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM unified_transactions WHERE " + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting transaction snapshots: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT tx_context, tx_id, tx_type, status, amount, currency, user_id, user_name, metadata, created_at, updated_at
		FROM unified_transactions
		WHERE ` + where + `
		ORDER BY created_at DESC, tx_id
		LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing transaction snapshots: %w", err)
	}
	defer rows.Close()

	items := make([]models.UnifiedTransaction, 0, limit)
	for rows.Next() {
		tx, err := scanSnapshot(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (models.UnifiedTransaction, error) {
	var (
		tx        models.UnifiedTransaction
		txContext string
		txType    string
		status    string
		amount    string
		meta      string
		updatedAt sql.NullTime
	)
	err := row.Scan(&txContext, &tx.ID, &txType, &status, &amount,
		&tx.Amount.Currency, &tx.UserID, &tx.UserName, &meta,
		&tx.CreatedAt, &updatedAt)
	if err != nil {
		return models.UnifiedTransaction{}, err
	}

	tx.Context = models.TxContext(txContext)
	tx.Type = models.TxType(txType)
	tx.Status = models.UnifiedStatus(status)
	tx.Amount.Value, err = decimal.NewFromString(amount)
	if err != nil {
		return models.UnifiedTransaction{}, fmt.Errorf("decoding stored amount %q: %w", amount, err)
	}
	if err := json.Unmarshal([]byte(meta), &tx.Metadata); err != nil {
		return models.UnifiedTransaction{}, fmt.Errorf("decoding stored metadata: %w", err)
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		tx.UpdatedAt = &t
	}
	return tx, nil
}
