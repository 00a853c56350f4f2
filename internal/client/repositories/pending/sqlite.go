package pending

import (
	"context"
	"fmt"
	"time"

	clientmodels "github.com/dmitrijs2005/possync/internal/client/models"
	"github.com/dmitrijs2005/possync/internal/dbx"
	"github.com/dmitrijs2005/possync/internal/models"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append stores m and fills in its Seq.
func (r *SQLiteRepository) Append(ctx context.Context, m *clientmodels.PendingMutation) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_mutations (id, tbl, record_id, action, data, timestamp, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, string(m.Table), m.RecordID, string(m.Action), string(m.Data), m.Timestamp.UnixMilli(), m.Synced)
	if err != nil {
		return fmt.Errorf("failed to append pending mutation %s: %w", m.ID, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get pending mutation seq: %w", err)
	}
	m.Seq = seq
	return nil
}

func (r *SQLiteRepository) ListUnsynced(ctx context.Context) ([]clientmodels.PendingMutation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, id, tbl, record_id, action, data, timestamp, synced
		FROM pending_mutations
		WHERE synced = 0
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending mutations: %w", err)
	}
	defer rows.Close()

	result := []clientmodels.PendingMutation{}
	for rows.Next() {
		var (
			m              clientmodels.PendingMutation
			table, action  string
			data           string
			timestampMilli int64
		)
		if err := rows.Scan(&m.Seq, &m.ID, &table, &m.RecordID, &action, &data, &timestampMilli, &m.Synced); err != nil {
			return nil, fmt.Errorf("failed to scan pending mutation: %w", err)
		}
		m.Table = models.Table(table)
		m.Action = clientmodels.Action(action)
		m.Data = []byte(data)
		m.Timestamp = time.UnixMilli(timestampMilli).UTC()
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending mutations: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_mutations WHERE synced = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending mutations: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_mutations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete pending mutation %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) RecordIDs(ctx context.Context, table models.Table) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT record_id FROM pending_mutations WHERE tbl = ? AND synced = 0`, string(table))
	if err != nil {
		return nil, fmt.Errorf("failed to select pending record ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pending record id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending record ids: %w", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_mutations`); err != nil {
		return fmt.Errorf("failed to clear pending mutations: %w", err)
	}
	return nil
}
