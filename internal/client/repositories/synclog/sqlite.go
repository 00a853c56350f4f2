package synclog

import (
	"context"
	"fmt"
	"time"

	clientmodels "github.com/dmitrijs2005/possync/internal/client/models"
	"github.com/dmitrijs2005/possync/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Add(ctx context.Context, e *clientmodels.SyncLogEntry, retain int) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_log (timestamp, type, tbl, item_count, status, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.Timestamp.UnixMilli(), string(e.Type), e.Table, e.ItemCount, string(e.Status), e.Details)
	if err != nil {
		return fmt.Errorf("failed to add sync log entry: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}

	if retain > 0 {
		_, err = r.db.ExecContext(ctx, `
			DELETE FROM sync_log
			WHERE id NOT IN (SELECT id FROM sync_log ORDER BY id DESC LIMIT ?)
		`, retain)
		if err != nil {
			return fmt.Errorf("failed to evict sync log entries: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]clientmodels.SyncLogEntry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, timestamp, type, tbl, item_count, status, details
		FROM sync_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select sync log: %w", err)
	}
	defer rows.Close()

	result := []clientmodels.SyncLogEntry{}
	for rows.Next() {
		var (
			e           clientmodels.SyncLogEntry
			ts          int64
			typ, status string
		)
		if err := rows.Scan(&e.ID, &ts, &typ, &e.Table, &e.ItemCount, &status, &e.Details); err != nil {
			return nil, fmt.Errorf("failed to scan sync log entry: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts).UTC()
		e.Type = clientmodels.SyncLogType(typ)
		e.Status = clientmodels.SyncLogStatus(status)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync log: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_log`); err != nil {
		return fmt.Errorf("failed to clear sync log: %w", err)
	}
	return nil
}
