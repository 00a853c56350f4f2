package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/dmitrijs2005/possync/internal/dbx"
	"github.com/dmitrijs2005/possync/internal/models"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Table and column names below come from the models registry, never from
// user input.

func upsertQuery(s models.Schema) string {
	cols := append([]string{"id", models.ColumnOwnerID}, s.Indexes...)
	cols = append(cols, "data", "updated_at")

	sets := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}

	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)
		ON CONFLICT(id) DO UPDATE SET %s`,
		s.Table, strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
		strings.Join(sets, ", "))
}

func (r *SQLiteRepository) Upsert(ctx context.Context, s models.Schema, rec models.Record) error {
	if rec.GetID() == "" {
		return fmt.Errorf("%w: record id is empty", common.ErrValidation)
	}

	data, err := models.Encode(rec)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", s.Table, rec.GetID(), err)
	}

	var updatedAt sql.NullInt64
	if u := rec.Meta().UpdatedAt; u != nil {
		updatedAt = sql.NullInt64{Int64: u.UnixMilli(), Valid: true}
	}

	args := []any{rec.GetID(), rec.GetOwnerID()}
	for _, c := range s.Indexes {
		args = append(args, rec.IndexValue(c))
	}
	args = append(args, string(data), updatedAt)

	if _, err := r.db.ExecContext(ctx, upsertQuery(s), args...); err != nil {
		return fmt.Errorf("failed to upsert %s/%s: %w", s.Table, rec.GetID(), err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, s models.Schema, id string) (models.Record, error) {
	var data string
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, s.Table), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", s.Table, id, err)
	}
	return models.Decode(s.Table, []byte(data))
}

func (r *SQLiteRepository) List(ctx context.Context, s models.Schema, ownerID string) ([]models.Record, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE (? = '' OR owner_id = ?) ORDER BY rowid`, s.Table)
	return r.query(ctx, s, query, ownerID, ownerID)
}

func (r *SQLiteRepository) FindByIndex(ctx context.Context, s models.Schema, column, value, ownerID string) ([]models.Record, error) {
	if !s.HasIndex(column) {
		return nil, fmt.Errorf("%w: %s has no index on %q", common.ErrValidation, s.Table, column)
	}
	query := fmt.Sprintf(`SELECT data FROM %s WHERE %s = ? AND (? = '' OR owner_id = ?) ORDER BY rowid`, s.Table, column)
	return r.query(ctx, s, query, value, ownerID, ownerID)
}

func (r *SQLiteRepository) query(ctx context.Context, s models.Schema, query string, args ...any) ([]models.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", s.Table, err)
	}
	defer rows.Close()

	result := []models.Record{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", s.Table, err)
		}
		rec, err := models.Decode(s.Table, []byte(data))
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", s.Table, err)
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, s models.Schema, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.Table), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s/%s: %w", s.Table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) DeleteOwnerExcept(ctx context.Context, s models.Schema, ownerID string, keep map[string]struct{}) (int, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE owner_id = ?`, s.Table), ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to select %s ids: %w", s.Table, err)
	}

	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan %s id: %w", s.Table, err)
		}
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("failed to iterate %s ids: %w", s.Table, err)
	}
	rows.Close()

	for _, id := range stale {
		if _, err := r.Delete(ctx, s, id); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

func (r *SQLiteRepository) Clear(ctx context.Context, s models.Schema) error {
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.Table)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", s.Table, err)
	}
	return nil
}
