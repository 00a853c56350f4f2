package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/dmitrijs2005/possync/internal/dbx"
	"github.com/dmitrijs2005/possync/internal/models"
	"github.com/dmitrijs2005/possync/internal/server/repositories/dberr"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// tableName only ever returns a name from the registry, so it is safe to
// splice into SQL.
func tableName(t models.Table) (string, error) {
	s, err := models.Lookup(t)
	if err != nil {
		return "", err
	}
	return string(s.Table), nil
}

func (r *PostgresRepository) query(ctx context.Context, t models.Table, q string, args ...any) ([]models.Record, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dberr.Map(err)
	}
	defer rows.Close()

	out := make([]models.Record, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, dberr.Map(err)
		}
		rec, err := models.Decode(t, data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Map(err)
	}
	return out, nil
}

func (r *PostgresRepository) List(ctx context.Context, t models.Table, ownerID string) ([]models.Record, error) {
	name, err := tableName(t)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT data FROM %s WHERE owner_id = $1 ORDER BY updated_at, id`, name)
	return r.query(ctx, t, q, ownerID)
}

func (r *PostgresRepository) Get(ctx context.Context, t models.Table, ownerID, id string) (models.Record, error) {
	name, err := tableName(t)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT data FROM %s WHERE id = $1 AND owner_id = $2`, name)

	var data []byte
	if err := r.db.QueryRowContext(ctx, q, id, ownerID).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s %s: %w", t, id, common.ErrNotFound)
		}
		return nil, dberr.Map(err)
	}
	return models.Decode(t, data)
}

func (r *PostgresRepository) FindByKey(ctx context.Context, t models.Table, ownerID, column, value string) ([]models.Record, error) {
	name, err := tableName(t)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT data FROM %s WHERE owner_id = $1 AND data ->> $2 = $3 ORDER BY updated_at, id`, name)
	return r.query(ctx, t, q, ownerID, column, value)
}

func (r *PostgresRepository) Upsert(ctx context.Context, rec models.Record) (models.Record, error) {
	name, err := tableName(rec.Table())
	if err != nil {
		return nil, err
	}
	data, err := models.Encode(rec)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`
		INSERT INTO %[1]s (id, owner_id, data, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = now()
		WHERE %[1]s.owner_id = EXCLUDED.owner_id
		RETURNING data`, name)

	var stored []byte
	err = r.db.QueryRowContext(ctx, q, rec.GetID(), rec.GetOwnerID(), string(data)).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s %s: %w", rec.Table(), rec.GetID(), common.ErrPermissionDenied)
		}
		return nil, dberr.Map(err)
	}
	return models.Decode(rec.Table(), stored)
}

func (r *PostgresRepository) Delete(ctx context.Context, t models.Table, ownerID, id string) error {
	name, err := tableName(t)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND owner_id = $2`, name)

	res, err := r.db.ExecContext(ctx, q, id, ownerID)
	if err != nil {
		return dberr.Map(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dberr.Map(err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", t, id, common.ErrNotFound)
	}
	return nil
}
