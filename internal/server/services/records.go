package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/dmitrijs2005/possync/internal/dbx"
	"github.com/dmitrijs2005/possync/internal/models"
	"github.com/dmitrijs2005/possync/internal/server/repositories/repomanager"
)

// RecordService is the system of record for synchronized tables. Every call
// is scoped to the authenticated owner; the owner id on incoming records is
// ignored and replaced.
type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
}

func NewRecordService(db *sql.DB, m repomanager.RepositoryManager) *RecordService {
	return &RecordService{db: db, repomanager: m, now: time.Now}
}

func (s *RecordService) List(ctx context.Context, ownerID, table string) ([]models.Record, error) {
	t, err := models.ParseTable(table)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	return s.repomanager.Records(s.db).List(ctx, t, ownerID)
}

func (s *RecordService) Get(ctx context.Context, ownerID, table, id string) (models.Record, error) {
	t, err := models.ParseTable(table)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	return s.repomanager.Records(s.db).Get(ctx, t, ownerID, id)
}

// FindByKey looks records up by a registered index column.
func (s *RecordService) FindByKey(ctx context.Context, ownerID, table, column, value string) ([]models.Record, error) {
	schema, err := models.Lookup(models.Table(table))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	if !schema.HasIndex(column) {
		return nil, fmt.Errorf("%w: %s has no index on %q", common.ErrValidation, table, column)
	}
	return s.repomanager.Records(s.db).FindByKey(ctx, schema.Table, ownerID, column, value)
}

// Upsert stores a full record (last write wins).
func (s *RecordService) Upsert(ctx context.Context, ownerID, table string, data json.RawMessage) (models.Record, error) {
	t, err := models.ParseTable(table)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	rec, err := models.Decode(t, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	if rec.GetID() == "" {
		return nil, fmt.Errorf("%w: record id is required", common.ErrValidation)
	}
	rec.Meta().OwnerID = ownerID
	if rec.Meta().CreatedAt == nil {
		rec.Meta().Touch(s.now())
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return s.repomanager.Records(s.db).Upsert(ctx, rec)
}

// Update applies a JSON merge patch to a stored record.
func (s *RecordService) Update(ctx context.Context, ownerID, table, id string, patch map[string]any) (models.Record, error) {
	t, err := models.ParseTable(table)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}

	var out models.Record
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Records(tx)
		cur, err := repo.Get(ctx, t, ownerID, id)
		if err != nil {
			return err
		}
		merged, err := models.Merge(cur, patch)
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrValidation, err)
		}
		if _, ok := patch["updated_at"]; !ok {
			merged.Meta().Touch(s.now())
		}
		if err := merged.Validate(); err != nil {
			return err
		}
		out, err = repo.Upsert(ctx, merged)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RecordService) Delete(ctx context.Context, ownerID, table, id string) error {
	t, err := models.ParseTable(table)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	return s.repomanager.Records(s.db).Delete(ctx, t, ownerID, id)
}
