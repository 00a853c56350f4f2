// Package records stores synchronized records in their per-table SQLite
// tables. The table layout comes from the models registry.
package records

import (
	"context"

	"github.com/dmitrijs2005/possync/internal/models"
)

type Repository interface {
	// Upsert inserts or replaces a record by id.
	Upsert(ctx context.Context, s models.Schema, r models.Record) error
	// Get returns (nil, nil) when the record does not exist.
	Get(ctx context.Context, s models.Schema, id string) (models.Record, error)
	// List returns the records of ownerID, or all records when ownerID is "".
	List(ctx context.Context, s models.Schema, ownerID string) ([]models.Record, error)
	FindByIndex(ctx context.Context, s models.Schema, column, value, ownerID string) ([]models.Record, error)
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, s models.Schema, id string) (bool, error)
	// DeleteOwnerExcept removes rows of ownerID whose id is not in keep.
	DeleteOwnerExcept(ctx context.Context, s models.Schema, ownerID string, keep map[string]struct{}) (int, error)
	Clear(ctx context.Context, s models.Schema) error
}
