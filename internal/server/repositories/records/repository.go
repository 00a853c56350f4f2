// Package records stores synchronized records as JSONB documents, one
// Postgres table per registered table.
package records

import (
	"context"

	"github.com/dmitrijs2005/possync/internal/models"
)

// Repository is scoped by owner on every read and write. A record owned by
// someone else looks absent.
type Repository interface {
	List(ctx context.Context, table models.Table, ownerID string) ([]models.Record, error)
	Get(ctx context.Context, table models.Table, ownerID, id string) (models.Record, error)
	FindByKey(ctx context.Context, table models.Table, ownerID, column, value string) ([]models.Record, error)
	// Upsert writes rec as given (last write wins). Overwriting another
	// owner's record yields common.ErrPermissionDenied.
	Upsert(ctx context.Context, rec models.Record) (models.Record, error)
	Delete(ctx context.Context, table models.Table, ownerID, id string) error
}
