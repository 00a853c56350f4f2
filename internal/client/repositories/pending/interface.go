// Package pending persists the outbox of local writes awaiting confirmation
// by the server.
package pending

import (
	"context"

	clientmodels "github.com/dmitrijs2005/possync/internal/client/models"
	"github.com/dmitrijs2005/possync/internal/models"
)

type Repository interface {
	Append(ctx context.Context, m *clientmodels.PendingMutation) error
	// ListUnsynced returns unconfirmed entries in insertion order.
	ListUnsynced(ctx context.Context) ([]clientmodels.PendingMutation, error)
	Count(ctx context.Context) (int, error)
	// Delete removes a confirmed entry. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
	// RecordIDs returns the ids of records in table with unconfirmed writes.
	RecordIDs(ctx context.Context, table models.Table) (map[string]struct{}, error)
	Clear(ctx context.Context) error
}
