// Package synclog keeps the bounded history of sync operations.
package synclog

import (
	"context"

	clientmodels "github.com/dmitrijs2005/possync/internal/client/models"
)

type Repository interface {
	// Add stores e and evicts the oldest entries beyond retain.
	Add(ctx context.Context, e *clientmodels.SyncLogEntry, retain int) error
	// List returns up to limit entries, most recent first.
	List(ctx context.Context, limit int) ([]clientmodels.SyncLogEntry, error)
	Clear(ctx context.Context) error
}
