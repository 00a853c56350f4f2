// Package remote is the POS terminal's view of the server: record CRUD,
// authentication and image presigning over gRPC. Every failure is mapped to
// the common error taxonomy so that callers can tell connectivity problems
// (common.ErrRemoteUnreachable) from refusals (common.ErrRemoteRejected).
package remote

import (
	"context"

	"github.com/dmitrijs2005/possync/internal/models"
)

// Remote is the system of record. The owner of listed and written records is
// the user of the current session token.
type Remote interface {
	List(ctx context.Context, table models.Table) ([]models.Record, error)
	Get(ctx context.Context, table models.Table, id string) (models.Record, error)
	FindByKey(ctx context.Context, table models.Table, column, value string) ([]models.Record, error)
	// Upsert inserts or replaces the record by id and returns the stored version.
	Upsert(ctx context.Context, rec models.Record) (models.Record, error)
	// Update applies a JSON merge patch on the server.
	Update(ctx context.Context, table models.Table, id string, patch map[string]any) (models.Record, error)
	Delete(ctx context.Context, table models.Table, id string) error
}

// Auth covers registration, login and reachability.
type Auth interface {
	Register(ctx context.Context, username string, salt, verifier []byte) error
	GetSalt(ctx context.Context, username string) ([]byte, error)
	// Login returns the user id, which is the owner id of the session.
	Login(ctx context.Context, username string, verifier []byte) (string, error)
	Logout()
	Ping(ctx context.Context) error
}

// Images presigns object storage URLs for product pictures.
type Images interface {
	PresignImageUpload(ctx context.Context, productID, contentType string) (key, url string, err error)
	PresignImageDownload(ctx context.Context, key string) (string, error)
}
