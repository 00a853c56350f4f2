// Package migrations embeds the goose migrations of the on-device SQLite
// store.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var Migrations embed.FS

// goose keeps its base FS and dialect in package state.
var mu sync.Mutex

// Up applies all pending migrations. Running it on an up-to-date database is
// a no-op.
func Up(ctx context.Context, db *sql.DB) error {
	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}
