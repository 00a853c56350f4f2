package localstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/possync/internal/client/migrations"
	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/dmitrijs2005/possync/internal/filex"

	_ "modernc.org/sqlite"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// openDatabase opens the SQLite file at dsn, creating its directory when
// needed, and applies the migrations. Errors wrap ErrStorageUnavailable.
func openDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn != MemoryDSN {
		if _, err := filex.EnsureParentDir(dsn); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
		}
		dsn = "file:" + dsn + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	// One connection: in-memory databases are per connection, and a single
	// writer avoids SQLITE_BUSY between the orchestrator and repositories.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate: %w", common.ErrStorageUnavailable, err)
	}
	return db, nil
}
