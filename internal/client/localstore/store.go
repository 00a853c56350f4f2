// Package localstore is the on-device persistent store of the POS terminal:
// per-table record caches, the pending-mutation queue, the sync log and the
// engine metadata, all in one SQLite database.
//
// A Store is created explicitly and passed to the repositories and the sync
// orchestrator; nothing in this package is global.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/possync/internal/client/migrations"
	clientmodels "github.com/dmitrijs2005/possync/internal/client/models"
	"github.com/dmitrijs2005/possync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/possync/internal/client/repositories/pending"
	"github.com/dmitrijs2005/possync/internal/client/repositories/records"
	"github.com/dmitrijs2005/possync/internal/client/repositories/synclog"
	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/dmitrijs2005/possync/internal/dbx"
	"github.com/dmitrijs2005/possync/internal/logging"
	"github.com/dmitrijs2005/possync/internal/models"
)

// DefaultHistoryLimit is the number of sync log entries kept.
const DefaultHistoryLimit = 100

type Store struct {
	db           *sql.DB
	memory       bool
	logger       logging.Logger
	historyLimit int
	now          func() time.Time

	// save/delete/modify of one table are serialized.
	locks map[models.Table]*sync.Mutex
}

type Option func(*Store)

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithHistoryLimit sets how many sync log entries are retained.
func WithHistoryLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating on first run) the store at path. Failures wrap
// common.ErrStorageUnavailable.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := openDatabase(ctx, path)
	if err != nil {
		return nil, err
	}
	return newStore(db, path == MemoryDSN, opts...), nil
}

// OpenMemory opens a store that lives only as long as the process.
func OpenMemory(ctx context.Context, opts ...Option) (*Store, error) {
	return Open(ctx, MemoryDSN, opts...)
}

// OpenOrMemory falls back to a memory-only store when path cannot be used.
// The returned flag reports whether the fallback happened.
func OpenOrMemory(ctx context.Context, path string, opts ...Option) (*Store, bool, error) {
	s, err := Open(ctx, path, opts...)
	if err == nil {
		return s, false, nil
	}

	mem, memErr := OpenMemory(ctx, opts...)
	if memErr != nil {
		return nil, false, fmt.Errorf("%w; memory fallback: %w", err, memErr)
	}
	mem.logger.Warn(ctx, "persistent storage unavailable, local data will not survive a restart", "path", path, "error", err)
	return mem, true, nil
}

func newStore(db *sql.DB, memory bool, opts ...Option) *Store {
	s := &Store{
		db:           db,
		memory:       memory,
		logger:       logging.Nop(),
		historyLimit: DefaultHistoryLimit,
		now:          time.Now,
		locks:        make(map[models.Table]*sync.Mutex),
	}
	for _, o := range opts {
		o(s)
	}
	for _, schema := range models.Tracked() {
		s.locks[schema.Table] = &sync.Mutex{}
	}
	return s
}

// Init re-applies the migrations. It is idempotent.
func (s *Store) Init(ctx context.Context) error {
	if err := migrations.Up(ctx, s.db); err != nil {
		return fmt.Errorf("%w: migrate: %w", common.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// IsMemory reports whether the store is memory-only.
func (s *Store) IsMemory() bool {
	return s.memory
}

// storageErr tags engine failures with common.ErrStorage. Domain errors
// raised by this package pass through unchanged.
func storageErr(err error) error {
	if err == nil || errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrStorage, err)
}

func (s *Store) lock(t models.Table) func() {
	m := s.locks[t]
	m.Lock()
	return m.Unlock
}

// GetAll returns every record of table, filtered by owner when ownerID is
// not empty. An empty table yields an empty slice.
func (s *Store) GetAll(ctx context.Context, table models.Table, ownerID string) ([]models.Record, error) {
	schema, err := models.Lookup(table)
	if err != nil {
		return nil, err
	}
	recs, err := records.NewSQLiteRepository(s.db).List(ctx, schema, ownerID)
	return recs, storageErr(err)
}

// GetByID returns (nil, nil) when the record is absent.
func (s *Store) GetByID(ctx context.Context, table models.Table, id string) (models.Record, error) {
	schema, err := models.Lookup(table)
	if err != nil {
		return nil, err
	}
	rec, err := records.NewSQLiteRepository(s.db).Get(ctx, schema, id)
	return rec, storageErr(err)
}

func (s *Store) FindByIndex(ctx context.Context, table models.Table, column, value, ownerID string) ([]models.Record, error) {
	schema, err := models.Lookup(table)
	if err != nil {
		return nil, err
	}
	recs, err := records.NewSQLiteRepository(s.db).FindByIndex(ctx, schema, column, value, ownerID)
	return recs, storageErr(err)
}

// Save upserts rec. With enqueue set it also appends a pending mutation in
// the same transaction: insert when the row did not exist, update otherwise.
func (s *Store) Save(ctx context.Context, rec models.Record, enqueue bool) error {
	schema, err := models.Lookup(rec.Table())
	if err != nil {
		return err
	}
	defer s.lock(schema.Table)()

	return storageErr(dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.save(ctx, tx, schema, rec, enqueue)
	}))
}

func (s *Store) save(ctx context.Context, tx dbx.DBTX, schema models.Schema, rec models.Record, enqueue bool) error {
	repo := records.NewSQLiteRepository(tx)

	action := clientmodels.ActionUpdate
	if enqueue {
		existing, err := repo.Get(ctx, schema, rec.GetID())
		if err != nil {
			return err
		}
		if existing == nil {
			action = clientmodels.ActionInsert
		}
	}

	if err := repo.Upsert(ctx, schema, rec); err != nil {
		return err
	}
	if !enqueue {
		return nil
	}
	return s.enqueue(ctx, tx, schema.Table, rec.GetID(), action, rec)
}

func (s *Store) enqueue(ctx context.Context, tx dbx.DBTX, table models.Table, recordID string, action clientmodels.Action, rec models.Record) error {
	data := []byte(`{"id":` + strconv.Quote(recordID) + `}`)
	if rec != nil {
		var err error
		if data, err = models.Encode(rec); err != nil {
			return err
		}
	}

	at := s.now()
	m := &clientmodels.PendingMutation{
		ID:        clientmodels.NewPendingID(table, recordID, at),
		Table:     table,
		RecordID:  recordID,
		Action:    action,
		Data:      data,
		Timestamp: at,
	}
	return pending.NewSQLiteRepository(tx).Append(ctx, m)
}

// SaveMany upserts recs in a single transaction. Used to ingest confirmed
// server state, so enqueue is normally false.
func (s *Store) SaveMany(ctx context.Context, table models.Table, recs []models.Record, enqueue bool) error {
	schema, err := models.Lookup(table)
	if err != nil {
		return err
	}
	defer s.lock(table)()

	return storageErr(dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, rec := range recs {
			if rec.Table() != table {
				return fmt.Errorf("%w: %s record in %s batch", common.ErrValidation, rec.Table(), table)
			}
			if err := s.save(ctx, tx, schema, rec, enqueue); err != nil {
				return err
			}
		}
		return nil
	}))
}

// Refresh ingests a server snapshot of ownerID's records. Records with
// unconfirmed local writes are left untouched. With prune set, local rows of
// the owner that are absent from the snapshot and have no pending writes are
// removed. It returns the number of records written.
func (s *Store) Refresh(ctx context.Context, table models.Table, ownerID string, recs []models.Record, prune bool) (int, error) {
	schema, err := models.Lookup(table)
	if err != nil {
		return 0, err
	}
	defer s.lock(table)()

	written := 0
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		pendingIDs, err := pending.NewSQLiteRepository(tx).RecordIDs(ctx, table)
		if err != nil {
			return err
		}

		repo := records.NewSQLiteRepository(tx)
		keep := make(map[string]struct{}, len(recs)+len(pendingIDs))
		for id := range pendingIDs {
			keep[id] = struct{}{}
		}

		for _, rec := range recs {
			keep[rec.GetID()] = struct{}{}
			if _, dirty := pendingIDs[rec.GetID()]; dirty {
				continue
			}
			if err := repo.Upsert(ctx, schema, rec); err != nil {
				return err
			}
			written++
		}

		if prune && ownerID != "" {
			if _, err := repo.DeleteOwnerExcept(ctx, schema, ownerID, keep); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, storageErr(err)
	}
	return written, nil
}

// Delete removes the record. With enqueue set, a delete mutation carrying the
// last known payload is appended.
func (s *Store) Delete(ctx context.Context, table models.Table, id string, enqueue bool) error {
	schema, err := models.Lookup(table)
	if err != nil {
		return err
	}
	defer s.lock(table)()

	return storageErr(dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := records.NewSQLiteRepository(tx)

		last, err := repo.Get(ctx, schema, id)
		if err != nil {
			return err
		}
		if _, err := repo.Delete(ctx, schema, id); err != nil {
			return err
		}
		if !enqueue {
			return nil
		}
		return s.enqueue(ctx, tx, table, id, clientmodels.ActionDelete, last)
	}))
}

// Modify reads the record, applies fn and writes the result back while
// holding the table lock. Missing records yield common.ErrNotFound.
func (s *Store) Modify(ctx context.Context, table models.Table, id string, fn func(models.Record) (models.Record, error), enqueue bool) (models.Record, error) {
	schema, err := models.Lookup(table)
	if err != nil {
		return nil, err
	}
	defer s.lock(table)()

	var result models.Record
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cur, err := records.NewSQLiteRepository(tx).Get(ctx, schema, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return fmt.Errorf("%s/%s: %w", table, id, common.ErrNotFound)
		}

		next, err := fn(cur)
		if err != nil {
			return err
		}
		if err := s.save(ctx, tx, schema, next, enqueue); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return result, nil
}

// PendingSyncItems returns unconfirmed mutations in insertion order.
func (s *Store) PendingSyncItems(ctx context.Context) ([]clientmodels.PendingMutation, error) {
	items, err := pending.NewSQLiteRepository(s.db).ListUnsynced(ctx)
	return items, storageErr(err)
}

func (s *Store) PendingCount(ctx context.Context) (int, error) {
	n, err := pending.NewSQLiteRepository(s.db).Count(ctx)
	return n, storageErr(err)
}

// PendingRecordIDs returns the ids of records in table with unconfirmed
// writes.
func (s *Store) PendingRecordIDs(ctx context.Context, table models.Table) (map[string]struct{}, error) {
	ids, err := pending.NewSQLiteRepository(s.db).RecordIDs(ctx, table)
	return ids, storageErr(err)
}

// MarkAsSynced removes a confirmed entry from the queue.
func (s *Store) MarkAsSynced(ctx context.Context, entryID string) error {
	return storageErr(pending.NewSQLiteRepository(s.db).Delete(ctx, entryID))
}

func (s *Store) AddSyncLog(ctx context.Context, e clientmodels.SyncLogEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	return storageErr(synclog.NewSQLiteRepository(s.db).Add(ctx, &e, s.historyLimit))
}

// SyncHistory returns up to limit entries, most recent first.
func (s *Store) SyncHistory(ctx context.Context, limit int) ([]clientmodels.SyncLogEntry, error) {
	entries, err := synclog.NewSQLiteRepository(s.db).List(ctx, limit)
	return entries, storageErr(err)
}

func (s *Store) ClearSyncHistory(ctx context.Context) error {
	return storageErr(synclog.NewSQLiteRepository(s.db).Clear(ctx))
}

func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	return storageErr(metadata.NewSQLiteRepository(s.db).Set(ctx, key, value))
}

// SetMetadataValues writes several keys in one transaction.
func (s *Store) SetMetadataValues(ctx context.Context, kv map[string]string) error {
	return storageErr(dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		for k, v := range kv {
			if err := repo.Set(ctx, k, v); err != nil {
				return err
			}
		}
		return nil
	}))
}

// GetMetadata returns ("", false, nil) when key is absent.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := metadata.NewSQLiteRepository(s.db).Get(ctx, key)
	return v, ok, storageErr(err)
}

func (s *Store) DeleteMetadata(ctx context.Context, key string) error {
	return storageErr(metadata.NewSQLiteRepository(s.db).Delete(ctx, key))
}

// LastSync returns nil when no pass has completed yet.
func (s *Store) LastSync(ctx context.Context) (*time.Time, error) {
	v, ok, err := s.GetMetadata(ctx, clientmodels.MetaLastSync)
	if err != nil || !ok {
		return nil, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad %s value %q", common.ErrStorage, clientmodels.MetaLastSync, v)
	}
	t := time.UnixMilli(ms).UTC()
	return &t, nil
}

// SetLastSync stores t as epoch milliseconds.
func (s *Store) SetLastSync(ctx context.Context, t time.Time) error {
	return s.SetMetadata(ctx, clientmodels.MetaLastSync, strconv.FormatInt(t.UnixMilli(), 10))
}

// ClearAll wipes every table, the queue, the log and the metadata in one
// transaction.
func (s *Store) ClearAll(ctx context.Context) error {
	tracked := models.Tracked()
	for _, schema := range tracked {
		defer s.lock(schema.Table)()
	}

	return storageErr(dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := records.NewSQLiteRepository(tx)
		for _, schema := range tracked {
			if err := repo.Clear(ctx, schema); err != nil {
				return err
			}
		}
		if err := pending.NewSQLiteRepository(tx).Clear(ctx); err != nil {
			return err
		}
		if err := synclog.NewSQLiteRepository(tx).Clear(ctx); err != nil {
			return err
		}
		return metadata.NewSQLiteRepository(tx).Clear(ctx)
	}))
}
