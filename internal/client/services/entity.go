package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	clientmodels "github.com/dmitrijs2005/possync/internal/client/models"
	"github.com/dmitrijs2005/possync/internal/client/remote"
	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/dmitrijs2005/possync/internal/logging"
	"github.com/dmitrijs2005/possync/internal/models"
	"github.com/google/uuid"
)

// LocalStore is the part of the local store used by entity repositories.
type LocalStore interface {
	GetAll(ctx context.Context, table models.Table, ownerID string) ([]models.Record, error)
	GetByID(ctx context.Context, table models.Table, id string) (models.Record, error)
	FindByIndex(ctx context.Context, table models.Table, column, value, ownerID string) ([]models.Record, error)
	Save(ctx context.Context, rec models.Record, enqueue bool) error
	Refresh(ctx context.Context, table models.Table, ownerID string, recs []models.Record, prune bool) (int, error)
	Delete(ctx context.Context, table models.Table, id string, enqueue bool) error
	Modify(ctx context.Context, table models.Table, id string, fn func(models.Record) (models.Record, error), enqueue bool) (models.Record, error)
	PendingRecordIDs(ctx context.Context, table models.Table) (map[string]struct{}, error)
	AddSyncLog(ctx context.Context, e clientmodels.SyncLogEntry) error
}

// Owner supplies the owner id of the current session, "" when logged out.
type Owner interface {
	OwnerID() string
}

// Deps are shared by every entity repository.
type Deps struct {
	Store  LocalStore
	Remote remote.Remote
	Owner  Owner
	Logger logging.Logger
	Now    func() time.Time
}

// Repository gives the UI one CRUD contract per table. Every call tries the
// server first. A network failure falls back to the local store and queues
// the write; a refusal by the server is returned as is and never queued.
type Repository[T any, P interface {
	*T
	models.Record
}] struct {
	table  models.Table
	schema models.Schema
	deps   Deps
}

func NewRepository[T any, P interface {
	*T
	models.Record
}](deps Deps) *Repository[T, P] {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	table := P(new(T)).Table()
	schema, err := models.Lookup(table)
	if err != nil {
		panic(err)
	}
	return &Repository[T, P]{table: table, schema: schema, deps: deps}
}

func (r *Repository[T, P]) Table() models.Table {
	return r.table
}

func (r *Repository[T, P]) owner() (string, error) {
	id := r.deps.Owner.OwnerID()
	if id == "" {
		return "", common.ErrNoOwner
	}
	return id, nil
}

func (r *Repository[T, P]) cast(rec models.Record) (P, error) {
	p, ok := rec.(P)
	if !ok {
		return nil, fmt.Errorf("unexpected %T in %s", rec, r.table)
	}
	return p, nil
}

const (
	reasonOffline = "saved offline"
	reasonQueued  = "queued behind unsynced changes"
)

// savedLocally records a queued local write in the sync log.
func (r *Repository[T, P]) savedLocally(ctx context.Context, action clientmodels.Action, id, reason string) {
	err := r.deps.Store.AddSyncLog(ctx, clientmodels.SyncLogEntry{
		Type:      clientmodels.SyncLogOffline,
		Table:     string(r.table),
		ItemCount: 1,
		Status:    clientmodels.SyncStatusQueued,
		Details:   fmt.Sprintf("%s: %s %s, will sync later", reason, action, id),
	})
	if err != nil {
		r.deps.Logger.Error(ctx, "writing sync log failed", "error", err)
	}
	r.deps.Logger.Info(ctx, reason, "table", r.table, "id", id, "action", action)
}

// queued reports whether id still has unconfirmed queue entries. Writes to
// such a record go behind them, or the replay would overwrite the newer
// server copy.
func (r *Repository[T, P]) queued(ctx context.Context, id string) (bool, error) {
	pending, err := r.deps.Store.PendingRecordIDs(ctx, r.table)
	if err != nil {
		return false, err
	}
	_, ok := pending[id]
	return ok, nil
}

// List returns the server's records and refreshes the cache with them. When
// the server cannot be read, the cached records are returned instead.
func (r *Repository[T, P]) List(ctx context.Context) ([]P, error) {
	owner, err := r.owner()
	if err != nil {
		return nil, err
	}

	recs, err := r.deps.Remote.List(ctx, r.table)
	if err == nil {
		if _, err := r.deps.Store.Refresh(ctx, r.table, owner, recs, false); err != nil {
			r.deps.Logger.Warn(ctx, "cache refresh failed", "table", r.table, "error", err)
		}
		return models.As[P](recs)
	}
	r.deps.Logger.Debug(ctx, "remote list failed, using cache", "table", r.table, "error", err)

	local, lerr := r.deps.Store.GetAll(ctx, r.table, owner)
	if lerr != nil {
		return nil, fmt.Errorf("list %s: %w", r.table, lerr)
	}
	return models.As[P](local)
}

// Get returns the record from the server, or from the cache when the server
// is unreachable.
func (r *Repository[T, P]) Get(ctx context.Context, id string) (P, error) {
	if _, err := r.owner(); err != nil {
		return nil, err
	}

	rec, err := r.deps.Remote.Get(ctx, r.table, id)
	if err == nil {
		if err := r.deps.Store.Save(ctx, rec, false); err != nil {
			r.deps.Logger.Warn(ctx, "cache refresh failed", "table", r.table, "error", err)
		}
		return r.cast(rec)
	}
	if !common.IsRemoteUnreachable(err) {
		return nil, err
	}

	local, lerr := r.deps.Store.GetByID(ctx, r.table, id)
	if lerr != nil {
		return nil, lerr
	}
	if local == nil {
		return nil, fmt.Errorf("%s/%s: %w", r.table, id, common.ErrNotFound)
	}
	return r.cast(local)
}

// Create assigns an id when missing, stamps the owner and timestamps, and
// writes the record. The id is fixed before the first attempt so that a
// replayed insert is idempotent.
func (r *Repository[T, P]) Create(ctx context.Context, p P) (P, error) {
	owner, err := r.owner()
	if err != nil {
		return nil, err
	}

	meta := p.Meta()
	queued := false
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	} else if queued, err = r.queued(ctx, meta.ID); err != nil {
		return nil, err
	}
	meta.OwnerID = owner
	meta.Touch(r.deps.Now())
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if queued {
		return r.createLocal(ctx, p, reasonQueued)
	}

	saved, err := r.deps.Remote.Upsert(ctx, p)
	switch {
	case err == nil:
		if err := r.deps.Store.Save(ctx, saved, false); err != nil {
			r.deps.Logger.Warn(ctx, "mirroring confirmed write failed", "table", r.table, "id", meta.ID, "error", err)
		}
		return r.cast(saved)

	case common.IsRemoteUnreachable(err):
		return r.createLocal(ctx, p, reasonOffline)

	default:
		return nil, err
	}
}

func (r *Repository[T, P]) createLocal(ctx context.Context, p P, reason string) (P, error) {
	if err := r.deps.Store.Save(ctx, p, true); err != nil {
		return nil, fmt.Errorf("save offline: %w", err)
	}
	r.savedLocally(ctx, clientmodels.ActionInsert, p.Meta().ID, reason)
	return p, nil
}

// Update applies patch, a JSON merge patch keyed by JSON field names.
// Offline, or while the record has queued changes, the patch is merged onto
// the cached record and queued.
func (r *Repository[T, P]) Update(ctx context.Context, id string, patch map[string]any) (P, error) {
	if _, err := r.owner(); err != nil {
		return nil, err
	}

	patch = maps.Clone(patch)
	if patch == nil {
		patch = map[string]any{}
	}
	patch["updated_at"] = r.deps.Now().UTC()

	queued, err := r.queued(ctx, id)
	if err != nil {
		return nil, err
	}
	if queued {
		return r.updateLocal(ctx, id, patch, reasonQueued)
	}

	updated, err := r.deps.Remote.Update(ctx, r.table, id, patch)
	switch {
	case err == nil:
		if err := r.deps.Store.Save(ctx, updated, false); err != nil {
			r.deps.Logger.Warn(ctx, "mirroring confirmed write failed", "table", r.table, "id", id, "error", err)
		}
		return r.cast(updated)

	case common.IsRemoteUnreachable(err):
		return r.updateLocal(ctx, id, patch, reasonOffline)

	default:
		return nil, err
	}
}

func (r *Repository[T, P]) updateLocal(ctx context.Context, id string, patch map[string]any, reason string) (P, error) {
	merged, err := r.deps.Store.Modify(ctx, r.table, id, func(cur models.Record) (models.Record, error) {
		next, err := models.Merge(cur, patch)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
		}
		if err := next.Validate(); err != nil {
			return nil, err
		}
		return next, nil
	}, true)
	if err != nil {
		return nil, fmt.Errorf("update offline: %w", err)
	}
	r.savedLocally(ctx, clientmodels.ActionUpdate, id, reason)
	return r.cast(merged)
}

// Delete removes the record. Refusals such as common.ErrReferentialIntegrity
// reach the caller unchanged.
func (r *Repository[T, P]) Delete(ctx context.Context, id string) error {
	if _, err := r.owner(); err != nil {
		return err
	}

	queued, err := r.queued(ctx, id)
	if err != nil {
		return err
	}
	if queued {
		return r.deleteLocal(ctx, id, reasonQueued)
	}

	err = r.deps.Remote.Delete(ctx, r.table, id)
	switch {
	case err == nil:
		if err := r.deps.Store.Delete(ctx, r.table, id, false); err != nil {
			r.deps.Logger.Warn(ctx, "mirroring confirmed delete failed", "table", r.table, "id", id, "error", err)
		}
		return nil

	case errors.Is(err, common.ErrNotFound):
		// Unknown to the server and nothing queued: drop a stale cache row.
		local, lerr := r.deps.Store.GetByID(ctx, r.table, id)
		if lerr != nil {
			return lerr
		}
		if local == nil {
			return err
		}
		return r.deps.Store.Delete(ctx, r.table, id, false)

	case common.IsRemoteUnreachable(err):
		return r.deleteLocal(ctx, id, reasonOffline)

	default:
		return err
	}
}

func (r *Repository[T, P]) deleteLocal(ctx context.Context, id, reason string) error {
	if err := r.deps.Store.Delete(ctx, r.table, id, true); err != nil {
		return fmt.Errorf("delete offline: %w", err)
	}
	r.savedLocally(ctx, clientmodels.ActionDelete, id, reason)
	return nil
}

// FindByAlternateKey looks column up in the cache, then asks the server in
// case the cache is stale. Server hits refresh the cache and win.
func (r *Repository[T, P]) FindByAlternateKey(ctx context.Context, column, value string) ([]P, error) {
	owner, err := r.owner()
	if err != nil {
		return nil, err
	}
	if !r.schema.HasIndex(column) {
		return nil, fmt.Errorf("%w: %s has no index on %q", common.ErrValidation, r.table, column)
	}

	local, lerr := r.deps.Store.FindByIndex(ctx, r.table, column, value, owner)

	found, err := r.deps.Remote.FindByKey(ctx, r.table, column, value)
	if err == nil && len(found) > 0 {
		if _, err := r.deps.Store.Refresh(ctx, r.table, owner, found, false); err != nil {
			r.deps.Logger.Warn(ctx, "cache refresh failed", "table", r.table, "error", err)
		}
		return models.As[P](found)
	}
	if err != nil {
		r.deps.Logger.Debug(ctx, "remote lookup failed, using cache", "table", r.table, "column", column, "error", err)
	}

	if lerr != nil {
		return nil, lerr
	}
	return models.As[P](local)
}
