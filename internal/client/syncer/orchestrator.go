// Package syncer drains the pending-mutation queue to the server and pulls
// fresh snapshots of every tracked table. At most one pass runs at a time;
// triggers that arrive during a pass are dropped.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	clientmodels "github.com/dmitrijs2005/possync/internal/client/models"
	"github.com/dmitrijs2005/possync/internal/client/remote"
	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/dmitrijs2005/possync/internal/logging"
	"github.com/dmitrijs2005/possync/internal/models"
)

// Store is the part of the local store a sync pass needs.
type Store interface {
	PendingSyncItems(ctx context.Context) ([]clientmodels.PendingMutation, error)
	PendingCount(ctx context.Context) (int, error)
	MarkAsSynced(ctx context.Context, entryID string) error
	Refresh(ctx context.Context, table models.Table, ownerID string, recs []models.Record, prune bool) (int, error)
	AddSyncLog(ctx context.Context, e clientmodels.SyncLogEntry) error
	SyncHistory(ctx context.Context, limit int) ([]clientmodels.SyncLogEntry, error)
	LastSync(ctx context.Context) (*time.Time, error)
	SetLastSync(ctx context.Context, t time.Time) error
	ClearAll(ctx context.Context) error
}

// OnlineState reports the advisory connectivity flag.
type OnlineState interface {
	IsOnline() bool
}

// Result summarizes one pass.
type Result struct {
	Skipped    bool
	Uploaded   int
	Failed     int
	Downloaded int
	// Complete is set when every tracked table was downloaded.
	Complete bool
}

type Orchestrator struct {
	store  Store
	remote remote.Remote
	online OnlineState
	owner  func() string
	logger logging.Logger
	now    func() time.Time

	syncing atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator wires a pass to its collaborators. owner returns the
// current owner id, or "" when nobody is logged in.
func NewOrchestrator(store Store, rm remote.Remote, online OnlineState, owner func() string, logger logging.Logger, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		store:  store,
		remote: rm,
		online: online,
		owner:  owner,
		logger: logger,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) IsSyncing() bool {
	return o.syncing.Load()
}

// Sync runs one pass in the caller's goroutine. If a pass is already in
// flight it returns immediately with Result.Skipped set.
func (o *Orchestrator) Sync(ctx context.Context) (Result, error) {
	if !o.syncing.CompareAndSwap(false, true) {
		return Result{Skipped: true}, nil
	}
	defer o.syncing.Store(false)
	return o.pass(ctx)
}

// TriggerSync starts a pass in the background and reports whether one was
// started.
func (o *Orchestrator) TriggerSync() bool {
	if o.ctx.Err() != nil || !o.syncing.CompareAndSwap(false, true) {
		return false
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.syncing.Store(false)
		if _, err := o.pass(o.ctx); err != nil && !errors.Is(err, common.ErrNoOwner) {
			o.logger.Warn(o.ctx, "background sync failed", "error", err)
		}
	}()
	return true
}

// Wait blocks until background passes have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close cancels background passes and waits for them.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}

func (o *Orchestrator) pass(ctx context.Context) (Result, error) {
	var res Result

	owner := o.owner()
	if owner == "" {
		return res, common.ErrNoOwner
	}

	start := o.now()
	o.logger.Debug(ctx, "sync pass started", "owner", owner)

	if err := o.upload(ctx, &res); err != nil {
		o.logger.Error(ctx, "upload failed", "error", err)
		o.addLog(ctx, clientmodels.SyncLogEntry{
			Type:    clientmodels.SyncLogError,
			Table:   common.TableAll,
			Status:  clientmodels.SyncStatusFailed,
			Details: fmt.Sprintf("reading pending changes: %v", err),
		})
		return res, err
	}

	res.Complete = o.download(ctx, owner, &res)
	if res.Complete {
		if err := o.store.SetLastSync(ctx, o.now()); err != nil {
			o.logger.Error(ctx, "saving last sync time failed", "error", err)
		}
	}

	o.logger.Info(ctx, "sync pass finished",
		"uploaded", res.Uploaded,
		"failed", res.Failed,
		"downloaded", res.Downloaded,
		"complete", res.Complete,
		"took", o.now().Sub(start),
	)
	return res, nil
}

type tableCount struct {
	table  models.Table
	ok     int
	failed int
}

func (o *Orchestrator) upload(ctx context.Context, res *Result) error {
	items, err := o.store.PendingSyncItems(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	var order []*tableCount
	counts := map[models.Table]*tableCount{}

	for _, item := range items {
		c, ok := counts[item.Table]
		if !ok {
			c = &tableCount{table: item.Table}
			counts[item.Table] = c
			order = append(order, c)
		}

		if err := o.replay(ctx, item); err != nil {
			c.failed++
			res.Failed++
			o.logger.Warn(ctx, "sync item failed",
				"table", item.Table, "record", item.RecordID, "action", item.Action, "error", err)
			o.addLog(ctx, clientmodels.SyncLogEntry{
				Type:      clientmodels.SyncLogError,
				Table:     string(item.Table),
				ItemCount: 1,
				Status:    clientmodels.SyncStatusFailed,
				Details:   fmt.Sprintf("%s %s: %v", item.Action, item.RecordID, err),
			})
			continue
		}

		c.ok++
		res.Uploaded++
	}

	for _, c := range order {
		e := clientmodels.SyncLogEntry{
			Type:      clientmodels.SyncLogUpload,
			Table:     string(c.table),
			ItemCount: c.ok + c.failed,
			Status:    clientmodels.SyncStatusSuccess,
			Details:   fmt.Sprintf("uploaded %d changes", c.ok),
		}
		if c.failed > 0 {
			e.Status = clientmodels.SyncStatusPartial
			e.Details = fmt.Sprintf("uploaded %d changes, %d failed", c.ok, c.failed)
		}
		o.addLog(ctx, e)
	}
	return nil
}

// replay sends one queued mutation and removes it from the queue once the
// server has confirmed it.
func (o *Orchestrator) replay(ctx context.Context, item clientmodels.PendingMutation) error {
	switch item.Action {
	case clientmodels.ActionInsert, clientmodels.ActionUpdate:
		rec, err := item.Record()
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrSyncItemFailed, err)
		}
		if _, err := o.remote.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("%w: %w", common.ErrSyncItemFailed, err)
		}
	case clientmodels.ActionDelete:
		err := o.remote.Delete(ctx, item.Table, item.RecordID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("%w: %w", common.ErrSyncItemFailed, err)
		}
	default:
		return fmt.Errorf("%w: unknown action %q", common.ErrSyncItemFailed, item.Action)
	}

	return o.store.MarkAsSynced(ctx, item.ID)
}

// download refreshes every tracked table and reports whether all succeeded.
func (o *Orchestrator) download(ctx context.Context, owner string, res *Result) bool {
	complete := true
	for _, schema := range models.Tracked() {
		recs, err := o.remote.List(ctx, schema.Table)
		if err == nil {
			var n int
			n, err = o.store.Refresh(ctx, schema.Table, owner, recs, true)
			res.Downloaded += n
		}
		if err != nil {
			complete = false
			o.logger.Warn(ctx, "download failed", "table", schema.Table, "error", err)
			o.addLog(ctx, clientmodels.SyncLogEntry{
				Type:    clientmodels.SyncLogError,
				Table:   string(schema.Table),
				Status:  clientmodels.SyncStatusFailed,
				Details: fmt.Sprintf("download: %v", err),
			})
			continue
		}

		o.addLog(ctx, clientmodels.SyncLogEntry{
			Type:      clientmodels.SyncLogDownload,
			Table:     string(schema.Table),
			ItemCount: len(recs),
			Status:    clientmodels.SyncStatusSuccess,
		})
	}
	return complete
}

func (o *Orchestrator) addLog(ctx context.Context, e clientmodels.SyncLogEntry) {
	if err := o.store.AddSyncLog(ctx, e); err != nil {
		o.logger.Error(ctx, "writing sync log failed", "error", err)
	}
}

// Status is computed from the store on every call.
func (o *Orchestrator) Status(ctx context.Context) (clientmodels.SyncStatus, error) {
	st := clientmodels.SyncStatus{IsSyncing: o.IsSyncing()}
	if o.online != nil {
		st.IsOnline = o.online.IsOnline()
	}

	n, err := o.store.PendingCount(ctx)
	if err != nil {
		return st, err
	}
	st.PendingChanges = n

	last, err := o.store.LastSync(ctx)
	if err != nil {
		return st, err
	}
	st.LastSync = last
	return st, nil
}

// History returns up to limit sync log entries, most recent first.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]clientmodels.SyncLogEntry, error) {
	return o.store.SyncHistory(ctx, limit)
}

// ClearAllLocalData wipes the local store. Used on logout.
func (o *Orchestrator) ClearAllLocalData(ctx context.Context) error {
	if err := o.store.ClearAll(ctx); err != nil {
		return err
	}
	o.logger.Info(ctx, "local data cleared")
	return nil
}
