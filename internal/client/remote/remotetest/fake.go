// Package remotetest provides an in-memory server double for packages that
// talk to remote.Remote, remote.Auth and remote.Images.
package remotetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/possync/internal/client/remote"
	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/dmitrijs2005/possync/internal/cryptox"
	"github.com/dmitrijs2005/possync/internal/models"
	"github.com/google/uuid"
)

type user struct {
	id       string
	salt     []byte
	verifier []byte
}

type failKey struct {
	table models.Table
	id    string
}

// Fake keeps records per table in insertion order. Deleting a product or a
// sale still referenced by a sale item is refused, as the server does.
type Fake struct {
	mu sync.Mutex

	// OwnerID is stamped on every written record. Empty means no session.
	OwnerID string
	// ImageURL is returned by the presign calls.
	ImageURL string

	unreachable bool
	recordFail  map[failKey]error
	tableFail   map[models.Table]error

	records map[models.Table][]models.Record
	users   map[string]user
	calls   map[string]int
}

var (
	_ remote.Remote = (*Fake)(nil)
	_ remote.Auth   = (*Fake)(nil)
	_ remote.Images = (*Fake)(nil)
)

func New(ownerID string) *Fake {
	return &Fake{
		OwnerID:    ownerID,
		ImageURL:   "http://images.local/object",
		recordFail: map[failKey]error{},
		tableFail:  map[models.Table]error{},
		records:    map[models.Table][]models.Record{},
		users:      map[string]user{},
		calls:      map[string]int{},
	}
}

// SetUnreachable makes every call fail as if the network were down.
func (f *Fake) SetUnreachable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreachable = v
}

// FailRecord makes writes of one record fail with err until cleared with a
// nil err.
func (f *Fake) FailRecord(table models.Table, id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.recordFail, failKey{table, id})
		return
	}
	f.recordFail[failKey{table, id}] = err
}

// FailTable makes List of table fail with err until cleared with a nil err.
func (f *Fake) FailTable(table models.Table, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.tableFail, table)
		return
	}
	f.tableFail[table] = err
}

// Seed stores records as they are, owner included.
func (f *Fake) Seed(recs ...models.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range recs {
		c, err := models.Clone(r)
		if err != nil {
			panic(err)
		}
		f.put(c)
	}
}

// Records returns copies of everything stored in table.
func (f *Fake) Records(table models.Table) []models.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cloneAll(f.records[table])
}

// Calls returns how many times op was invoked, e.g. "Upsert".
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func Unreachable(op string) error {
	return fmt.Errorf("%s: %w: connection refused", op, common.ErrRemoteUnreachable)
}

func Rejected(op string, reason error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrRemoteRejected, reason)
}

func (f *Fake) enter(op string) error {
	f.calls[op]++
	if f.unreachable {
		return Unreachable(op)
	}
	return nil
}

func (f *Fake) session(op string) error {
	if f.OwnerID == "" {
		return Rejected(op, common.ErrUnauthorized)
	}
	return nil
}

func (f *Fake) find(table models.Table, id string) (int, models.Record) {
	for i, r := range f.records[table] {
		if r.GetID() == id {
			return i, r
		}
	}
	return -1, nil
}

func (f *Fake) put(r models.Record) {
	t := r.Table()
	if i, _ := f.find(t, r.GetID()); i >= 0 {
		f.records[t][i] = r
		return
	}
	f.records[t] = append(f.records[t], r)
}

func (f *Fake) cloneAll(recs []models.Record) []models.Record {
	out := make([]models.Record, 0, len(recs))
	for _, r := range recs {
		c, err := models.Clone(r)
		if err != nil {
			panic(err)
		}
		out = append(out, c)
	}
	return out
}

func (f *Fake) owned(recs []models.Record) []models.Record {
	var out []models.Record
	for _, r := range recs {
		if r.GetOwnerID() == f.OwnerID {
			out = append(out, r)
		}
	}
	return f.cloneAll(out)
}

func (f *Fake) List(ctx context.Context, table models.Table) ([]models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("List"); err != nil {
		return nil, err
	}
	if err := f.session("List"); err != nil {
		return nil, err
	}
	if _, err := models.Lookup(table); err != nil {
		return nil, Rejected("List", err)
	}
	if err := f.tableFail[table]; err != nil {
		return nil, err
	}
	return f.owned(f.records[table]), nil
}

func (f *Fake) Get(ctx context.Context, table models.Table, id string) (models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Get"); err != nil {
		return nil, err
	}
	_, r := f.find(table, id)
	if r == nil || r.GetOwnerID() != f.OwnerID {
		return nil, fmt.Errorf("Get: %w", common.ErrNotFound)
	}
	return models.Clone(r)
}

func (f *Fake) FindByKey(ctx context.Context, table models.Table, column, value string) ([]models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FindByKey"); err != nil {
		return nil, err
	}
	var out []models.Record
	for _, r := range f.records[table] {
		if r.IndexValue(column) == value {
			out = append(out, r)
		}
	}
	return f.owned(out), nil
}

func (f *Fake) Upsert(ctx context.Context, rec models.Record) (models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Upsert"); err != nil {
		return nil, err
	}
	if err := f.session("Upsert"); err != nil {
		return nil, err
	}
	if err := f.recordFail[failKey{rec.Table(), rec.GetID()}]; err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, Rejected("Upsert", err)
	}
	if _, cur := f.find(rec.Table(), rec.GetID()); cur != nil && cur.GetOwnerID() != f.OwnerID {
		return nil, Rejected("Upsert", common.ErrPermissionDenied)
	}

	stored, err := models.Clone(rec)
	if err != nil {
		return nil, err
	}
	stored.Meta().OwnerID = f.OwnerID
	f.put(stored)
	return models.Clone(stored)
}

func (f *Fake) Update(ctx context.Context, table models.Table, id string, patch map[string]any) (models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Update"); err != nil {
		return nil, err
	}
	if err := f.recordFail[failKey{table, id}]; err != nil {
		return nil, err
	}
	_, cur := f.find(table, id)
	if cur == nil || cur.GetOwnerID() != f.OwnerID {
		return nil, fmt.Errorf("Update: %w", common.ErrNotFound)
	}
	merged, err := models.Merge(cur, patch)
	if err != nil {
		return nil, Rejected("Update", common.ErrValidation)
	}
	if err := merged.Validate(); err != nil {
		return nil, Rejected("Update", err)
	}
	f.put(merged)
	return models.Clone(merged)
}

func (f *Fake) referenced(table models.Table, id string) bool {
	column := ""
	switch table {
	case models.TableProducts:
		column = "product_id"
	case models.TableSales:
		column = "sale_id"
	default:
		return false
	}
	for _, item := range f.records[models.TableSaleItems] {
		if item.IndexValue(column) == id {
			return true
		}
	}
	return false
}

func (f *Fake) Delete(ctx context.Context, table models.Table, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Delete"); err != nil {
		return err
	}
	if err := f.recordFail[failKey{table, id}]; err != nil {
		return err
	}
	i, cur := f.find(table, id)
	if cur == nil || cur.GetOwnerID() != f.OwnerID {
		return fmt.Errorf("Delete: %w", common.ErrNotFound)
	}
	if f.referenced(table, id) {
		return Rejected("Delete", common.ErrReferentialIntegrity)
	}
	f.records[table] = append(f.records[table][:i], f.records[table][i+1:]...)
	return nil
}

func (f *Fake) Register(ctx context.Context, username string, salt, verifier []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Register"); err != nil {
		return err
	}
	if _, ok := f.users[username]; ok {
		return Rejected("Register", common.ErrAlreadyExists)
	}
	f.users[username] = user{id: uuid.NewString(), salt: salt, verifier: verifier}
	return nil
}

func (f *Fake) GetSalt(ctx context.Context, username string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetSalt"); err != nil {
		return nil, err
	}
	u, ok := f.users[username]
	if !ok {
		return nil, Rejected("GetSalt", common.ErrUnauthorized)
	}
	return u.salt, nil
}

// Login also switches OwnerID to the user that logged in.
func (f *Fake) Login(ctx context.Context, username string, verifier []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Login"); err != nil {
		return "", err
	}
	u, ok := f.users[username]
	if !ok || !cryptox.VerifierMatches(u.verifier, verifier) {
		return "", Rejected("Login", common.ErrUnauthorized)
	}
	f.OwnerID = u.id
	return u.id, nil
}

func (f *Fake) Logout() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Logout"]++
}

func (f *Fake) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enter("Ping")
}

func (f *Fake) PresignImageUpload(ctx context.Context, productID, contentType string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("PresignImageUpload"); err != nil {
		return "", "", err
	}
	return "images/" + f.OwnerID + "/" + productID, f.ImageURL, nil
}

func (f *Fake) PresignImageDownload(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("PresignImageDownload"); err != nil {
		return "", err
	}
	return f.ImageURL, nil
}
