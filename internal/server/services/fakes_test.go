package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/dmitrijs2005/possync/internal/dbx"
	"github.com/dmitrijs2005/possync/internal/models"
	sm "github.com/dmitrijs2005/possync/internal/server/models"
	"github.com/dmitrijs2005/possync/internal/server/repositories/records"
	"github.com/dmitrijs2005/possync/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/possync/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

type fakeRepoMgr struct {
	users   *fakeUsersRepo
	tokens  *fakeRefreshRepo
	records *fakeRecordsRepo
}

func newFakeRepoMgr() *fakeRepoMgr {
	return &fakeRepoMgr{
		users:   &fakeUsersRepo{},
		tokens:  &fakeRefreshRepo{},
		records: newFakeRecordsRepo(),
	}
}

func (m *fakeRepoMgr) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoMgr) Users(dbx.DBTX) users.Repository              { return m.users }
func (m *fakeRepoMgr) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.tokens
}
func (m *fakeRepoMgr) Records(dbx.DBTX) records.Repository { return m.records }

type fakeUsersRepo struct {
	createOut *sm.User
	createErr error

	getOut *sm.User
	getErr error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *sm.User) (*sm.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	out := *u
	out.ID = "u1"
	return &out, nil
}

func (f *fakeUsersRepo) GetUserByLogin(ctx context.Context, userName string) (*sm.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

type fakeRefreshRepo struct {
	findOut *sm.RefreshToken
	findErr error

	delErr    error
	createErr error

	created []string
	deleted []string
}

func (f *fakeRefreshRepo) Create(ctx context.Context, userID string, token string, validity time.Duration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, token)
	return nil
}

func (f *fakeRefreshRepo) Find(ctx context.Context, token string) (*sm.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeRefreshRepo) Delete(ctx context.Context, token string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, token)
	return nil
}

// fakeRecordsRepo keeps records in memory and mimics the owner scoping of
// the Postgres repository.
type fakeRecordsRepo struct {
	rows      map[models.Table]map[string]models.Record
	deleteErr error
}

func newFakeRecordsRepo() *fakeRecordsRepo {
	return &fakeRecordsRepo{rows: map[models.Table]map[string]models.Record{}}
}

func (f *fakeRecordsRepo) put(rec models.Record) {
	if f.rows[rec.Table()] == nil {
		f.rows[rec.Table()] = map[string]models.Record{}
	}
	f.rows[rec.Table()][rec.GetID()] = rec
}

func (f *fakeRecordsRepo) List(ctx context.Context, t models.Table, ownerID string) ([]models.Record, error) {
	var out []models.Record
	for _, r := range f.rows[t] {
		if r.GetOwnerID() == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecordsRepo) Get(ctx context.Context, t models.Table, ownerID, id string) (models.Record, error) {
	r, ok := f.rows[t][id]
	if !ok || r.GetOwnerID() != ownerID {
		return nil, common.ErrNotFound
	}
	return r, nil
}

func (f *fakeRecordsRepo) FindByKey(ctx context.Context, t models.Table, ownerID, column, value string) ([]models.Record, error) {
	var out []models.Record
	for _, r := range f.rows[t] {
		if r.GetOwnerID() == ownerID && r.IndexValue(column) == value {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecordsRepo) Upsert(ctx context.Context, rec models.Record) (models.Record, error) {
	if cur, ok := f.rows[rec.Table()][rec.GetID()]; ok && cur.GetOwnerID() != rec.GetOwnerID() {
		return nil, common.ErrPermissionDenied
	}
	f.put(rec)
	return rec, nil
}

func (f *fakeRecordsRepo) Delete(ctx context.Context, t models.Table, ownerID, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	r, ok := f.rows[t][id]
	if !ok || r.GetOwnerID() != ownerID {
		return common.ErrNotFound
	}
	delete(f.rows[t], id)
	return nil
}
