package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/dmitrijs2005/possync/internal/models"
	sm "github.com/dmitrijs2005/possync/internal/server/models"
	"github.com/dmitrijs2005/possync/internal/server/services"
)

// fakeUsers accepts any verifier equal to "good". Access tokens "good" and
// "fresh" belong to u1; "expired" is reported as expired.
type fakeUsers struct {
	mu        sync.Mutex
	loginTok  string
	refreshes int
}

func newFakeUsers() *fakeUsers { return &fakeUsers{loginTok: "good"} }

func (f *fakeUsers) Register(ctx context.Context, username string, salt, verifier []byte) (*sm.User, error) {
	if username == "taken" {
		return nil, common.ErrAlreadyExists
	}
	return &sm.User{ID: "u-" + username, UserName: username}, nil
}

func (f *fakeUsers) GetSalt(ctx context.Context, username string) ([]byte, error) {
	return []byte("salt-" + username), nil
}

func (f *fakeUsers) Login(ctx context.Context, username string, verifier []byte) (*services.TokenPair, error) {
	if string(verifier) != "good" {
		return nil, common.ErrUnauthorized
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &services.TokenPair{UserID: "u1", AccessToken: f.loginTok, RefreshToken: "r1"}, nil
}

func (f *fakeUsers) RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	if refreshToken != "r1" {
		return nil, common.ErrUnauthorized
	}
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
	return &services.TokenPair{UserID: "u1", AccessToken: "fresh", RefreshToken: "r2"}, nil
}

func (f *fakeUsers) UserIDFromToken(token string) (string, error) {
	switch token {
	case "good", "fresh":
		return "u1", nil
	case "expired":
		return "", common.ErrTokenExpired
	}
	return "", common.ErrInvalidToken
}

// fakeRecords keeps products in memory per owner and refuses to delete
// ids listed in referenced.
type fakeRecords struct {
	mu         sync.Mutex
	rows       map[string]models.Record
	referenced map[string]bool
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{rows: map[string]models.Record{}, referenced: map[string]bool{}}
}

func rowKey(owner, table, id string) string { return owner + "/" + table + "/" + id }

func (f *fakeRecords) List(ctx context.Context, ownerID, table string) ([]models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Record
	for k, r := range f.rows {
		if strings.HasPrefix(k, ownerID+"/"+table+"/") {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecords) Get(ctx context.Context, ownerID, table, id string) (models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[rowKey(ownerID, table, id)]
	if !ok {
		return nil, common.ErrNotFound
	}
	return r, nil
}

func (f *fakeRecords) FindByKey(ctx context.Context, ownerID, table, column, value string) ([]models.Record, error) {
	if _, err := models.Lookup(models.Table(table)); err != nil {
		return nil, err
	}
	all, _ := f.List(ctx, ownerID, table)
	var out []models.Record
	for _, r := range all {
		if r.IndexValue(column) == value {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecords) Upsert(ctx context.Context, ownerID, table string, data json.RawMessage) (models.Record, error) {
	t, err := models.ParseTable(table)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	r, err := models.Decode(t, data)
	if err != nil {
		return nil, err
	}
	r.Meta().OwnerID = ownerID
	if err := r.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[rowKey(ownerID, table, r.GetID())] = r
	return r, nil
}

func (f *fakeRecords) Update(ctx context.Context, ownerID, table, id string, patch map[string]any) (models.Record, error) {
	cur, err := f.Get(ctx, ownerID, table, id)
	if err != nil {
		return nil, err
	}
	merged, err := models.Merge(cur, patch)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[rowKey(ownerID, table, id)] = merged
	return merged, nil
}

func (f *fakeRecords) Delete(ctx context.Context, ownerID, table, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := rowKey(ownerID, table, id)
	if _, ok := f.rows[k]; !ok {
		return common.ErrNotFound
	}
	if f.referenced[id] {
		return fmt.Errorf("delete %s: %w", id, common.ErrReferentialIntegrity)
	}
	delete(f.rows, k)
	return nil
}

type fakeImages struct{}

func (fakeImages) PresignUpload(ctx context.Context, ownerID, productID, contentType string) (string, string, error) {
	key := "images/" + ownerID + "/" + productID + "/k"
	return key, "http://s3/put/" + key, nil
}

func (fakeImages) PresignDownload(ctx context.Context, ownerID, key string) (string, error) {
	if !strings.HasPrefix(key, "images/"+ownerID+"/") {
		return "", common.ErrPermissionDenied
	}
	return "http://s3/get/" + key, nil
}
