package records

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/possync/internal/client/migrations"
	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/dmitrijs2005/possync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Up(context.Background(), db))
	return db
}

func productSchema(t *testing.T) models.Schema {
	t.Helper()
	s, err := models.Lookup(models.TableProducts)
	require.NoError(t, err)
	return s
}

func product(id, owner, name, barcode string) *models.Product {
	return &models.Product{Base: models.Base{ID: id, OwnerID: owner}, Name: name, Barcode: barcode, PriceCents: 100}
}

func TestUpsert_InsertThenUpdate(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	s := productSchema(t)
	ctx := context.Background()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := product("p1", "o1", "Cola", "111")
	p.Touch(now)
	require.NoError(t, r.Upsert(ctx, s, p))

	p.Name = "Cola Zero"
	p.Barcode = "222"
	require.NoError(t, r.Upsert(ctx, s, p))

	got, err := r.Get(ctx, s, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Cola Zero", got.(*models.Product).Name)

	var barcode string
	var updatedAt int64
	require.NoError(t, db.QueryRow(`SELECT barcode, updated_at FROM products WHERE id = 'p1'`).Scan(&barcode, &updatedAt))
	assert.Equal(t, "222", barcode, "index column must follow the payload")
	assert.Equal(t, now.UnixMilli(), updatedAt)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM products`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestUpsert_EmptyID(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	err := r.Upsert(context.Background(), productSchema(t), product("", "o1", "x", ""))
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestGet_NotExists_ReturnsNilNil(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	got, err := r.Get(context.Background(), productSchema(t), "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestList_FiltersByOwner(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	s := productSchema(t)
	ctx := context.Background()

	empty, err := r.List(ctx, s, "o1")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	require.NoError(t, r.Upsert(ctx, s, product("p1", "o1", "A", "")))
	require.NoError(t, r.Upsert(ctx, s, product("p2", "o2", "B", "")))
	require.NoError(t, r.Upsert(ctx, s, product("p3", "o1", "C", "")))

	mine, err := r.List(ctx, s, "o1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "p1", mine[0].GetID())
	assert.Equal(t, "p3", mine[1].GetID())

	all, err := r.List(ctx, s, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFindByIndex(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	s := productSchema(t)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, s, product("p1", "o1", "Cola", "4006381333931")))
	require.NoError(t, r.Upsert(ctx, s, product("p2", "o2", "Cola", "4006381333931")))

	found, err := r.FindByIndex(ctx, s, "barcode", "4006381333931", "o1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "p1", found[0].GetID())

	none, err := r.FindByIndex(ctx, s, "barcode", "000", "o1")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = r.FindByIndex(ctx, s, "name", "Cola", "o1")
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestDelete_AndDeleteOwnerExcept(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	s := productSchema(t)
	ctx := context.Background()

	for _, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, r.Upsert(ctx, s, product(id, "o1", id, "")))
	}
	require.NoError(t, r.Upsert(ctx, s, product("x1", "o2", "x", "")))

	removed, err := r.Delete(ctx, s, "p1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = r.Delete(ctx, s, "p1")
	require.NoError(t, err)
	assert.False(t, removed)

	n, err := r.DeleteOwnerExcept(ctx, s, "o1", map[string]struct{}{"p3": {}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	left, err := r.List(ctx, s, "")
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, "p3", left[0].GetID())
	assert.Equal(t, "x1", left[1].GetID())
}

func TestClear(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	s := productSchema(t)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, s, product("p1", "o1", "A", "")))
	require.NoError(t, r.Clear(ctx, s))

	all, err := r.List(ctx, s, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestErrorsWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	s := productSchema(t)
	ctx := context.Background()

	require.NoError(t, db.Close())

	_, err := r.Get(ctx, s, "p1")
	require.ErrorContains(t, err, "failed to get products/p1")

	_, err = r.List(ctx, s, "o1")
	require.ErrorContains(t, err, "failed to select products")

	err = r.Upsert(ctx, s, product("p1", "o1", "A", ""))
	require.ErrorContains(t, err, "failed to upsert products/p1")
}
