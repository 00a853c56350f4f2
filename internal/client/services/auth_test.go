package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/possync/internal/client/localstore"
	clientmodels "github.com/dmitrijs2005/possync/internal/client/models"
	"github.com/dmitrijs2005/possync/internal/client/remote/remotetest"
	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/dmitrijs2005/possync/internal/logging"
	"github.com/dmitrijs2005/possync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- helpers ----

func setupAuth(t *testing.T) (*AuthService, *remotetest.Fake, *localstore.Store) {
	t.Helper()
	store, err := localstore.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	fake := remotetest.New("")
	return NewAuthService(fake, store, logging.Nop()), fake, store
}

type clearerFunc func(ctx context.Context) error

func (f clearerFunc) ClearAllLocalData(ctx context.Context) error { return f(ctx) }

// ---- tests ----

func TestRegisterThenOnlineLogin(t *testing.T) {
	ctx := context.Background()
	svc, fake, store := setupAuth(t)

	var owners []string
	svc.OnOwner(func(id string) { owners = append(owners, id) })

	require.NoError(t, svc.Register(ctx, "bob", []byte("secret")))

	offline, err := svc.Login(ctx, "bob", []byte("secret"))
	require.NoError(t, err)
	assert.False(t, offline)
	assert.False(t, svc.IsOfflineSession())
	assert.Equal(t, "bob", svc.Username())
	assert.Equal(t, fake.OwnerID, svc.OwnerID())
	assert.Equal(t, []string{svc.OwnerID()}, owners)

	for _, k := range []string{clientmodels.MetaUsername, clientmodels.MetaSalt, clientmodels.MetaVerifier, clientmodels.MetaOwnerID} {
		_, ok, err := store.GetMetadata(ctx, k)
		require.NoError(t, err)
		assert.True(t, ok, k)
	}
}

func TestOnlineLogin_WrongPassword(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupAuth(t)
	require.NoError(t, svc.Register(ctx, "bob", []byte("secret")))

	_, err := svc.Login(ctx, "bob", []byte("nope"))
	require.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Empty(t, svc.OwnerID())
}

func TestLogin_FallsBackToOfflineCredentials(t *testing.T) {
	ctx := context.Background()
	svc, fake, _ := setupAuth(t)
	require.NoError(t, svc.Register(ctx, "bob", []byte("secret")))
	_, err := svc.Login(ctx, "bob", []byte("secret"))
	require.NoError(t, err)
	owner := svc.OwnerID()
	require.NoError(t, svc.Logout(ctx, nil))
	assert.Empty(t, svc.OwnerID())

	fake.SetUnreachable(true)

	offline, err := svc.Login(ctx, "bob", []byte("secret"))
	require.NoError(t, err)
	assert.True(t, offline)
	assert.True(t, svc.IsOfflineSession())
	assert.Equal(t, owner, svc.OwnerID())

	_, err = svc.Login(ctx, "bob", []byte("wrong"))
	require.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "alice", []byte("secret"))
	require.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestOfflineLogin_NoCachedData(t *testing.T) {
	svc, fake, _ := setupAuth(t)
	fake.SetUnreachable(true)

	_, err := svc.Login(context.Background(), "bob", []byte("secret"))
	require.ErrorIs(t, err, ErrLocalDataNotAvailable)
}

func TestResume_UpgradesOfflineSession(t *testing.T) {
	ctx := context.Background()
	svc, fake, _ := setupAuth(t)
	require.NoError(t, svc.Register(ctx, "bob", []byte("secret")))
	_, err := svc.Login(ctx, "bob", []byte("secret"))
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, nil))

	fake.SetUnreachable(true)
	_, err = svc.Login(ctx, "bob", []byte("secret"))
	require.NoError(t, err)
	require.True(t, svc.IsOfflineSession())

	require.Error(t, svc.Resume(ctx))
	assert.True(t, svc.IsOfflineSession())

	fake.SetUnreachable(false)
	require.NoError(t, svc.Resume(ctx))
	assert.False(t, svc.IsOfflineSession())
	assert.Equal(t, 3, fake.Calls("Login"))
}

func TestLogout_ClearsLocalData(t *testing.T) {
	ctx := context.Background()
	svc, fake, store := setupAuth(t)
	require.NoError(t, svc.Register(ctx, "bob", []byte("secret")))
	_, err := svc.Login(ctx, "bob", []byte("secret"))
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, &models.Customer{Base: models.Base{ID: "c1", OwnerID: svc.OwnerID()}, Name: "Ann"}, true))

	require.NoError(t, svc.Logout(ctx, clearerFunc(store.ClearAll)))
	assert.Equal(t, 1, fake.Calls("Logout"))

	n, err := store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	_, ok, err := store.GetMetadata(ctx, clientmodels.MetaUsername)
	require.NoError(t, err)
	assert.False(t, ok)

	boom := errors.New("boom")
	require.ErrorIs(t, svc.Logout(ctx, clearerFunc(func(context.Context) error { return boom })), boom)
}

func TestPing_Delegates(t *testing.T) {
	svc, fake, _ := setupAuth(t)
	require.NoError(t, svc.Ping(context.Background()))

	fake.SetUnreachable(true)
	require.True(t, common.IsRemoteUnreachable(svc.Ping(context.Background())))
}
