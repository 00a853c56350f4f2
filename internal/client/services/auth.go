// Package services contains the application services of the POS client: the
// session (login, register, logout) and the entity repositories the UI
// reads and writes through.
package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	clientmodels "github.com/dmitrijs2005/possync/internal/client/models"
	"github.com/dmitrijs2005/possync/internal/client/remote"
	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/dmitrijs2005/possync/internal/cryptox"
	"github.com/dmitrijs2005/possync/internal/logging"
)

// ErrLocalDataNotAvailable means no earlier online login left credentials
// for an offline one.
var ErrLocalDataNotAvailable = errors.New("no offline credentials on this terminal")

// MetadataStore persists the offline credentials.
type MetadataStore interface {
	GetMetadata(ctx context.Context, key string) (string, bool, error)
	SetMetadataValues(ctx context.Context, kv map[string]string) error
}

// DataClearer wipes local data on logout.
type DataClearer interface {
	ClearAllLocalData(ctx context.Context) error
}

// AuthService owns the session. The user id returned by the server is the
// owner id that scopes every record.
type AuthService struct {
	auth   remote.Auth
	store  MetadataStore
	logger logging.Logger

	mu        sync.RWMutex
	ownerID   string
	username  string
	offline   bool
	verifier  []byte
	listeners []func(ownerID string)
}

func NewAuthService(auth remote.Auth, store MetadataStore, logger logging.Logger) *AuthService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &AuthService{auth: auth, store: store, logger: logger}
}

func (a *AuthService) OwnerID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ownerID
}

func (a *AuthService) Username() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.username
}

// IsOfflineSession reports whether the session was opened without the
// server. Such a session has no token, so remote calls will be refused
// until the user logs in online.
func (a *AuthService) IsOfflineSession() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.offline
}

// OnOwner registers fn to run each time a session gets an owner. The sync
// warm-up hangs off this.
func (a *AuthService) OnOwner(fn func(ownerID string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

func (a *AuthService) setSession(username, ownerID string, verifier []byte, offline bool) {
	a.mu.Lock()
	a.username, a.ownerID, a.offline = username, ownerID, offline
	a.verifier = verifier
	fire := append([]func(string){}, a.listeners...)
	a.mu.Unlock()

	for _, fn := range fire {
		fn(ownerID)
	}
}

// Register creates an account. A fresh salt is generated here and only the
// derived verifier leaves the terminal.
func (a *AuthService) Register(ctx context.Context, username string, password []byte) error {
	salt := cryptox.NewSalt()
	verifier := cryptox.VerifierFor(password, salt)
	return a.auth.Register(ctx, username, salt, verifier)
}

// Login tries the server first and falls back to the cached credentials when
// the server is unreachable. It reports whether the fallback was used.
func (a *AuthService) Login(ctx context.Context, username string, password []byte) (bool, error) {
	err := a.OnlineLogin(ctx, username, password)
	if err == nil {
		return false, nil
	}
	if !common.IsRemoteUnreachable(err) {
		return false, err
	}

	a.logger.Info(ctx, "server unreachable, trying offline login", "error", err)
	if err := a.OfflineLogin(ctx, username, password); err != nil {
		return true, err
	}
	return true, nil
}

// OnlineLogin authenticates against the server and caches what an offline
// login needs: username, salt, verifier and owner id.
func (a *AuthService) OnlineLogin(ctx context.Context, username string, password []byte) error {
	salt, err := a.auth.GetSalt(ctx, username)
	if err != nil {
		return fmt.Errorf("get salt: %w", err)
	}

	verifier := cryptox.VerifierFor(password, salt)
	ownerID, err := a.auth.Login(ctx, username, verifier)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	err = a.store.SetMetadataValues(ctx, map[string]string{
		clientmodels.MetaUsername: username,
		clientmodels.MetaSalt:     hex.EncodeToString(salt),
		clientmodels.MetaVerifier: hex.EncodeToString(verifier),
		clientmodels.MetaOwnerID:  ownerID,
	})
	if err != nil {
		// Still logged in; only offline login is affected.
		a.logger.Warn(ctx, "caching offline credentials failed", "error", err)
	}

	a.setSession(username, ownerID, verifier, false)
	return nil
}

func (a *AuthService) meta(ctx context.Context, key string) (string, error) {
	v, ok, err := a.store.GetMetadata(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrLocalDataNotAvailable
	}
	return v, nil
}

// OfflineLogin checks the password against the cached verifier.
func (a *AuthService) OfflineLogin(ctx context.Context, username string, password []byte) error {
	savedUsername, err := a.meta(ctx, clientmodels.MetaUsername)
	if err != nil {
		return err
	}
	if savedUsername != username {
		return common.ErrInvalidCredentials
	}

	saltHex, err := a.meta(ctx, clientmodels.MetaSalt)
	if err != nil {
		return err
	}
	verifierHex, err := a.meta(ctx, clientmodels.MetaVerifier)
	if err != nil {
		return err
	}
	ownerID, err := a.meta(ctx, clientmodels.MetaOwnerID)
	if err != nil {
		return err
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return fmt.Errorf("%w: bad cached salt", ErrLocalDataNotAvailable)
	}
	saved, err := hex.DecodeString(verifierHex)
	if err != nil {
		return fmt.Errorf("%w: bad cached verifier", ErrLocalDataNotAvailable)
	}

	verifier := cryptox.VerifierFor(password, salt)
	if !cryptox.VerifierMatches(saved, verifier) {
		return common.ErrInvalidCredentials
	}

	a.setSession(username, ownerID, verifier, true)
	return nil
}

// Resume upgrades an offline session to an online one with the verifier
// kept in memory. It is a no-op for online sessions.
func (a *AuthService) Resume(ctx context.Context) error {
	a.mu.RLock()
	offline, username, verifier := a.offline, a.username, a.verifier
	a.mu.RUnlock()
	if !offline || username == "" {
		return nil
	}

	ownerID, err := a.auth.Login(ctx, username, verifier)
	if err != nil {
		return fmt.Errorf("resume session: %w", err)
	}

	a.mu.Lock()
	a.offline = false
	a.mu.Unlock()
	a.logger.Info(ctx, "session resumed online", "owner", ownerID)
	return nil
}

// Logout drops the tokens and the session, then wipes local data.
func (a *AuthService) Logout(ctx context.Context, clearer DataClearer) error {
	a.auth.Logout()

	a.mu.Lock()
	a.username, a.ownerID, a.offline = "", "", false
	common.WipeByteArray(a.verifier)
	a.verifier = nil
	a.mu.Unlock()

	if clearer == nil {
		return nil
	}
	return clearer.ClearAllLocalData(ctx)
}

func (a *AuthService) Ping(ctx context.Context) error {
	return a.auth.Ping(ctx)
}
