package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/possync/internal/client/services"
	"github.com/dmitrijs2005/possync/internal/common"
)

var errEmptyUsername = errors.New("username must not be empty")

func (a *App) credentials() (string, []byte, error) {
	username, err := GetSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return "", nil, err
	}
	if username == "" {
		return "", nil, errEmptyUsername
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return "", nil, err
	}
	return username, password, nil
}

func (a *App) Register(ctx context.Context) error {
	username, password, err := a.credentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.Register(ctx, username, password); err != nil {
		return err
	}
	a.println("Registered. You can log in now.")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	username, password, err := a.credentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	offline, err := a.auth.Login(ctx, username, password)
	if errors.Is(err, services.ErrLocalDataNotAvailable) {
		a.println("Server is unreachable and this terminal has no saved login for offline use.")
		return nil
	}
	if err != nil {
		return err
	}
	if offline {
		a.println("Logged in offline. Changes will sync when the server is back.")
	} else {
		a.println("Logged in.")
	}
	return nil
}

// Logout ends the session and wipes the local copy of the data.
func (a *App) Logout(ctx context.Context) error {
	st, err := a.syncer.Status(ctx)
	if err == nil && st.PendingChanges > 0 {
		a.printf("%d unsynced changes will be lost.\n", st.PendingChanges)
		answer, err := GetSimpleText(a.reader, "Log out anyway? [y/N]", a.out)
		if err != nil {
			return err
		}
		if answer != "y" && answer != "Y" {
			return nil
		}
	}
	if err := a.auth.Logout(ctx, a.syncer); err != nil {
		return err
	}
	a.println("Logged out.")
	return nil
}
