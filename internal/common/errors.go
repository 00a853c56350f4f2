package common

import "errors"

var (
	// ErrStorageUnavailable means the local persistent store could not be
	// opened or used. Fatal to offline mode, not to the application.
	ErrStorageUnavailable = errors.New("local storage unavailable")

	// ErrStorage wraps any other failure of the local storage engine.
	ErrStorage = errors.New("local storage error")

	// ErrRemoteUnreachable covers network failures and timeouts. Repositories
	// fall back to the local store; queued entries stay queued.
	ErrRemoteUnreachable = errors.New("remote system unreachable")

	// ErrRemoteRejected is a domain-level refusal by the remote system.
	// It is surfaced to the user and never queued for retry.
	ErrRemoteRejected = errors.New("remote system rejected the request")

	// ErrSyncItemFailed marks a single queued mutation that could not be
	// replayed during a sync pass.
	ErrSyncItemFailed = errors.New("sync item failed")

	ErrNotFound             = errors.New("not found")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrReferentialIntegrity = errors.New("record has dependent history")
	ErrAlreadyExists        = errors.New("already exists")
	ErrValidation           = errors.New("validation error")

	ErrUnknownTable = errors.New("unknown table")
	ErrNoOwner      = errors.New("no owner associated with session")
	ErrOffline      = errors.New("operation requires connectivity")

	// Auth errors.
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInternal           = errors.New("internal error")
)

// IsRemoteRejected reports whether err is a domain refusal that must not be
// retried.
func IsRemoteRejected(err error) bool {
	return errors.Is(err, ErrRemoteRejected)
}

// IsRemoteUnreachable reports whether err should trigger a local fallback.
func IsRemoteUnreachable(err error) bool {
	return errors.Is(err, ErrRemoteUnreachable)
}
