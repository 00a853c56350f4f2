package common

import "errors"

// UserMessage turns an error returned by a repository into text suitable for
// a transient notification.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return "done"
	case errors.Is(err, ErrReferentialIntegrity):
		return "cannot delete: this record has sales history"
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrUnauthorized):
		return "you do not have permission to do that"
	case errors.Is(err, ErrNotFound):
		return "record not found"
	case errors.Is(err, ErrValidation):
		return "invalid data: " + err.Error()
	case errors.Is(err, ErrNoOwner):
		return "please log in first"
	case errors.Is(err, ErrOffline):
		return "this action needs a connection to the server"
	case errors.Is(err, ErrStorageUnavailable):
		return "local storage is unavailable, offline mode is disabled"
	case errors.Is(err, ErrRemoteUnreachable):
		return "server is unreachable"
	case errors.Is(err, ErrRemoteRejected):
		return "the server rejected the request: " + err.Error()
	default:
		return "something went wrong: " + err.Error()
	}
}
