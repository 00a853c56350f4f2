package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/possync/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// mapError classifies a gRPC failure. op names the call for the message.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s: %w: %w", op, common.ErrRemoteUnreachable, err)
		}
		return fmt.Errorf("%s: %w: %w", op, common.ErrRemoteRejected, err)
	}

	msg := st.Message()
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%s: %w: %s", op, common.ErrRemoteUnreachable, msg)
	case codes.NotFound:
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	case codes.Unauthenticated:
		return fmt.Errorf("%s: %w: %w", op, common.ErrRemoteRejected, common.ErrUnauthorized)
	case codes.PermissionDenied:
		return fmt.Errorf("%s: %w: %w", op, common.ErrRemoteRejected, common.ErrPermissionDenied)
	case codes.FailedPrecondition:
		return fmt.Errorf("%s: %w: %w", op, common.ErrRemoteRejected, common.ErrReferentialIntegrity)
	case codes.AlreadyExists:
		return fmt.Errorf("%s: %w: %w", op, common.ErrRemoteRejected, common.ErrAlreadyExists)
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %w: %w: %s", op, common.ErrRemoteRejected, common.ErrValidation, msg)
	default:
		return fmt.Errorf("%s: %w: %s: %s", op, common.ErrRemoteRejected, st.Code(), msg)
	}
}
