package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/batterydied/chatter/internal/apperr"
)

// toStatus maps a domain error onto a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := grpcstatus.FromError(err); ok {
		return err
	}
	return grpcstatus.Error(codeOf(err), err.Error())
}

func codeOf(err error) codes.Code {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return codes.InvalidArgument
	case apperr.KindNotFound:
		return codes.NotFound
	case apperr.KindInvalidOperation:
		return codes.FailedPrecondition
	case apperr.KindConflict:
		return codes.AlreadyExists
	case apperr.KindTransient:
		return codes.Unavailable
	}
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}
	return codes.Internal
}

func denied(format string, args ...any) error {
	return grpcstatus.Errorf(codes.PermissionDenied, format, args...)
}

func required(field string) error {
	return grpcstatus.Errorf(codes.InvalidArgument, "%s is required", field)
}
