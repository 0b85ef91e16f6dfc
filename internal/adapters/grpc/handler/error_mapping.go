package handler

import (
	"context"
	"errors"

	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/claim"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/lecturer"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func toStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, claim.ErrValidation),
		errors.Is(err, lecturer.ErrInvalidID):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, claim.ErrClaimNotFound),
		errors.Is(err, claim.ErrDocumentNotFound),
		errors.Is(err, lecturer.ErrLecturerNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, claim.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, claim.ErrInvalidTransition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, claim.ErrConcurrentUpdate):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
