package services

import (
	"context"
	"errors"

	"busbooking/internal/domain"
	"busbooking/internal/repositories"
)

func isDomainError(err error) bool {
	return domain.IsNotFound(err) || domain.IsValidation(err) || domain.IsConflict(err) ||
		domain.IsUnavailable(err) || domain.IsInternal(err)
}

// storeError lifts a repository error into the domain taxonomy. Errors that
// already carry a domain type pass through unchanged.
func storeError(err error, resource, msg string) error {
	switch {
	case err == nil:
		return nil
	case isDomainError(err):
		return err
	case errors.Is(err, repositories.ErrNotFound):
		return domain.NotFoundError{Resource: resource, Msg: msg, Err: err}
	case errors.Is(err, repositories.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return domain.UnavailableError{Msg: "store busy, retry later", Err: err}
	case errors.Is(err, repositories.ErrDuplicate), errors.Is(err, repositories.ErrStaleWrite):
		return domain.ConflictError{Resource: resource, Msg: msg, Err: err}
	}
	return domain.InternalError{Msg: "storage failure", Err: err}
}
