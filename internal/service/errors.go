// Package service holds helpers shared by the domain services.
package service

import (
	"errors"

	"github.com/jwalitptl/careops-api/internal/repository"
	apperrors "github.com/jwalitptl/careops-api/pkg/errors"
)

// RepoError maps repository sentinels onto API errors.
// op reads like "update bed" and is used for unexpected database failures.
func RepoError(resource, op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound(resource, err)
	case errors.Is(err, repository.ErrStale):
		return &apperrors.AppError{
			Code:    apperrors.ErrConflict,
			Message: resource + " was modified concurrently, reload and retry",
			Err:     err,
		}
	default:
		return apperrors.Database(op, err)
	}
}
