package service

import (
	"errors"

	"github.com/streetfix/resolve-service/internal/repository"
	"github.com/streetfix/resolve-service/internal/workflow"
	apperrors "github.com/streetfix/resolve-service/pkg/util/errorutil"
)

// mapRepoError converts repository sentinels into domain errors for resource.
func mapRepoError(err error, resource string, details map[string]any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, details)
	case errors.Is(err, repository.ErrStaleWrite):
		return apperrors.NewConflict(resource+" was modified concurrently; reload and retry", details)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict(resource+" already exists", details)
	}
	return apperrors.MapError(err)
}

// mapTransitionError turns a workflow refusal into a domain error. Missing evidence and
// missing reasons are caller mistakes; everything else is an illegal transition.
func mapTransitionError(err error) error {
	var te *workflow.TransitionError
	if !errors.As(err, &te) {
		return apperrors.MapError(err)
	}
	switch {
	case errors.Is(err, workflow.ErrEvidenceRequired):
		return apperrors.NewValidationError("resolution notes and an after photo are required",
			map[string]any{"current_status": te.From})
	case errors.Is(err, workflow.ErrReasonRequired):
		return apperrors.NewValidationError("a reason is required to reopen a ticket",
			map[string]any{"current_status": te.From})
	case errors.Is(err, workflow.ErrUnassigned):
		return apperrors.NewValidationError("an engineer is required",
			map[string]any{"current_status": te.From})
	}
	return apperrors.NewIllegalTransition(string(te.From), string(te.Action), err)
}
