package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/attaboy/muteregistry/internal/domain"
)

// RestrictionChecker answers whether a connecting player is muted.
type RestrictionChecker interface {
	IsRestricted(ctx context.Context, p domain.PlayerIdentity) (bool, error)
}

// CheckHandler serves the game-server facing restriction lookup.
type CheckHandler struct {
	checker RestrictionChecker
}

// NewCheckHandler creates a new CheckHandler.
func NewCheckHandler(checker RestrictionChecker) *CheckHandler {
	return &CheckHandler{checker: checker}
}

// Check handles POST /v1/restrictions/check.
func (h *CheckHandler) Check(w http.ResponseWriter, r *http.Request) {
	var input domain.PlayerIdentity
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, err)
		return
	}
	if len(input.Values()) == 0 {
		RespondError(w, domain.ErrValidation("at least one of ip, uuid, account_name is required"))
		return
	}

	restricted, err := h.checker.IsRestricted(r.Context(), input)
	if err != nil {
		RespondError(w, AsAppError("check restriction", err))
		return
	}

	RespondJSON(w, http.StatusOK, map[string]bool{"restricted": restricted})
}

// AsAppError passes AppErrors through and wraps anything else as an internal error.
func AsAppError(msg string, err error) error {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return domain.ErrInternal(msg, err)
}
