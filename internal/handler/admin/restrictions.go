package admin

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/attaboy/muteregistry/internal/auth"
	"github.com/attaboy/muteregistry/internal/domain"
	"github.com/attaboy/muteregistry/internal/handler"
	"github.com/go-chi/chi/v5"
)

const defaultPageSize = 50

// Registry is the subset of the restriction registry the admin API drives.
type Registry interface {
	CountAll(ctx context.Context) (int64, error)
	GetPage(ctx context.Context, pageIndex, pageSize int) ([]domain.Restriction, error)
	CreateRecord(ctx context.Context, t domain.IdentifierType, value string, expiresAt *time.Time) (bool, error)
	RemoveRecord(ctx context.Context, t domain.IdentifierType, value string) (bool, error)
	RemoveRecordByValue(ctx context.Context, value string) (bool, error)
	MutePlayer(ctx context.Context, p domain.PlayerIdentity, expiresAt *time.Time) bool
	UnmutePlayer(ctx context.Context, p domain.PlayerIdentity) bool
}

// RestrictionHandler handles admin mute management.
type RestrictionHandler struct {
	registry Registry
	now      func() time.Time
}

// NewRestrictionHandler creates a new RestrictionHandler.
func NewRestrictionHandler(registry Registry) *RestrictionHandler {
	return &RestrictionHandler{registry: registry, now: time.Now}
}

// ListRestrictions handles GET /admin/restrictions.
func (h *RestrictionHandler) ListRestrictions(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	pageSize, err := queryInt(r, "page_size", defaultPageSize)
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	records, err := h.registry.GetPage(r.Context(), page, pageSize)
	if err != nil {
		handler.RespondError(w, handler.AsAppError("list restrictions", err))
		return
	}

	handler.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"page":         page,
		"page_size":    pageSize,
		"restrictions": records,
	})
}

// CountRestrictions handles GET /admin/restrictions/count.
func (h *RestrictionHandler) CountRestrictions(w http.ResponseWriter, r *http.Request) {
	total, err := h.registry.CountAll(r.Context())
	if err != nil {
		handler.RespondError(w, handler.AsAppError("count restrictions", err))
		return
	}
	handler.RespondJSON(w, http.StatusOK, map[string]int64{"total": total})
}

// CreateRestriction handles POST /admin/restrictions.
func (h *RestrictionHandler) CreateRestriction(w http.ResponseWriter, r *http.Request) {
	var input struct {
		IdentifierType string     `json:"identifier_type"`
		Value          string     `json:"value"`
		ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	}
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondError(w, err)
		return
	}

	t, err := domain.ParseIdentifierType(input.IdentifierType)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	if err := h.checkExpiry(input.ExpiresAt); err != nil {
		handler.RespondError(w, err)
		return
	}

	if _, err := h.registry.CreateRecord(r.Context(), t, input.Value, input.ExpiresAt); err != nil {
		handler.RespondError(w, handler.AsAppError("create restriction", err))
		return
	}

	handler.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"identifier_type": t,
		"value":           input.Value,
		"expires_at":      input.ExpiresAt,
		"created_by":      auth.SubjectFromContext(r.Context()),
	})
}

// DeleteRestriction handles DELETE /admin/restrictions/{type}/{value}.
func (h *RestrictionHandler) DeleteRestriction(w http.ResponseWriter, r *http.Request) {
	t, err := domain.ParseIdentifierType(chi.URLParam(r, "type"))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	value, err := pathValue(r, "value")
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	removed, err := h.registry.RemoveRecord(r.Context(), t, value)
	if err != nil {
		handler.RespondError(w, handler.AsAppError("delete restriction", err))
		return
	}
	if !removed {
		handler.RespondError(w, domain.ErrRestrictionNotFound(t, value))
		return
	}

	handler.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// DeleteRestrictionByValue handles DELETE /admin/restrictions/by-value/{value}.
func (h *RestrictionHandler) DeleteRestrictionByValue(w http.ResponseWriter, r *http.Request) {
	value, err := pathValue(r, "value")
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	removed, err := h.registry.RemoveRecordByValue(r.Context(), value)
	if err != nil {
		handler.RespondError(w, handler.AsAppError("delete restriction", err))
		return
	}
	if !removed {
		handler.RespondError(w, domain.ErrRestrictionNotFound("", value))
		return
	}

	handler.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// MutePlayer handles POST /admin/players/mute.
func (h *RestrictionHandler) MutePlayer(w http.ResponseWriter, r *http.Request) {
	var input struct {
		domain.PlayerIdentity
		Duration  string     `json:"duration,omitempty"`
		ExpiresAt *time.Time `json:"expires_at,omitempty"`
	}
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondError(w, err)
		return
	}
	if err := domain.ValidateIdentity(input.PlayerIdentity); err != nil {
		handler.RespondError(w, err)
		return
	}

	expiresAt := input.ExpiresAt
	switch {
	case input.Duration != "" && input.ExpiresAt != nil:
		handler.RespondError(w, domain.ErrValidation("set either duration or expires_at, not both"))
		return
	case input.Duration != "":
		parsed, err := domain.ParseMuteDuration(input.Duration, h.now())
		if err != nil {
			handler.RespondError(w, err)
			return
		}
		expiresAt = parsed
	}
	if err := h.checkExpiry(expiresAt); err != nil {
		handler.RespondError(w, err)
		return
	}

	ok := h.registry.MutePlayer(r.Context(), input.PlayerIdentity, expiresAt)
	handler.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    ok,
		"expires_at": expiresAt,
	})
}

// UnmutePlayer handles POST /admin/players/unmute.
func (h *RestrictionHandler) UnmutePlayer(w http.ResponseWriter, r *http.Request) {
	var input domain.PlayerIdentity
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondError(w, err)
		return
	}
	if err := domain.ValidateIdentity(input); err != nil {
		handler.RespondError(w, err)
		return
	}

	ok := h.registry.UnmutePlayer(r.Context(), input)
	handler.RespondJSON(w, http.StatusOK, map[string]bool{"success": ok})
}

func (h *RestrictionHandler) checkExpiry(expiresAt *time.Time) error {
	if expiresAt != nil && !expiresAt.After(h.now()) {
		return domain.ErrValidation("expires_at must be in the future")
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.ErrValidation("invalid " + key)
	}
	return n, nil
}

// pathValue returns a decoded URL parameter. chi matches on RawPath when the
// request carries escapes such as %2F, leaving those params encoded.
func pathValue(r *http.Request, key string) (string, error) {
	raw := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return raw, nil
	}
	v, err := url.PathUnescape(raw)
	if err != nil {
		return "", domain.ErrValidation("invalid " + key + " escape")
	}
	return v, nil
}
