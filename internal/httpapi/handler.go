package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aurawellness/gamification-service/internal/gamification"
	"github.com/aurawellness/gamification-service/internal/notification"
)

const serviceTimeout = 8 * time.Second

// GamificationService is the engine surface the handlers need.
type GamificationService interface {
	RecordActivity(ctx context.Context, userID string, activity gamification.ActivityType) (gamification.Result, error)
	EnsureProfile(ctx context.Context, userID string) (gamification.Profile, bool, error)
	GetSummary(ctx context.Context, userID string) (*gamification.Summary, error)
	SetTimezone(ctx context.Context, userID, timezone string) (gamification.Profile, error)
}

// NotificationService is the inbox surface the handlers need.
type NotificationService interface {
	List(ctx context.Context, userID string, limit int) ([]notification.Notification, error)
	MarkRead(ctx context.Context, userID, id string) (notification.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

// Handlers bundles the collaborators of the HTTP layer.
type Handlers struct {
	Gamification  GamificationService
	Notifications NotificationService
	Limiter       *UserRateLimiter
	Logger        *slog.Logger
}

// RegisterRoutes registers all gamification and notification routes.
func RegisterRoutes(r chi.Router, h Handlers) {
	r.Route("/v1/activities", func(r chi.Router) {
		r.Use(middleware.Recoverer)
		if h.Limiter != nil {
			r.Use(h.Limiter.Middleware(h.Logger))
		}
		r.Post("/", h.recordActivity)
	})

	r.Route("/v1/gamification", func(r chi.Router) {
		r.Use(middleware.Recoverer)
		r.Get("/me", h.getSummary)
		r.Post("/me", h.ensureProfile)
		r.Put("/me/timezone", h.setTimezone)
	})

	r.Get("/v1/badges", h.listBadges)

	r.Route("/v1/notifications", func(r chi.Router) {
		r.Use(middleware.Recoverer)
		r.Get("/", h.listNotifications)
		r.Get("/unread-count", h.unreadCount)
		r.Post("/read-all", h.markAllRead)
		r.Post("/{id}/read", h.markRead)
	})
}

type recordActivityRequest struct {
	ActivityType string `json:"activity_type" validate:"required,oneof=focus journal"`
}

func (h Handlers) recordActivity(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		writeError(w, r, http.StatusUnauthorized, "missing user ID")
		return
	}

	var body recordActivityRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	result, err := h.Gamification.RecordActivity(ctx, userID, gamification.ActivityType(body.ActivityType))
	if err != nil {
		respondServiceError(w, r, h.Logger, "failed to record activity", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h Handlers) getSummary(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		writeError(w, r, http.StatusUnauthorized, "missing user ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	summary, err := h.Gamification.GetSummary(ctx, userID)
	if err != nil {
		respondServiceError(w, r, h.Logger, "failed to load gamification summary", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h Handlers) ensureProfile(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		writeError(w, r, http.StatusUnauthorized, "missing user ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	profile, created, err := h.Gamification.EnsureProfile(ctx, userID)
	if err != nil {
		respondServiceError(w, r, h.Logger, "failed to ensure gamification profile", err, userID)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, profile)
}

type setTimezoneRequest struct {
	Timezone string `json:"timezone" validate:"max=64"`
}

func (h Handlers) setTimezone(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		writeError(w, r, http.StatusUnauthorized, "missing user ID")
		return
	}

	var body setTimezoneRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	profile, err := h.Gamification.SetTimezone(ctx, userID, body.Timezone)
	if err != nil {
		respondServiceError(w, r, h.Logger, "failed to set timezone", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h Handlers) listBadges(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"badges": gamification.Catalog()})
}

func (h Handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		writeError(w, r, http.StatusUnauthorized, "missing user ID")
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = v
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	items, err := h.Notifications.List(ctx, userID, limit)
	if err != nil {
		respondServiceError(w, r, h.Logger, "failed to list notifications", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
}

func (h Handlers) unreadCount(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		writeError(w, r, http.StatusUnauthorized, "missing user ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	count, err := h.Notifications.CountUnread(ctx, userID)
	if err != nil {
		respondServiceError(w, r, h.Logger, "failed to count notifications", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (h Handlers) markRead(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		writeError(w, r, http.StatusUnauthorized, "missing user ID")
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "missing notification id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	n, err := h.Notifications.MarkRead(ctx, userID, id)
	if err != nil {
		respondServiceError(w, r, h.Logger, "failed to mark notification read", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h Handlers) markAllRead(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		writeError(w, r, http.StatusUnauthorized, "missing user ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	updated, err := h.Notifications.MarkAllRead(ctx, userID)
	if err != nil {
		respondServiceError(w, r, h.Logger, "failed to mark notifications read", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}
