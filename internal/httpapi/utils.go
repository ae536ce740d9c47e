package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/aurawellness/gamification-service/internal/gamification"
	"github.com/aurawellness/gamification-service/internal/notification"
	sharedauth "github.com/aurawellness/gamification-service/shared-libs/auth"
	sharederrors "github.com/aurawellness/gamification-service/shared-libs/errors"
	"github.com/aurawellness/gamification-service/shared-libs/logging"
)

const maxBodyBytes = 16 * 1024

var (
	validate          = validator.New()
	errInvalidPayload = errors.New("invalid request body")
)

// requestUserID returns the identity resolved by the auth middleware. Whether the internal
// X-User-ID header is honoured is decided there, not here.
func requestUserID(r *http.Request) string {
	user, ok := sharedauth.UserFromContext(r.Context())
	if !ok {
		return ""
	}
	return strings.TrimSpace(user.UserID)
}

// decodeBody reads exactly one JSON object into dst and runs its validate tags.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return errInvalidPayload
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errInvalidPayload
	}
	if err := validate.Struct(dst); err != nil {
		return errInvalidPayload
	}
	return nil
}

func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, r, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	writeError(w, r, http.StatusBadRequest, errInvalidPayload.Error())
}

// statusForError maps domain errors onto HTTP statuses.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, gamification.ErrInvalidActivity):
		return http.StatusBadRequest, "unsupported activity type"
	case errors.Is(err, gamification.ErrInvalidInput), errors.Is(err, notification.ErrInvalidInput):
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, gamification.ErrProfileNotFound):
		return http.StatusNotFound, "gamification profile not found"
	case errors.Is(err, notification.ErrNotFound):
		return http.StatusNotFound, "notification not found"
	case errors.Is(err, gamification.ErrConflict):
		return http.StatusConflict, "concurrent update, retry later"
	case errors.Is(err, gamification.ErrPersistence),
		errors.Is(err, notification.ErrPersistence),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "storage unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func respondServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, message string, err error, userID string) {
	status, public := statusForError(err)
	if status >= http.StatusInternalServerError || status == http.StatusConflict {
		logRequestError(r.Context(), logger, message, err, userID)
	}
	writeError(w, r, status, public)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, sharederrors.ErrorResponse{
		Code:      sharederrors.CodeForStatus(status),
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func logRequestError(ctx context.Context, logger *slog.Logger, message string, err error, userID string) {
	if logger == nil || err == nil {
		return
	}
	logging.WithRequestID(ctx, logger, middleware.GetReqID(ctx)).Error(message,
		slog.String("userId", userID),
		slog.Any("error", err),
	)
}
