// internal/app/features/notifications/handler.go
package notifications

import (
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/prayerodyssey/internal/app/features/errors"
	"github.com/dalemusser/prayerodyssey/internal/app/services/notificationsvc"
	"github.com/dalemusser/prayerodyssey/internal/app/system/actor"
	"github.com/dalemusser/prayerodyssey/internal/app/system/sse"
	"github.com/dalemusser/prayerodyssey/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Svc    *notificationsvc.Service
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(svc *notificationsvc.Service, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, ErrLog: errLog, Log: logger}
}

type countResponse struct {
	Count int64 `json:"count"`
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, actor.ErrNotAuthenticated):
		uierrors.Unauthorized(w)
	case errors.Is(err, notificationsvc.ErrNotFound):
		uierrors.NotFound(w, "notification not found")
	default:
		h.ErrLog.ServerError(w, r, msg, err)
	}
}

// ServeList handles GET /notifications and returns {items, unread}.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "notifications.list")
	defer cancel()

	v, err := h.Svc.View(ctx)
	if err != nil {
		h.fail(w, r, "list notifications failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, v)
}

// ServeStream handles GET /notifications/stream (server-sent events).
func (h *Handler) ServeStream(w http.ResponseWriter, r *http.Request) {
	feed, err := h.Svc.Subscribe(r.Context())
	if err != nil {
		h.fail(w, r, "subscribe notifications failed", err)
		return
	}
	sse.Stream(w, r, feed, "notifications", h.Log)
}

// ServeRead handles POST /notifications/{id}/read.
func (h *Handler) ServeRead(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.BadRequest(w, "invalid notification id")
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "notifications.read")
	defer cancel()

	if err := h.Svc.MarkRead(ctx, id); err != nil {
		h.fail(w, r, "mark read failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeReadAll handles POST /notifications/read-all.
func (h *Handler) ServeReadAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "notifications.read_all")
	defer cancel()

	n, err := h.Svc.MarkAllRead(ctx)
	if err != nil {
		h.fail(w, r, "mark all read failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, countResponse{Count: n})
}

// ServeDelete handles DELETE /notifications/{id}.
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.BadRequest(w, "invalid notification id")
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "notifications.delete")
	defer cancel()

	if err := h.Svc.Delete(ctx, id); err != nil {
		h.fail(w, r, "delete notification failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeClear handles DELETE /notifications.
func (h *Handler) ServeClear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "notifications.clear")
	defer cancel()

	n, err := h.Svc.ClearAll(ctx)
	if err != nil {
		h.fail(w, r, "clear notifications failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, countResponse{Count: n})
}
