// internal/app/features/prayers/handler.go
package prayers

import (
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/prayerodyssey/internal/app/features/errors"
	"github.com/dalemusser/prayerodyssey/internal/app/services/prayersvc"
	prayerstore "github.com/dalemusser/prayerodyssey/internal/app/store/prayers"
	prayerupdatestore "github.com/dalemusser/prayerodyssey/internal/app/store/prayerupdates"
	"github.com/dalemusser/prayerodyssey/internal/app/system/actor"
	"github.com/dalemusser/prayerodyssey/internal/app/system/sse"
	"github.com/dalemusser/prayerodyssey/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the prayer JSON API.
type Handler struct {
	Svc    *prayersvc.Service
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(svc *prayersvc.Service, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, ErrLog: errLog, Log: logger}
}

type sharingRequest struct {
	GroupIDs []primitive.ObjectID `json:"groupIds"`
}

type contentRequest struct {
	Content string `json:"content"`
}

// fail maps service errors onto HTTP responses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, actor.ErrNotAuthenticated):
		uierrors.Unauthorized(w)
	case errors.Is(err, prayersvc.ErrNotFound):
		uierrors.NotFound(w, "prayer not found")
	case errors.Is(err, prayerupdatestore.ErrNotFound):
		uierrors.NotFound(w, "update not found")
	case errors.Is(err, prayersvc.ErrForbidden),
		errors.Is(err, prayersvc.ErrNotGroupMember):
		uierrors.Forbidden(w, err.Error())
	case errors.Is(err, prayerstore.ErrEmptySummary),
		errors.Is(err, prayerupdatestore.ErrEmptyContent):
		uierrors.BadRequest(w, err.Error())
	default:
		h.ErrLog.ServerError(w, r, msg, err)
	}
}

func objectIDParam(w http.ResponseWriter, r *http.Request, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		uierrors.BadRequest(w, "invalid "+name)
		return primitive.NilObjectID, false
	}
	return id, true
}

// ServeList handles GET /prayers.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "prayers.list")
	defer cancel()

	list, err := h.Svc.ListMine(ctx)
	if err != nil {
		h.fail(w, r, "list prayers failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, list)
}

// ServeCreate handles POST /prayers.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	var in prayersvc.CreateInput
	if err := uierrors.DecodeJSON(r, &in); err != nil {
		uierrors.BadRequest(w, "invalid JSON body")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "prayers.create")
	defer cancel()

	p, err := h.Svc.Create(ctx, in)
	if err != nil {
		h.fail(w, r, "create prayer failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, p)
}

// ServeShared handles GET /prayers/shared.
func (h *Handler) ServeShared(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "prayers.shared")
	defer cancel()

	list, err := h.Svc.ListShared(ctx)
	if err != nil {
		h.fail(w, r, "list shared prayers failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, list)
}

// ServeSharedStream handles GET /prayers/shared/stream (server-sent events).
func (h *Handler) ServeSharedStream(w http.ResponseWriter, r *http.Request) {
	feed, err := h.Svc.SubscribeShared(r.Context())
	if err != nil {
		h.fail(w, r, "subscribe shared prayers failed", err)
		return
	}
	sse.Stream(w, r, feed, "prayers", h.Log)
}

// ServeGet handles GET /prayers/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "prayers.get")
	defer cancel()

	p, err := h.Svc.Get(ctx, id)
	if err != nil {
		h.fail(w, r, "get prayer failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, p)
}

// ServeSharing handles PUT /prayers/{id}/sharing. A prayer that does not
// exist is answered with 204.
func (h *Handler) ServeSharing(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}
	var req sharingRequest
	if err := uierrors.DecodeJSON(r, &req); err != nil {
		uierrors.BadRequest(w, "invalid JSON body")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "prayers.sharing")
	defer cancel()

	p, err := h.Svc.UpdateSharing(ctx, id, req.GroupIDs)
	if err != nil {
		h.fail(w, r, "update sharing failed", err)
		return
	}
	if p.ID.IsZero() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, p)
}

// ServeAnswered handles POST /prayers/{id}/answered.
func (h *Handler) ServeAnswered(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "prayers.answered")
	defer cancel()

	p, err := h.Svc.MarkAnswered(ctx, id)
	if err != nil {
		h.fail(w, r, "mark answered failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, p)
}

// ServeArchive handles POST /prayers/{id}/archive.
func (h *Handler) ServeArchive(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "prayers.archive")
	defer cancel()

	p, err := h.Svc.Archive(ctx, id)
	if err != nil {
		h.fail(w, r, "archive prayer failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, p)
}

// ServeDelete handles DELETE /prayers/{id}.
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "prayers.delete")
	defer cancel()

	if err := h.Svc.Delete(ctx, id); err != nil {
		h.fail(w, r, "delete prayer failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServePray handles POST /prayers/{id}/pray.
func (h *Handler) ServePray(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "prayers.pray")
	defer cancel()

	p, err := h.Svc.Pray(ctx, id)
	if err != nil {
		h.fail(w, r, "pray failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, p)
}

// ServeListUpdates handles GET /prayers/{id}/updates.
func (h *Handler) ServeListUpdates(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "prayers.updates.list")
	defer cancel()

	list, err := h.Svc.ListUpdates(ctx, id)
	if err != nil {
		h.fail(w, r, "list updates failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, list)
}

// ServeAddUpdate handles POST /prayers/{id}/updates.
func (h *Handler) ServeAddUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}
	var req contentRequest
	if err := uierrors.DecodeJSON(r, &req); err != nil {
		uierrors.BadRequest(w, "invalid JSON body")
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "prayers.updates.add")
	defer cancel()

	u, err := h.Svc.AddUpdate(ctx, id, req.Content)
	if err != nil {
		h.fail(w, r, "add update failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, u)
}

// ServeEditUpdate handles PUT /prayers/{id}/updates/{updateID}.
func (h *Handler) ServeEditUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}
	updateID, ok := objectIDParam(w, r, "updateID")
	if !ok {
		return
	}
	var req contentRequest
	if err := uierrors.DecodeJSON(r, &req); err != nil {
		uierrors.BadRequest(w, "invalid JSON body")
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "prayers.updates.edit")
	defer cancel()

	u, err := h.Svc.EditUpdate(ctx, id, updateID, req.Content)
	if err != nil {
		h.fail(w, r, "edit update failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, u)
}

// ServeDeleteUpdate handles DELETE /prayers/{id}/updates/{updateID}.
func (h *Handler) ServeDeleteUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}
	updateID, ok := objectIDParam(w, r, "updateID")
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "prayers.updates.delete")
	defer cancel()

	if err := h.Svc.DeleteUpdate(ctx, id, updateID); err != nil {
		h.fail(w, r, "delete update failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
