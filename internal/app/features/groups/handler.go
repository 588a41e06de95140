// internal/app/features/groups/handler.go
package groups

import (
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/prayerodyssey/internal/app/features/errors"
	"github.com/dalemusser/prayerodyssey/internal/app/services/groupsvc"
	groupstore "github.com/dalemusser/prayerodyssey/internal/app/store/groups"
	"github.com/dalemusser/prayerodyssey/internal/app/system/actor"
	"github.com/dalemusser/prayerodyssey/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the group JSON API.
type Handler struct {
	Svc    *groupsvc.Service
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(svc *groupsvc.Service, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, ErrLog: errLog, Log: logger}
}

type createRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type inviteRequest struct {
	Invitees []string `json:"invitees"`
}

type inviteResponse struct {
	Invited int `json:"invited"`
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, actor.ErrNotAuthenticated):
		uierrors.Unauthorized(w)
	case errors.Is(err, groupsvc.ErrNotFound):
		uierrors.NotFound(w, "group not found")
	case errors.Is(err, groupsvc.ErrNotMember):
		uierrors.Forbidden(w, err.Error())
	case errors.Is(err, groupstore.ErrEmptyName):
		uierrors.BadRequest(w, err.Error())
	default:
		h.ErrLog.ServerError(w, r, msg, err)
	}
}

func groupID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.BadRequest(w, "invalid group id")
		return primitive.NilObjectID, false
	}
	return id, true
}

// ServeList handles GET /groups and returns the groups the actor belongs to.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "groups.list")
	defer cancel()

	list, err := h.Svc.ListMine(ctx)
	if err != nil {
		h.fail(w, r, "list groups failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, list)
}

// ServeCreate handles POST /groups.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := uierrors.DecodeJSON(r, &req); err != nil {
		uierrors.BadRequest(w, "invalid JSON body")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "groups.create")
	defer cancel()

	g, err := h.Svc.Create(ctx, req.Name, req.Description)
	if err != nil {
		h.fail(w, r, "create group failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, g)
}

// ServeGet handles GET /groups/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "groups.get")
	defer cancel()

	g, err := h.Svc.Get(ctx, id)
	if err != nil {
		h.fail(w, r, "get group failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, g)
}

// ServeJoin handles POST /groups/{id}/join. Joining twice is harmless.
func (h *Handler) ServeJoin(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "groups.join")
	defer cancel()

	g, err := h.Svc.Join(ctx, id)
	if err != nil {
		h.fail(w, r, "join group failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, g)
}

// ServeInvite handles POST /groups/{id}/invite.
func (h *Handler) ServeInvite(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	var req inviteRequest
	if err := uierrors.DecodeJSON(r, &req); err != nil {
		uierrors.BadRequest(w, "invalid JSON body")
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "groups.invite")
	defer cancel()

	n, err := h.Svc.Invite(ctx, id, req.Invitees)
	if err != nil {
		h.fail(w, r, "invite failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, inviteResponse{Invited: n})
}
