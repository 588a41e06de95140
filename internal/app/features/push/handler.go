// internal/app/features/push/handler.go
package push

import (
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/prayerodyssey/internal/app/features/errors"
	tokenstore "github.com/dalemusser/prayerodyssey/internal/app/store/tokens"
	"github.com/dalemusser/prayerodyssey/internal/app/system/actor"
	"github.com/dalemusser/prayerodyssey/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler lets a signed-in user manage the push tokens of their devices.
type Handler struct {
	Tokens *tokenstore.Store
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(tokens *tokenstore.Store, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Tokens: tokens, ErrLog: errLog, Log: logger}
}

type registerRequest struct {
	Token string `json:"token"`
	tokenstore.Device
}

type registerResponse struct {
	Duplicate bool `json:"duplicate"`
	Swept     int  `json:"swept"`
	Evicted   int  `json:"evicted"`
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, actor.ErrNotAuthenticated):
		uierrors.Unauthorized(w)
	case errors.Is(err, tokenstore.ErrEmptyToken),
		errors.Is(err, tokenstore.ErrInvalidToken),
		errors.Is(err, tokenstore.ErrTokenTooLong):
		uierrors.BadRequest(w, err.Error())
	case errors.Is(err, tokenstore.ErrConflict):
		uierrors.WriteError(w, http.StatusConflict, "please retry")
	default:
		h.ErrLog.ServerError(w, r, msg, err)
	}
}

// ServeRegister handles POST /push/tokens.
func (h *Handler) ServeRegister(w http.ResponseWriter, r *http.Request) {
	a, err := actor.Require(r.Context())
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	var req registerRequest
	if err := uierrors.DecodeJSON(r, &req); err != nil {
		uierrors.BadRequest(w, "invalid JSON body")
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "push.register")
	defer cancel()

	res, err := h.Tokens.Register(ctx, a.UID, req.Token, req.Device)
	if err != nil {
		h.fail(w, r, "register push token failed", err)
		return
	}
	if len(res.Swept)+len(res.Evicted) > 0 {
		h.Log.Info("push tokens dropped on register",
			zap.String("uid", a.UID),
			zap.Int("swept", len(res.Swept)),
			zap.Int("evicted", len(res.Evicted)))
	}
	uierrors.WriteJSON(w, http.StatusOK, registerResponse{
		Duplicate: res.Duplicate,
		Swept:     len(res.Swept),
		Evicted:   len(res.Evicted),
	})
}

// ServeRemove handles DELETE /push/tokens/{token}.
func (h *Handler) ServeRemove(w http.ResponseWriter, r *http.Request) {
	a, err := actor.Require(r.Context())
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "push.remove")
	defer cancel()

	if err := h.Tokens.Remove(ctx, a.UID, chi.URLParam(r, "token")); err != nil {
		h.fail(w, r, "remove push token failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeClear handles DELETE /push/tokens, typically on sign-out.
func (h *Handler) ServeClear(w http.ResponseWriter, r *http.Request) {
	a, err := actor.Require(r.Context())
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "push.clear")
	defer cancel()

	if err := h.Tokens.Clear(ctx, a.UID); err != nil {
		h.fail(w, r, "clear push tokens failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
