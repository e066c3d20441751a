// Package entitlements отдаёт функции и лимиты текущего пользователя.
package entitlements

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/fitcoach-identity/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/response"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/sl"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/entitlement"
)

// Service вычисление прав.
type Service interface {
	Resolve(ctx context.Context, user models.User) (*entitlement.Entitlements, error)
}

// Handler обработчик прав пользователя.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Права пользователя
// @Tags me
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /me/entitlements [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.me.entitlements"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFrom(r.Context())
	if !ok {
		response.Fail(w, r, models.ErrUnauthenticated)
		return
	}
	ents, err := h.service.Resolve(r.Context(), *user)
	if err != nil {
		log.Error("failed to resolve entitlements", slog.String("user_id", user.ID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(ents))
}
