// Package logout закрывает текущую сессию.
package logout

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
)

// Service закрытие сессии.
type Service interface {
	Logout(ctx context.Context, sessionID string) error
}

// Handler обработчик выхода.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Выход
// @Tags auth
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	session, ok := middlewarectx.SessionFrom(r.Context())
	if !ok {
		response.Fail(w, r, models.ErrUnauthenticated)
		return
	}
	if err := h.service.Logout(r.Context(), session.ID); err != nil {
		log.Error("logout failed", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]string{"message": "logged out"}))
}
