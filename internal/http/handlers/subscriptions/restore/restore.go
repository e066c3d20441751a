// Package restore восстанавливает покупки пользователя.
package restore

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

// Service восстановление покупок.
type Service interface {
	Restore(ctx context.Context, user models.User) (*models.User, int, error)
}

// Result пользователь после восстановления и число применённых квитанций.
type Result struct {
	User     *models.User `json:"user"`
	Restored int          `json:"restored"`
}

// Handler обработчик восстановления.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Восстановление покупок
// @Tags subscriptions
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 502 {object} response.ErrorResponse
// @Router /subscriptions/restore [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscriptions.restore"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFrom(r.Context())
	if !ok {
		response.Fail(w, r, models.ErrUnauthenticated)
		return
	}

	updated, n, err := h.service.Restore(r.Context(), *user)
	if err != nil {
		log.Info("restore failed", slog.String("user_id", user.ID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(Result{User: updated, Restored: n}))
}
