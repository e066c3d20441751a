// Package list отдаёт тренировки пользователя в его арендаторе.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/fitcoach-identity/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/response"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/sl"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Service чтение тренировок.
type Service interface {
	ListWorkouts(ctx context.Context, user models.User, limit, offset int) ([]models.Workout, error)
}

// Handler обработчик списка тренировок.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func intParam(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ServeHTTP godoc
// @Summary Список тренировок
// @Tags workouts
// @Security BearerAuth
// @Param limit query int false "по умолчанию 20, не больше 100"
// @Param offset query int false "смещение"
// @Success 200 {object} response.Response
// @Router /workouts [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.workouts.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFrom(r.Context())
	if !ok {
		response.Fail(w, r, models.ErrUnauthenticated)
		return
	}
	limit, ok := intParam(r, "limit", defaultLimit)
	if !ok {
		response.BadRequest(w, r, "invalid limit")
		return
	}
	offset, ok := intParam(r, "offset", 0)
	if !ok {
		response.BadRequest(w, r, "invalid offset")
		return
	}
	if limit == 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	workouts, err := h.service.ListWorkouts(r.Context(), *user, limit, offset)
	if err != nil {
		log.Error("failed to list workouts", slog.String("user_id", user.ID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	if workouts == nil {
		workouts = []models.Workout{}
	}
	render.JSON(w, r, response.StatusOKWithData(workouts))
}
