// Package create сохраняет тренировку пользователя.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/fitcoach-identity/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/response"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/sl"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/coaching"
)

// Service создание тренировки.
type Service interface {
	CreateWorkout(ctx context.Context, user models.User, in coaching.WorkoutInput) (*models.Workout, error)
}

// Request тренировка.
type Request struct {
	Title           string    `json:"title" validate:"required,max=200"`
	Notes           string    `json:"notes" validate:"max=2000"`
	ScheduledAt     time.Time `json:"scheduled_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"min=1,max=600"`
}

// Handler обработчик создания тренировки.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// ServeHTTP godoc
// @Summary Новая тренировка
// @Tags workouts
// @Security BearerAuth
// @Param request body Request true "тренировка"
// @Success 201 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse "квота исчерпана"
// @Router /workouts [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.workouts.create"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFrom(r.Context())
	if !ok {
		response.Fail(w, r, models.ErrUnauthenticated)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.BadRequest(w, r, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Invalid(w, r, err)
		return
	}

	workout, err := h.service.CreateWorkout(r.Context(), *user, coaching.WorkoutInput{
		Title:           req.Title,
		Notes:           req.Notes,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		log.Info("workout rejected", slog.String("user_id", user.ID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(workout))
}
