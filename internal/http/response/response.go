// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков и отображение доменных ошибок
// в HTTP‑статусы.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status — статус запроса ("OK" или "Error").
// Поле Error — текст ошибки (опционально, при неуспехе).
// Поле Data — данные ответа (опционально, при успехе).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse — структура ошибки для Swagger-документации.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "numeric", "len":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a 6-digit code", err.Field()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of: %s", err.Field(), err.Param()))
		case "min", "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is out of range", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}

var statuses = []struct {
	err    error
	status int
	msg    string
}{
	{models.ErrUnauthenticated, http.StatusUnauthorized, "invalid or expired session"},
	{models.ErrDuplicateEmail, http.StatusConflict, "email already registered"},
	{models.ErrDomainTaken, http.StatusConflict, "tenant domain already taken"},
	{models.ErrInvalidCode, http.StatusBadRequest, "invalid verification code"},
	{models.ErrExpiredCode, http.StatusGone, "verification code expired"},
	{models.ErrNotFound, http.StatusNotFound, "not found"},
	{models.ErrForbidden, http.StatusForbidden, "forbidden"},
	{models.ErrFeatureNotAvailable, http.StatusForbidden, "feature not available on current plan"},
	{models.ErrQuotaExceeded, http.StatusTooManyRequests, "quota exceeded"},
	{models.ErrResendTooSoon, http.StatusTooManyRequests, "code was sent recently"},
	{models.ErrUnknownProduct, http.StatusUnprocessableEntity, "unknown product"},
	{models.ErrUnknownFeatureKey, http.StatusNotFound, "unknown metered feature"},
	{models.ErrPurchaseCancelled, http.StatusConflict, "purchase cancelled"},
	{models.ErrPurchaseFailed, http.StatusPaymentRequired, "purchase failed"},
	{models.ErrDispatchFailure, http.StatusBadGateway, "external service unavailable"},
}

// StatusFor возвращает HTTP-статус и текст ответа для ошибки сервиса.
// Неизвестные ошибки дают 500 без подробностей.
func StatusFor(err error) (int, string) {
	for _, s := range statuses {
		if errors.Is(err, s.err) {
			return s.status, s.msg
		}
	}
	return http.StatusInternalServerError, "internal error"
}

// Fail пишет ответ с ошибкой сервиса.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := StatusFor(err)
	render.Status(r, status)
	render.JSON(w, r, Error(msg))
}

// BadRequest пишет 400 с сообщением.
func BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, Error(msg))
}

// Invalid пишет 422 с ошибками валидации.
func Invalid(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		BadRequest(w, r, "invalid request")
		return
	}
	render.Status(r, http.StatusUnprocessableEntity)
	render.JSON(w, r, ValidationError(verrs))
}
