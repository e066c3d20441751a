// Package middlewarectx содержит HTTP middleware: проверку сессии по JWT
// и ограничение частоты запросов к открытым ручкам.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/fitcoach-identity/internal/http/response"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/sl"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// SessionKey ключ сессии в контексте.
	SessionKey Key = "session"
	// UserKey ключ пользователя в контексте.
	UserKey Key = "user"
)

// Authenticator проверяет токен и загружает пользователя сессии.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Session, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// JWTMiddleware проверяет Bearer-токен, наличие сессии и кладёт в контекст
// сессию и актуальную запись пользователя.
func JWTMiddleware(auth Authenticator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Debug("missing or invalid authorization header")
				response.Fail(w, r, models.ErrUnauthenticated)
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")

			session, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				log.Info("authentication failed", sl.Err(err))
				response.Fail(w, r, err)
				return
			}
			user, err := auth.GetUser(r.Context(), session.UserID)
			if err != nil {
				log.Error("failed to load session user", slog.String("user_id", session.UserID), sl.Err(err))
				response.Fail(w, r, models.ErrUnauthenticated)
				return
			}

			ctx := context.WithValue(r.Context(), SessionKey, session)
			ctx = context.WithValue(ctx, UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFrom возвращает сессию из контекста.
func SessionFrom(ctx context.Context) (*models.Session, bool) {
	s, ok := ctx.Value(SessionKey).(*models.Session)
	return s, ok && s != nil
}

// UserFrom возвращает пользователя из контекста.
func UserFrom(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(UserKey).(*models.User)
	return u, ok && u != nil
}
