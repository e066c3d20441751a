// Package identity ведёт жизненный цикл пользователя: регистрация, подтверждение
// email, вход по одноразовому коду и выход.
//
// Для каждого email существует не больше одного из состояний: нет записи,
// ожидающая подтверждения регистрация, подтверждённый пользователь.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/magabrotheeeer/fitcoach-identity/internal/config"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/jwt"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/metrics"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/sl"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/tenant"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/verification"
)

// Repository хранилище пользователей и ожидающих регистраций.
type Repository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// CreatePendingIdentity создаёт регистрацию. Если для email уже есть пользователь
	// или живая регистрация, возвращает models.ErrDuplicateEmail; истёкшая заменяется.
	CreatePendingIdentity(ctx context.Context, p models.PendingIdentity, now time.Time) error
	GetPendingIdentity(ctx context.Context, email string) (*models.PendingIdentity, error)
	ExtendPendingIdentity(ctx context.Context, email string, expiresAt time.Time) error
	// PromotePendingIdentity в одной транзакции удаляет регистрацию pendingID,
	// применяет enrollment и создаёт пользователя.
	PromotePendingIdentity(ctx context.Context, pendingID string, user models.User, enrollment models.Enrollment) error
}

// CodeIssuer выдаёт и проверяет одноразовые коды.
type CodeIssuer interface {
	IssueCode(ctx context.Context, email string) (models.VerificationCode, error)
	Validate(ctx context.Context, email, code string) (bool, verification.Reason, error)
	CanResend(ctx context.Context, email string) error
}

// TenantBinder выбирает арендатора для нового пользователя, ничего не записывая.
type TenantBinder interface {
	GetOrCreateForUser(ctx context.Context, user models.User, plan models.TenantPlan) (*tenant.Membership, error)
}

// Mailer внешний почтовый сервис.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) (bool, error)
}

// SessionStore хранилище активных сессий.
type SessionStore interface {
	Save(ctx context.Context, session models.Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// Deps зависимости Registry.
type Deps struct {
	Repo       Repository
	Codes      CodeIssuer
	LoginCodes CodeIssuer
	Tenants    TenantBinder
	Mailer     Mailer
	Sessions   SessionStore
	Tokens     jwt.Maker
	Clock      clockwork.Clock
}

// Registry реестр пользователей.
type Registry struct {
	Deps
	pendingTTL  time.Duration
	mailTimeout time.Duration
	log         *slog.Logger
}

// New создаёт Registry.
func New(deps Deps, cfg config.Registration, log *slog.Logger) *Registry {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	r := &Registry{
		Deps:        deps,
		pendingTTL:  cfg.PendingTTL,
		mailTimeout: cfg.MailTimeout,
		log:         log,
	}
	if r.pendingTTL <= 0 {
		r.pendingTTL = 7 * 24 * time.Hour
	}
	if r.mailTimeout <= 0 {
		r.mailTimeout = 5 * time.Second
	}
	return r
}

// RegisterResult итог регистрации. CodeDispatched == false означает, что письмо
// не ушло и клиенту стоит предложить повторную отправку.
type RegisterResult struct {
	Pending        models.PendingIdentity `json:"pending"`
	CodeDispatched bool                   `json:"code_dispatched"`
}

// Register создаёт ожидающую подтверждения регистрацию и отправляет код.
// Сбой отправки не откатывает регистрацию.
func (r *Registry) Register(ctx context.Context, email, name string, plan models.TenantPlan) (*RegisterResult, error) {
	const op = "identity.Register"
	email = models.NormalizeEmail(email)
	if plan == "" {
		plan = models.PlanIndividual
	}
	if !plan.Valid() {
		return nil, fmt.Errorf("%s: unknown plan %q", op, plan)
	}

	now := r.Clock.Now().UTC()
	pending := models.PendingIdentity{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Plan:      plan,
		CreatedAt: now,
		ExpiresAt: now.Add(r.pendingTTL),
	}
	if err := r.Repo.CreatePendingIdentity(ctx, pending, now); err != nil {
		if errors.Is(err, models.ErrDuplicateEmail) {
			metrics.RecordRegistration("duplicate")
			return nil, models.ErrDuplicateEmail
		}
		metrics.RecordRegistration("error")
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r.log.Info("pending identity created", slog.String("pending_id", pending.ID), slog.String("plan", string(plan)))

	res := &RegisterResult{Pending: pending}
	if err := r.sendCode(ctx, r.Codes, email, signupMail); err != nil {
		r.log.Warn("verification code not dispatched", slog.String("pending_id", pending.ID), sl.Err(err))
		metrics.RecordRegistration("dispatch_failure")
		return res, nil
	}
	res.CodeDispatched = true
	metrics.RecordRegistration("ok")
	return res, nil
}

// ResendCode выдаёт новый код для живой регистрации и продлевает её срок.
func (r *Registry) ResendCode(ctx context.Context, email string) (*models.PendingIdentity, error) {
	const op = "identity.ResendCode"
	email = models.NormalizeEmail(email)
	pending, err := r.Repo.GetPendingIdentity(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := r.Clock.Now()
	if !pending.IsLive(now) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err := r.Codes.CanResend(ctx, email); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pending.ExpiresAt = now.UTC().Add(r.pendingTTL)
	if err := r.Repo.ExtendPendingIdentity(ctx, email, pending.ExpiresAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := r.sendCode(ctx, r.Codes, email, signupMail); err != nil {
		r.log.Warn("verification code not dispatched", slog.String("pending_id", pending.ID), sl.Err(err))
		return pending, err
	}
	return pending, nil
}

// VerifyEmail проверяет код и превращает регистрацию в подтверждённого пользователя,
// привязанного к арендатору. Совпавший код удаляется до создания пользователя,
// поэтому один код не может подтвердить email дважды. Если сохранение не удалось,
// ни пользователь, ни новый арендатор не появляются, приглашения остаются,
// а регистрацию можно подтвердить новым кодом.
func (r *Registry) VerifyEmail(ctx context.Context, email, code string) (*models.User, error) {
	const op = "identity.VerifyEmail"
	email = models.NormalizeEmail(email)
	log := r.log.With(slog.String("op", op))

	pending, err := r.Repo.GetPendingIdentity(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		metrics.RecordVerification("expired")
		return nil, models.ErrExpiredCode
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := r.Clock.Now().UTC()
	if !pending.IsLive(now) {
		metrics.RecordVerification("expired")
		return nil, models.ErrExpiredCode
	}

	ok, reason, err := r.Codes.Validate(ctx, email, code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		metrics.RecordVerification(reason.String())
		log.Info("verification rejected", slog.String("pending_id", pending.ID), slog.String("reason", reason.String()))
		return nil, reason.Err()
	}

	user := models.User{
		ID:                 uuid.NewString(),
		Email:              email,
		Name:               pending.Name,
		CreatedAt:          now,
		Role:               models.RoleMember,
		IsEmailVerified:    true,
		EmailVerifiedAt:    &now,
		SubscriptionType:   models.SubscriptionFree,
		SubscriptionStatus: models.StatusActive,
	}

	membership, err := r.promote(ctx, pending, &user)
	if err != nil {
		log.Error("failed to promote pending identity", slog.String("pending_id", pending.ID), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.RecordVerification("verified")
	log.Info("email verified",
		slog.String("user_id", user.ID),
		slog.String("tenant_id", membership.Tenant.ID),
		slog.String("via", membership.Via),
	)
	return &user, nil
}

// promote привязывает пользователя к арендатору и сохраняет его вместе с изменениями
// арендаторов. Если домен нового арендатора успели занять, выбор повторяется один раз:
// второй проход находит победившего арендатора.
func (r *Registry) promote(ctx context.Context, pending *models.PendingIdentity, user *models.User) (*tenant.Membership, error) {
	for attempt := 0; ; attempt++ {
		membership, err := r.Tenants.GetOrCreateForUser(ctx, *user, pending.Plan)
		if err != nil {
			return nil, err
		}
		tenantID := membership.Tenant.ID
		user.TenantID = &tenantID
		user.Role = membership.Role
		if err := user.CheckInvariants(); err != nil {
			return nil, err
		}

		err = r.Repo.PromotePendingIdentity(ctx, pending.ID, *user, membership.Enrollment())
		if errors.Is(err, models.ErrDomainTaken) && attempt == 0 {
			r.log.Info("tenant domain claimed concurrently, rebinding", slog.String("pending_id", pending.ID))
			continue
		}
		if err != nil {
			return nil, err
		}
		return membership, nil
	}
}

// RequestLoginCode отправляет одноразовый код входа подтверждённому пользователю.
func (r *Registry) RequestLoginCode(ctx context.Context, email string) error {
	const op = "identity.RequestLoginCode"
	email = models.NormalizeEmail(email)
	user, err := r.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !user.IsEmailVerified {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err := r.LoginCodes.CanResend(ctx, email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := r.sendCode(ctx, r.LoginCodes, email, loginMail); err != nil {
		r.log.Warn("login code not dispatched", slog.String("user_id", user.ID), sl.Err(err))
		return err
	}
	return nil
}

// ConfirmLogin проверяет код входа и открывает сессию.
func (r *Registry) ConfirmLogin(ctx context.Context, email, code string) (*models.Session, error) {
	const op = "identity.ConfirmLogin"
	email = models.NormalizeEmail(email)
	ok, reason, err := r.LoginCodes.Validate(ctx, email, code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, reason.Err()
	}
	return r.Login(ctx, email)
}

// Login открывает сессию для подтверждённого пользователя. Вызывается только
// после того, как владение адресом доказано кодом входа.
func (r *Registry) Login(ctx context.Context, email string) (*models.Session, error) {
	const op = "identity.Login"
	user, err := r.Repo.GetUserByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !user.IsEmailVerified {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	subject := jwt.Subject{UserUID: user.ID, Email: user.Email, Role: string(user.Role)}
	if user.TenantID != nil {
		subject.TenantID = *user.TenantID
	}
	sessionID := uuid.NewString()
	token, claims, err := r.Tokens.GenerateToken(subject, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	session := models.Session{
		ID:        sessionID,
		Token:     token,
		UserID:    user.ID,
		TenantID:  user.TenantID,
		Role:      user.Role,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := r.Sessions.Save(ctx, session, session.ExpiresAt.Sub(session.IssuedAt)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r.log.Info("session opened", slog.String("user_id", user.ID), slog.String("session_id", sessionID))
	return &session, nil
}

// Logout закрывает сессию. Повторный вызов не ошибка.
func (r *Registry) Logout(ctx context.Context, sessionID string) error {
	const op = "identity.Logout"
	if err := r.Sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	r.log.Info("session closed", slog.String("session_id", sessionID))
	return nil
}

// Authenticate проверяет токен и наличие сессии.
func (r *Registry) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	const op = "identity.Authenticate"
	claims, err := r.Tokens.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrUnauthenticated, err)
	}
	session, err := r.Sessions.Get(ctx, claims.ID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUnauthenticated)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if session.UserID != claims.UserUID {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUnauthenticated)
	}
	return session, nil
}

// GetUser возвращает пользователя по идентификатору.
func (r *Registry) GetUser(ctx context.Context, id string) (*models.User, error) {
	const op = "identity.GetUser"
	user, err := r.Repo.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}
