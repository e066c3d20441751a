// Package tenant управляет арендаторами: создание при подтверждении email,
// автоматическое присоединение по корпоративному домену и приглашения.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/sl"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

const tenantCacheTTL = time.Hour

// freeMailDomains домены публичных почтовых сервисов. Они не становятся доменом арендатора.
var freeMailDomains = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"outlook.com":    {},
	"hotmail.com":    {},
	"live.com":       {},
	"yahoo.com":      {},
	"icloud.com":     {},
	"me.com":         {},
	"aol.com":        {},
	"proton.me":      {},
	"protonmail.com": {},
	"yandex.ru":      {},
	"mail.ru":        {},
}

// IsFreeMailDomain сообщает, что домен принадлежит публичной почте.
func IsFreeMailDomain(domain string) bool {
	_, ok := freeMailDomains[domain]
	return ok
}

// Repository хранилище арендаторов и приглашений.
type Repository interface {
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	// GetTenantByDomain возвращает активного арендатора с доменом.
	GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error)
	CountTenantMembers(ctx context.Context, tenantID string) (int, error)
	CreateInvitation(ctx context.Context, inv models.Invitation) error
	// ListInvitations возвращает приглашения для email, старые первыми.
	ListInvitations(ctx context.Context, email string) ([]models.Invitation, error)
}

// Cache кэш записей арендаторов.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Mailer внешний почтовый сервис.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) (bool, error)
}

// Способы возникновения членства.
const (
	ViaInvitation = "invitation"
	ViaDomain     = "domain"
	ViaCreated    = "created"
)

// Membership результат привязки пользователя к арендатору.
// Членство в зале сюда не входит: номер членства выдаётся вне этого сервиса.
type Membership struct {
	Tenant *models.Tenant
	Role   models.Role
	Via    string
}

// Enrollment возвращает изменения, которые нужно сохранить вместе с пользователем.
func (m *Membership) Enrollment() models.Enrollment {
	var e models.Enrollment
	switch m.Via {
	case ViaCreated:
		e.NewTenant = m.Tenant
	case ViaInvitation:
		e.ConsumeInvitations = true
	}
	return e
}

// Directory справочник арендаторов.
type Directory struct {
	repo   Repository
	cache  Cache
	mailer Mailer
	clock  clockwork.Clock
	log    *slog.Logger
}

// NewDirectory создаёт справочник.
func NewDirectory(repo Repository, cache Cache, mailer Mailer, clock clockwork.Clock, log *slog.Logger) *Directory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Directory{repo: repo, cache: cache, mailer: mailer, clock: clock, log: log}
}

func cacheKey(id string) string {
	return "tenant:" + id
}

// GetTenant возвращает арендатора, используя кэш.
func (d *Directory) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	var result *models.Tenant
	found, err := d.cache.Get(cacheKey(id), &result)
	if err != nil {
		d.log.Warn("failed to read tenant from cache", slog.String("tenant_id", id), sl.Err(err))
	}
	if found && result != nil {
		return result, nil
	}
	result, err = d.repo.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.cache.Set(cacheKey(id), result, tenantCacheTTL); err != nil {
		d.log.Warn("failed to add tenant to cache", slog.String("tenant_id", id), sl.Err(err))
	}
	return result, nil
}

// GetOrCreateForUser выбирает арендатора для подтверждаемого пользователя.
// Порядок: принятое приглашение, затем корпоративный домен (только для плана enterprise),
// затем новый арендатор. Заполненные арендаторы пропускаются.
//
// Метод ничего не записывает: новый арендатор и удаление приглашений описаны
// в Membership.Enrollment и сохраняются вместе с пользователем.
func (d *Directory) GetOrCreateForUser(ctx context.Context, user models.User, plan models.TenantPlan) (*Membership, error) {
	const op = "tenant.GetOrCreateForUser"
	if !plan.Valid() {
		plan = models.PlanIndividual
	}

	m, err := d.acceptInvitation(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if m != nil {
		return m, nil
	}

	domain := models.EmailDomain(user.Email)
	claim := false
	if plan == models.PlanEnterprise && domain != "" && !IsFreeMailDomain(domain) {
		m, free, err := d.joinByDomain(ctx, domain)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if m != nil {
			return m, nil
		}
		claim = free
	}

	t := models.Tenant{
		ID:        uuid.NewString(),
		Name:      user.Name,
		Plan:      plan,
		IsActive:  true,
		Settings:  models.DefaultTenantSettings(plan),
		CreatedAt: d.clock.Now().UTC(),
	}
	if claim {
		t.Domain = &domain
	}
	d.log.Info("new tenant planned", slog.String("tenant_id", t.ID), slog.String("plan", string(t.Plan)),
		slog.Bool("domain_claimed", claim))
	return &Membership{Tenant: &t, Role: models.RoleOwner, Via: ViaCreated}, nil
}

func (d *Directory) acceptInvitation(ctx context.Context, email string) (*Membership, error) {
	invitations, err := d.repo.ListInvitations(ctx, email)
	if err != nil {
		return nil, err
	}
	for _, inv := range invitations {
		t, err := d.GetTenant(ctx, inv.TenantID)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ok, err := d.hasFreeSeat(ctx, t)
		if err != nil {
			return nil, err
		}
		if !ok || !t.IsActive {
			d.log.Info("invitation skipped", slog.String("tenant_id", t.ID), slog.Bool("active", t.IsActive))
			continue
		}
		d.log.Info("invitation accepted", slog.String("tenant_id", t.ID), slog.String("invited_by", inv.InvitedBy))
		return &Membership{Tenant: t, Role: models.RoleMember, Via: ViaInvitation}, nil
	}
	return nil, nil
}

// joinByDomain возвращает членство в арендаторе домена. free сообщает, что домен
// никем не занят и его можно закрепить за новым арендатором.
func (d *Directory) joinByDomain(ctx context.Context, domain string) (m *Membership, free bool, err error) {
	t, err := d.repo.GetTenantByDomain(ctx, domain)
	if errors.Is(err, models.ErrNotFound) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	ok, err := d.hasFreeSeat(ctx, t)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		d.log.Info("domain tenant is full", slog.String("tenant_id", t.ID))
		return nil, false, nil
	}
	d.log.Info("auto-joined tenant by domain", slog.String("tenant_id", t.ID))
	return &Membership{Tenant: t, Role: models.RoleMember, Via: ViaDomain}, false, nil
}

func (d *Directory) hasFreeSeat(ctx context.Context, t *models.Tenant) (bool, error) {
	if t.Settings.MaxUsers <= 0 {
		return true, nil
	}
	n, err := d.repo.CountTenantMembers(ctx, t.ID)
	if err != nil {
		return false, err
	}
	return n < t.Settings.MaxUsers, nil
}

// Invite записывает приглашение и отправляет письмо. Членство не создаётся:
// оно возникает, только когда приглашённый подтвердит email.
// Сбой почты возвращает DispatchError, приглашение при этом сохраняется.
func (d *Directory) Invite(ctx context.Context, email string, inviter models.User) (models.DispatchResult, error) {
	const op = "tenant.Invite"
	if inviter.TenantID == nil || !inviter.Role.CanInvite() {
		return models.DispatchResult{}, fmt.Errorf("%s: %w", op, models.ErrForbidden)
	}
	t, err := d.GetTenant(ctx, *inviter.TenantID)
	if err != nil {
		return models.DispatchResult{}, fmt.Errorf("%s: %w", op, err)
	}

	inv := models.Invitation{
		Email:     models.NormalizeEmail(email),
		TenantID:  t.ID,
		InvitedBy: inviter.ID,
		CreatedAt: d.clock.Now().UTC(),
	}
	if err := d.repo.CreateInvitation(ctx, inv); err != nil {
		return models.DispatchResult{}, fmt.Errorf("%s: %w", op, err)
	}

	subject := "Приглашение в " + t.Name
	body := fmt.Sprintf("<p>%s приглашает вас в <b>%s</b>.</p><p>Зарегистрируйтесь с этим адресом, чтобы присоединиться.</p>",
		html.EscapeString(inviter.Name), html.EscapeString(t.Name))
	delivered, err := d.mailer.Send(ctx, inv.Email, subject, body)
	if err != nil {
		d.log.Error("failed to send invitation", slog.String("tenant_id", t.ID), sl.Err(err))
		return models.DispatchResult{}, models.NewDispatchError(op, err)
	}
	d.log.Info("invitation sent", slog.String("tenant_id", t.ID), slog.Bool("delivered", delivered))
	return models.DispatchResult{Delivered: delivered}, nil
}
