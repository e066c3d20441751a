// Package entitlement вычисляет набор функций и лимиты пользователя.
//
// Features, HasFeature и Limits чистые: они не обращаются к хранилищам и зависят
// только от переданных пользователя и арендатора. Resolver загружает арендатора
// и вызывает их.
package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

// tierLimits месячные лимиты уровней. Генерация планов доступна только уровням
// с unlimitedAICoaching, поэтому у free и basic квота ai_query нулевая.
var tierLimits = map[models.SubscriptionType]models.PlanLimits{
	models.SubscriptionFree: {
		MaxWorkoutsPerMonth:  models.LimitOf(10),
		MaxAIQueriesPerMonth: models.LimitOf(0),
	},
	models.SubscriptionBasic: {
		MaxWorkoutsPerMonth:  models.LimitOf(50),
		MaxAIQueriesPerMonth: models.LimitOf(0),
	},
	models.SubscriptionPremium: {
		MaxWorkoutsPerMonth:  models.Unlimited(),
		MaxAIQueriesPerMonth: models.LimitOf(100),
	},
	models.SubscriptionPro: {
		MaxWorkoutsPerMonth:  models.Unlimited(),
		MaxAIQueriesPerMonth: models.Unlimited(),
	},
}

// Features возвращает действующий набор функций.
//
// Член зала получает корпоративный набор независимо от личной подписки.
// Остальные получают набор своего уровня; арендатор, не являющийся корпоративным
// залом, может его только сузить своим списком FeaturesEnabled.
// Пользователь арендатора, запись которого не передана, получает пустой набор.
func Features(user models.User, tenant *models.Tenant) models.FeatureSet {
	if user.IsGymMember() {
		return models.EnterpriseFeatures()
	}
	features := models.TierFeatures(user.SubscriptionType)
	if user.TenantID == nil {
		return features
	}
	if tenant == nil {
		return models.NewFeatureSet()
	}
	if !tenant.IsGymEnterprise() {
		features = features.Intersect(models.NewFeatureSet(tenant.Settings.FeaturesEnabled...))
	}
	return features
}

// HasFeature проверяет доступ к функции. Для функций платных уровней требуется
// действующий статус подписки; у членов зала статус не проверяется.
func HasFeature(user models.User, tenant *models.Tenant, feature models.Feature) bool {
	if !Features(user, tenant).Has(feature) {
		return false
	}
	if user.IsGymMember() {
		return true
	}
	if models.IsSubscriptionGated(feature) {
		return user.SubscriptionStatus.IsValid()
	}
	return true
}

// Limits возвращает месячные лимиты. Платный уровень с недействующим статусом
// получает лимиты бесплатного.
func Limits(user models.User) models.PlanLimits {
	if user.IsGymMember() {
		return models.UnlimitedPlanLimits()
	}
	tier := user.SubscriptionType
	if !tier.Valid() || (tier.IsPaid() && !user.SubscriptionStatus.IsValid()) {
		tier = models.SubscriptionFree
	}
	return tierLimits[tier]
}

// TenantLookup источник арендаторов.
type TenantLookup interface {
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
}

// Entitlements результат разрешения прав для ответа клиенту.
type Entitlements struct {
	Features  []models.Feature  `json:"features"`
	Limits    models.PlanLimits `json:"limits"`
	TenantID  *string           `json:"tenant_id,omitempty"`
	GymMember bool              `json:"gym_member"`
}

// Resolver подгружает арендатора пользователя и вычисляет права.
type Resolver struct {
	tenants TenantLookup
}

// NewResolver создаёт Resolver.
func NewResolver(tenants TenantLookup) *Resolver {
	return &Resolver{tenants: tenants}
}

// tenantOf загружает арендатора пользователя. Пропавший арендатор не ошибка:
// возвращается nil, и Features отдаёт пустой набор.
func (r *Resolver) tenantOf(ctx context.Context, user models.User) (*models.Tenant, error) {
	if user.TenantID == nil {
		return nil, nil
	}
	t, err := r.tenants.GetTenant(ctx, *user.TenantID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return t, err
}

// Resolve возвращает набор функций и лимиты пользователя.
func (r *Resolver) Resolve(ctx context.Context, user models.User) (*Entitlements, error) {
	const op = "entitlement.Resolve"
	t, err := r.tenantOf(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Entitlements{
		Features:  Features(user, t).Slice(),
		Limits:    Limits(user),
		TenantID:  user.TenantID,
		GymMember: user.IsGymMember(),
	}, nil
}

// HasFeature проверяет доступ к функции с учётом арендатора пользователя.
func (r *Resolver) HasFeature(ctx context.Context, user models.User, feature models.Feature) (bool, error) {
	const op = "entitlement.HasFeature"
	t, err := r.tenantOf(ctx, user)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return HasFeature(user, t, feature), nil
}
