package ledger

import "github.com/magabrotheeeer/fitcoach-identity/internal/models"

// Catalog сопоставление productID магазина с уровнем подписки.
type Catalog map[string]models.Product

// DefaultCatalog продукты приложения.
func DefaultCatalog() Catalog {
	c := Catalog{}
	for _, tier := range []models.SubscriptionType{models.SubscriptionBasic, models.SubscriptionPremium, models.SubscriptionPro} {
		monthly := "fitcoach." + string(tier) + ".monthly"
		yearly := "fitcoach." + string(tier) + ".yearly"
		c[monthly] = models.Product{ID: monthly, Type: tier}
		c[yearly] = models.Product{ID: yearly, Type: tier, IsYearly: true}
	}
	return c
}

// Lookup возвращает продукт или models.ErrUnknownProduct.
func (c Catalog) Lookup(productID string) (models.Product, error) {
	p, ok := c[productID]
	if !ok {
		return models.Product{}, models.ErrUnknownProduct
	}
	return p, nil
}
