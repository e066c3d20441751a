// Package ledger применяет результаты покупок и восстановлений к подписке пользователя.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/metrics"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/month"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/sl"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

// Verifier внешний сервис проверки квитанций.
type Verifier interface {
	Purchase(ctx context.Context, userID, productID, payload string) (*models.Receipt, error)
	RestorePurchases(ctx context.Context, userID string) ([]models.Receipt, error)
}

// Repository сохраняет подписку вместе с квитанцией в одной транзакции.
type Repository interface {
	// SaveSubscription записывает квитанцию и подписку. Если квитанция с тем же
	// TransactionID уже записана, ничего не меняет и возвращает false.
	SaveSubscription(ctx context.Context, user models.User, receipt models.Receipt) (bool, error)
	// RestoreSubscription записывает подписку, даже если квитанция уже известна.
	RestoreSubscription(ctx context.Context, user models.User, receipt models.Receipt) error
}

// Ledger журнал подписок.
type Ledger struct {
	repo     Repository
	verifier Verifier
	catalog  Catalog
	clock    clockwork.Clock
	log      *slog.Logger
}

// New создаёт Ledger.
func New(repo Repository, verifier Verifier, catalog Catalog, clock clockwork.Clock, log *slog.Logger) *Ledger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Ledger{repo: repo, verifier: verifier, catalog: catalog, clock: clock, log: log}
}

// Purchase проверяет покупку у провайдера и применяет её.
// Если провайдер недоступен, возвращается DispatchError и состояние не меняется.
func (l *Ledger) Purchase(ctx context.Context, user models.User, productID, payload string) (*models.User, error) {
	const op = "ledger.Purchase"
	if _, err := l.catalog.Lookup(productID); err != nil {
		metrics.RecordPurchase("unknown_product")
		return nil, fmt.Errorf("%s: %w: %s", op, err, productID)
	}
	receipt, err := l.verifier.Purchase(ctx, user.ID, productID, payload)
	if err != nil {
		metrics.RecordPurchase("dispatch_failure")
		l.log.Error("receipt verification failed", slog.String("user_id", user.ID), sl.Err(err))
		if errors.Is(err, models.ErrDispatchFailure) {
			return nil, err
		}
		return nil, models.NewDispatchError(op, err)
	}
	return l.ApplyPurchase(ctx, user, productID, *receipt)
}

// ApplyPurchase перезаписывает подписку пользователя по квитанции: уровень, статус active,
// productID и срок (месяц или год от текущего момента). Это замена, а не слияние:
// прежнее состояние подписки не учитывается.
func (l *Ledger) ApplyPurchase(ctx context.Context, user models.User, productID string, receipt models.Receipt) (*models.User, error) {
	const op = "ledger.ApplyPurchase"
	product, err := l.catalog.Lookup(productID)
	if err != nil {
		metrics.RecordPurchase("unknown_product")
		return nil, fmt.Errorf("%s: %w: %s", op, err, productID)
	}
	switch receipt.State {
	case models.ReceiptPurchased:
	case models.ReceiptCancelled:
		metrics.RecordPurchase("cancelled")
		return nil, fmt.Errorf("%s: %w", op, models.ErrPurchaseCancelled)
	default:
		metrics.RecordPurchase("failed")
		return nil, fmt.Errorf("%s: %w: %s", op, models.ErrPurchaseFailed, receipt.Reason)
	}
	if !receipt.IsValid() || receipt.ProductID != productID {
		metrics.RecordPurchase("failed")
		return nil, fmt.Errorf("%s: %w: receipt does not match product", op, models.ErrPurchaseFailed)
	}

	updated := l.apply(user, product)
	applied, err := l.repo.SaveSubscription(ctx, updated, receipt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !applied {
		metrics.RecordPurchase("replayed")
		l.log.Warn("receipt already applied",
			slog.String("user_id", user.ID),
			slog.String("transaction_id", receipt.TransactionID),
		)
		return &user, nil
	}
	metrics.RecordPurchase("purchased")
	l.log.Info("subscription purchased",
		slog.String("user_id", user.ID),
		slog.String("product_id", productID),
		slog.String("previous_type", string(user.SubscriptionType)),
		slog.String("type", string(updated.SubscriptionType)),
	)
	return &updated, nil
}

func (l *Ledger) apply(user models.User, product models.Product) models.User {
	now := l.clock.Now().UTC()
	expiry := month.PeriodEnd(now, product.IsYearly)
	productID := product.ID
	user.SubscriptionType = product.Type
	user.SubscriptionStatus = models.StatusActive
	user.AppleSubscriptionID = &productID
	user.SubscriptionExpiryDate = &expiry
	return user
}

// Restore запрашивает у провайдера квитанции пользователя и применяет их.
func (l *Ledger) Restore(ctx context.Context, user models.User) (*models.User, int, error) {
	const op = "ledger.Restore"
	receipts, err := l.verifier.RestorePurchases(ctx, user.ID)
	if err != nil {
		metrics.RecordPurchase("dispatch_failure")
		l.log.Error("restore failed", slog.String("user_id", user.ID), sl.Err(err))
		if errors.Is(err, models.ErrDispatchFailure) {
			return nil, 0, err
		}
		return nil, 0, models.NewDispatchError(op, err)
	}
	return l.ApplyRestore(ctx, user, receipts)
}

// ApplyRestore применяет самую свежую действительную квитанцию известного продукта
// и возвращает число различных восстановленных продуктов. Без таких квитанций
// пользователь возвращается без изменений.
func (l *Ledger) ApplyRestore(ctx context.Context, user models.User, receipts []models.Receipt) (*models.User, int, error) {
	const op = "ledger.ApplyRestore"
	var latest *models.Receipt
	var product models.Product
	restored := make(map[string]struct{})
	for i := range receipts {
		r := receipts[i]
		if !r.IsValid() {
			continue
		}
		p, err := l.catalog.Lookup(r.ProductID)
		if err != nil {
			l.log.Warn("restore skipped unknown product", slog.String("product_id", r.ProductID))
			continue
		}
		restored[r.ProductID] = struct{}{}
		if latest == nil || r.PurchasedAt.After(latest.PurchasedAt) {
			latest = &receipts[i]
			product = p
		}
	}
	if latest == nil {
		metrics.RecordPurchase("restore_empty")
		return &user, 0, nil
	}

	updated := l.apply(user, product)
	if err := l.repo.RestoreSubscription(ctx, updated, *latest); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	metrics.RecordPurchase("restored")
	l.log.Info("subscription restored",
		slog.String("user_id", user.ID),
		slog.String("product_id", product.ID),
		slog.Int("restored", len(restored)),
	)
	return &updated, len(restored), nil
}
