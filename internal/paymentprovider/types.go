package paymentprovider

import "github.com/magabrotheeeer/fitcoach-identity/internal/models"

// PurchaseRequest запрос на проверку покупки.
type PurchaseRequest struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Payload   string `json:"payload,omitempty"`
}

// PurchaseResponse ответ сервиса проверки на покупку.
type PurchaseResponse struct {
	Receipt models.Receipt `json:"receipt"`
}

// RestoreRequest запрос на восстановление покупок пользователя.
type RestoreRequest struct {
	UserID string `json:"user_id"`
}

// RestoreResponse все квитанции пользователя, известные провайдеру.
type RestoreResponse struct {
	Receipts []models.Receipt `json:"receipts"`
}
