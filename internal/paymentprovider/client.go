// Package paymentprovider реализует клиента внешнего сервиса проверки квитанций.
// Тела запросов и ответов подписываются HMAC-SHA256 общим секретом.
package paymentprovider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

// SignatureHeader заголовок с подписью тела.
const SignatureHeader = "X-Signature"

var errBadSignature = errors.New("response signature mismatch")

// Client клиент сервиса проверки квитанций.
type Client struct {
	secret     []byte
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт клиента. Нулевой timeout заменяется на 10 секунд.
func NewClient(apiURL, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		secret:     []byte(secret),
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Sign возвращает hex-подпись тела.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(ctx context.Context, op, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(c.secret, body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.NewDispatchError(op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.NewDispatchError(op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.NewDispatchError(op, fmt.Errorf("unexpected status: %s", resp.Status))
	}
	if !hmac.Equal([]byte(resp.Header.Get(SignatureHeader)), []byte(Sign(c.secret, data))) {
		return models.NewDispatchError(op, errBadSignature)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return models.NewDispatchError(op, err)
	}
	return nil
}

// Purchase проверяет покупку productID пользователем.
func (c *Client) Purchase(ctx context.Context, userID, productID, payload string) (*models.Receipt, error) {
	const op = "paymentprovider.Purchase"
	var resp PurchaseResponse
	if err := c.do(ctx, op, "/purchases", PurchaseRequest{UserID: userID, ProductID: productID, Payload: payload}, &resp); err != nil {
		return nil, err
	}
	return &resp.Receipt, nil
}

// RestorePurchases возвращает все квитанции пользователя.
func (c *Client) RestorePurchases(ctx context.Context, userID string) ([]models.Receipt, error) {
	const op = "paymentprovider.RestorePurchases"
	var resp RestoreResponse
	if err := c.do(ctx, op, "/restore", RestoreRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}
	return resp.Receipts, nil
}
