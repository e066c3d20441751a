// Package planner клиент внешнего генератора планов тренировок.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

// PlanRequest параметры генерации.
type PlanRequest struct {
	UserID string                  `json:"user_id"`
	Tier   models.SubscriptionType `json:"tier"`
	Weeks  int                     `json:"weeks"`
	Goal   string                  `json:"goal,omitempty"`
}

// Session одна тренировка сгенерированного плана.
type Session struct {
	Title           string `json:"title"`
	Notes           string `json:"notes"`
	DayOffset       int    `json:"day_offset"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Plan ответ генератора.
type Plan struct {
	Sessions []Session `json:"sessions"`
}

// Client HTTP-клиент генератора.
type Client struct {
	url        string
	httpClient *http.Client
}

// New создаёт клиента с таймаутом запроса.
func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// Generate запрашивает план. Любая ошибка обращения возвращается как DispatchError.
func (c *Client) Generate(ctx context.Context, req PlanRequest) (*Plan, error) {
	const op = "planner.Generate"
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/plans", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, models.NewDispatchError(op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, models.NewDispatchError(op, fmt.Errorf("unexpected status: %s", resp.Status))
	}
	var plan Plan
	if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
		return nil, models.NewDispatchError(op, err)
	}
	return &plan, nil
}
