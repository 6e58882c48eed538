package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
)

const defaultTimeout = 5 * time.Second

// userPayload — представление покупателя в ответе identity-сервиса.
type userPayload struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Address string `json:"address"`
}

// envelope — общий конверт ответов внешних сервисов.
type envelope struct {
	StatusCode    int             `json:"statusCode"`
	StatusMessage string          `json:"statusMessage"`
	Result        json.RawMessage `json:"result"`
}

// Client — HTTP-клиент identity-сервиса.
// Таймаут транспорта ограничивает зависший вызов; retry здесь нет принципиально.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Entry
}

// NewClient создаёт клиент с заданным базовым URL и таймаутом.
func NewClient(baseURL string, timeout time.Duration, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.WithField("component", "identity-client")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ResolveByEmail возвращает покупателя по email.
func (c *Client) ResolveByEmail(ctx context.Context, email string) (domain.User, error) {
	endpoint := fmt.Sprintf("%s/user/findByEmail?email=%s", c.baseURL, url.QueryEscape(email))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.User{}, fmt.Errorf("build identity request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.User{}, fmt.Errorf("call identity service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.User{}, domain.ErrUserNotFound
	case resp.StatusCode != http.StatusOK:
		return domain.User{}, fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return domain.User{}, fmt.Errorf("decode identity response: %w", err)
	}

	var payload userPayload
	if err := json.Unmarshal(env.Result, &payload); err != nil {
		return domain.User{}, fmt.Errorf("decode identity result: %w", err)
	}

	return domain.User{
		ID:      payload.ID,
		Email:   payload.Email,
		Name:    payload.Name,
		Role:    payload.Role,
		Address: payload.Address,
	}, nil
}

var _ domain.IdentityService = (*Client)(nil)
