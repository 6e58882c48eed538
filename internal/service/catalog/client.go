package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
)

const defaultTimeout = 5 * time.Second

// productPayload — представление товара в ответах каталога.
type productPayload struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	PriceMinor    int64  `json:"price"`
	StockQuantity int32  `json:"stockQuantity"`
}

// envelope — общий конверт ответов внешних сервисов.
type envelope struct {
	StatusCode    int             `json:"statusCode"`
	StatusMessage string          `json:"statusMessage"`
	Result        json.RawMessage `json:"result"`
}

// Client — HTTP-клиент сервиса каталога/склада.
// Retry отсутствует намеренно: классификация сбоев — забота gate,
// тайминг повторов — забота reconciler-а.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Entry
}

// NewClient создаёт клиент с заданным базовым URL и таймаутом.
func NewClient(baseURL string, timeout time.Duration, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.WithField("component", "catalog-client")
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

// GetProduct возвращает товар по id.
func (c *Client) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	endpoint := c.baseURL + "/product/" + strconv.FormatInt(id, 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Product{}, fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Product{}, fmt.Errorf("call catalog service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.Product{}, domain.ErrProductNotFound
	case resp.StatusCode != http.StatusOK:
		return domain.Product{}, fmt.Errorf("catalog service returned status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return domain.Product{}, fmt.Errorf("decode catalog response: %w", err)
	}

	var payload productPayload
	if err := json.Unmarshal(env.Result, &payload); err != nil {
		return domain.Product{}, fmt.Errorf("decode catalog result: %w", err)
	}

	return toDomain(payload), nil
}

// AdjustStock выставляет новое абсолютное значение остатка товара.
func (c *Client) AdjustStock(ctx context.Context, id int64, newQuantity int32) error {
	body, err := json.Marshal(productPayload{ID: id, StockQuantity: newQuantity})
	if err != nil {
		return fmt.Errorf("marshal stock update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/product/updateQuantity", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build stock update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call catalog service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("catalog service returned status %d", resp.StatusCode)
	}
	return nil
}

// BatchGetProducts возвращает товары по списку id.
func (c *Client) BatchGetProducts(ctx context.Context, ids []int64) ([]domain.Product, error) {
	body, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("marshal product ids: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/product/products", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call catalog service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog service returned status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	var payloads []productPayload
	if err := json.Unmarshal(env.Result, &payloads); err != nil {
		return nil, fmt.Errorf("decode catalog result: %w", err)
	}

	products := make([]domain.Product, 0, len(payloads))
	for _, p := range payloads {
		products = append(products, toDomain(p))
	}
	return products, nil
}

// RestoreStock возвращает количества на склад при отмене заказа.
// Ключи карты сериализуются как строки — стандартное JSON-представление map[int64].
func (c *Client) RestoreStock(ctx context.Context, quantities map[int64]int32) error {
	body, err := json.Marshal(quantities)
	if err != nil {
		return fmt.Errorf("marshal restore map: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/product/cancel", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build restore request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call catalog service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("catalog service returned status %d", resp.StatusCode)
	}
	return nil
}

func toDomain(p productPayload) domain.Product {
	return domain.Product{
		ID:            p.ID,
		Name:          p.Name,
		Category:      p.Category,
		PriceMinor:    p.PriceMinor,
		StockQuantity: p.StockQuantity,
	}
}

var _ domain.CatalogService = (*Client)(nil)
