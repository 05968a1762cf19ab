package broker

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"quanthybrid/internal/config"
	"quanthybrid/pkg/utils"
)

// client.go - HTTP клиент брокерского API
//
// Все запросы подписываются HMAC-SHA256 от timestamp + тела запроса.
// Таймауты обязательны: зависший запрос к брокеру не должен
// блокировать циклы мониторинга и исполнения.

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// размер скользящего окна для усреднения латентности
const latencyWindowSize = 1000

// Client - HTTP реализация интерфейса Broker
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string

	httpClient *http.Client
	logger     *zap.Logger

	// Скользящее окно латентности запросов для монитора безопасности
	latencyMu sync.Mutex
	latencies []float64 // миллисекунды
}

// NewClient создаёт клиент брокера с таймаутами из конфигурации
func NewClient(cfg config.BrokerConfig, logger *zap.Logger) *Client {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		logger:    logger.Named("broker"),
		latencies: make([]float64, 0, latencyWindowSize),
	}
}

// sign создаёт подпись запроса: HMAC-SHA256(timestamp + body)
func (c *Client) sign(timestamp, body string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(timestamp + body))
	return hex.EncodeToString(h.Sum(nil))
}

// doRequest выполняет подписанный запрос и возвращает тело ответа
func (c *Client) doRequest(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, error) {
	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("X-TIMESTAMP", timestamp)
	req.Header.Set("X-SIGNATURE", c.sign(timestamp, string(reqBody)))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.recordLatency(time.Since(start))

	if err != nil {
		return nil, fmt.Errorf("broker request %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.Error("Ошибка аутентификации брокера",
			zap.Int("status", resp.StatusCode),
			zap.String("endpoint", endpoint))
		return nil, ErrAuthFailed
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Warn("Брокер вернул ошибку",
			zap.Int("status", resp.StatusCode),
			zap.String("endpoint", endpoint),
			zap.ByteString("body", body))
		return nil, fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	return body, nil
}

// recordLatency добавляет замер в скользящее окно
func (c *Client) recordLatency(d time.Duration) {
	c.latencyMu.Lock()
	defer c.latencyMu.Unlock()

	c.latencies = append(c.latencies, float64(d.Milliseconds()))
	if len(c.latencies) > latencyWindowSize {
		c.latencies = c.latencies[1:]
	}
}

// AverageLatency возвращает среднюю латентность запросов
// по скользящему окну. Используется монитором безопасности.
func (c *Client) AverageLatency() time.Duration {
	c.latencyMu.Lock()
	defer c.latencyMu.Unlock()

	return time.Duration(utils.Mean(c.latencies)) * time.Millisecond
}

// PlaceOrder размещает новый ордер
func (c *Client) PlaceOrder(ctx context.Context, params PlaceOrderParams) (*PlaceOrderResponse, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/v1/orders", params)
	if err != nil {
		return nil, err
	}

	var resp PlaceOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse place order response: %w", err)
	}

	if resp.BrokerOrderID == "" {
		return nil, fmt.Errorf("%w: empty broker order id", ErrRequestFailed)
	}

	return &resp, nil
}

// ModifyOrder изменяет параметры размещённого ордера
func (c *Client) ModifyOrder(ctx context.Context, brokerOrderID string, params ModifyOrderParams) error {
	_, err := c.doRequest(ctx, http.MethodPut, "/v1/orders/"+brokerOrderID, params)
	return err
}

// CancelOrder отменяет размещённый ордер
func (c *Client) CancelOrder(ctx context.Context, brokerOrderID string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/v1/orders/"+brokerOrderID, nil)
	return err
}

// GetOrderBook возвращает все ордера аккаунта
func (c *Client) GetOrderBook(ctx context.Context) ([]BrokerOrder, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/orders", nil)
	if err != nil {
		return nil, err
	}

	var orders []BrokerOrder
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("failed to parse order book: %w", err)
	}

	return orders, nil
}

// GetPositions возвращает открытые позиции аккаунта
func (c *Client) GetPositions(ctx context.Context) ([]BrokerPosition, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/positions", nil)
	if err != nil {
		return nil, err
	}

	var positions []BrokerPosition
	if err := json.Unmarshal(body, &positions); err != nil {
		return nil, fmt.Errorf("failed to parse positions: %w", err)
	}

	return positions, nil
}

// GetTradeBook возвращает сделки за текущую сессию
func (c *Client) GetTradeBook(ctx context.Context) ([]BrokerTrade, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/trades", nil)
	if err != nil {
		return nil, err
	}

	var trades []BrokerTrade
	if err := json.Unmarshal(body, &trades); err != nil {
		return nil, fmt.Errorf("failed to parse trade book: %w", err)
	}

	return trades, nil
}

// GetMarginUsage возвращает использование маржи в процентах
func (c *Client) GetMarginUsage(ctx context.Context) (float64, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/account/margin", nil)
	if err != nil {
		return 0, err
	}

	var resp struct {
		MarginUsedPercent float64 `json:"margin_used_percent"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse margin usage: %w", err)
	}

	return resp.MarginUsedPercent, nil
}
