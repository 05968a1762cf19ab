// Package broker предоставляет клиент для работы с API брокера.
package broker

import (
	"context"
	"errors"
	"time"
)

// Broker определяет контракт исполнительного клиента брокера.
//
// Семантика ошибок: любая вернувшаяся ошибка означает
// "операция НЕ ПОДТВЕРЖДЕНА", а не "операция не выполнена".
// Брокер мог принять запрос до обрыва соединения, поэтому
// вызывающий код сверяет фактический статус через GetOrderBook.
type Broker interface {
	// PlaceOrder размещает новый ордер
	PlaceOrder(ctx context.Context, params PlaceOrderParams) (*PlaceOrderResponse, error)

	// ModifyOrder изменяет параметры размещённого ордера
	ModifyOrder(ctx context.Context, brokerOrderID string, params ModifyOrderParams) error

	// CancelOrder отменяет размещённый ордер
	CancelOrder(ctx context.Context, brokerOrderID string) error

	// GetOrderBook возвращает все ордера аккаунта с текущими статусами
	GetOrderBook(ctx context.Context) ([]BrokerOrder, error)

	// GetPositions возвращает открытые позиции аккаунта
	GetPositions(ctx context.Context) ([]BrokerPosition, error)

	// GetTradeBook возвращает сделки за текущую сессию
	GetTradeBook(ctx context.Context) ([]BrokerTrade, error)

	// GetMarginUsage возвращает использование маржи в процентах
	GetMarginUsage(ctx context.Context) (float64, error)
}

// Ошибки брокерского клиента
var (
	// ErrAuthFailed - брокер вернул 401/403. Критическая ошибка:
	// устаревшая сессия обесценивает предположения о безопасности
	// открытых позиций, торговля должна быть остановлена.
	ErrAuthFailed = errors.New("broker authentication failed")

	// ErrRequestFailed - брокер вернул не-успешный HTTP статус
	ErrRequestFailed = errors.New("broker request failed")
)

// PlaceOrderParams - параметры размещения ордера
type PlaceOrderParams struct {
	InstrumentID string  `json:"instrument_id"`
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"`       // BUY, SELL
	OrderType    string  `json:"order_type"` // MARKET, LIMIT
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price,omitempty"`
	TriggerPrice float64 `json:"trigger_price,omitempty"`
}

// ModifyOrderParams - параметры изменения ордера (nil = без изменения)
type ModifyOrderParams struct {
	Quantity     *int     `json:"quantity,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	TriggerPrice *float64 `json:"trigger_price,omitempty"`
}

// PlaceOrderResponse - ответ брокера на размещение ордера
type PlaceOrderResponse struct {
	BrokerOrderID string `json:"broker_order_id"`
	Status        string `json:"status"`
}

// BrokerOrder - ордер в книге ордеров брокера
type BrokerOrder struct {
	BrokerOrderID      string  `json:"broker_order_id"`
	InstrumentID       string  `json:"instrument_id"`
	Symbol             string  `json:"symbol"`
	Side               string  `json:"side"`
	OrderStatus        string  `json:"order_status"` // статус в терминах брокера
	Quantity           int     `json:"quantity"`
	FilledQuantity     int     `json:"filled_quantity"`
	AverageTradedPrice float64 `json:"average_traded_price"`
}

// BrokerPosition - позиция на стороне брокера
type BrokerPosition struct {
	InstrumentID string  `json:"instrument_id"`
	Symbol       string  `json:"symbol"`
	Quantity     int     `json:"quantity"`
	AveragePrice float64 `json:"average_price"`
	LastPrice    float64 `json:"last_price"`
	PNL          float64 `json:"pnl"`
}

// BrokerTrade - сделка на стороне брокера
type BrokerTrade struct {
	TradeID       string    `json:"trade_id"`
	BrokerOrderID string    `json:"broker_order_id"`
	InstrumentID  string    `json:"instrument_id"`
	Quantity      int       `json:"quantity"`
	Price         float64   `json:"price"`
	Timestamp     time.Time `json:"timestamp"`
}
