package models

import "time"

// Order представляет ордер в жизненном цикле исполнения
type Order struct {
	ID            int        `json:"id" db:"id"`
	BrokerOrderID string     `json:"broker_order_id" db:"broker_order_id"` // идентификатор у брокера (уникальный)
	InstrumentID  string     `json:"instrument_id" db:"instrument_id"`
	Symbol        string     `json:"symbol" db:"symbol"`
	Side          string     `json:"side" db:"side"`                 // BUY, SELL
	OrderType     string     `json:"order_type" db:"order_type"`     // MARKET, LIMIT
	Quantity      int        `json:"quantity" db:"quantity"`
	Price         float64    `json:"price" db:"price"`
	TriggerPrice  float64    `json:"trigger_price,omitempty" db:"trigger_price"`
	Status        string     `json:"status" db:"status"` // PENDING, PLACED, EXECUTED, CANCELLED, REJECTED, MODIFIED
	Strategy      string     `json:"strategy" db:"strategy"`
	PortfolioType string     `json:"portfolio_type" db:"portfolio_type"`
	ErrorMessage  string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
	ExecutedAt    *time.Time `json:"executed_at,omitempty" db:"executed_at"`
}

// Статусы ордера
const (
	OrderStatusPending   = "PENDING"   // создан локально, ещё не отправлен брокеру
	OrderStatusPlaced    = "PLACED"    // принят брокером, ожидает исполнения
	OrderStatusExecuted  = "EXECUTED"  // исполнен полностью
	OrderStatusCancelled = "CANCELLED" // отменён
	OrderStatusRejected  = "REJECTED"  // отклонён брокером или риск-менеджером
	OrderStatusModified  = "MODIFIED"  // параметры изменены, ожидает исполнения
)

// Типы ордера
const (
	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"
)

// IsTerminal возвращает true для финальных статусов,
// из которых дальнейшие переходы невозможны
func IsTerminal(status string) bool {
	switch status {
	case OrderStatusExecuted, OrderStatusCancelled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// OrderRequest представляет запрос на размещение ордера от стратегии.
// Количество может быть скорректировано риск-менеджером до отправки брокеру.
type OrderRequest struct {
	InstrumentID  string  `json:"instrument_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	OrderType     string  `json:"order_type"`
	Quantity      int     `json:"quantity"`
	Price         float64 `json:"price,omitempty"`
	TriggerPrice  float64 `json:"trigger_price,omitempty"`
	Strategy      string  `json:"strategy"`
	PortfolioType string  `json:"portfolio_type"`
}

// ModifyRequest представляет запрос на изменение размещённого ордера
type ModifyRequest struct {
	Quantity     *int     `json:"quantity,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	TriggerPrice *float64 `json:"trigger_price,omitempty"`
}
