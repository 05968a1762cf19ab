package models

import "time"

// Trade представляет исполненную сделку.
// Создаётся при переходе ордера в статус EXECUTED.
type Trade struct {
	ID              int       `json:"id" db:"id"`
	OrderID         string    `json:"order_id" db:"order_id"` // broker_order_id исходного ордера
	InstrumentID    string    `json:"instrument_id" db:"instrument_id"`
	Symbol          string    `json:"symbol" db:"symbol"`
	TransactionType string    `json:"transaction_type" db:"transaction_type"` // BUY, SELL
	Quantity        int       `json:"quantity" db:"quantity"`
	Price           float64   `json:"price" db:"price"` // цена исполнения
	Strategy        string    `json:"strategy" db:"strategy"`
	PortfolioType   string    `json:"portfolio_type" db:"portfolio_type"`
	PNL             float64   `json:"pnl" db:"pnl"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
}
