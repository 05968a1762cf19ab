package models

import "time"

// Position представляет текущую позицию по инструменту
type Position struct {
	ID            int       `json:"id" db:"id"`
	InstrumentID  string    `json:"instrument_id" db:"instrument_id"`
	Symbol        string    `json:"symbol" db:"symbol"`
	Quantity      int       `json:"quantity" db:"quantity"` // знак задаёт направление: >0 лонг, <0 шорт
	AveragePrice  float64   `json:"average_price" db:"average_price"`
	CurrentPrice  float64   `json:"current_price" db:"current_price"`
	PNL           float64   `json:"pnl" db:"pnl"`
	UnrealizedPNL float64   `json:"unrealized_pnl" db:"unrealized_pnl"`
	Strategy      string    `json:"strategy" db:"strategy"`
	PortfolioType string    `json:"portfolio_type" db:"portfolio_type"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
}

// Exposure возвращает нотиональную экспозицию позиции.
// Всегда неотрицательна, знак количества не учитывается.
func (p *Position) Exposure() float64 {
	exposure := float64(p.Quantity) * p.AveragePrice
	if exposure < 0 {
		return -exposure
	}
	return exposure
}
