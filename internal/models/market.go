package models

import "time"

// Tick представляет одно обновление котировки от поставщика данных
type Tick struct {
	InstrumentID string    `json:"instrument_id"`
	Symbol       string    `json:"symbol"`
	LastPrice    float64   `json:"last_price"`
	Bid          float64   `json:"bid"`
	Ask          float64   `json:"ask"`
	Volume       float64   `json:"volume"`
	Timestamp    time.Time `json:"timestamp"`
}

// MarketState представляет оценку текущего состояния рынка
type MarketState struct {
	Regime        string    `json:"regime"` // BULLISH, BEARISH, SIDEWAYS, AMBIGUOUS
	Volatility    float64   `json:"volatility"`
	TrendStrength float64   `json:"trend_strength"`
	Timestamp     time.Time `json:"timestamp"`
}

// Режимы рынка
const (
	RegimeBullish   = "BULLISH"
	RegimeBearish   = "BEARISH"
	RegimeSideways  = "SIDEWAYS"
	RegimeAmbiguous = "AMBIGUOUS"
)
