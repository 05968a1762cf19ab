package models

import "time"

// RiskMetrics представляет агрегированные риск-метрики по портфелю.
// Обновляются целиком при каждом пересчёте (полная замена, не инкремент).
type RiskMetrics struct {
	DailyPNL        float64   `json:"daily_pnl"`        // суммарный PNL по открытым позициям за день
	CurrentDrawdown float64   `json:"current_drawdown"` // худшая просадка среди стратегий (доля, 0.05 = 5%)
	TotalExposure   float64   `json:"total_exposure"`   // суммарная нотиональная экспозиция
	Volatility      float64   `json:"volatility"`       // текущая волатильность рынка
	TrendStrength   float64   `json:"trend_strength"`   // сила тренда (ADX-based)
	OpenPositions   int       `json:"open_positions"`
	LargestPosition int       `json:"largest_position"` // абсолютное количество крупнейшей позиции
	DailyTrades     int       `json:"daily_trades"`     // сделок с начала дня
	UpdatedAt       time.Time `json:"updated_at"`
}

// Decision представляет результат проверки ордера риск-менеджером
type Decision struct {
	Accepted         bool     `json:"accepted"`
	AdjustedQuantity int      `json:"adjusted_quantity"` // количество после корректировки на волатильность
	Reasons          []string `json:"reasons,omitempty"` // причины отклонения
}

// Причины отклонения ордера риск-менеджером.
// Порядок проверок фиксирован: первая сработавшая причина
// попадает в Decision.Reasons первой.
const (
	RejectTradingDisabled = "trading_disabled"
	RejectDailyLoss       = "daily_loss_limit"
	RejectDrawdown        = "drawdown_limit"
	RejectPositionLimit   = "position_limit"
	RejectWeakTrend       = "weak_trend"
	RejectHighVolatility  = "volatility_limit"
)
