// Package risk реализует проверку ордеров и расчёт размера позиций
// по лимитам капитала, волатильности, просадки и экспозиции.
package risk

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"quanthybrid/internal/config"
	"quanthybrid/internal/models"
	"quanthybrid/internal/state"
	"quanthybrid/pkg/utils"
)

// StrategyMetrics - метрики стратегии, передаваемые с каждым ордером
type StrategyMetrics struct {
	Volatility    float64 `json:"volatility"`
	TrendStrength float64 `json:"trend_strength"`
	MaxDrawdown   float64 `json:"max_drawdown"` // отрицательное значение, -0.05 = просадка 5%
}

// Manager - риск-менеджер.
//
// Карты positionLimits и perMetricDrawdowns заменяются целиком
// при каждом вызове UpdateMetrics / RecordStrategyDrawdown,
// инкрементальных мутаций нет.
type Manager struct {
	mu sync.RWMutex

	cfg          config.RiskConfig
	breakers     config.BreakerConfig
	tradingState *state.TradingState
	logger       *zap.Logger

	dailyPNL           float64
	positionLimits     map[string]int     // instrument_id -> текущее количество
	perMetricDrawdowns map[string]float64 // стратегия -> максимальная просадка
	metrics            models.RiskMetrics
}

// NewManager создаёт риск-менеджер
func NewManager(cfg config.RiskConfig, breakers config.BreakerConfig, ts *state.TradingState, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:                cfg,
		breakers:           breakers,
		tradingState:       ts,
		logger:             logger.Named("risk_manager"),
		positionLimits:     make(map[string]int),
		perMetricDrawdowns: make(map[string]float64),
	}
}

// Assess проверяет ордер против всех риск-лимитов.
//
// Чистая функция относительно входов: ордер не мутируется,
// скорректированное количество возвращается в Decision.
// Порядок проверок фиксирован:
//  1. торговля выключена
//  2. дневной лимит убытка
//  3. лимит просадки стратегии
//  4. лимит размера позиции по инструменту
//  5. недостаточная сила тренда
//  6. предельная волатильность
//
// Корректировка количества по волатильности (×0.5 / ×0.75)
// применяется до проверок 5-6, поэтому Decision.AdjustedQuantity
// может отличаться от запрошенного даже при отклонении.
func (m *Manager) Assess(order models.OrderRequest, metrics StrategyMetrics) models.Decision {
	m.mu.RLock()
	defer m.mu.RUnlock()

	decision := models.Decision{AdjustedQuantity: order.Quantity}

	// 1. Торговля должна быть включена
	if !m.tradingState.IsTradingEnabled() {
		m.logger.Warn("Ордер отклонён: торговля выключена",
			zap.String("symbol", order.Symbol))
		decision.Reasons = append(decision.Reasons, models.RejectTradingDisabled)
		return decision
	}

	// 2. Дневной лимит убытка
	if m.dailyPNL <= -m.cfg.MaxDailyLoss {
		m.logger.Warn("Ордер отклонён: достигнут дневной лимит убытка",
			zap.Float64("daily_pnl", m.dailyPNL),
			zap.Float64("max_daily_loss", m.cfg.MaxDailyLoss))
		decision.Reasons = append(decision.Reasons, models.RejectDailyLoss)
		return decision
	}

	// 3. Лимит просадки стратегии
	if metrics.MaxDrawdown <= -m.cfg.MaxDrawdown {
		m.logger.Warn("Ордер отклонён: превышен лимит просадки",
			zap.Float64("drawdown", metrics.MaxDrawdown),
			zap.Float64("max_drawdown", m.cfg.MaxDrawdown))
		decision.Reasons = append(decision.Reasons, models.RejectDrawdown)
		return decision
	}

	// 4. Лимит размера позиции: текущая + запрошенная
	currentPosition := m.positionLimits[order.InstrumentID]
	newPosition := currentPosition + order.Quantity
	if abs(newPosition) > m.cfg.MaxPositionSize {
		m.logger.Warn("Ордер отклонён: превышен лимит размера позиции",
			zap.String("instrument_id", order.InstrumentID),
			zap.Int("current", currentPosition),
			zap.Int("requested", order.Quantity),
			zap.Int("max_position_size", m.cfg.MaxPositionSize))
		decision.Reasons = append(decision.Reasons, models.RejectPositionLimit)
		return decision
	}

	// Корректировка количества по волатильности.
	// Применяется и на путях, которые в итоге отклоняют ордер.
	switch {
	case metrics.Volatility > m.cfg.HighVolatility:
		decision.AdjustedQuantity = int(float64(decision.AdjustedQuantity) * 0.5)
		m.logger.Info("Количество уменьшено из-за высокой волатильности",
			zap.Float64("volatility", metrics.Volatility),
			zap.Int("adjusted_quantity", decision.AdjustedQuantity))
	case metrics.Volatility > m.cfg.MediumVolatility:
		decision.AdjustedQuantity = int(float64(decision.AdjustedQuantity) * 0.75)
		m.logger.Info("Количество уменьшено из-за повышенной волатильности",
			zap.Float64("volatility", metrics.Volatility),
			zap.Int("adjusted_quantity", decision.AdjustedQuantity))
	}

	// 5. Сила тренда
	if metrics.TrendStrength < m.cfg.MinTrendStrength {
		m.logger.Warn("Ордер отклонён: недостаточная сила тренда",
			zap.Float64("trend_strength", metrics.TrendStrength),
			zap.Float64("min_trend_strength", m.cfg.MinTrendStrength))
		decision.Reasons = append(decision.Reasons, models.RejectWeakTrend)
		return decision
	}

	// 6. Предельная волатильность
	if metrics.Volatility > m.cfg.MaxVolatility {
		m.logger.Warn("Ордер отклонён: предельная волатильность",
			zap.Float64("volatility", metrics.Volatility),
			zap.Float64("max_volatility", m.cfg.MaxVolatility))
		decision.Reasons = append(decision.Reasons, models.RejectHighVolatility)
		return decision
	}

	decision.Accepted = true
	return decision
}

// ValidateOrder проверяет ордер и уменьшает order.Quantity на месте
// при корректировке по волатильности.
//
// Контракт для вызывающего кода: после вызова нужно перечитать
// order.Quantity, возвращаемый bool ничего не говорит о том,
// была ли корректировка.
//
// Любая внутренняя паника подавляется и трактуется как отклонение
// (fail closed).
func (m *Manager) ValidateOrder(order *models.OrderRequest, metrics StrategyMetrics) (valid bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Паника при валидации ордера, ордер отклонён",
				zap.Any("panic", r))
			valid = false
		}
	}()

	decision := m.Assess(*order, metrics)
	order.Quantity = decision.AdjustedQuantity
	return decision.Accepted
}

// PositionSize рассчитывает размер позиции с учётом риск-параметров.
//
// Базовый размер (максимальный размер позиции) масштабируется
// тремя независимыми факторами:
//   - волатильность: min(1, volatility_base / volatility)
//   - капитал: min(1, max_capital_per_trade / нормированный нотионал)
//   - просадка: max(0.2, 1 + drawdown / max_drawdown)
//
// и множителем из TradingState (circuit breaker / recovery).
// Результат округляется вниз и ограничивается минимальным размером.
// При внутренней ошибке возвращается минимальный размер (fail small).
func (m *Manager) PositionSize(instrumentID string, price float64, metrics StrategyMetrics) (size int) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Паника при расчёте размера позиции",
				zap.Any("panic", r))
			size = m.cfg.MinPositionSize
		}
	}()

	m.mu.RLock()
	defer m.mu.RUnlock()

	baseSize := float64(m.cfg.MaxPositionSize)

	// Фактор волатильности
	volatilityFactor := 1.0
	if metrics.Volatility > 0 {
		volatilityFactor = utils.Clamp(m.cfg.VolatilityBase/metrics.Volatility, 0, 1)
	}

	// Фактор капитала: нотионал сделки нормируется к базовому размеру
	notional := price * baseSize / 100.0
	if notional < 1e-9 {
		notional = 1e-9
	}
	capitalFactor := utils.Clamp(m.cfg.MaxCapitalPerTrade/notional, 0, 1)

	// Фактор просадки: линейное снижение с полом 20% от базового размера
	drawdownFactor := 1.0 + metrics.MaxDrawdown/m.cfg.MaxDrawdown
	if drawdownFactor < 0.2 {
		drawdownFactor = 0.2
	}

	// Множитель из TradingState (reduce_size, режим восстановления)
	stateFactor := m.tradingState.SizeFactor()

	size = utils.FloorToInt(baseSize * volatilityFactor * capitalFactor * drawdownFactor * stateFactor)

	if size < m.cfg.MinPositionSize {
		size = m.cfg.MinPositionSize
	}

	return size
}

// UpdateMetrics пересчитывает риск-метрики по текущим позициям и сделкам.
//
// Полная замена: вызывающий код обязан передавать ПОЛНЫЕ наборы
// позиций и сделок, а не дельту.
// Дневной PNL считается по PNL позиций (реализованный + нереализованный),
// а не по PNL сделок.
func (m *Manager) UpdateMetrics(positions []*models.Position, trades []*models.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var dailyPNL, totalExposure float64
	largestPosition := 0
	limits := make(map[string]int, len(positions))

	for _, pos := range positions {
		dailyPNL += pos.PNL
		totalExposure += pos.Exposure()
		limits[pos.InstrumentID] = pos.Quantity

		if abs(pos.Quantity) > largestPosition {
			largestPosition = abs(pos.Quantity)
		}
	}

	m.dailyPNL = dailyPNL
	m.positionLimits = limits
	m.metrics = models.RiskMetrics{
		DailyPNL:        dailyPNL,
		CurrentDrawdown: m.worstDrawdownLocked(),
		TotalExposure:   totalExposure,
		OpenPositions:   len(positions),
		LargestPosition: largestPosition,
		DailyTrades:     len(trades),
		UpdatedAt:       time.Now(),
	}

	m.logger.Debug("Риск-метрики обновлены",
		zap.Float64("daily_pnl", dailyPNL),
		zap.Float64("total_exposure", totalExposure),
		zap.Int("open_positions", len(positions)),
		zap.Int("largest_position", largestPosition),
		zap.Int("daily_trades", len(trades)))
}

// worstDrawdownLocked возвращает худшую просадку среди стратегий
// как положительную долю. Вызывается под мьютексом.
func (m *Manager) worstDrawdownLocked() float64 {
	worst := 0.0
	for _, drawdown := range m.perMetricDrawdowns {
		if drawdown < worst {
			worst = drawdown
		}
	}
	return -worst
}

// RecordStrategyDrawdown фиксирует максимальную просадку стратегии.
// Используется ShouldStopTrading для проверки лимита по каждой стратегии,
// худшее значение попадает в снимок метрик.
func (m *Manager) RecordStrategyDrawdown(strategy string, drawdown float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.perMetricDrawdowns[strategy] = drawdown
	m.metrics.CurrentDrawdown = m.worstDrawdownLocked()
}

// ShouldStopTrading возвращает true если торговлю нужно остановить.
//
// Условия остановки:
//   - дневной PNL пробил худший порог circuit breaker'а
//   - просадка любой стратегии превысила лимит
//   - суммарная экспозиция превысила максимум
//
// При внутренней ошибке возвращает true (fail safe).
func (m *Manager) ShouldStopTrading() (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Паника при проверке условий остановки, торговля останавливается",
				zap.Any("panic", r))
			stop = true
		}
	}()

	m.mu.RLock()
	defer m.mu.RUnlock()

	// Худший порог circuit breaker'а по дневному убытку
	if m.dailyPNL <= -m.breakers.Level3Drawdown {
		m.logger.Warn("Достигнут дневной лимит убытка, торговля останавливается",
			zap.Float64("daily_pnl", m.dailyPNL))
		return true
	}

	// Лимит просадки по каждой стратегии
	for strategy, drawdown := range m.perMetricDrawdowns {
		if drawdown <= -m.cfg.MaxDrawdown {
			m.logger.Warn("Достигнут лимит просадки стратегии, торговля останавливается",
				zap.String("strategy", strategy),
				zap.Float64("drawdown", drawdown))
			return true
		}
	}

	// Лимит суммарной экспозиции
	if m.metrics.TotalExposure > m.cfg.MaxTotalExposure {
		m.logger.Warn("Достигнут лимит экспозиции, торговля останавливается",
			zap.Float64("total_exposure", m.metrics.TotalExposure),
			zap.Float64("max_total_exposure", m.cfg.MaxTotalExposure))
		return true
	}

	return false
}

// DailyPNL возвращает текущий дневной PNL
func (m *Manager) DailyPNL() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.dailyPNL
}

// Metrics возвращает снимок текущих риск-метрик
func (m *Manager) Metrics() models.RiskMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.metrics
}

// SetMarketConditions обновляет волатильность и силу тренда
// в снимке метрик (для API и уведомлений)
func (m *Manager) SetMarketConditions(volatility, trendStrength float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics.Volatility = volatility
	m.metrics.TrendStrength = trendStrength
}

// String возвращает краткое описание состояния для логов
func (m *Manager) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return fmt.Sprintf("risk{daily_pnl=%.2f, exposure=%.2f, positions=%d}",
		m.dailyPNL, m.metrics.TotalExposure, m.metrics.OpenPositions)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
