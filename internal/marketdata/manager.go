// Package marketdata принимает поток котировок и отслеживает
// здоровье рыночных данных: свежесть, частоту тиков, ширину спреда.
package marketdata

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"quanthybrid/internal/models"
	"quanthybrid/pkg/utils"
)

// глубина истории цен на инструмент
const priceHistorySize = 200

// Manager хранит последние котировки по инструментам
// и статистику потока тиков
type Manager struct {
	mu sync.RWMutex

	lastTicks map[string]models.Tick
	history   map[string][]float64 // последние цены для расчёта волатильности
	tickTimes []time.Time          // времена тиков для расчёта частоты

	logger *zap.Logger
}

// NewManager создаёт менеджер рыночных данных
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		lastTicks: make(map[string]models.Tick),
		history:   make(map[string][]float64),
		logger:    logger.Named("market_data"),
	}
}

// OnTick обрабатывает обновление котировки.
// Испорченные данные (отрицательные цена или объём) отклоняются
// до попадания в расчёты.
func (m *Manager) OnTick(tick models.Tick) error {
	if err := utils.ValidateQuote(tick.LastPrice, tick.Volume); err != nil {
		m.logger.Warn("Отклонена испорченная котировка",
			zap.String("symbol", tick.Symbol),
			zap.Error(err))
		return fmt.Errorf("invalid tick: %w", err)
	}

	if tick.Timestamp.IsZero() {
		tick.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastTicks[tick.Symbol] = tick

	prices := append(m.history[tick.Symbol], tick.LastPrice)
	if len(prices) > priceHistorySize {
		prices = prices[1:]
	}
	m.history[tick.Symbol] = prices

	m.tickTimes = append(m.pruneTickTimes(), tick.Timestamp)

	return nil
}

// LastTick возвращает последнюю котировку по символу
func (m *Manager) LastTick(symbol string) (models.Tick, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tick, ok := m.lastTicks[symbol]
	return tick, ok
}

// OldestQuoteAge возвращает возраст самой старой котировки.
// Используется монитором безопасности для проверки свежести данных.
// Без котировок возвращает 0.
func (m *Manager) OldestQuoteAge() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var oldest time.Duration
	for _, tick := range m.lastTicks {
		age := time.Since(tick.Timestamp)
		if age > oldest {
			oldest = age
		}
	}
	return oldest
}

// TicksPerMinute возвращает количество тиков за последнюю минуту
func (m *Manager) TicksPerMinute() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tickTimes = m.pruneTickTimes()
	return len(m.tickTimes)
}

// WidestSpreadPercent возвращает максимальную ширину спреда
// среди последних котировок
func (m *Manager) WidestSpreadPercent() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var widest float64
	for _, tick := range m.lastTicks {
		spread := utils.CalculateSpreadPercent(tick.Bid, tick.Ask)
		if spread > widest {
			widest = spread
		}
	}
	return widest
}

// Volatility возвращает волатильность инструмента как
// стандартное отклонение процентных изменений цены.
// При недостатке истории возвращает 0.
func (m *Manager) Volatility(symbol string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prices := m.history[symbol]
	if len(prices) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		returns = append(returns, (prices[i]-prices[i-1])/prices[i-1]*100)
	}

	if len(returns) == 0 {
		return 0
	}

	mean := utils.Mean(returns)
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance)
}

// History возвращает копию истории цен инструмента.
// Используется стратегиями для расчёта индикаторов.
func (m *Manager) History(symbol string) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prices := m.history[symbol]
	copied := make([]float64, len(prices))
	copy(copied, prices)
	return copied
}

// pruneTickTimes удаляет тики старше минуты.
// Вызывается под mutex.
func (m *Manager) pruneTickTimes() []time.Time {
	cutoff := time.Now().Add(-time.Minute)

	kept := m.tickTimes[:0]
	for _, ts := range m.tickTimes {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
