// Package monitoring содержит монитор безопасности: единственный
// фоновый цикл, который проверяет здоровье системы, рыночных данных
// и торговли, управляет circuit breaker'ами и режимом восстановления.
package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"quanthybrid/internal/config"
	"quanthybrid/internal/models"
	"quanthybrid/internal/state"
	"quanthybrid/pkg/utils"
)

// Теги предупреждений в торговом состоянии
const (
	WarnHighCPU        = "high_cpu_usage"
	WarnHighMemory     = "high_memory_usage"
	WarnHighDisk       = "high_disk_usage"
	WarnHighLatency    = "high_api_latency"
	WarnStaleQuotes    = "stale_quotes"
	WarnLowTickRate    = "low_tick_frequency"
	WarnWideSpread     = "wide_spread"
	WarnHighMargin     = "high_margin_usage"
	WarnTradeFrequency = "high_trade_frequency"
	WarnRapidOrders    = "rapid_orders"
	WarnRecoveryMode   = "recovery_mode"
)

// Status - снимок состояния монитора для API
type Status struct {
	BreakerLevel    int     `json:"circuit_breaker_level"`
	RecoveryMode    bool    `json:"recovery_mode"`
	DrawdownPercent float64 `json:"drawdown_percent"`
	ErrorStreak     int     `json:"error_streak"`
}

// SafetyMonitor выполняет периодические проверки безопасности.
//
// Секции проверок изолированы: ошибка одной секции логируется
// и не прерывает остальные. Серия подряд неудачных циклов
// (MaxErrorStreak) приводит к аварийной остановке: монитор,
// который не может проверить систему, не имеет права считать её здоровой.
type SafetyMonitor struct {
	cfg      config.MonitoringConfig
	breakers config.BreakerConfig
	recovery config.RecoveryConfig

	tradingState *state.TradingState
	riskSource   RiskSource
	brokerHealth BrokerHealth
	marketHealth MarketHealth
	trades       TradeHistory
	orders       OrderHistory
	canceller    EmergencyCanceller
	notifier     Notifier

	symbols []string

	mu           sync.Mutex
	breakerLevel int
	recoveryMode bool
	peakPNL      float64 // максимум дневного PNL для расчёта просадки
	errorStreak  int

	cpu  cpuSampler
	disk func() (float64, bool)

	logger *zap.Logger
}

// NewSafetyMonitor создаёт монитор безопасности
func NewSafetyMonitor(
	cfg config.MonitoringConfig,
	breakers config.BreakerConfig,
	recovery config.RecoveryConfig,
	ts *state.TradingState,
	riskSource RiskSource,
	brokerHealth BrokerHealth,
	marketHealth MarketHealth,
	trades TradeHistory,
	orders OrderHistory,
	canceller EmergencyCanceller,
	notifier Notifier,
	symbols []string,
	logger *zap.Logger,
) *SafetyMonitor {
	return &SafetyMonitor{
		cfg:          cfg,
		breakers:     breakers,
		recovery:     recovery,
		tradingState: ts,
		riskSource:   riskSource,
		brokerHealth: brokerHealth,
		marketHealth: marketHealth,
		trades:       trades,
		orders:       orders,
		canceller:    canceller,
		notifier:     notifier,
		symbols:      symbols,
		disk:         diskUsage,
		logger:       logger.Named("safety_monitor"),
	}
}

// Run запускает цикл проверок. Блокируется до отмены контекста.
func (m *SafetyMonitor) Run(ctx context.Context) {
	m.logger.Info("Монитор безопасности запущен",
		zap.Duration("check_interval", m.cfg.CheckInterval))

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Монитор безопасности остановлен")
			return
		case <-ticker.C:
			m.RunChecks(ctx)
		}
	}
}

// RunChecks выполняет один цикл проверок.
// Вынесен отдельно, чтобы цикл можно было прогнать синхронно в тестах.
func (m *SafetyMonitor) RunChecks(ctx context.Context) {
	failed := 0

	sections := []struct {
		name  string
		check func(context.Context) error
	}{
		{"system", m.checkSystemHealth},
		{"market", m.checkMarketConditions},
		{"trading", m.checkTradingSafety},
		{"recovery", m.manageRecoveryMode},
		{"breakers", m.manageCircuitBreakers},
	}

	for _, section := range sections {
		started := time.Now()
		err := section.check(ctx)
		CheckDuration.WithLabelValues(section.name).Observe(time.Since(started).Seconds())

		if err != nil {
			failed++
			CheckErrors.WithLabelValues(section.name).Inc()
			m.logger.Error("Ошибка секции проверок",
				zap.String("section", section.name),
				zap.Error(err))
		}
	}

	m.mu.Lock()
	if failed > 0 {
		m.errorStreak++
	} else {
		m.errorStreak = 0
	}
	streak := m.errorStreak
	m.mu.Unlock()

	if streak >= m.cfg.MaxErrorStreak {
		m.logger.Error("Серия неудачных циклов проверок",
			zap.Int("streak", streak))
		m.triggerEmergencyStop(ctx, "monitoring checks failing repeatedly")
	}

	m.publishMetrics()
}

// checkSystemHealth проверяет CPU, память, диск и латентность брокера
func (m *SafetyMonitor) checkSystemHealth(ctx context.Context) error {
	if cpuPercent, ok := m.cpu.sample(); ok {
		m.setWarning(WarnHighCPU, cpuPercent > m.cfg.MaxCPUPercent,
			fmt.Sprintf("Высокая загрузка CPU: %.1f%%", cpuPercent))
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if ms.Sys > 0 {
		memPercent := float64(ms.HeapAlloc) / float64(ms.Sys) * 100
		m.setWarning(WarnHighMemory, memPercent > m.cfg.MaxMemoryPercent,
			fmt.Sprintf("Высокое потребление памяти: %.1f%%", memPercent))
	}

	if diskPercent, ok := m.disk(); ok {
		m.setWarning(WarnHighDisk, diskPercent > m.cfg.MaxDiskPercent,
			fmt.Sprintf("Высокая занятость диска: %.1f%%", diskPercent))
	}

	latency := m.brokerHealth.AverageLatency()
	BrokerLatency.Set(float64(latency.Milliseconds()))
	m.setWarning(WarnHighLatency, latency > m.cfg.MaxLatency,
		fmt.Sprintf("Высокая латентность API брокера: %v", latency))

	return nil
}

// checkMarketConditions проверяет здоровье потока котировок
func (m *SafetyMonitor) checkMarketConditions(ctx context.Context) error {
	age := m.marketHealth.OldestQuoteAge()
	OldestQuoteAge.Set(age.Seconds())
	m.setWarning(WarnStaleQuotes, age > m.cfg.MaxQuoteStaleness,
		fmt.Sprintf("Устаревшие котировки: возраст %v", age))

	rate := m.marketHealth.TicksPerMinute()
	TickRate.Set(float64(rate))
	m.setWarning(WarnLowTickRate, rate < m.cfg.MinTickFrequency,
		fmt.Sprintf("Низкая частота тиков: %d в минуту", rate))

	spread := m.marketHealth.WidestSpreadPercent()
	WidestSpread.Set(spread)
	m.setWarning(WarnWideSpread, spread > m.cfg.MaxSpreadPercent,
		fmt.Sprintf("Широкий спред: %.2f%%", spread))

	return nil
}

// checkTradingSafety проверяет маржу, частоту сделок и вердикт риск-менеджера
func (m *SafetyMonitor) checkTradingSafety(ctx context.Context) error {
	margin, err := m.brokerHealth.GetMarginUsage(ctx)
	if err != nil {
		return fmt.Errorf("margin usage: %w", err)
	}
	MarginUsage.Set(margin)

	switch {
	case margin > m.cfg.MarginCritical:
		m.logger.Error("Критическое использование маржи",
			zap.Float64("margin_percent", margin))
		m.triggerEmergencyStop(ctx,
			fmt.Sprintf("critical margin usage: %.1f%%", margin))
	case margin > m.cfg.MarginWarning:
		m.setWarning(WarnHighMargin, true,
			fmt.Sprintf("Высокое использование маржи: %.1f%%", margin))
	default:
		m.setWarning(WarnHighMargin, false, "")
	}

	tradesLastHour, err := m.trades.CountSince(time.Now().Add(-time.Hour))
	if err != nil {
		return fmt.Errorf("trade count: %w", err)
	}
	m.setWarning(WarnTradeFrequency, tradesLastHour > m.cfg.MaxTradesPerHour,
		fmt.Sprintf("Высокая частота сделок: %d за час", tradesLastHour))

	rapid := false
	for _, symbol := range m.symbols {
		count, err := m.orders.CountSince(symbol, time.Now().Add(-m.cfg.MinOrderSpacing))
		if err != nil {
			return fmt.Errorf("order count for %s: %w", symbol, err)
		}
		if count > 1 {
			rapid = true
			m.logger.Warn("Слишком частые ордера по символу",
				zap.String("symbol", symbol),
				zap.Int("count", count))
		}
	}
	m.setWarning(WarnRapidOrders, rapid, "Слишком частые ордера")

	if m.riskSource.ShouldStopTrading() {
		m.triggerEmergencyStop(ctx, "risk manager stop condition")
	}

	return nil
}

// manageRecoveryMode управляет режимом восстановления после убытков.
//
// Вход: дневной убыток достиг порога активации.
// Выход: накоплено минимум сделок И win rate не ниже порога.
// Оба условия обязательны: высокий win rate на паре сделок
// ещё не доказывает восстановление.
func (m *SafetyMonitor) manageRecoveryMode(ctx context.Context) error {
	metrics := m.riskSource.Metrics()
	pnlPercent := metrics.DailyPNL / m.cfg.CapitalBase * 100

	m.mu.Lock()
	inRecovery := m.recoveryMode
	m.mu.Unlock()

	if !inRecovery {
		if pnlPercent <= m.recovery.ActivationLoss {
			m.mu.Lock()
			m.recoveryMode = true
			m.mu.Unlock()

			m.logger.Warn("Вход в режим восстановления",
				zap.Float64("daily_pnl_percent", pnlPercent))
			m.setWarning(WarnRecoveryMode, true,
				fmt.Sprintf("📉 Режим восстановления: дневной убыток %.2f%%", pnlPercent))
			m.applySizeFactor()
		}
		return nil
	}

	dayStart := startOfDay(time.Now())
	trades, err := m.trades.GetSince(dayStart)
	if err != nil {
		return fmt.Errorf("recovery trades: %w", err)
	}

	if len(trades) < m.recovery.MinTrades {
		return nil
	}

	pnls := make([]float64, len(trades))
	for i, trade := range trades {
		pnls[i] = trade.PNL
	}

	winRate := utils.WinRate(pnls)
	if winRate < m.recovery.MinWinRate {
		return nil
	}

	m.mu.Lock()
	m.recoveryMode = false
	m.mu.Unlock()

	m.logger.Info("Выход из режима восстановления",
		zap.Float64("win_rate", winRate),
		zap.Int("trades", len(trades)))
	m.setWarning(WarnRecoveryMode, false, "")
	m.notifier.NotifyType(models.NotificationTypeRisk,
		fmt.Sprintf("✅ Выход из режима восстановления: win rate %.0f%% на %d сделках",
			winRate*100, len(trades)),
		models.PriorityNormal)
	m.applySizeFactor()

	return nil
}

// manageCircuitBreakers управляет уровнем circuit breaker по просадке
// от пика дневного PNL.
//
// Эскалация: сразу на уровень, порог которого пробит.
// Понижение: не более чем на один уровень за цикл, только когда
// просадка вышла из порога текущего уровня и cooldown истёк.
// Понижение с уровня 3 НЕ снимает emergency stop: его снимает
// только оператор.
func (m *SafetyMonitor) manageCircuitBreakers(ctx context.Context) error {
	metrics := m.riskSource.Metrics()

	m.mu.Lock()
	if metrics.DailyPNL > m.peakPNL {
		m.peakPNL = metrics.DailyPNL
	}
	drawdownPercent := (m.peakPNL - metrics.DailyPNL) / m.cfg.CapitalBase * 100
	level := m.breakerLevel
	m.mu.Unlock()

	DrawdownPercent.Set(drawdownPercent)

	target := 0
	switch {
	case drawdownPercent >= m.breakers.Level3Drawdown:
		target = 3
	case drawdownPercent >= m.breakers.Level2Drawdown:
		target = 2
	case drawdownPercent >= m.breakers.Level1Drawdown:
		target = 1
	}

	if target > level {
		m.escalateBreaker(ctx, target, drawdownPercent)
		return nil
	}

	if level > 0 && target < level && !m.tradingState.InCooldown() {
		m.deescalateBreaker(level - 1)
	}

	return nil
}

// escalateBreaker поднимает уровень breaker'а и применяет его действие
func (m *SafetyMonitor) escalateBreaker(ctx context.Context, target int, drawdownPercent float64) {
	m.mu.Lock()
	m.breakerLevel = target
	m.mu.Unlock()

	m.logger.Warn("Circuit breaker сработал",
		zap.Int("level", target),
		zap.Float64("drawdown_percent", drawdownPercent))

	switch target {
	case 1:
		m.applySizeFactor()
		m.notifier.NotifyType(models.NotificationTypeBreaker,
			fmt.Sprintf("⚡ Circuit breaker уровень 1: просадка %.2f%%, размер ордеров снижен", drawdownPercent),
			models.PriorityHigh)
	case 2:
		m.tradingState.SetMode(state.ModeHedgeOnly)
		m.applySizeFactor()
		m.notifier.NotifyType(models.NotificationTypeBreaker,
			fmt.Sprintf("⚡ Circuit breaker уровень 2: просадка %.2f%%, только хеджирующие ордера", drawdownPercent),
			models.PriorityHigh)
	case 3:
		m.notifier.NotifyType(models.NotificationTypeBreaker,
			fmt.Sprintf("🚨 Circuit breaker уровень 3: просадка %.2f%%, торговля останавливается", drawdownPercent),
			models.PriorityCritical)
		m.triggerEmergencyStop(ctx,
			fmt.Sprintf("circuit breaker level 3: drawdown %.2f%%", drawdownPercent))
	}

	m.tradingState.ArmCooldown(m.breakers.Cooldown)
}

// deescalateBreaker понижает уровень breaker'а на один
// и применяет действие нового уровня
func (m *SafetyMonitor) deescalateBreaker(target int) {
	m.mu.Lock()
	m.breakerLevel = target
	m.mu.Unlock()

	m.logger.Info("Уровень circuit breaker понижен",
		zap.Int("level", target))

	if target < 2 {
		m.tradingState.SetMode(state.ModeNormal)
	}
	m.applySizeFactor()
}

// applySizeFactor пересчитывает действующий множитель размера позиций.
// Берётся минимум из множителя текущего уровня breaker'а
// и множителя режима восстановления.
func (m *SafetyMonitor) applySizeFactor() {
	m.mu.Lock()
	level := m.breakerLevel
	inRecovery := m.recoveryMode
	m.mu.Unlock()

	factor := 1.0
	switch level {
	case 1:
		factor = m.breakers.Level1SizeFactor
	case 2, 3:
		factor = m.breakers.Level2SizeFactor
	}

	if inRecovery && m.recovery.SizeFactor < factor {
		factor = m.recovery.SizeFactor
	}

	m.tradingState.SetSizeFactor(factor)
}

// triggerEmergencyStop аварийно останавливает торговлю.
// Идемпотентна: при уже активном emergency stop ничего не делает.
func (m *SafetyMonitor) triggerEmergencyStop(ctx context.Context, reason string) {
	if m.tradingState.IsEmergencyStop() {
		return
	}

	m.logger.Error("Аварийная остановка торговли", zap.String("reason", reason))
	m.tradingState.TriggerEmergencyStop()
	EmergencyStops.Inc()

	if err := m.canceller.CancelAll(ctx); err != nil {
		m.logger.Error("Не удалось отменить все ордера при аварийной остановке",
			zap.Error(err))
	}

	m.notifier.NotifyType(models.NotificationTypeEmergency,
		fmt.Sprintf("🚨 EMERGENCY STOP: %s", reason),
		models.PriorityCritical)
}

// setWarning устанавливает или снимает предупреждение.
// Уведомление уходит только при первом появлении предупреждения
// и только если rate gate не превышен.
func (m *SafetyMonitor) setWarning(tag string, active bool, message string) {
	if !active {
		m.tradingState.ClearWarning(tag)
		return
	}

	if !m.tradingState.HasWarning(tag) {
		status := m.notifier.CheckThrottleStatus(models.NotificationTypeRisk)
		if status.IsThrottled {
			m.logger.Warn("Уведомление подавлено rate gate",
				zap.String("warning", tag),
				zap.Int("sent_in_window", status.SentInWindow))
		} else {
			m.notifier.NotifyType(models.NotificationTypeRisk, message, models.PriorityHigh)
		}
	}

	m.tradingState.RaiseWarning(tag)
}

// publishMetrics выгружает текущее состояние в Prometheus
func (m *SafetyMonitor) publishMetrics() {
	metrics := m.riskSource.Metrics()
	DailyPNL.Set(metrics.DailyPNL)
	TotalExposure.Set(metrics.TotalExposure)
	OpenPositions.Set(float64(metrics.OpenPositions))

	snapshot := m.tradingState.GetSnapshot()
	SizeFactor.Set(snapshot.SizeFactor)
	ActiveWarnings.Set(float64(len(snapshot.Warnings)))

	PendingOrders.Set(float64(m.canceller.PendingCount()))

	m.mu.Lock()
	CircuitBreakerLevel.Set(float64(m.breakerLevel))
	if m.recoveryMode {
		RecoveryMode.Set(1)
	} else {
		RecoveryMode.Set(0)
	}
	m.mu.Unlock()
}

// Status возвращает снимок состояния монитора
func (m *SafetyMonitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.riskSource.Metrics()
	drawdown := (m.peakPNL - metrics.DailyPNL) / m.cfg.CapitalBase * 100
	if drawdown < 0 {
		drawdown = 0
	}

	return Status{
		BreakerLevel:    m.breakerLevel,
		RecoveryMode:    m.recoveryMode,
		DrawdownPercent: drawdown,
		ErrorStreak:     m.errorStreak,
	}
}

// startOfDay возвращает локальную полночь для указанного времени
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
