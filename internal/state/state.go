package state

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// state.go - глобальное торговое состояние системы
//
// TradingState - единственный разделяемый объект, который мутируют
// все компоненты: риск-менеджер, монитор безопасности, исполнение.
// Все методы потокобезопасны (sync.RWMutex).
//
// Ключевой инвариант: торговля НИКОГДА не считается включённой
// при активном emergency stop. IsTradingEnabled вычисляется как
// tradingEnabled && !emergencyStop, а не хранится отдельным флагом.

// Режимы торговли
const (
	ModeNormal    = "normal"     // обычный режим
	ModeHedgeOnly = "hedge_only" // разрешены только хеджирующие ордера
)

// Имена компонентов системы
const (
	ComponentMarketData     = "market_data"
	ComponentRiskManager    = "risk_manager"
	ComponentOrderManager   = "order_manager"
	ComponentStrategyEngine = "strategy_engine"
)

// TradingState хранит глобальное состояние торговли.
// Создаётся один раз в main и передаётся всем компонентам.
type TradingState struct {
	mu sync.RWMutex

	tradingEnabled bool
	emergencyStop  bool

	componentStatus map[string]bool
	strategyStatus  map[string]bool

	warnings map[string]time.Time // активные предупреждения: тег -> время установки

	sizeFactor    float64   // множитель размера позиций (circuit breaker / recovery)
	mode          string    // normal или hedge_only
	cooldownUntil time.Time // окно подавления после срабатывания breaker'а

	logger *zap.Logger
}

// Snapshot - снимок состояния для API и уведомлений
type Snapshot struct {
	TradingEnabled  bool            `json:"trading_enabled"`
	EmergencyStop   bool            `json:"emergency_stop"`
	Mode            string          `json:"mode"`
	SizeFactor      float64         `json:"size_factor"`
	ComponentStatus map[string]bool `json:"component_status"`
	StrategyStatus  map[string]bool `json:"strategy_status"`
	Warnings        []string        `json:"warnings"`
	CooldownUntil   *time.Time      `json:"cooldown_until,omitempty"`
}

// NewTradingState создаёт состояние с выключенной торговлей
// и неготовыми компонентами
func NewTradingState(logger *zap.Logger) *TradingState {
	return &TradingState{
		componentStatus: map[string]bool{
			ComponentMarketData:     false,
			ComponentRiskManager:    false,
			ComponentOrderManager:   false,
			ComponentStrategyEngine: false,
		},
		strategyStatus: make(map[string]bool),
		warnings:       make(map[string]time.Time),
		sizeFactor:     1.0,
		mode:           ModeNormal,
		logger:         logger.Named("trading_state"),
	}
}

// EnableTrading включает торговлю.
//
// Возвращает false если хотя бы один компонент не готов
// или активен emergency stop.
func (s *TradingState) EnableTrading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emergencyStop {
		s.logger.Warn("Невозможно включить торговлю: активен emergency stop")
		return false
	}

	for component, ready := range s.componentStatus {
		if !ready {
			s.logger.Warn("Невозможно включить торговлю: компонент не готов",
				zap.String("component", component))
			return false
		}
	}

	s.tradingEnabled = true
	s.logger.Info("Торговля включена")
	return true
}

// DisableTrading выключает торговлю
func (s *TradingState) DisableTrading() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tradingEnabled = false
	s.logger.Info("Торговля выключена")
}

// TriggerEmergencyStop активирует аварийную остановку.
// Идемпотентна: повторные вызовы безопасны.
func (s *TradingState) TriggerEmergencyStop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emergencyStop {
		return
	}

	s.emergencyStop = true
	s.tradingEnabled = false
	s.logger.Error("EMERGENCY STOP: торговля аварийно остановлена")
}

// ResetEmergencyStop снимает аварийную остановку.
// Торговля при этом НЕ включается автоматически.
func (s *TradingState) ResetEmergencyStop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.emergencyStop = false
	s.logger.Info("Emergency stop снят")
}

// IsTradingEnabled возвращает true только если торговля включена
// И emergency stop не активен
func (s *TradingState) IsTradingEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tradingEnabled && !s.emergencyStop
}

// IsEmergencyStop возвращает true при активной аварийной остановке
func (s *TradingState) IsEmergencyStop() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.emergencyStop
}

// SetComponentStatus устанавливает готовность компонента.
// Неизвестные компоненты игнорируются с предупреждением в логе.
func (s *TradingState) SetComponentStatus(component string, ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.componentStatus[component]; !ok {
		s.logger.Warn("Неизвестный компонент", zap.String("component", component))
		return
	}

	s.componentStatus[component] = ready
	s.logger.Info("Статус компонента обновлён",
		zap.String("component", component),
		zap.Bool("ready", ready))
}

// SetStrategyStatus устанавливает активность стратегии
func (s *TradingState) SetStrategyStatus(strategy string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.strategyStatus[strategy] = active
	s.logger.Info("Статус стратегии обновлён",
		zap.String("strategy", strategy),
		zap.Bool("active", active))
}

// RaiseWarning добавляет именованное предупреждение
// (высокий CPU, устаревшие котировки и т.д.)
func (s *TradingState) RaiseWarning(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.warnings[tag]; !exists {
		s.logger.Warn("Предупреждение установлено", zap.String("warning", tag))
	}
	s.warnings[tag] = time.Now()
}

// ClearWarning снимает предупреждение
func (s *TradingState) ClearWarning(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.warnings[tag]; exists {
		delete(s.warnings, tag)
		s.logger.Info("Предупреждение снято", zap.String("warning", tag))
	}
}

// HasWarning проверяет активность предупреждения
func (s *TradingState) HasWarning(tag string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.warnings[tag]
	return exists
}

// SetSizeFactor устанавливает множитель размера позиций.
// Применяется circuit breaker'ом (reduce_size) и режимом восстановления.
func (s *TradingState) SetSizeFactor(factor float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sizeFactor = factor
	s.logger.Info("Множитель размера позиций обновлён", zap.Float64("size_factor", factor))
}

// SizeFactor возвращает текущий множитель размера позиций
func (s *TradingState) SizeFactor() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sizeFactor
}

// SetMode переключает режим торговли (normal / hedge_only)
func (s *TradingState) SetMode(mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != mode {
		s.logger.Info("Режим торговли изменён",
			zap.String("from", s.mode),
			zap.String("to", mode))
	}
	s.mode = mode
}

// Mode возвращает текущий режим торговли
func (s *TradingState) Mode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.mode
}

// ArmCooldown устанавливает окно подавления после срабатывания breaker'а.
// Пока окно активно, уровень breaker'а не понижается.
func (s *TradingState) ArmCooldown(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cooldownUntil = time.Now().Add(d)
	s.logger.Info("Cooldown установлен", zap.Time("until", s.cooldownUntil))
}

// InCooldown возвращает true пока окно подавления активно
func (s *TradingState) InCooldown() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return time.Now().Before(s.cooldownUntil)
}

// GetSnapshot возвращает копию текущего состояния
func (s *TradingState) GetSnapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	components := make(map[string]bool, len(s.componentStatus))
	for k, v := range s.componentStatus {
		components[k] = v
	}

	strategies := make(map[string]bool, len(s.strategyStatus))
	for k, v := range s.strategyStatus {
		strategies[k] = v
	}

	warnings := make([]string, 0, len(s.warnings))
	for tag := range s.warnings {
		warnings = append(warnings, tag)
	}

	snapshot := Snapshot{
		TradingEnabled:  s.tradingEnabled,
		EmergencyStop:   s.emergencyStop,
		Mode:            s.mode,
		SizeFactor:      s.sizeFactor,
		ComponentStatus: components,
		StrategyStatus:  strategies,
		Warnings:        warnings,
	}

	if !s.cooldownUntil.IsZero() && time.Now().Before(s.cooldownUntil) {
		until := s.cooldownUntil
		snapshot.CooldownUntil = &until
	}

	return snapshot
}
