package state

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestState() *TradingState {
	return NewTradingState(zap.NewNop())
}

func markAllReady(s *TradingState) {
	for _, component := range []string{
		ComponentMarketData,
		ComponentRiskManager,
		ComponentOrderManager,
		ComponentStrategyEngine,
	} {
		s.SetComponentStatus(component, true)
	}
}

// ============ EnableTrading Tests ============

func TestEnableTrading_AllComponentsReady(t *testing.T) {
	s := newTestState()
	markAllReady(s)

	if !s.EnableTrading() {
		t.Error("торговля должна включаться когда все компоненты готовы")
	}

	if !s.IsTradingEnabled() {
		t.Error("IsTradingEnabled должен вернуть true после включения")
	}
}

func TestEnableTrading_ComponentNotReady(t *testing.T) {
	s := newTestState()
	markAllReady(s)
	s.SetComponentStatus(ComponentRiskManager, false)

	if s.EnableTrading() {
		t.Error("торговля не должна включаться при неготовом компоненте")
	}

	if s.IsTradingEnabled() {
		t.Error("IsTradingEnabled должен вернуть false")
	}
}

func TestEnableTrading_EmergencyStopActive(t *testing.T) {
	s := newTestState()
	markAllReady(s)
	s.TriggerEmergencyStop()

	if s.EnableTrading() {
		t.Error("торговля не должна включаться при активном emergency stop")
	}
}

func TestEnableTrading_UnknownComponentIgnored(t *testing.T) {
	s := newTestState()
	markAllReady(s)

	// Неизвестный компонент не должен влиять на готовность
	s.SetComponentStatus("unknown_component", false)

	if !s.EnableTrading() {
		t.Error("неизвестный компонент не должен блокировать включение торговли")
	}
}

// ============ EmergencyStop Tests ============

// Инвариант: IsTradingEnabled всегда false при активном emergency stop,
// независимо от значения tradingEnabled
func TestIsTradingEnabled_FalseWheneverEmergencyStop(t *testing.T) {
	tests := []struct {
		name           string
		tradingEnabled bool
	}{
		{"торговля была включена", true},
		{"торговля была выключена", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestState()
			markAllReady(s)

			if tt.tradingEnabled {
				s.EnableTrading()
			}

			s.TriggerEmergencyStop()

			if s.IsTradingEnabled() {
				t.Error("IsTradingEnabled должен быть false при emergency stop")
			}
		})
	}
}

func TestTriggerEmergencyStop_Idempotent(t *testing.T) {
	s := newTestState()
	markAllReady(s)
	s.EnableTrading()

	s.TriggerEmergencyStop()
	s.TriggerEmergencyStop()
	s.TriggerEmergencyStop()

	if !s.IsEmergencyStop() {
		t.Error("emergency stop должен оставаться активным")
	}
	if s.IsTradingEnabled() {
		t.Error("торговля должна быть остановлена")
	}
}

func TestResetEmergencyStop_DoesNotReenableTrading(t *testing.T) {
	s := newTestState()
	markAllReady(s)
	s.EnableTrading()
	s.TriggerEmergencyStop()

	s.ResetEmergencyStop()

	if s.IsEmergencyStop() {
		t.Error("emergency stop должен быть снят")
	}

	// Emergency stop сбросил tradingEnabled, сброс не включает торговлю обратно
	if s.IsTradingEnabled() {
		t.Error("снятие emergency stop не должно автоматически включать торговлю")
	}

	// Но повторное включение теперь возможно
	if !s.EnableTrading() {
		t.Error("после снятия emergency stop торговля должна включаться")
	}
}

// ============ Warnings Tests ============

func TestWarnings_RaiseAndClear(t *testing.T) {
	s := newTestState()

	s.RaiseWarning("high_cpu")
	s.RaiseWarning("stale_quotes")

	if !s.HasWarning("high_cpu") {
		t.Error("предупреждение high_cpu должно быть активно")
	}

	s.ClearWarning("high_cpu")

	if s.HasWarning("high_cpu") {
		t.Error("предупреждение high_cpu должно быть снято")
	}
	if !s.HasWarning("stale_quotes") {
		t.Error("предупреждение stale_quotes не должно быть затронуто")
	}
}

// ============ SizeFactor / Mode / Cooldown Tests ============

func TestSizeFactor_DefaultIsOne(t *testing.T) {
	s := newTestState()

	if got := s.SizeFactor(); got != 1.0 {
		t.Errorf("множитель по умолчанию = %f, ожидался 1.0", got)
	}

	s.SetSizeFactor(0.5)
	if got := s.SizeFactor(); got != 0.5 {
		t.Errorf("множитель = %f, ожидался 0.5", got)
	}
}

func TestMode_Switch(t *testing.T) {
	s := newTestState()

	if got := s.Mode(); got != ModeNormal {
		t.Errorf("режим по умолчанию = %q, ожидался %q", got, ModeNormal)
	}

	s.SetMode(ModeHedgeOnly)
	if got := s.Mode(); got != ModeHedgeOnly {
		t.Errorf("режим = %q, ожидался %q", got, ModeHedgeOnly)
	}
}

func TestCooldown(t *testing.T) {
	s := newTestState()

	if s.InCooldown() {
		t.Error("cooldown не должен быть активен изначально")
	}

	s.ArmCooldown(1 * time.Hour)
	if !s.InCooldown() {
		t.Error("cooldown должен быть активен после установки")
	}
}

// ============ Snapshot Tests ============

func TestGetSnapshot(t *testing.T) {
	s := newTestState()
	markAllReady(s)
	s.EnableTrading()
	s.SetStrategyStatus("ma_crossover", true)
	s.RaiseWarning("wide_spread")

	snapshot := s.GetSnapshot()

	if !snapshot.TradingEnabled {
		t.Error("snapshot должен отражать включённую торговлю")
	}
	if snapshot.EmergencyStop {
		t.Error("emergency stop не должен быть активен")
	}
	if !snapshot.ComponentStatus[ComponentMarketData] {
		t.Error("snapshot должен содержать статусы компонентов")
	}
	if !snapshot.StrategyStatus["ma_crossover"] {
		t.Error("snapshot должен содержать статусы стратегий")
	}
	if len(snapshot.Warnings) != 1 || snapshot.Warnings[0] != "wide_spread" {
		t.Errorf("snapshot.Warnings = %v, ожидался [wide_spread]", snapshot.Warnings)
	}

	// Snapshot - копия: мутация не должна влиять на состояние
	snapshot.ComponentStatus[ComponentMarketData] = false
	if !s.GetSnapshot().ComponentStatus[ComponentMarketData] {
		t.Error("мутация snapshot не должна влиять на состояние")
	}
}
