package risk

import (
	"testing"

	"go.uber.org/zap"

	"quanthybrid/internal/config"
	"quanthybrid/internal/models"
	"quanthybrid/internal/state"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxPositionSize:  100,
		MinPositionSize:  1,
		MaxDailyLoss:     5000.0,
		MaxDrawdown:      0.15,
		MaxTotalExposure: 1000000.0,

		HighVolatility:   2.5,
		MediumVolatility: 1.5,
		MaxVolatility:    5.0,
		VolatilityBase:   1.0,

		MinTrendStrength:   0.1,
		MaxCapitalPerTrade: 100000.0,
	}
}

func testBreakerConfig() config.BreakerConfig {
	return config.BreakerConfig{
		Level1Drawdown: 2000.0,
		Level2Drawdown: 3500.0,
		Level3Drawdown: 5000.0,
	}
}

func enabledTradingState() *state.TradingState {
	s := state.NewTradingState(zap.NewNop())
	for _, component := range []string{
		state.ComponentMarketData,
		state.ComponentRiskManager,
		state.ComponentOrderManager,
		state.ComponentStrategyEngine,
	} {
		s.SetComponentStatus(component, true)
	}
	s.EnableTrading()
	return s
}

func newTestManager() *Manager {
	return NewManager(testRiskConfig(), testBreakerConfig(), enabledTradingState(), zap.NewNop())
}

func goodMetrics() StrategyMetrics {
	return StrategyMetrics{
		Volatility:    1.0,
		TrendStrength: 0.5,
		MaxDrawdown:   -0.02,
	}
}

func testOrder(quantity int) models.OrderRequest {
	return models.OrderRequest{
		InstrumentID: "NSE:RELIANCE",
		Symbol:       "RELIANCE",
		Side:         "BUY",
		OrderType:    models.OrderTypeLimit,
		Quantity:     quantity,
		Price:        2500.0,
		Strategy:     "ma_crossover",
	}
}

// ============ Assess Tests ============

func TestAssess_AcceptsValidOrder(t *testing.T) {
	m := newTestManager()

	decision := m.Assess(testOrder(10), goodMetrics())

	if !decision.Accepted {
		t.Fatalf("валидный ордер должен приниматься, причины: %v", decision.Reasons)
	}
	if decision.AdjustedQuantity != 10 {
		t.Errorf("количество = %d, не должно меняться при низкой волатильности", decision.AdjustedQuantity)
	}
}

func TestAssess_RejectionOrder(t *testing.T) {
	tests := []struct {
		name           string
		setup          func(m *Manager)
		order          models.OrderRequest
		metrics        StrategyMetrics
		expectedReason string
	}{
		{
			name: "торговля выключена",
			setup: func(m *Manager) {
				m.tradingState.DisableTrading()
			},
			order:          testOrder(10),
			metrics:        goodMetrics(),
			expectedReason: models.RejectTradingDisabled,
		},
		{
			name: "дневной лимит убытка",
			setup: func(m *Manager) {
				m.UpdateMetrics([]*models.Position{
					{InstrumentID: "NSE:TCS", Quantity: 10, AveragePrice: 100.0, PNL: -5000.0},
				}, nil)
			},
			order:          testOrder(10),
			metrics:        goodMetrics(),
			expectedReason: models.RejectDailyLoss,
		},
		{
			name:  "лимит просадки стратегии",
			setup: func(m *Manager) {},
			order: testOrder(10),
			metrics: StrategyMetrics{
				Volatility:    1.0,
				TrendStrength: 0.5,
				MaxDrawdown:   -0.20,
			},
			expectedReason: models.RejectDrawdown,
		},
		{
			name: "лимит размера позиции",
			setup: func(m *Manager) {
				m.UpdateMetrics([]*models.Position{
					{InstrumentID: "NSE:RELIANCE", Quantity: 95, AveragePrice: 2500.0, PNL: 0},
				}, nil)
			},
			order:          testOrder(10), // 95 + 10 > 100
			metrics:        goodMetrics(),
			expectedReason: models.RejectPositionLimit,
		},
		{
			name:  "слабый тренд",
			setup: func(m *Manager) {},
			order: testOrder(10),
			metrics: StrategyMetrics{
				Volatility:    1.0,
				TrendStrength: 0.05,
				MaxDrawdown:   -0.02,
			},
			expectedReason: models.RejectWeakTrend,
		},
		{
			name:  "предельная волатильность",
			setup: func(m *Manager) {},
			order: testOrder(10),
			metrics: StrategyMetrics{
				Volatility:    6.0, // выше max_volatility=5.0
				TrendStrength: 0.5,
				MaxDrawdown:   -0.02,
			},
			expectedReason: models.RejectHighVolatility,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager()
			tt.setup(m)

			decision := m.Assess(tt.order, tt.metrics)

			if decision.Accepted {
				t.Fatal("ордер должен быть отклонён")
			}
			if len(decision.Reasons) != 1 || decision.Reasons[0] != tt.expectedReason {
				t.Errorf("причины = %v, ожидалась [%s]", decision.Reasons, tt.expectedReason)
			}
		})
	}
}

// Ордер отклоняется при достигнутом дневном лимите убытка
// независимо от остальных параметров
func TestAssess_DailyLossRejectsRegardlessOfMetrics(t *testing.T) {
	m := newTestManager()
	m.UpdateMetrics([]*models.Position{
		{InstrumentID: "NSE:TCS", Quantity: 1, AveragePrice: 100.0, PNL: -6000.0},
	}, nil)

	// Идеальные метрики стратегии не должны спасти ордер
	decision := m.Assess(testOrder(1), StrategyMetrics{
		Volatility:    0.5,
		TrendStrength: 1.0,
		MaxDrawdown:   0.0,
	})

	if decision.Accepted {
		t.Error("ордер должен отклоняться при дневном убытке ниже лимита")
	}
}

func TestAssess_VolatilityAdjustment(t *testing.T) {
	tests := []struct {
		name             string
		volatility       float64
		quantity         int
		expectedQuantity int
	}{
		{"низкая волатильность, без корректировки", 1.0, 100, 100},
		{"повышенная волатильность, x0.75", 2.0, 100, 75},
		{"высокая волатильность, x0.5", 3.0, 100, 50},
		{"округление вниз", 3.0, 15, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager()

			decision := m.Assess(testOrder(tt.quantity), StrategyMetrics{
				Volatility:    tt.volatility,
				TrendStrength: 0.5,
				MaxDrawdown:   -0.02,
			})

			if !decision.Accepted {
				t.Fatalf("ордер должен приниматься, причины: %v", decision.Reasons)
			}
			if decision.AdjustedQuantity != tt.expectedQuantity {
				t.Errorf("количество = %d, ожидалось %d", decision.AdjustedQuantity, tt.expectedQuantity)
			}
		})
	}
}

// Корректировка количества применяется и на отклоняющих путях:
// высокая волатильность уменьшает количество до проверки тренда
func TestAssess_AdjustmentAppliedBeforeTrendRejection(t *testing.T) {
	m := newTestManager()

	decision := m.Assess(testOrder(100), StrategyMetrics{
		Volatility:    3.0,  // выше high, ниже max
		TrendStrength: 0.05, // отклонение по тренду
		MaxDrawdown:   -0.02,
	})

	if decision.Accepted {
		t.Fatal("ордер должен быть отклонён по тренду")
	}
	if decision.AdjustedQuantity != 50 {
		t.Errorf("количество = %d, корректировка должна примениться до отклонения", decision.AdjustedQuantity)
	}
}

// ============ ValidateOrder Tests ============

func TestValidateOrder_MutatesQuantityInPlace(t *testing.T) {
	m := newTestManager()

	order := testOrder(100)
	valid := m.ValidateOrder(&order, StrategyMetrics{
		Volatility:    3.0,
		TrendStrength: 0.5,
		MaxDrawdown:   -0.02,
	})

	if !valid {
		t.Fatal("ордер должен приниматься")
	}
	if order.Quantity != 50 {
		t.Errorf("order.Quantity = %d, ожидалось 50 после корректировки на месте", order.Quantity)
	}
}

// Внутренняя паника трактуется как отклонение (fail closed)
func TestValidateOrder_FailClosed(t *testing.T) {
	// nil TradingState вызовет панику при первой же проверке
	m := NewManager(testRiskConfig(), testBreakerConfig(), nil, zap.NewNop())

	order := testOrder(10)
	if m.ValidateOrder(&order, goodMetrics()) {
		t.Error("при внутренней ошибке ордер должен отклоняться")
	}
}

// ============ PositionSize Tests ============

// Размер позиции монотонно не возрастает по волатильности
func TestPositionSize_MonotonicInVolatility(t *testing.T) {
	m := newTestManager()

	volatilities := []float64{0.5, 1.0, 2.0, 5.0, 10.0, 30.0}
	prev := m.cfg.MaxPositionSize + 1

	for _, vol := range volatilities {
		size := m.PositionSize("NSE:RELIANCE", 100.0, StrategyMetrics{
			Volatility:    vol,
			TrendStrength: 0.5,
			MaxDrawdown:   0.0,
		})

		if size > prev {
			t.Errorf("размер %d при волатильности %f больше размера %d при меньшей волатильности",
				size, vol, prev)
		}
		prev = size
	}
}

func TestPositionSize_NeverBelowMinimum(t *testing.T) {
	m := newTestManager()

	size := m.PositionSize("NSE:RELIANCE", 1e9, StrategyMetrics{
		Volatility:    1000.0,
		TrendStrength: 0.5,
		MaxDrawdown:   -0.15,
	})

	if size < m.cfg.MinPositionSize {
		t.Errorf("размер = %d, не должен опускаться ниже минимума %d", size, m.cfg.MinPositionSize)
	}
}

func TestPositionSize_DrawdownFloor(t *testing.T) {
	m := newTestManager()

	// Огромная просадка: фактор просадки ограничен снизу 0.2
	deepDrawdown := m.PositionSize("NSE:RELIANCE", 0.001, StrategyMetrics{
		Volatility:    0.0,
		TrendStrength: 0.5,
		MaxDrawdown:   -10.0,
	})

	noDrawdown := m.PositionSize("NSE:RELIANCE", 0.001, StrategyMetrics{
		Volatility:    0.0,
		TrendStrength: 0.5,
		MaxDrawdown:   0.0,
	})

	if deepDrawdown != noDrawdown/5 {
		t.Errorf("при экстремальной просадке размер = %d, ожидалось 20%% от %d", deepDrawdown, noDrawdown)
	}
}

func TestPositionSize_AppliesStateFactor(t *testing.T) {
	m := newTestManager()

	full := m.PositionSize("NSE:RELIANCE", 0.001, StrategyMetrics{TrendStrength: 0.5})

	// Circuit breaker уровня 1 уменьшает размер через TradingState
	m.tradingState.SetSizeFactor(0.5)
	reduced := m.PositionSize("NSE:RELIANCE", 0.001, StrategyMetrics{TrendStrength: 0.5})

	if reduced != full/2 {
		t.Errorf("размер с множителем 0.5 = %d, ожидалось %d", reduced, full/2)
	}
}

func TestPositionSize_FailSmall(t *testing.T) {
	// nil TradingState вызовет панику при чтении множителя
	m := NewManager(testRiskConfig(), testBreakerConfig(), nil, zap.NewNop())

	size := m.PositionSize("NSE:RELIANCE", 100.0, goodMetrics())

	if size != m.cfg.MinPositionSize {
		t.Errorf("при внутренней ошибке размер = %d, ожидался минимальный %d", size, m.cfg.MinPositionSize)
	}
}

// ============ UpdateMetrics Tests ============

func TestUpdateMetrics_DailyPNLFromPositions(t *testing.T) {
	m := newTestManager()

	m.UpdateMetrics([]*models.Position{
		{InstrumentID: "NSE:RELIANCE", Quantity: 10, AveragePrice: 2500.0, PNL: 50.0},
		{InstrumentID: "NSE:TCS", Quantity: -5, AveragePrice: 3600.0, PNL: -30.0},
		{InstrumentID: "NSE:INFY", Quantity: 20, AveragePrice: 1500.0, PNL: 20.0},
	}, nil)

	if got := m.DailyPNL(); got != 40.0 {
		t.Errorf("daily_pnl = %f, ожидалось 40.0", got)
	}

	metrics := m.Metrics()

	// Экспозиция: |10*2500| + |-5*3600| + |20*1500| = 25000 + 18000 + 30000
	if metrics.TotalExposure != 73000.0 {
		t.Errorf("total_exposure = %f, ожидалось 73000", metrics.TotalExposure)
	}
	if metrics.OpenPositions != 3 {
		t.Errorf("open_positions = %d, ожидалось 3", metrics.OpenPositions)
	}
}

// UpdateMetrics - полная замена: старые позиции не сохраняются
func TestUpdateMetrics_FullReplace(t *testing.T) {
	m := newTestManager()

	m.UpdateMetrics([]*models.Position{
		{InstrumentID: "NSE:RELIANCE", Quantity: 95, AveragePrice: 2500.0, PNL: 0},
	}, nil)

	m.UpdateMetrics([]*models.Position{
		{InstrumentID: "NSE:TCS", Quantity: 5, AveragePrice: 3600.0, PNL: 0},
	}, nil)

	// Позиция по RELIANCE исчезла, лимит не должен срабатывать
	decision := m.Assess(testOrder(10), goodMetrics())
	if !decision.Accepted {
		t.Errorf("ордер должен приниматься после полной замены позиций, причины: %v", decision.Reasons)
	}
}

// Снимок метрик отдаёт крупнейшую позицию (по модулю)
// и количество сделок за день
func TestUpdateMetrics_LargestPositionAndDailyTrades(t *testing.T) {
	m := newTestManager()

	m.UpdateMetrics([]*models.Position{
		{InstrumentID: "NSE:RELIANCE", Quantity: 10, AveragePrice: 2500.0, PNL: 0},
		{InstrumentID: "NSE:TCS", Quantity: -40, AveragePrice: 3600.0, PNL: 0},
	}, []*models.Trade{
		{Symbol: "RELIANCE", PNL: 100.0},
		{Symbol: "TCS", PNL: -50.0},
		{Symbol: "RELIANCE", PNL: 20.0},
	})

	metrics := m.Metrics()

	if metrics.LargestPosition != 40 {
		t.Errorf("largest_position = %d, ожидалось 40", metrics.LargestPosition)
	}
	if metrics.DailyTrades != 3 {
		t.Errorf("daily_trades = %d, ожидалось 3", metrics.DailyTrades)
	}
}

// Худшая просадка среди стратегий попадает в снимок метрик
// как положительная доля и переживает пересчёт метрик
func TestRecordStrategyDrawdown_PopulatesCurrentDrawdown(t *testing.T) {
	m := newTestManager()

	m.RecordStrategyDrawdown("ma_crossover", -0.05)
	m.RecordStrategyDrawdown("mean_reversion", -0.02)

	if got := m.Metrics().CurrentDrawdown; got != 0.05 {
		t.Errorf("current_drawdown = %f, ожидалось 0.05", got)
	}

	m.UpdateMetrics([]*models.Position{
		{InstrumentID: "NSE:RELIANCE", Quantity: 10, AveragePrice: 2500.0, PNL: 0},
	}, nil)

	if got := m.Metrics().CurrentDrawdown; got != 0.05 {
		t.Errorf("current_drawdown = %f после пересчёта, ожидалось 0.05", got)
	}
}

// ============ ShouldStopTrading Tests ============

func TestShouldStopTrading(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(m *Manager)
		expected bool
	}{
		{
			name:     "нет нарушений",
			setup:    func(m *Manager) {},
			expected: false,
		},
		{
			name: "дневной убыток пробил худший порог breaker",
			setup: func(m *Manager) {
				m.UpdateMetrics([]*models.Position{
					{InstrumentID: "NSE:TCS", Quantity: 1, AveragePrice: 100.0, PNL: -5000.0},
				}, nil)
			},
			expected: true,
		},
		{
			name: "просадка стратегии превысила лимит",
			setup: func(m *Manager) {
				m.RecordStrategyDrawdown("ma_crossover", -0.20)
			},
			expected: true,
		},
		{
			name: "экспозиция превысила максимум",
			setup: func(m *Manager) {
				m.UpdateMetrics([]*models.Position{
					{InstrumentID: "NSE:RELIANCE", Quantity: 1000, AveragePrice: 2000.0, PNL: 0},
				}, nil)
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager()
			tt.setup(m)

			if got := m.ShouldStopTrading(); got != tt.expected {
				t.Errorf("ShouldStopTrading() = %v, ожидалось %v", got, tt.expected)
			}
		})
	}
}
