package strategy

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"quanthybrid/internal/broker"
	"quanthybrid/internal/models"
	"quanthybrid/internal/monitoring"
	"quanthybrid/internal/risk"
	"quanthybrid/internal/state"
)

// Зависимости движка объявлены на стороне потребителя

// MarketData - история цен и последние котировки
type MarketData interface {
	History(symbol string) []float64
	LastTick(symbol string) (models.Tick, bool)
	Volatility(symbol string) float64
}

// RiskController - проверка ордеров и расчёт размера позиций
type RiskController interface {
	ValidateOrder(order *models.OrderRequest, metrics risk.StrategyMetrics) bool
	PositionSize(instrumentID string, price float64, metrics risk.StrategyMetrics) int
	UpdateMetrics(positions []*models.Position, trades []*models.Trade)
	SetMarketConditions(volatility, trendStrength float64)
	RecordStrategyDrawdown(strategy string, drawdown float64)
}

// OrderPlacer размещает одобренные ордера
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req models.OrderRequest) (string, error)
}

// PositionSource - позиции на стороне брокера
type PositionSource interface {
	GetPositions(ctx context.Context) ([]broker.BrokerPosition, error)
}

// PositionWriter сохраняет синхронизированные позиции
type PositionWriter interface {
	Upsert(position *models.Position) error
	DeleteFlat() (int64, error)
}

// TradeHistory - сделки за период для риск-метрик
type TradeHistory interface {
	GetSince(since time.Time) ([]*models.Trade, error)
}

// Instrument - торгуемый инструмент
type Instrument struct {
	InstrumentID string
	Symbol       string
}

// EngineConfig - настройки движка стратегий
type EngineConfig struct {
	Interval      time.Duration // период цикла оценки сигналов
	CapitalBase   float64       // капитал для расчёта просадки стратегии
	BaseQuantity  int           // количество в заявке до корректировки риском
	PortfolioType string
}

// DefaultEngineConfig возвращает настройки по умолчанию
func DefaultEngineConfig(capitalBase float64) EngineConfig {
	return EngineConfig{
		Interval:      time.Second,
		CapitalBase:   capitalBase,
		BaseQuantity:  1,
		PortfolioType: "INTRADAY",
	}
}

// Engine - движок стратегий.
//
// Каждый цикл: синхронизация позиций с брокером, обновление
// риск-метрик, оценка сигналов и размещение одобренных ордеров.
// Сигнал проходит к брокеру только через риск-менеджер:
// сначала проверка лимитов, затем расчёт итогового размера.
type Engine struct {
	cfg         EngineConfig
	strategy    Strategy
	instruments []Instrument

	market       MarketData
	risk         RiskController
	orders       OrderPlacer
	positions    PositionSource
	positionRepo PositionWriter
	trades       TradeHistory
	tradingState *state.TradingState

	mu           sync.Mutex
	peakPNL      float64 // максимум PNL стратегии для расчёта просадки
	lastDrawdown float64 // отрицательная доля капитала, -0.05 = просадка 5%

	logger *zap.Logger
}

// NewEngine создаёт движок стратегий
func NewEngine(
	cfg EngineConfig,
	strat Strategy,
	instruments []Instrument,
	market MarketData,
	riskController RiskController,
	orders OrderPlacer,
	positions PositionSource,
	positionRepo PositionWriter,
	trades TradeHistory,
	ts *state.TradingState,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		cfg:          cfg,
		strategy:     strat,
		instruments:  instruments,
		market:       market,
		risk:         riskController,
		orders:       orders,
		positions:    positions,
		positionRepo: positionRepo,
		trades:       trades,
		tradingState: ts,
		logger:       logger.Named("strategy_engine").With(zap.String("strategy", strat.Name())),
	}
}

// Run запускает цикл стратегии. Блокируется до отмены контекста.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("Движок стратегий запущен",
		zap.Duration("interval", e.cfg.Interval),
		zap.Int("instruments", len(e.instruments)))

	e.tradingState.SetComponentStatus(state.ComponentStrategyEngine, true)
	e.tradingState.SetStrategyStatus(e.strategy.Name(), true)
	defer func() {
		e.tradingState.SetStrategyStatus(e.strategy.Name(), false)
		e.tradingState.SetComponentStatus(state.ComponentStrategyEngine, false)
	}()

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Движок стратегий остановлен")
			return
		case <-ticker.C:
			if !e.tradingState.IsTradingEnabled() {
				continue
			}
			e.RunCycle(ctx)
		}
	}
}

// RunCycle выполняет один цикл стратегии.
// Вынесен отдельно для синхронного прогона в тестах.
func (e *Engine) RunCycle(ctx context.Context) {
	if err := e.syncPositions(ctx); err != nil {
		e.logger.Error("Ошибка синхронизации позиций", zap.Error(err))
	}

	for _, instrument := range e.instruments {
		e.evaluateInstrument(ctx, instrument)
	}
}

// syncPositions забирает позиции у брокера, сохраняет их в БД
// и обновляет риск-метрики полным набором позиций и сделок за день
func (e *Engine) syncPositions(ctx context.Context) error {
	brokerPositions, err := e.positions.GetPositions(ctx)
	if err != nil {
		return err
	}

	positions := make([]*models.Position, 0, len(brokerPositions))
	var strategyPNL float64

	for _, bp := range brokerPositions {
		position := &models.Position{
			InstrumentID:  bp.InstrumentID,
			Symbol:        bp.Symbol,
			Quantity:      bp.Quantity,
			AveragePrice:  bp.AveragePrice,
			CurrentPrice:  bp.LastPrice,
			PNL:           bp.PNL,
			Strategy:      e.strategy.Name(),
			PortfolioType: e.cfg.PortfolioType,
			Timestamp:     time.Now(),
		}
		positions = append(positions, position)
		strategyPNL += bp.PNL

		if err := e.positionRepo.Upsert(position); err != nil {
			e.logger.Error("Не удалось сохранить позицию",
				zap.String("instrument_id", bp.InstrumentID),
				zap.Error(err))
		}
	}

	if _, err := e.positionRepo.DeleteFlat(); err != nil {
		e.logger.Error("Не удалось удалить закрытые позиции", zap.Error(err))
	}

	trades, err := e.trades.GetSince(startOfDay(time.Now()))
	if err != nil {
		return err
	}

	e.risk.UpdateMetrics(positions, trades)
	e.risk.RecordStrategyDrawdown(e.strategy.Name(), e.updateDrawdown(strategyPNL))

	return nil
}

// updateDrawdown пересчитывает просадку стратегии от пика её PNL.
// Возвращает отрицательную долю капитала (-0.05 = просадка 5%).
func (e *Engine) updateDrawdown(pnl float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pnl > e.peakPNL {
		e.peakPNL = pnl
	}

	if e.cfg.CapitalBase <= 0 {
		e.lastDrawdown = 0
		return 0
	}

	e.lastDrawdown = (pnl - e.peakPNL) / e.cfg.CapitalBase
	return e.lastDrawdown
}

// evaluateInstrument оценивает сигнал по инструменту
// и проводит его через риск-менеджер к исполнению
func (e *Engine) evaluateInstrument(ctx context.Context, instrument Instrument) {
	tick, ok := e.market.LastTick(instrument.Symbol)
	if !ok {
		return
	}

	prices := e.market.History(instrument.Symbol)

	volatility := e.market.Volatility(instrument.Symbol)
	trendStrength := e.strategy.TrendStrength(prices)
	e.risk.SetMarketConditions(volatility, trendStrength)

	signal := e.strategy.Evaluate(prices, tick)
	if signal == nil {
		return
	}

	e.logger.Info("Сигнал стратегии",
		zap.String("symbol", instrument.Symbol),
		zap.String("action", signal.Action),
		zap.String("reason", signal.Reason))

	metrics := risk.StrategyMetrics{
		Volatility:    volatility,
		TrendStrength: trendStrength,
		MaxDrawdown:   e.currentDrawdown(),
	}

	req := models.OrderRequest{
		InstrumentID:  instrument.InstrumentID,
		Symbol:        instrument.Symbol,
		Side:          signal.Action,
		OrderType:     models.OrderTypeMarket,
		Quantity:      e.cfg.BaseQuantity,
		Price:         tick.LastPrice,
		Strategy:      e.strategy.Name(),
		PortfolioType: e.cfg.PortfolioType,
	}

	if !e.risk.ValidateOrder(&req, metrics) {
		monitoring.OrdersRejected.WithLabelValues("risk").Inc()
		e.logger.Warn("Ордер отклонён риск-менеджером",
			zap.String("symbol", instrument.Symbol),
			zap.String("side", signal.Action))
		return
	}

	req.Quantity = e.risk.PositionSize(instrument.InstrumentID, tick.LastPrice, metrics)
	if req.Quantity <= 0 {
		return
	}

	if _, err := e.orders.PlaceOrder(ctx, req); err != nil {
		e.logger.Error("Не удалось разместить ордер",
			zap.String("symbol", instrument.Symbol),
			zap.Error(err))
	}
}

// currentDrawdown возвращает последнюю рассчитанную просадку
func (e *Engine) currentDrawdown() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.lastDrawdown
}

// startOfDay возвращает локальную полночь для указанного времени
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
