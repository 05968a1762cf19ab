// Package execution управляет жизненным циклом ордеров:
// размещение, изменение, отмена и мониторинг статусов у брокера.
package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"quanthybrid/internal/broker"
	"quanthybrid/internal/models"
	"quanthybrid/internal/monitoring"
	"quanthybrid/internal/repository"
	"quanthybrid/internal/state"
	"quanthybrid/pkg/retry"
	"quanthybrid/pkg/utils"
)

// Ошибки менеджера ордеров
var (
	ErrTradingDisabled = errors.New("trading is disabled")
	ErrHedgeOnlyMode   = errors.New("only hedging orders allowed in hedge_only mode")
	ErrNotPending      = errors.New("order is not in pending set")
)

// множитель интервала опроса после ошибки итерации
const errorBackoffMultiplier = 5

// Manager - менеджер ордеров.
//
// Единственный писатель статусов: переходы из PLACED/MODIFIED
// выполняет только цикл monitorOrders на основе статусов брокера.
// PlaceOrder/ModifyOrder/CancelOrder лишь инициируют действие
// и оптимистично обновляют локальный статус для MODIFIED/CANCELLED.
//
// Мьютекс mu защищает и набор pending, и поля ордеров в нём:
// ордера читаются из API-обработчиков и цикла мониторинга,
// а изменяются из ModifyOrder/CancelOrder и переходов статусов.
type Manager struct {
	broker       broker.Broker
	orders       OrderRepositoryInterface
	trades       TradeRepositoryInterface
	positions    PositionRepositoryInterface
	tradingState *state.TradingState
	notifier     Notifier
	logger       *zap.Logger

	pollInterval time.Duration

	// Рабочий набор неисполненных ордеров: broker_order_id -> ордер.
	// Финальный статус удаляет ордер из набора и обратно он не попадает.
	mu      sync.RWMutex
	pending map[string]*models.Order
}

// NewManager создаёт менеджер ордеров
func NewManager(
	b broker.Broker,
	orders OrderRepositoryInterface,
	trades TradeRepositoryInterface,
	positions PositionRepositoryInterface,
	ts *state.TradingState,
	notifier Notifier,
	pollInterval time.Duration,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		broker:       b,
		orders:       orders,
		trades:       trades,
		positions:    positions,
		tradingState: ts,
		notifier:     notifier,
		pollInterval: pollInterval,
		logger:       logger.Named("order_manager"),
		pending:      make(map[string]*models.Order),
	}
}

// Start восстанавливает рабочий набор из БД и запускает цикл мониторинга.
// Блокируется до отмены контекста.
func (m *Manager) Start(ctx context.Context) {
	if err := m.ReconcileOnStart(); err != nil {
		m.logger.Error("Ошибка восстановления рабочего набора", zap.Error(err))
	}

	m.tradingState.SetComponentStatus(state.ComponentOrderManager, true)
	defer m.tradingState.SetComponentStatus(state.ComponentOrderManager, false)

	m.monitorOrders(ctx)
}

// ReconcileOnStart загружает нефинальные ордера из БД в рабочий набор.
// После перезапуска цикл мониторинга доведёт их до финального статуса
// по данным брокера, включая материализацию сделок, потерянных
// при падении между исполнением и записью.
func (m *Manager) ReconcileOnStart() error {
	active, err := m.orders.GetActive()
	if err != nil {
		return fmt.Errorf("failed to load active orders: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, order := range active {
		if order.BrokerOrderID == "" {
			continue
		}
		m.pending[order.BrokerOrderID] = order
	}

	if len(active) > 0 {
		m.logger.Info("Рабочий набор восстановлен после перезапуска",
			zap.Int("orders", len(active)))
	}

	return nil
}

// PlaceOrder размещает ордер у брокера.
//
// Возвращает broker_order_id или ошибку. Ошибка означает
// "размещение не подтверждено": локальная запись не создаётся,
// вызывающий код не должен считать ордер размещённым.
// Торговое состояние перепроверяется непосредственно перед
// обращением к брокеру: одобрение риск-менеджера могло устареть.
func (m *Manager) PlaceOrder(ctx context.Context, req models.OrderRequest) (string, error) {
	if err := m.validateRequest(req); err != nil {
		m.logger.Warn("Некорректные параметры ордера", zap.Error(err))
		return "", err
	}

	if !m.tradingState.IsTradingEnabled() {
		m.logger.Warn("Размещение отклонено: торговля выключена",
			zap.String("symbol", req.Symbol))
		return "", ErrTradingDisabled
	}

	if m.tradingState.Mode() == state.ModeHedgeOnly && !m.isHedgingOrder(req) {
		m.logger.Warn("Размещение отклонено: режим hedge_only",
			zap.String("symbol", req.Symbol),
			zap.String("side", req.Side))
		return "", ErrHedgeOnlyMode
	}

	resp, err := m.broker.PlaceOrder(ctx, broker.PlaceOrderParams{
		InstrumentID: req.InstrumentID,
		Symbol:       req.Symbol,
		Side:         req.Side,
		OrderType:    req.OrderType,
		Quantity:     req.Quantity,
		Price:        req.Price,
		TriggerPrice: req.TriggerPrice,
	})
	if err != nil {
		m.handleBrokerError(err)
		return "", fmt.Errorf("place order not confirmed: %w", err)
	}

	order := &models.Order{
		BrokerOrderID: resp.BrokerOrderID,
		InstrumentID:  req.InstrumentID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		OrderType:     req.OrderType,
		Quantity:      req.Quantity,
		Price:         req.Price,
		TriggerPrice:  req.TriggerPrice,
		Status:        models.OrderStatusPlaced,
		Strategy:      req.Strategy,
		PortfolioType: req.PortfolioType,
	}

	if err := m.orders.Create(order); err != nil {
		// Брокер принял ордер, но запись не создана.
		// Регистрируем в pending чтобы мониторинг довёл его до конца.
		m.logger.Error("Ордер принят брокером, но не сохранён в БД",
			zap.String("broker_order_id", resp.BrokerOrderID),
			zap.Error(err))
	}

	m.mu.Lock()
	m.pending[order.BrokerOrderID] = order
	m.mu.Unlock()

	monitoring.OrdersPlaced.WithLabelValues(order.Symbol, order.Side).Inc()

	m.logger.Info("Ордер размещён",
		zap.String("broker_order_id", order.BrokerOrderID),
		zap.String("symbol", order.Symbol),
		zap.String("side", order.Side),
		zap.Int("quantity", order.Quantity))

	m.notifier.Notify(
		fmt.Sprintf("📈 Ордер размещён: %s %s x%d", order.Side, order.Symbol, order.Quantity),
		models.PriorityNormal)

	return order.BrokerOrderID, nil
}

// ModifyOrder изменяет параметры размещённого ордера.
// Локальный статус оптимистично переводится в MODIFIED,
// фактический статус подтвердит цикл мониторинга.
func (m *Manager) ModifyOrder(ctx context.Context, brokerOrderID string, req models.ModifyRequest) error {
	m.mu.RLock()
	order, exists := m.pending[brokerOrderID]
	m.mu.RUnlock()

	if !exists {
		return ErrNotPending
	}

	err := m.broker.ModifyOrder(ctx, brokerOrderID, broker.ModifyOrderParams{
		Quantity:     req.Quantity,
		Price:        req.Price,
		TriggerPrice: req.TriggerPrice,
	})
	if err != nil {
		m.handleBrokerError(err)
		return fmt.Errorf("modify order not confirmed: %w", err)
	}

	m.applyTransition(order, models.OrderStatusModified)

	m.mu.Lock()
	if req.Quantity != nil {
		order.Quantity = *req.Quantity
	}
	if req.Price != nil {
		order.Price = *req.Price
	}
	if req.TriggerPrice != nil {
		order.TriggerPrice = *req.TriggerPrice
	}
	m.mu.Unlock()

	m.logger.Info("Ордер изменён", zap.String("broker_order_id", brokerOrderID))
	return nil
}

// CancelOrder отменяет размещённый ордер.
// Локальный статус оптимистично переводится в CANCELLED.
func (m *Manager) CancelOrder(ctx context.Context, brokerOrderID string) error {
	m.mu.RLock()
	order, exists := m.pending[brokerOrderID]
	m.mu.RUnlock()

	if !exists {
		return ErrNotPending
	}

	err := m.broker.CancelOrder(ctx, brokerOrderID)
	if err != nil {
		m.handleBrokerError(err)
		return fmt.Errorf("cancel order not confirmed: %w", err)
	}

	m.applyTransition(order, models.OrderStatusCancelled)

	m.logger.Info("Ордер отменён", zap.String("broker_order_id", brokerOrderID))
	return nil
}

// CancelAll отменяет все ордера рабочего набора.
// Используется при аварийной остановке, поэтому отмены
// повторяются агрессивно.
func (m *Manager) CancelAll(ctx context.Context) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	var lastErr error
	for _, id := range ids {
		id := id
		err := retry.Do(ctx, func() error {
			return m.broker.CancelOrder(ctx, id)
		}, retry.AggressiveConfig())

		if err != nil {
			m.logger.Error("Не удалось отменить ордер при аварийной остановке",
				zap.String("broker_order_id", id),
				zap.Error(err))
			lastErr = err
			continue
		}

		m.mu.RLock()
		order, exists := m.pending[id]
		m.mu.RUnlock()
		if exists {
			m.applyTransition(order, models.OrderStatusCancelled)
		}
	}

	if lastErr != nil {
		return fmt.Errorf("cancel all incomplete: %w", lastErr)
	}

	m.logger.Info("Все ордера рабочего набора отменены", zap.Int("count", len(ids)))
	return nil
}

// PendingCount возвращает размер рабочего набора
func (m *Manager) PendingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.pending)
}

// PendingOrders возвращает копию рабочего набора для API
func (m *Manager) PendingOrders() []*models.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orders := make([]*models.Order, 0, len(m.pending))
	for _, order := range m.pending {
		copied := *order
		orders = append(orders, &copied)
	}
	return orders
}

// monitorOrders - цикл опроса статусов ордеров у брокера.
//
// Единственный источник переходов из PLACED/MODIFIED.
// Ошибка итерации увеличивает паузу до следующей попытки,
// но не завершает цикл. Выход только по отмене контекста.
func (m *Manager) monitorOrders(ctx context.Context) {
	m.logger.Info("Цикл мониторинга ордеров запущен",
		zap.Duration("poll_interval", m.pollInterval))

	interval := m.pollInterval

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Цикл мониторинга ордеров остановлен")
			return
		case <-time.After(interval):
		}

		if m.PendingCount() == 0 {
			interval = m.pollInterval
			continue
		}

		if err := m.pollOnce(ctx); err != nil {
			m.logger.Error("Ошибка итерации мониторинга", zap.Error(err))
			interval = m.pollInterval * errorBackoffMultiplier
			continue
		}

		interval = m.pollInterval
	}
}

// pollOnce сверяет рабочий набор с книгой ордеров брокера
func (m *Manager) pollOnce(ctx context.Context) error {
	book, err := m.broker.GetOrderBook(ctx)
	if err != nil {
		m.handleBrokerError(err)
		return fmt.Errorf("failed to fetch order book: %w", err)
	}

	byID := make(map[string]broker.BrokerOrder, len(book))
	for _, bo := range book {
		byID[bo.BrokerOrderID] = bo
	}

	type pendingOrder struct {
		order  *models.Order
		status string
	}

	m.mu.RLock()
	pendingCopy := make(map[string]pendingOrder, len(m.pending))
	for id, order := range m.pending {
		pendingCopy[id] = pendingOrder{order: order, status: order.Status}
	}
	m.mu.RUnlock()

	for id, p := range pendingCopy {
		bo, found := byID[id]
		if !found {
			continue
		}

		newStatus := mapBrokerStatus(bo.OrderStatus)
		if newStatus == "" || newStatus == p.status {
			continue
		}

		// После ModifyOrder брокер продолжает сообщать "open" до
		// подтверждения изменения: локальный MODIFIED сохраняется
		if p.status == models.OrderStatusModified && newStatus == models.OrderStatusPlaced {
			continue
		}

		m.handleStatusChange(p.order, p.status, newStatus, bo)
	}

	return nil
}

// handleStatusChange применяет переход статуса от брокера.
// Переход EXECUTED дополнительно материализует сделку и
// удаляет ордер из рабочего набора как единый логический шаг.
func (m *Manager) handleStatusChange(order *models.Order, from, newStatus string, bo broker.BrokerOrder) {
	if !CanTransition(from, newStatus) {
		m.logger.Warn("Недопустимый переход статуса от брокера",
			zap.String("broker_order_id", order.BrokerOrderID),
			zap.String("from", from),
			zap.String("to", newStatus))
		return
	}

	m.logger.Info("Статус ордера изменён",
		zap.String("broker_order_id", order.BrokerOrderID),
		zap.String("from", from),
		zap.String("to", newStatus))

	switch newStatus {
	case models.OrderStatusExecuted:
		m.materializeTrade(order, bo)
	case models.OrderStatusCancelled, models.OrderStatusRejected:
		if newStatus == models.OrderStatusRejected {
			monitoring.OrdersRejected.WithLabelValues("broker").Inc()
		}
		m.mu.RLock()
		quantity := order.Quantity
		m.mu.RUnlock()
		m.applyTransition(order, newStatus)
		m.notifier.Notify(
			fmt.Sprintf("⚠️ Ордер %s: %s %s x%d", newStatus, order.Side, order.Symbol, quantity),
			models.PriorityNormal)
	default:
		m.applyTransition(order, newStatus)
	}
}

// materializeTrade создаёт запись о сделке по исполненному ордеру,
// помечает ордер исполненным и удаляет его из рабочего набора
func (m *Manager) materializeTrade(order *models.Order, bo broker.BrokerOrder) {
	executedAt := time.Now()

	trade := &models.Trade{
		OrderID:         order.BrokerOrderID,
		InstrumentID:    order.InstrumentID,
		Symbol:          order.Symbol,
		TransactionType: order.Side,
		Quantity:        bo.FilledQuantity,
		Price:           bo.AverageTradedPrice,
		Strategy:        order.Strategy,
		PortfolioType:   order.PortfolioType,
		Timestamp:       executedAt,
	}

	if err := m.trades.Create(trade); err != nil {
		m.logger.Error("Не удалось сохранить сделку",
			zap.String("broker_order_id", order.BrokerOrderID),
			zap.Error(err))
		// Ордер остаётся в pending: следующая итерация повторит
		// материализацию, восстановление после перезапуска тоже
		return
	}

	if err := m.orders.MarkExecuted(order.BrokerOrderID, executedAt); err != nil {
		m.logger.Error("Не удалось пометить ордер исполненным",
			zap.String("broker_order_id", order.BrokerOrderID),
			zap.Error(err))
	}

	m.mu.Lock()
	order.Status = models.OrderStatusExecuted
	order.ExecutedAt = &executedAt
	delete(m.pending, order.BrokerOrderID)
	m.mu.Unlock()

	monitoring.TradesExecuted.WithLabelValues(order.Symbol).Inc()

	m.logger.Info("Сделка материализована",
		zap.String("broker_order_id", order.BrokerOrderID),
		zap.Int("filled_quantity", bo.FilledQuantity),
		zap.Float64("price", bo.AverageTradedPrice))

	m.notifier.Notify(
		fmt.Sprintf("✅ Исполнен: %s %s x%d @ %.2f",
			order.Side, order.Symbol, bo.FilledQuantity, bo.AverageTradedPrice),
		models.PriorityHigh)
}

// applyTransition обновляет статус локально и в БД.
// Финальные статусы удаляют ордер из рабочего набора.
// Проверка перехода и мутация ордера выполняются под мьютексом
// как единый шаг, запись в БД идёт уже без блокировки.
func (m *Manager) applyTransition(order *models.Order, newStatus string) {
	m.mu.Lock()
	if !CanTransition(order.Status, newStatus) {
		from := order.Status
		m.mu.Unlock()
		m.logger.Warn("Недопустимый переход статуса",
			zap.String("broker_order_id", order.BrokerOrderID),
			zap.String("from", from),
			zap.String("to", newStatus))
		return
	}

	order.Status = newStatus
	if models.IsTerminal(newStatus) {
		delete(m.pending, order.BrokerOrderID)
	}
	m.mu.Unlock()

	if err := m.orders.UpdateStatus(order.BrokerOrderID, newStatus); err != nil &&
		!errors.Is(err, repository.ErrOrderNotFound) {
		m.logger.Error("Не удалось обновить статус ордера в БД",
			zap.String("broker_order_id", order.BrokerOrderID),
			zap.Error(err))
	}
}

// validateRequest проверяет обязательные поля запроса
func (m *Manager) validateRequest(req models.OrderRequest) error {
	if err := utils.ValidateInstrumentID(req.InstrumentID); err != nil {
		return err
	}
	if err := utils.ValidateSide(req.Side); err != nil {
		return err
	}
	if err := utils.ValidateQuantity(req.Quantity); err != nil {
		return err
	}
	if err := utils.ValidatePrice(req.Price); err != nil {
		return err
	}
	return nil
}

// isHedgingOrder возвращает true если ордер уменьшает существующую
// позицию (противоположная сторона). В режиме hedge_only разрешены
// только такие ордера.
func (m *Manager) isHedgingOrder(req models.OrderRequest) bool {
	position, err := m.positions.GetByInstrument(req.InstrumentID, req.Strategy)
	if err != nil {
		// Нет позиции - хеджировать нечего
		return false
	}

	switch {
	case position.Quantity > 0 && req.Side == utils.SideSell:
		return true
	case position.Quantity < 0 && req.Side == utils.SideBuy:
		return true
	default:
		return false
	}
}

// handleBrokerError обрабатывает критичные ошибки брокера.
// Ошибка аутентификации выключает торговлю: устаревшая сессия
// обесценивает предположения о безопасности открытых позиций.
func (m *Manager) handleBrokerError(err error) {
	if errors.Is(err, broker.ErrAuthFailed) {
		m.logger.Error("Ошибка аутентификации брокера, торговля выключается")
		m.tradingState.DisableTrading()
		m.notifier.Notify("🚨 Ошибка аутентификации брокера, торговля выключена", models.PriorityCritical)
	}
}
