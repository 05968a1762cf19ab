package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"quanthybrid/internal/config"
	"quanthybrid/internal/models"
)

// Manager - менеджер уведомлений.
//
// Постановка в очередь неблокирующая: при переполнении буфера
// уведомление отбрасывается с записью в лог, чтобы медленный
// канал доставки не тормозил торговые циклы.
//
// Очередь обрабатывается пачками: всё накопившееся забирается
// за один приём, однотипные уведомления сворачиваются в одно
// с количеством повторов (Aggregate) перед доставкой.
//
// Доставка по приоритету:
//   - critical: во все каналы одновременно
//   - high:     основной канал + email при включённой настройке
//   - normal:   только основной канал
type Manager struct {
	cfg         config.NotificationConfig
	primary     Channel
	extra       []Channel
	queue       chan models.Notification
	throttle    *Throttle
	broadcaster Broadcaster
	logger      *zap.Logger
}

// Broadcaster зеркалирует уведомления на дашборд.
// Получает каждое обработанное уведомление независимо от приоритета.
type Broadcaster interface {
	BroadcastNotification(n models.Notification)
}

// NewManager создаёт менеджер уведомлений.
// Первый канал считается основным, остальные вторичными.
func NewManager(cfg config.NotificationConfig, channels []Channel, logger *zap.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		queue:    make(chan models.Notification, cfg.QueueSize),
		throttle: NewThrottle(cfg.ThrottleWindow, cfg.MaxPerWindow),
		logger:   logger.Named("notifications"),
	}

	if len(channels) > 0 {
		m.primary = channels[0]
		m.extra = channels[1:]
	}

	return m
}

// SetBroadcaster подключает зеркалирование на дашборд.
// Вызывается до Start, не потокобезопасен.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.broadcaster = b
}

// Start запускает цикл обработки очереди.
// Блокируется до отмены контекста.
func (m *Manager) Start(ctx context.Context) {
	m.logger.Info("Сервис уведомлений запущен",
		zap.Int("queue_size", m.cfg.QueueSize))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Сервис уведомлений остановлен")
			return
		case n := <-m.queue:
			batch := append([]models.Notification{n}, m.drainQueue()...)
			for _, aggregated := range Aggregate(batch) {
				m.dispatch(ctx, aggregated)
			}
		}
	}
}

// drainQueue забирает из очереди всё накопившееся без блокировки
func (m *Manager) drainQueue() []models.Notification {
	var batch []models.Notification
	for {
		select {
		case n := <-m.queue:
			batch = append(batch, n)
		default:
			return batch
		}
	}
}

// Notify ставит уведомление в очередь (неблокирующе).
// Тип события по умолчанию SYSTEM.
func (m *Manager) Notify(message, priority string) {
	m.NotifyType(models.NotificationTypeSystem, message, priority)
}

// NotifyType ставит в очередь уведомление с указанным типом события
func (m *Manager) NotifyType(alertType, message, priority string) {
	n := models.Notification{
		Timestamp: time.Now(),
		Type:      alertType,
		Priority:  priority,
		Message:   message,
	}

	select {
	case m.queue <- n:
	default:
		m.logger.Warn("Очередь уведомлений переполнена, уведомление отброшено",
			zap.String("type", alertType),
			zap.String("priority", priority))
	}
}

// NotifyTrade отправляет уведомление об исполненной сделке
func (m *Manager) NotifyTrade(trade *models.Trade) {
	message := fmt.Sprintf(
		"🔄 Сделка исполнена:\nСтратегия: %s\nИнструмент: %s\nСторона: %s\nКоличество: %d\nЦена: %.2f",
		trade.Strategy, trade.Symbol, trade.TransactionType, trade.Quantity, trade.Price)

	m.NotifyType(models.NotificationTypeOrder, message, models.PriorityNormal)
}

// NotifyError отправляет уведомление об ошибке компонента
func (m *Manager) NotifyError(component, message string) {
	m.NotifyType(models.NotificationTypeError,
		fmt.Sprintf("⚠️ Ошибка [%s]: %s", component, message),
		models.PriorityHigh)
}

// CheckThrottleStatus возвращает состояние rate gate для типа события.
// Используется монитором безопасности, чтобы не заспамить каналы
// повторяющимися предупреждениями.
func (m *Manager) CheckThrottleStatus(alertType string) ThrottleStatus {
	return m.throttle.Status(alertType)
}

// dispatch доставляет уведомление по каналам согласно приоритету
func (m *Manager) dispatch(ctx context.Context, n models.Notification) {
	m.throttle.Record(n.Type)

	// Дашборд получает всё независимо от маршрутизации по каналам
	if m.broadcaster != nil {
		m.broadcaster.BroadcastNotification(n)
	}

	if m.primary == nil {
		m.logger.Warn("Нет настроенных каналов доставки",
			zap.String("message", n.Message))
		return
	}

	switch n.Priority {
	case models.PriorityCritical:
		m.sendToAll(ctx, n)
	case models.PriorityHigh:
		m.send(ctx, m.primary, n)
		if m.cfg.EmailHighPriority {
			for _, ch := range m.extra {
				m.send(ctx, ch, n)
			}
		}
	default:
		m.send(ctx, m.primary, n)
	}
}

// sendToAll отправляет во все каналы одновременно
func (m *Manager) sendToAll(ctx context.Context, n models.Notification) {
	channels := append([]Channel{m.primary}, m.extra...)

	var wg sync.WaitGroup
	for _, ch := range channels {
		ch := ch
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.send(ctx, ch, n)
		}()
	}
	wg.Wait()
}

// send отправляет в один канал, ошибка доставки только логируется
func (m *Manager) send(ctx context.Context, ch Channel, n models.Notification) {
	if err := ch.Send(ctx, n); err != nil {
		m.logger.Error("Ошибка доставки уведомления",
			zap.String("channel", ch.Name()),
			zap.String("priority", n.Priority),
			zap.Error(err))
	}
}

// Aggregate сворачивает повторяющиеся уведомления одного типа
// в одно с количеством повторов. Порядок типов сохраняется
// по первому вхождению. Применяется к каждой пачке из очереди
// перед доставкой.
func Aggregate(notifications []models.Notification) []models.Notification {
	byType := make(map[string][]models.Notification)
	var order []string

	for _, n := range notifications {
		if _, seen := byType[n.Type]; !seen {
			order = append(order, n.Type)
		}
		byType[n.Type] = append(byType[n.Type], n)
	}

	aggregated := make([]models.Notification, 0, len(order))
	for _, alertType := range order {
		group := byType[alertType]
		if len(group) == 1 {
			aggregated = append(aggregated, group[0])
			continue
		}

		first := group[0]
		first.Message = fmt.Sprintf("%s (multiple occurrences: %d)", first.Message, len(group))
		aggregated = append(aggregated, first)
	}

	return aggregated
}
