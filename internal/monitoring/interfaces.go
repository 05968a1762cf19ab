package monitoring

import (
	"context"
	"time"

	"quanthybrid/internal/models"
	"quanthybrid/internal/notifications"
)

// interfaces.go - зависимости монитора безопасности
//
// Интерфейсы объявлены на стороне потребителя: монитор не импортирует
// пакеты execution и broker напрямую, что упрощает тестирование
// и исключает циклы импортов.

// EmergencyCanceller отменяет все активные ордера при аварийной остановке.
// Реализуется менеджером исполнения.
type EmergencyCanceller interface {
	CancelAll(ctx context.Context) error
	PendingCount() int
}

// BrokerHealth - здоровье подключения к брокеру
type BrokerHealth interface {
	GetMarginUsage(ctx context.Context) (float64, error)
	AverageLatency() time.Duration
}

// MarketHealth - здоровье потока рыночных данных
type MarketHealth interface {
	OldestQuoteAge() time.Duration
	TicksPerMinute() int
	WidestSpreadPercent() float64
}

// RiskSource - снимок риск-метрик и вердикт об остановке торговли
type RiskSource interface {
	Metrics() models.RiskMetrics
	ShouldStopTrading() bool
}

// TradeHistory - история сделок для оценки режима восстановления
type TradeHistory interface {
	CountSince(since time.Time) (int, error)
	GetSince(since time.Time) ([]*models.Trade, error)
}

// OrderHistory - частота ордеров по символам
type OrderHistory interface {
	CountSince(symbol string, since time.Time) (int, error)
}

// Notifier отправляет уведомления и отдаёт состояние rate gate
type Notifier interface {
	NotifyType(alertType, message, priority string)
	CheckThrottleStatus(alertType string) notifications.ThrottleStatus
}
