package execution

import (
	"time"

	"quanthybrid/internal/models"
)

// interfaces.go - контракты зависимостей менеджера ордеров.
// Позволяют подменять репозитории и уведомления в тестах.

// OrderRepositoryInterface - хранилище ордеров
type OrderRepositoryInterface interface {
	Create(order *models.Order) error
	GetByBrokerOrderID(brokerOrderID string) (*models.Order, error)
	UpdateStatus(brokerOrderID, status string) error
	MarkExecuted(brokerOrderID string, executedAt time.Time) error
	GetActive() ([]*models.Order, error)
}

// TradeRepositoryInterface - хранилище сделок
type TradeRepositoryInterface interface {
	Create(trade *models.Trade) error
}

// PositionRepositoryInterface - хранилище позиций
type PositionRepositoryInterface interface {
	GetByInstrument(instrumentID, strategy string) (*models.Position, error)
}

// Notifier - неблокирующая постановка уведомления в очередь
type Notifier interface {
	Notify(message, priority string)
}
