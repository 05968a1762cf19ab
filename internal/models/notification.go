package models

import "time"

// Notification представляет уведомление о событии системы
type Notification struct {
	ID        int                    `json:"id" db:"id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	Type      string                 `json:"type" db:"type"`         // ORDER, RISK, BREAKER, EMERGENCY, SYSTEM, ERROR
	Priority  string                 `json:"priority" db:"priority"` // critical, high, normal
	Message   string                 `json:"message" db:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty" db:"meta"` // дополнительные данные (JSON в БД)
}

// Типы уведомлений
const (
	NotificationTypeOrder     = "ORDER"     // события жизненного цикла ордера
	NotificationTypeRisk      = "RISK"      // превышение риск-лимитов
	NotificationTypeBreaker   = "BREAKER"   // смена уровня circuit breaker
	NotificationTypeEmergency = "EMERGENCY" // аварийная остановка торговли
	NotificationTypeSystem    = "SYSTEM"    // здоровье системы (CPU, память, латентность)
	NotificationTypeError     = "ERROR"     // ошибка API/компонента
)

// Приоритеты уведомлений.
// Приоритет определяет набор каналов доставки:
// critical идёт во все каналы одновременно, normal только в основной.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityNormal   = "normal"
)
