package websocket

import (
	"time"

	"quanthybrid/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeStatusUpdate - снимок торгового состояния
	// Отправляется периодически для дашборда
	MessageTypeStatusUpdate MessageType = "statusUpdate"

	// MessageTypeNotification - новое уведомление
	// Отправляется при событиях: ордера, risk, breaker, emergency
	MessageTypeNotification MessageType = "notification"

	// MessageTypeOrderUpdate - изменение статуса ордера
	MessageTypeOrderUpdate MessageType = "orderUpdate"

	// MessageTypeRiskUpdate - обновление риск-метрик
	MessageTypeRiskUpdate MessageType = "riskUpdate"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// StatusUpdateMessage - снимок состояния системы для дашборда
type StatusUpdateMessage struct {
	BaseMessage
	Data interface{} `json:"data"`
}

// NotificationMessage - сообщение о новом уведомлении
type NotificationMessage struct {
	BaseMessage
	Data *NotificationData `json:"data"`
}

// NotificationData - данные уведомления
type NotificationData struct {
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Message  string `json:"message"`

	Timestamp time.Time `json:"timestamp"`
}

// OrderUpdateMessage - изменение статуса ордера
type OrderUpdateMessage struct {
	BaseMessage
	Data *models.Order `json:"data"`
}

// RiskUpdateMessage - обновление риск-метрик
type RiskUpdateMessage struct {
	BaseMessage
	Data models.RiskMetrics `json:"data"`
}

// ============ Фабричные функции для создания сообщений ============

// NewStatusUpdateMessage создаёт сообщение со снимком состояния
func NewStatusUpdateMessage(data interface{}) *StatusUpdateMessage {
	return &StatusUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeStatusUpdate,
			Timestamp: time.Now(),
		},
		Data: data,
	}
}

// NewNotificationMessage создаёт сообщение уведомления
func NewNotificationMessage(n models.Notification) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeNotification,
			Timestamp: time.Now(),
		},
		Data: &NotificationData{
			Type:      n.Type,
			Priority:  n.Priority,
			Message:   n.Message,
			Timestamp: n.Timestamp,
		},
	}
}

// NewOrderUpdateMessage создаёт сообщение об изменении ордера
func NewOrderUpdateMessage(order *models.Order) *OrderUpdateMessage {
	return &OrderUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeOrderUpdate,
			Timestamp: time.Now(),
		},
		Data: order,
	}
}

// NewRiskUpdateMessage создаёт сообщение с риск-метриками
func NewRiskUpdateMessage(metrics models.RiskMetrics) *RiskUpdateMessage {
	return &RiskUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeRiskUpdate,
			Timestamp: time.Now(),
		},
		Data: metrics,
	}
}
