package execution

import "quanthybrid/internal/models"

// ValidTransitions определяет допустимые переходы статусов ордера.
//
// PENDING - ордер создан локально, PLACED - подтверждён брокером.
// MODIFIED остаётся под мониторингом (не финальный статус).
// EXECUTED, CANCELLED и REJECTED финальны: переходов из них нет,
// ордер удаляется из рабочего набора pending.
var ValidTransitions = map[string][]string{
	models.OrderStatusPending: {models.OrderStatusPlaced, models.OrderStatusRejected},
	models.OrderStatusPlaced: {
		models.OrderStatusExecuted,
		models.OrderStatusCancelled,
		models.OrderStatusRejected,
		models.OrderStatusModified,
	},
	models.OrderStatusModified: {
		models.OrderStatusExecuted,
		models.OrderStatusCancelled,
		models.OrderStatusRejected,
		models.OrderStatusModified, // повторное изменение
	},
	models.OrderStatusExecuted:  {},
	models.OrderStatusCancelled: {},
	models.OrderStatusRejected:  {},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StatusInfo возвращает описание статуса для UI
func StatusInfo(s string) string {
	switch s {
	case models.OrderStatusPending:
		return "Ордер создан, ожидает отправки брокеру"
	case models.OrderStatusPlaced:
		return "Ордер принят брокером"
	case models.OrderStatusExecuted:
		return "Ордер исполнен"
	case models.OrderStatusCancelled:
		return "Ордер отменён"
	case models.OrderStatusRejected:
		return "Ордер отклонён"
	case models.OrderStatusModified:
		return "Параметры ордера изменены"
	default:
		return "Неизвестный статус"
	}
}

// mapBrokerStatus переводит статус брокера во внутренний статус ордера.
// Неизвестные статусы сохраняют текущий (пустая строка = без изменения).
func mapBrokerStatus(brokerStatus string) string {
	switch brokerStatus {
	case "complete", "traded", "executed":
		return models.OrderStatusExecuted
	case "cancelled":
		return models.OrderStatusCancelled
	case "rejected":
		return models.OrderStatusRejected
	case "modified", "trigger pending":
		return models.OrderStatusModified
	case "open", "pending":
		return models.OrderStatusPlaced
	default:
		return ""
	}
}
