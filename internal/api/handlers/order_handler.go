package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"quanthybrid/internal/models"
)

// OrderReader читает ордера из хранилища
type OrderReader interface {
	GetActive() ([]*models.Order, error)
	GetRecent(limit int) ([]*models.Order, error)
}

// OrderCanceller отменяет ордера у брокера
type OrderCanceller interface {
	CancelOrder(ctx context.Context, brokerOrderID string) error
	CancelAll(ctx context.Context) error
}

// OrderHandler обрабатывает запросы по ордерам.
//
// Endpoints:
// - GET /api/v1/orders - последние ордера
// - GET /api/v1/orders?status=active - только активные (PENDING, PLACED, MODIFIED)
// - DELETE /api/v1/orders/{id} - отменить ордер по broker order ID
// - POST /api/v1/orders/cancel-all - отменить все активные ордера
type OrderHandler struct {
	orders    OrderReader
	canceller OrderCanceller
}

// NewOrderHandler создаёт новый OrderHandler с внедрением зависимостей
func NewOrderHandler(orders OrderReader, canceller OrderCanceller) *OrderHandler {
	return &OrderHandler{
		orders:    orders,
		canceller: canceller,
	}
}

// GetOrdersResponse представляет список ордеров
type GetOrdersResponse struct {
	Orders []*models.Order `json:"orders"`
	Total  int             `json:"total"`
}

// GetOrders возвращает список ордеров.
//
// GET /api/v1/orders?status=active&limit=50
//
// Query параметры:
// - status (optional): "active" вернёт только незавершённые ордера
// - limit (optional): количество записей (по умолчанию 100, максимум 500)
//
// HTTP коды:
// - 200 OK: успешно
// - 500 Internal Server Error: ошибка базы данных
func (h *OrderHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	var (
		orders []*models.Order
		err    error
	)

	if r.URL.Query().Get("status") == "active" {
		orders, err = h.orders.GetActive()
	} else {
		orders, err = h.orders.GetRecent(parseLimit(r, 100, 500))
	}

	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get orders: "+err.Error())
		return
	}

	if orders == nil {
		orders = []*models.Order{}
	}

	respondWithJSON(w, http.StatusOK, GetOrdersResponse{
		Orders: orders,
		Total:  len(orders),
	})
}

// CancelOrder отменяет один ордер по broker order ID.
//
// DELETE /api/v1/orders/{id}
//
// HTTP коды:
// - 200 OK: отмена принята брокером
// - 500 Internal Server Error: брокер отклонил отмену
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	brokerOrderID := mux.Vars(r)["id"]
	if brokerOrderID == "" {
		respondWithError(w, http.StatusBadRequest, "order id is required")
		return
	}

	if err := h.canceller.CancelOrder(r.Context(), brokerOrderID); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to cancel order: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "order cancelled"})
}

// CancelAllOrders отменяет все активные ордера.
//
// POST /api/v1/orders/cancel-all
//
// Используется оператором как ручная мера. Частичные отказы
// агрегируются в одну ошибку.
func (h *OrderHandler) CancelAllOrders(w http.ResponseWriter, r *http.Request) {
	if err := h.canceller.CancelAll(r.Context()); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to cancel all orders: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "all orders cancelled"})
}
