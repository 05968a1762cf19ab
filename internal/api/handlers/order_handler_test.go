package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"quanthybrid/internal/models"
)

// ============ OrderHandler Tests ============

func TestOrderHandler_GetOrders(t *testing.T) {
	t.Run("returns recent orders by default", func(t *testing.T) {
		reader := &mockOrderReader{recent: []*models.Order{
			{BrokerOrderID: "BRK-1", Symbol: "RELIANCE", Status: models.OrderStatusExecuted},
			{BrokerOrderID: "BRK-2", Symbol: "TCS", Status: models.OrderStatusCancelled},
		}}
		handler := NewOrderHandler(reader, &mockCanceller{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		w := httptest.NewRecorder()

		handler.GetOrders(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response GetOrdersResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response.Total != 2 {
			t.Errorf("expected total 2, got %d", response.Total)
		}
	})

	t.Run("status=active returns only active orders", func(t *testing.T) {
		reader := &mockOrderReader{
			active: []*models.Order{{BrokerOrderID: "BRK-1", Status: models.OrderStatusPlaced}},
			recent: []*models.Order{
				{BrokerOrderID: "BRK-1", Status: models.OrderStatusPlaced},
				{BrokerOrderID: "BRK-2", Status: models.OrderStatusExecuted},
			},
		}
		handler := NewOrderHandler(reader, &mockCanceller{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=active", nil)
		w := httptest.NewRecorder()

		handler.GetOrders(w, req)

		var response GetOrdersResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response.Total != 1 {
			t.Errorf("expected total 1, got %d", response.Total)
		}
	})

	t.Run("respects limit parameter", func(t *testing.T) {
		reader := &mockOrderReader{}
		for i := 0; i < 10; i++ {
			reader.recent = append(reader.recent, &models.Order{BrokerOrderID: "BRK"})
		}
		handler := NewOrderHandler(reader, &mockCanceller{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=5", nil)
		w := httptest.NewRecorder()

		handler.GetOrders(w, req)

		var response GetOrdersResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response.Total != 5 {
			t.Errorf("expected total 5 (limited), got %d", response.Total)
		}
	})

	t.Run("returns empty array when no orders", func(t *testing.T) {
		handler := NewOrderHandler(&mockOrderReader{}, &mockCanceller{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		w := httptest.NewRecorder()

		handler.GetOrders(w, req)

		var response GetOrdersResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response.Orders == nil {
			t.Error("expected empty array, got null")
		}
	})

	t.Run("returns 500 on database error", func(t *testing.T) {
		handler := NewOrderHandler(&mockOrderReader{err: ErrMockDatabase}, &mockCanceller{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		w := httptest.NewRecorder()

		handler.GetOrders(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}

func TestOrderHandler_CancelOrder(t *testing.T) {
	t.Run("cancels order by broker order id", func(t *testing.T) {
		canceller := &mockCanceller{}
		handler := NewOrderHandler(&mockOrderReader{}, canceller)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/orders/BRK-42", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "BRK-42"})
		w := httptest.NewRecorder()

		handler.CancelOrder(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		if len(canceller.cancelled) != 1 || canceller.cancelled[0] != "BRK-42" {
			t.Errorf("expected cancel of BRK-42, got %v", canceller.cancelled)
		}
	})

	t.Run("returns 500 when broker rejects cancel", func(t *testing.T) {
		canceller := &mockCanceller{err: ErrMockDatabase}
		handler := NewOrderHandler(&mockOrderReader{}, canceller)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/orders/BRK-42", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "BRK-42"})
		w := httptest.NewRecorder()

		handler.CancelOrder(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}

func TestOrderHandler_CancelAllOrders(t *testing.T) {
	canceller := &mockCanceller{}
	handler := NewOrderHandler(&mockOrderReader{}, canceller)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/cancel-all", nil)
	w := httptest.NewRecorder()

	handler.CancelAllOrders(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if canceller.cancelAlls != 1 {
		t.Errorf("expected 1 cancel-all call, got %d", canceller.cancelAlls)
	}
}
