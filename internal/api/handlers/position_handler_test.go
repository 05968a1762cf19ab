package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"quanthybrid/internal/models"
)

// ============ PositionHandler Tests ============

func TestPositionHandler_GetPositions(t *testing.T) {
	t.Run("returns open positions", func(t *testing.T) {
		reader := &mockPositionReader{positions: []*models.Position{
			{InstrumentID: "NSE:2885", Symbol: "RELIANCE", Quantity: 10, AveragePrice: 2400},
			{InstrumentID: "NSE:11536", Symbol: "TCS", Quantity: -5, AveragePrice: 3600},
		}}
		handler := NewPositionHandler(reader)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions", nil)
		w := httptest.NewRecorder()

		handler.GetPositions(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response GetPositionsResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response.Total != 2 {
			t.Errorf("expected total 2, got %d", response.Total)
		}
	})

	t.Run("returns empty array when flat", func(t *testing.T) {
		handler := NewPositionHandler(&mockPositionReader{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions", nil)
		w := httptest.NewRecorder()

		handler.GetPositions(w, req)

		var response GetPositionsResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response.Positions == nil {
			t.Error("expected empty array, got null")
		}
	})

	t.Run("returns 500 on database error", func(t *testing.T) {
		handler := NewPositionHandler(&mockPositionReader{err: ErrMockDatabase})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions", nil)
		w := httptest.NewRecorder()

		handler.GetPositions(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}
