package handlers

import (
	"net/http"

	"quanthybrid/internal/models"
)

// TradeReader читает сделки из хранилища
type TradeReader interface {
	GetRecent(limit int) ([]*models.Trade, error)
}

// TradeHandler обрабатывает запросы по исполненным сделкам.
//
// Endpoints:
// - GET /api/v1/trades?limit=50 - последние сделки
type TradeHandler struct {
	trades TradeReader
}

// NewTradeHandler создаёт новый TradeHandler с внедрением зависимости
func NewTradeHandler(trades TradeReader) *TradeHandler {
	return &TradeHandler{trades: trades}
}

// GetTradesResponse представляет список сделок
type GetTradesResponse struct {
	Trades []*models.Trade `json:"trades"`
	Total  int             `json:"total"`
}

// GetTrades возвращает последние исполненные сделки.
//
// GET /api/v1/trades?limit=50
//
// Query параметры:
// - limit (optional): количество записей (по умолчанию 100, максимум 500)
func (h *TradeHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.trades.GetRecent(parseLimit(r, 100, 500))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get trades: "+err.Error())
		return
	}

	if trades == nil {
		trades = []*models.Trade{}
	}

	respondWithJSON(w, http.StatusOK, GetTradesResponse{
		Trades: trades,
		Total:  len(trades),
	})
}
