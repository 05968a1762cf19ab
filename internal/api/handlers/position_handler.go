package handlers

import (
	"net/http"

	"quanthybrid/internal/models"
)

// PositionReader читает открытые позиции из хранилища
type PositionReader interface {
	GetAll() ([]*models.Position, error)
}

// PositionHandler обрабатывает запросы по открытым позициям.
//
// Endpoints:
// - GET /api/v1/positions - все открытые позиции
type PositionHandler struct {
	positions PositionReader
}

// NewPositionHandler создаёт новый PositionHandler с внедрением зависимости
func NewPositionHandler(positions PositionReader) *PositionHandler {
	return &PositionHandler{positions: positions}
}

// GetPositionsResponse представляет список позиций
type GetPositionsResponse struct {
	Positions []*models.Position `json:"positions"`
	Total     int                `json:"total"`
}

// GetPositions возвращает все открытые позиции.
//
// GET /api/v1/positions
func (h *PositionHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.GetAll()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get positions: "+err.Error())
		return
	}

	// Пустой массив вместо null
	if positions == nil {
		positions = []*models.Position{}
	}

	respondWithJSON(w, http.StatusOK, GetPositionsResponse{
		Positions: positions,
		Total:     len(positions),
	})
}
