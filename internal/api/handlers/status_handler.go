package handlers

import (
	"net/http"

	"quanthybrid/internal/models"
	"quanthybrid/internal/monitoring"
	"quanthybrid/internal/state"
)

// StateController управляет глобальным торговым состоянием
type StateController interface {
	GetSnapshot() state.Snapshot
	EnableTrading() bool
	DisableTrading()
	ResetEmergencyStop()
	IsEmergencyStop() bool
}

// RiskReader отдаёт текущие риск-метрики
type RiskReader interface {
	Metrics() models.RiskMetrics
}

// MonitorReader отдаёт состояние монитора безопасности
type MonitorReader interface {
	Status() monitoring.Status
}

// PendingReader отдаёт информацию об активных ордерах в памяти
type PendingReader interface {
	PendingCount() int
}

// StatusHandler обрабатывает запросы состояния системы и управления торговлей.
//
// Endpoints:
// - GET /api/v1/status - полный снимок состояния системы
// - POST /api/v1/trading/enable - включить торговлю
// - POST /api/v1/trading/disable - выключить торговлю
// - POST /api/v1/emergency-stop/reset - снять аварийную остановку
type StatusHandler struct {
	state   StateController
	risk    RiskReader
	monitor MonitorReader
	pending PendingReader
}

// NewStatusHandler создаёт новый StatusHandler с внедрением зависимостей
func NewStatusHandler(st StateController, risk RiskReader, monitor MonitorReader, pending PendingReader) *StatusHandler {
	return &StatusHandler{
		state:   st,
		risk:    risk,
		monitor: monitor,
		pending: pending,
	}
}

// StatusResponse - полный снимок состояния системы для дашборда
type StatusResponse struct {
	State         state.Snapshot     `json:"state"`
	Risk          models.RiskMetrics `json:"risk"`
	Monitor       monitoring.Status  `json:"monitor"`
	PendingOrders int                `json:"pending_orders"`
}

// GetStatus возвращает снимок состояния системы.
//
// GET /api/v1/status
//
// Response 200 OK:
//
//	{
//	  "state": {"trading_enabled": true, "emergency_stop": false, "mode": "normal", ...},
//	  "risk": {"daily_pnl": -1250.50, "total_exposure": 85000, ...},
//	  "monitor": {"circuit_breaker_level": 0, "recovery_mode": false, ...},
//	  "pending_orders": 2
//	}
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{
		State:   h.state.GetSnapshot(),
		Risk:    h.risk.Metrics(),
		Monitor: h.monitor.Status(),
	}
	if h.pending != nil {
		response.PendingOrders = h.pending.PendingCount()
	}

	respondWithJSON(w, http.StatusOK, response)
}

// EnableTrading включает торговлю.
//
// POST /api/v1/trading/enable
//
// Торговля не включится если активен emergency stop или хотя бы
// один компонент системы не готов.
//
// HTTP коды:
// - 200 OK: торговля включена
// - 409 Conflict: включение отклонено состоянием системы
func (h *StatusHandler) EnableTrading(w http.ResponseWriter, r *http.Request) {
	if !h.state.EnableTrading() {
		respondWithError(w, http.StatusConflict,
			"trading cannot be enabled: emergency stop active or components not ready")
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "trading enabled"})
}

// DisableTrading выключает торговлю.
//
// POST /api/v1/trading/disable
func (h *StatusHandler) DisableTrading(w http.ResponseWriter, r *http.Request) {
	h.state.DisableTrading()
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "trading disabled"})
}

// ResetEmergencyStop снимает аварийную остановку.
//
// POST /api/v1/emergency-stop/reset
//
// Единственный способ снять emergency stop: автоматика его
// не сбрасывает. Торговля после сброса остаётся выключенной,
// оператор включает её отдельным запросом.
//
// HTTP коды:
// - 200 OK: аварийная остановка снята
// - 409 Conflict: аварийная остановка не активна
func (h *StatusHandler) ResetEmergencyStop(w http.ResponseWriter, r *http.Request) {
	if !h.state.IsEmergencyStop() {
		respondWithError(w, http.StatusConflict, "emergency stop is not active")
		return
	}

	h.state.ResetEmergencyStop()
	respondWithJSON(w, http.StatusOK, SuccessResponse{
		Message: "emergency stop reset, trading remains disabled",
	})
}
