package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"quanthybrid/internal/api/handlers"
	"quanthybrid/internal/api/middleware"
	"quanthybrid/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	State     handlers.StateController
	Risk      handlers.RiskReader
	Monitor   handlers.MonitorReader
	Pending   handlers.PendingReader
	Orders    handlers.OrderReader
	Canceller handlers.OrderCanceller
	Trades    handlers.TradeReader
	Positions handlers.PositionReader

	Hub    *websocket.Hub
	Logger *zap.Logger
}

// SetupRoutes настраивает все HTTP маршруты приложения.
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── GET  /status - снимок состояния системы
//	├── POST /trading/enable - включить торговлю
//	├── POST /trading/disable - выключить торговлю
//	├── POST /emergency-stop/reset - снять аварийную остановку
//	├── GET  /orders - ордера (?status=active, ?limit=N)
//	├── DELETE /orders/{id} - отменить ордер
//	├── POST /orders/cancel-all - отменить все активные ордера
//	├── GET  /trades - последние сделки
//	└── GET  /positions - открытые позиции
//
// /ws/stream - WebSocket для real-time обновлений дашборда
// /metrics - Prometheus метрики
// /health - health check
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logging(logger))
	router.Use(middleware.CORS)

	api := router.PathPrefix("/api/v1").Subrouter()

	// Status routes
	if deps.State != nil && deps.Risk != nil && deps.Monitor != nil {
		statusHandler := handlers.NewStatusHandler(deps.State, deps.Risk, deps.Monitor, deps.Pending)
		api.HandleFunc("/status", statusHandler.GetStatus).Methods("GET")
		api.HandleFunc("/trading/enable", statusHandler.EnableTrading).Methods("POST")
		api.HandleFunc("/trading/disable", statusHandler.DisableTrading).Methods("POST")
		api.HandleFunc("/emergency-stop/reset", statusHandler.ResetEmergencyStop).Methods("POST")
	}

	// Order routes
	if deps.Orders != nil && deps.Canceller != nil {
		orderHandler := handlers.NewOrderHandler(deps.Orders, deps.Canceller)
		api.HandleFunc("/orders", orderHandler.GetOrders).Methods("GET")
		api.HandleFunc("/orders/cancel-all", orderHandler.CancelAllOrders).Methods("POST")
		api.HandleFunc("/orders/{id}", orderHandler.CancelOrder).Methods("DELETE")
	}

	// Trade routes
	if deps.Trades != nil {
		tradeHandler := handlers.NewTradeHandler(deps.Trades)
		api.HandleFunc("/trades", tradeHandler.GetTrades).Methods("GET")
	}

	// Position routes
	if deps.Positions != nil {
		positionHandler := handlers.NewPositionHandler(deps.Positions)
		api.HandleFunc("/positions", positionHandler.GetPositions).Methods("GET")
	}

	// WebSocket route
	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		})
	}

	// Prometheus metrics
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
