package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торговой платформы
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о проблемах
// - Разбор инцидентов после аварийных остановок

// ============ Метрики риска ============

// DailyPNL - дневной PNL в валюте счёта
var DailyPNL = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "quanthybrid",
		Subsystem: "risk",
		Name:      "daily_pnl",
		Help:      "Daily profit and loss in account currency",
	},
)

// TotalExposure - суммарная экспозиция по открытым позициям
var TotalExposure = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "quanthybrid",
		Subsystem: "risk",
		Name:      "total_exposure",
		Help:      "Total exposure across open positions in account currency",
	},
)

// OpenPositions - количество открытых позиций
var OpenPositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "quanthybrid",
		Subsystem: "risk",
		Name:      "open_positions",
		Help:      "Number of open positions",
	},
)

// DrawdownPercent - текущая просадка от пика дневного PNL (% капитала)
var DrawdownPercent = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "quanthybrid",
		Subsystem: "risk",
		Name:      "drawdown_percent",
		Help:      "Current drawdown from daily PNL peak as percent of capital",
	},
)

// CircuitBreakerLevel - текущий уровень circuit breaker (0-3)
var CircuitBreakerLevel = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "quanthybrid",
		Subsystem: "risk",
		Name:      "circuit_breaker_level",
		Help:      "Current circuit breaker level (0=off, 3=trading stopped)",
	},
)

// SizeFactor - действующий множитель размера позиций
var SizeFactor = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "quanthybrid",
		Subsystem: "risk",
		Name:      "size_factor",
		Help:      "Effective position size multiplier",
	},
)

// RecoveryMode - активен ли режим восстановления (1/0)
var RecoveryMode = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "quanthybrid",
		Subsystem: "risk",
		Name:      "recovery_mode",
		Help:      "Recovery mode active (1) or inactive (0)",
	},
)

// MarginUsage - использование маржи в процентах
var MarginUsage = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "quanthybrid",
		Subsystem: "risk",
		Name:      "margin_usage_percent",
		Help:      "Broker margin usage in percent",
	},
)

// ============ Метрики исполнения ============

// OrdersPlaced - размещённые ордера по символу и стороне
var OrdersPlaced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "quanthybrid",
		Subsystem: "execution",
		Name:      "orders_placed_total",
		Help:      "Total number of orders accepted by the broker",
	},
	[]string{"symbol", "side"},
)

// OrdersRejected - отклонённые ордера по причине
var OrdersRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "quanthybrid",
		Subsystem: "execution",
		Name:      "orders_rejected_total",
		Help:      "Total number of rejected orders by reason",
	},
	[]string{"reason"},
)

// TradesExecuted - исполненные сделки по символу
var TradesExecuted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "quanthybrid",
		Subsystem: "execution",
		Name:      "trades_executed_total",
		Help:      "Total number of executed trades",
	},
	[]string{"symbol"},
)

// PendingOrders - количество активных ордеров в реестре
var PendingOrders = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "quanthybrid",
		Subsystem: "execution",
		Name:      "pending_orders",
		Help:      "Number of orders in non-terminal states",
	},
)

// BrokerLatency - средняя латентность API брокера в миллисекундах
var BrokerLatency = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "quanthybrid",
		Subsystem: "execution",
		Name:      "broker_latency_ms",
		Help:      "Average broker API latency in milliseconds",
	},
)

// ============ Метрики рыночных данных ============

// OldestQuoteAge - возраст самой старой котировки в секундах
var OldestQuoteAge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "quanthybrid",
		Subsystem: "marketdata",
		Name:      "oldest_quote_age_seconds",
		Help:      "Age of the oldest tracked quote in seconds",
	},
)

// TickRate - количество тиков за последнюю минуту
var TickRate = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "quanthybrid",
		Subsystem: "marketdata",
		Name:      "ticks_per_minute",
		Help:      "Number of ticks received in the last minute",
	},
)

// WidestSpread - максимальный спред среди котировок (%)
var WidestSpread = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "quanthybrid",
		Subsystem: "marketdata",
		Name:      "widest_spread_percent",
		Help:      "Widest bid-ask spread across tracked symbols in percent",
	},
)

// ============ Метрики монитора ============

// EmergencyStops - количество аварийных остановок
var EmergencyStops = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "quanthybrid",
		Subsystem: "monitor",
		Name:      "emergency_stops_total",
		Help:      "Total number of emergency stops triggered",
	},
)

// CheckDuration - длительность проверок по секциям
var CheckDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "quanthybrid",
		Subsystem: "monitor",
		Name:      "check_duration_seconds",
		Help:      "Duration of safety check sections",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"section"},
)

// CheckErrors - ошибки проверок по секциям
var CheckErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "quanthybrid",
		Subsystem: "monitor",
		Name:      "check_errors_total",
		Help:      "Total number of failed safety checks by section",
	},
	[]string{"section"},
)

// ActiveWarnings - количество активных предупреждений
var ActiveWarnings = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "quanthybrid",
		Subsystem: "monitor",
		Name:      "active_warnings",
		Help:      "Number of active warnings in trading state",
	},
)
