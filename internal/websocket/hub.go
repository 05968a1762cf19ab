// Package websocket отдаёт дашборду обновления состояния
// и уведомления в реальном времени без поллинга.
package websocket

import (
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"quanthybrid/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Hub управляет активными WebSocket соединениями дашборда.
//
// Broadcast неблокирующий: при переполнении канала сообщение
// отбрасывается со счётчиком, медленный дашборд не тормозит
// торговые циклы. Медленные клиенты отключаются.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}

	dropped atomic.Int64

	mu     sync.RWMutex
	logger *zap.Logger
}

// NewHub создаёт hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		logger:     logger.Named("ws_hub"),
	}
}

// Run запускает главный цикл hub.
// Должен запускаться в отдельной горутине: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("Клиент подключён", zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("Клиент отключён", zap.Int("total", total))

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

// deliver рассылает сообщение клиентам.
// Список копируется под коротким RLock, отправка идёт без блокировки,
// медленные клиенты удаляются под Write Lock.
func (h *Hub) deliver(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	if len(toRemove) > 0 {
		h.mu.Lock()
		for _, client := range toRemove {
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		}
		total := len(h.clients)
		h.mu.Unlock()
		h.logger.Warn("Отключены медленные клиенты",
			zap.Int("removed", len(toRemove)),
			zap.Int("total", total))
	}
}

// closeAll отключает всех клиентов при остановке hub
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

// Stop останавливает цикл hub и отключает клиентов
func (h *Hub) Stop() {
	close(h.stop)
}

// Broadcast сериализует сообщение и ставит его в очередь рассылки.
// Неблокирующий: при переполнении очереди сообщение отбрасывается.
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Не удалось сериализовать сообщение", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.dropped.Add(1)
	}
}

// BroadcastStatus отправляет снимок состояния системы
func (h *Hub) BroadcastStatus(data interface{}) {
	h.Broadcast(NewStatusUpdateMessage(data))
}

// BroadcastNotification отправляет уведомление
func (h *Hub) BroadcastNotification(n models.Notification) {
	h.Broadcast(NewNotificationMessage(n))
}

// BroadcastOrderUpdate отправляет изменение статуса ордера
func (h *Hub) BroadcastOrderUpdate(order *models.Order) {
	h.Broadcast(NewOrderUpdateMessage(order))
}

// BroadcastRiskUpdate отправляет риск-метрики
func (h *Hub) BroadcastRiskUpdate(metrics models.RiskMetrics) {
	h.Broadcast(NewRiskUpdateMessage(metrics))
}

// ClientCount возвращает количество подключённых клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages возвращает количество отброшенных сообщений
func (h *Hub) DroppedMessages() int64 {
	return h.dropped.Load()
}
