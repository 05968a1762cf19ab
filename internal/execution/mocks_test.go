package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quanthybrid/internal/broker"
	"quanthybrid/internal/models"
	"quanthybrid/internal/repository"
)

// ============ Mock Broker ============

type MockBroker struct {
	mu sync.Mutex

	placeErr  error
	modifyErr error
	cancelErr error
	bookErr   error

	nextID    int
	book      []broker.BrokerOrder
	cancelled []string
	modified  []string
}

func NewMockBroker() *MockBroker {
	return &MockBroker{nextID: 1}
}

func (m *MockBroker) PlaceOrder(ctx context.Context, params broker.PlaceOrderParams) (*broker.PlaceOrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.placeErr != nil {
		return nil, m.placeErr
	}

	id := fmt.Sprintf("BRK-%d", m.nextID)
	m.nextID++

	m.book = append(m.book, broker.BrokerOrder{
		BrokerOrderID: id,
		InstrumentID:  params.InstrumentID,
		Symbol:        params.Symbol,
		Side:          params.Side,
		OrderStatus:   "open",
		Quantity:      params.Quantity,
	})

	return &broker.PlaceOrderResponse{BrokerOrderID: id, Status: "open"}, nil
}

func (m *MockBroker) ModifyOrder(ctx context.Context, brokerOrderID string, params broker.ModifyOrderParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.modifyErr != nil {
		return m.modifyErr
	}
	m.modified = append(m.modified, brokerOrderID)
	return nil
}

func (m *MockBroker) CancelOrder(ctx context.Context, brokerOrderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.cancelled = append(m.cancelled, brokerOrderID)
	return nil
}

func (m *MockBroker) GetOrderBook(ctx context.Context) ([]broker.BrokerOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bookErr != nil {
		return nil, m.bookErr
	}
	book := make([]broker.BrokerOrder, len(m.book))
	copy(book, m.book)
	return book, nil
}

func (m *MockBroker) GetPositions(ctx context.Context) ([]broker.BrokerPosition, error) {
	return nil, nil
}

func (m *MockBroker) GetTradeBook(ctx context.Context) ([]broker.BrokerTrade, error) {
	return nil, nil
}

func (m *MockBroker) GetMarginUsage(ctx context.Context) (float64, error) {
	return 0, nil
}

// setBrokerStatus выставляет статус ордера в книге брокера
func (m *MockBroker) setBrokerStatus(brokerOrderID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.book {
		if m.book[i].BrokerOrderID == brokerOrderID {
			m.book[i].OrderStatus = status
		}
	}
}

// setFill выставляет данные исполнения
func (m *MockBroker) setFill(brokerOrderID string, filledQty int, avgPrice float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.book {
		if m.book[i].BrokerOrderID == brokerOrderID {
			m.book[i].OrderStatus = "complete"
			m.book[i].FilledQuantity = filledQty
			m.book[i].AverageTradedPrice = avgPrice
		}
	}
}

// ============ Mock OrderRepository ============

type MockOrderRepository struct {
	mu sync.Mutex

	createErr error
	orders    map[string]*models.Order
	nextID    int
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]*models.Order),
		nextID: 1,
	}
}

func (m *MockOrderRepository) Create(order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.orders[order.BrokerOrderID]; exists {
		return repository.ErrDuplicateOrder
	}
	order.ID = m.nextID
	m.nextID++
	order.CreatedAt = time.Now()
	copied := *order
	m.orders[order.BrokerOrderID] = &copied
	return nil
}

func (m *MockOrderRepository) GetByBrokerOrderID(brokerOrderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, exists := m.orders[brokerOrderID]
	if !exists {
		return nil, repository.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (m *MockOrderRepository) UpdateStatus(brokerOrderID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, exists := m.orders[brokerOrderID]
	if !exists {
		return repository.ErrOrderNotFound
	}
	order.Status = status
	return nil
}

func (m *MockOrderRepository) MarkExecuted(brokerOrderID string, executedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, exists := m.orders[brokerOrderID]
	if !exists {
		return repository.ErrOrderNotFound
	}
	order.Status = models.OrderStatusExecuted
	order.ExecutedAt = &executedAt
	return nil
}

func (m *MockOrderRepository) GetActive() ([]*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var active []*models.Order
	for _, order := range m.orders {
		if !models.IsTerminal(order.Status) {
			copied := *order
			active = append(active, &copied)
		}
	}
	return active, nil
}

// ============ Mock TradeRepository ============

type MockTradeRepository struct {
	mu sync.Mutex

	createErr error
	trades    []*models.Trade
}

func NewMockTradeRepository() *MockTradeRepository {
	return &MockTradeRepository{}
}

func (m *MockTradeRepository) Create(trade *models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	trade.ID = len(m.trades) + 1
	copied := *trade
	m.trades = append(m.trades, &copied)
	return nil
}

func (m *MockTradeRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.trades)
}

// ============ Mock PositionRepository ============

type MockPositionRepository struct {
	positions map[string]*models.Position
}

func NewMockPositionRepository() *MockPositionRepository {
	return &MockPositionRepository{positions: make(map[string]*models.Position)}
}

func (m *MockPositionRepository) GetByInstrument(instrumentID, strategy string) (*models.Position, error) {
	position, exists := m.positions[instrumentID+"/"+strategy]
	if !exists {
		return nil, repository.ErrPositionNotFound
	}
	return position, nil
}

func (m *MockPositionRepository) set(position *models.Position) {
	m.positions[position.InstrumentID+"/"+position.Strategy] = position
}

// ============ Mock Notifier ============

type MockNotifier struct {
	mu       sync.Mutex
	messages []string
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(message, priority string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, priority+": "+message)
}
