package handlers

import (
	"context"
	"errors"

	"quanthybrid/internal/models"
	"quanthybrid/internal/monitoring"
	"quanthybrid/internal/state"
)

// ErrMockDatabase используется для симуляции ошибок базы данных
var ErrMockDatabase = errors.New("mock database error")

// ============ StateController mock ============

type mockState struct {
	snapshot      state.Snapshot
	emergencyStop bool
	enableOK      bool

	enableCalls  int
	disableCalls int
	resetCalls   int
}

func (m *mockState) GetSnapshot() state.Snapshot { return m.snapshot }

func (m *mockState) EnableTrading() bool {
	m.enableCalls++
	return m.enableOK
}

func (m *mockState) DisableTrading() { m.disableCalls++ }

func (m *mockState) ResetEmergencyStop() {
	m.resetCalls++
	m.emergencyStop = false
}

func (m *mockState) IsEmergencyStop() bool { return m.emergencyStop }

// ============ RiskReader / MonitorReader / PendingReader mocks ============

type mockRisk struct {
	metrics models.RiskMetrics
}

func (m *mockRisk) Metrics() models.RiskMetrics { return m.metrics }

type mockMonitor struct {
	status monitoring.Status
}

func (m *mockMonitor) Status() monitoring.Status { return m.status }

type mockPending struct {
	count int
}

func (m *mockPending) PendingCount() int { return m.count }

// ============ OrderReader / OrderCanceller mocks ============

type mockOrderReader struct {
	active []*models.Order
	recent []*models.Order
	err    error
}

func (m *mockOrderReader) GetActive() ([]*models.Order, error) {
	return m.active, m.err
}

func (m *mockOrderReader) GetRecent(limit int) ([]*models.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.recent) {
		return m.recent[:limit], nil
	}
	return m.recent, nil
}

type mockCanceller struct {
	cancelled  []string
	cancelAlls int
	err        error
}

func (m *mockCanceller) CancelOrder(ctx context.Context, brokerOrderID string) error {
	if m.err != nil {
		return m.err
	}
	m.cancelled = append(m.cancelled, brokerOrderID)
	return nil
}

func (m *mockCanceller) CancelAll(ctx context.Context) error {
	if m.err != nil {
		return m.err
	}
	m.cancelAlls++
	return nil
}

// ============ TradeReader / PositionReader mocks ============

type mockTradeReader struct {
	trades []*models.Trade
	err    error
}

func (m *mockTradeReader) GetRecent(limit int) ([]*models.Trade, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.trades) {
		return m.trades[:limit], nil
	}
	return m.trades, nil
}

type mockPositionReader struct {
	positions []*models.Position
	err       error
}

func (m *mockPositionReader) GetAll() ([]*models.Position, error) {
	return m.positions, m.err
}
