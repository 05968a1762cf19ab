package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"quanthybrid/internal/config"
	"quanthybrid/internal/models"
)

// fakeChannel запоминает доставленные уведомления
type fakeChannel struct {
	mu      sync.Mutex
	name    string
	sendErr error
	sent    []models.Notification
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(ctx context.Context, n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.sent)
}

func (f *fakeChannel) last() models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.sent[len(f.sent)-1]
}

func testNotificationConfig() config.NotificationConfig {
	return config.NotificationConfig{
		QueueSize:         10,
		ThrottleWindow:    time.Minute,
		MaxPerWindow:      5,
		EmailHighPriority: true,
	}
}

func notification(alertType, priority string) models.Notification {
	return models.Notification{
		Timestamp: time.Now(),
		Type:      alertType,
		Priority:  priority,
		Message:   "test message",
	}
}

// ============ Dispatch Tests ============

func TestDispatch_CriticalGoesToAllChannels(t *testing.T) {
	primary := &fakeChannel{name: "telegram"}
	secondary := &fakeChannel{name: "email"}

	m := NewManager(testNotificationConfig(), []Channel{primary, secondary}, zap.NewNop())
	m.dispatch(context.Background(), notification(models.NotificationTypeEmergency, models.PriorityCritical))

	assert.Equal(t, 1, primary.count(), "critical должен дойти до основного канала")
	assert.Equal(t, 1, secondary.count(), "critical должен дойти до вторичного канала")
}

func TestDispatch_HighGoesToPrimaryAndEmail(t *testing.T) {
	primary := &fakeChannel{name: "telegram"}
	secondary := &fakeChannel{name: "email"}

	m := NewManager(testNotificationConfig(), []Channel{primary, secondary}, zap.NewNop())
	m.dispatch(context.Background(), notification(models.NotificationTypeRisk, models.PriorityHigh))

	assert.Equal(t, 1, primary.count())
	assert.Equal(t, 1, secondary.count(), "high дублируется на email при включённой настройке")
}

func TestDispatch_HighSkipsEmailWhenDisabled(t *testing.T) {
	cfg := testNotificationConfig()
	cfg.EmailHighPriority = false

	primary := &fakeChannel{name: "telegram"}
	secondary := &fakeChannel{name: "email"}

	m := NewManager(cfg, []Channel{primary, secondary}, zap.NewNop())
	m.dispatch(context.Background(), notification(models.NotificationTypeRisk, models.PriorityHigh))

	assert.Equal(t, 1, primary.count())
	assert.Equal(t, 0, secondary.count(), "high не должен идти на email при выключенной настройке")
}

func TestDispatch_NormalGoesToPrimaryOnly(t *testing.T) {
	primary := &fakeChannel{name: "telegram"}
	secondary := &fakeChannel{name: "email"}

	m := NewManager(testNotificationConfig(), []Channel{primary, secondary}, zap.NewNop())
	m.dispatch(context.Background(), notification(models.NotificationTypeOrder, models.PriorityNormal))

	assert.Equal(t, 1, primary.count())
	assert.Equal(t, 0, secondary.count(), "normal идёт только в основной канал")
}

// Ошибка канала логируется и не прерывает доставку остальным
func TestDispatch_ChannelErrorDoesNotBlockOthers(t *testing.T) {
	primary := &fakeChannel{name: "telegram", sendErr: errors.New("api down")}
	secondary := &fakeChannel{name: "email"}

	m := NewManager(testNotificationConfig(), []Channel{primary, secondary}, zap.NewNop())
	m.dispatch(context.Background(), notification(models.NotificationTypeEmergency, models.PriorityCritical))

	assert.Equal(t, 1, secondary.count(), "ошибка одного канала не должна блокировать другие")
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	mirrored []models.Notification
}

func (f *fakeBroadcaster) BroadcastNotification(n models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mirrored = append(f.mirrored, n)
}

func (f *fakeBroadcaster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.mirrored)
}

// Дашборд получает все уведомления независимо от приоритета
func TestDispatch_BroadcasterMirrorsAllPriorities(t *testing.T) {
	primary := &fakeChannel{name: "telegram"}
	broadcaster := &fakeBroadcaster{}

	m := NewManager(testNotificationConfig(), []Channel{primary}, zap.NewNop())
	m.SetBroadcaster(broadcaster)

	m.dispatch(context.Background(), notification(models.NotificationTypeOrder, models.PriorityNormal))
	m.dispatch(context.Background(), notification(models.NotificationTypeRisk, models.PriorityHigh))
	m.dispatch(context.Background(), notification(models.NotificationTypeEmergency, models.PriorityCritical))

	assert.Equal(t, 3, broadcaster.count())
}

// Зеркалирование работает даже без настроенных каналов доставки
func TestDispatch_BroadcasterWorksWithoutChannels(t *testing.T) {
	broadcaster := &fakeBroadcaster{}

	m := NewManager(testNotificationConfig(), nil, zap.NewNop())
	m.SetBroadcaster(broadcaster)

	m.dispatch(context.Background(), notification(models.NotificationTypeRisk, models.PriorityHigh))

	assert.Equal(t, 1, broadcaster.count())
}

// ============ Queue Tests ============

// Постановка в очередь неблокирующая: переполнение отбрасывает
// уведомление вместо блокировки вызывающего кода
func TestNotify_NonBlockingWhenQueueFull(t *testing.T) {
	cfg := testNotificationConfig()
	cfg.QueueSize = 1

	m := NewManager(cfg, []Channel{&fakeChannel{name: "telegram"}}, zap.NewNop())

	done := make(chan struct{})
	go func() {
		// Очередь не обрабатывается: второй вызов должен отброситься
		m.Notify("first", models.PriorityNormal)
		m.Notify("second", models.PriorityNormal)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify заблокировался на переполненной очереди")
	}
}

func TestStart_ProcessesQueue(t *testing.T) {
	primary := &fakeChannel{name: "telegram"}
	m := NewManager(testNotificationConfig(), []Channel{primary}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go m.Start(ctx)

	m.Notify("hello", models.PriorityNormal)

	require.Eventually(t, func() bool {
		return primary.count() == 1
	}, time.Second, 10*time.Millisecond, "уведомление должно быть доставлено")
}

// Всплеск однотипных уведомлений, накопившихся в очереди,
// сворачивается в одно перед доставкой
func TestStart_AggregatesQueuedBursts(t *testing.T) {
	primary := &fakeChannel{name: "telegram"}
	m := NewManager(testNotificationConfig(), []Channel{primary}, zap.NewNop())

	// Очередь наполняется до запуска обработчика
	for i := 0; i < 5; i++ {
		m.NotifyType("MARKET_ALERT", "Price spike", models.PriorityNormal)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go m.Start(ctx)

	require.Eventually(t, func() bool {
		return primary.count() == 1
	}, time.Second, 10*time.Millisecond, "пачка должна свернуться в одно уведомление")
	assert.Contains(t, primary.last().Message, "multiple occurrences: 5")
}

// ============ Throttle Tests ============

func TestThrottle_NotThrottledUnderLimit(t *testing.T) {
	th := NewThrottle(time.Minute, 5)

	for i := 0; i < 4; i++ {
		th.Record("MARKET_ALERT")
	}

	status := th.Status("MARKET_ALERT")
	assert.False(t, status.IsThrottled)
	assert.Equal(t, 4, status.SentInWindow)
}

func TestThrottle_ThrottledAtLimit(t *testing.T) {
	th := NewThrottle(time.Minute, 5)

	for i := 0; i < 10; i++ {
		th.Record("MARKET_ALERT")
	}

	status := th.Status("MARKET_ALERT")
	assert.True(t, status.IsThrottled)
	assert.Equal(t, 10, status.SentInWindow)
}

func TestThrottle_WindowSlides(t *testing.T) {
	th := NewThrottle(50*time.Millisecond, 2)

	th.Record("MARKET_ALERT")
	th.Record("MARKET_ALERT")
	assert.True(t, th.Status("MARKET_ALERT").IsThrottled)

	// События выходят за пределы окна
	time.Sleep(60 * time.Millisecond)

	status := th.Status("MARKET_ALERT")
	assert.False(t, status.IsThrottled)
	assert.Equal(t, 0, status.SentInWindow)
}

func TestThrottle_TypesAreIndependent(t *testing.T) {
	th := NewThrottle(time.Minute, 2)

	th.Record("MARKET_ALERT")
	th.Record("MARKET_ALERT")
	th.Record("SYSTEM_ALERT")

	assert.True(t, th.Status("MARKET_ALERT").IsThrottled)
	assert.False(t, th.Status("SYSTEM_ALERT").IsThrottled)
}

// Менеджер фиксирует отправки в rate gate при доставке
func TestManager_ThrottleRecordsDispatches(t *testing.T) {
	primary := &fakeChannel{name: "telegram"}
	m := NewManager(testNotificationConfig(), []Channel{primary}, zap.NewNop())

	for i := 0; i < 6; i++ {
		m.dispatch(context.Background(), notification("MARKET_ALERT", models.PriorityNormal))
	}

	status := m.CheckThrottleStatus("MARKET_ALERT")
	assert.True(t, status.IsThrottled)
	assert.Equal(t, 6, status.SentInWindow)
}

// ============ Aggregate Tests ============

func TestAggregate_CollapsesRepeatedTypes(t *testing.T) {
	var alerts []models.Notification
	for i := 0; i < 5; i++ {
		alerts = append(alerts, models.Notification{
			Type:    "SYSTEM_ALERT",
			Message: "High CPU usage",
		})
	}

	aggregated := Aggregate(alerts)

	require.Len(t, aggregated, 1)
	assert.Contains(t, aggregated[0].Message, "multiple occurrences: 5")
}

func TestAggregate_PreservesDistinctTypes(t *testing.T) {
	alerts := []models.Notification{
		{Type: "SYSTEM_ALERT", Message: "High CPU usage"},
		{Type: "MARKET_ALERT", Message: "Price spike"},
		{Type: "SYSTEM_ALERT", Message: "High CPU usage"},
	}

	aggregated := Aggregate(alerts)

	require.Len(t, aggregated, 2)
	assert.Equal(t, "SYSTEM_ALERT", aggregated[0].Type)
	assert.Contains(t, aggregated[0].Message, "multiple occurrences: 2")
	assert.Equal(t, "Price spike", aggregated[1].Message)
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
}
