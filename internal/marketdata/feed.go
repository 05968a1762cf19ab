package marketdata

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"quanthybrid/internal/models"
	"quanthybrid/internal/state"
)

// feed.go - WebSocket подключение к потоку котировок
//
// Читает тики из потока и передаёт их в Manager.
// При разрыве соединения переподключается с exponential backoff,
// компонент market_data помечается неготовым до восстановления.

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FeedConfig - настройки подключения к потоку котировок
type FeedConfig struct {
	URL            string
	Symbols        []string
	InitialDelay   time.Duration // начальная задержка переподключения
	MaxDelay       time.Duration // максимальная задержка после backoff
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
}

// DefaultFeedConfig возвращает настройки по умолчанию
// Задержки переподключения: 2s, 4s, 8s, 16s
func DefaultFeedConfig(url string, symbols []string) FeedConfig {
	return FeedConfig{
		URL:            url,
		Symbols:        symbols,
		InitialDelay:   2 * time.Second,
		MaxDelay:       16 * time.Second,
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
		PingInterval:   15 * time.Second,
	}
}

// Feed - клиент потока котировок
type Feed struct {
	cfg          FeedConfig
	manager      *Manager
	tradingState *state.TradingState
	logger       *zap.Logger
}

// NewFeed создаёт клиент потока котировок
func NewFeed(cfg FeedConfig, manager *Manager, ts *state.TradingState, logger *zap.Logger) *Feed {
	return &Feed{
		cfg:          cfg,
		manager:      manager,
		tradingState: ts,
		logger:       logger.Named("market_feed"),
	}
}

// Run подключается к потоку и читает тики до отмены контекста.
// При разрыве переподключается с exponential backoff.
func (f *Feed) Run(ctx context.Context) {
	delay := f.cfg.InitialDelay

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := f.connect(ctx)
		if err != nil {
			f.logger.Warn("Не удалось подключиться к потоку котировок",
				zap.Error(err),
				zap.Duration("retry_in", delay))

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			delay *= 2
			if delay > f.cfg.MaxDelay {
				delay = f.cfg.MaxDelay
			}
			continue
		}

		delay = f.cfg.InitialDelay
		f.tradingState.SetComponentStatus(state.ComponentMarketData, true)

		f.readLoop(ctx, conn)

		f.tradingState.SetComponentStatus(state.ComponentMarketData, false)
		conn.Close()
	}
}

// connect устанавливает соединение и подписывается на символы
func (f *Feed) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: f.cfg.ConnectTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return nil, err
	}

	subscribe, err := json.Marshal(map[string]interface{}{
		"action":  "subscribe",
		"symbols": f.cfg.Symbols,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := conn.WriteMessage(websocket.TextMessage, subscribe); err != nil {
		conn.Close()
		return nil, err
	}

	f.logger.Info("Подключение к потоку котировок установлено",
		zap.Int("symbols", len(f.cfg.Symbols)))

	return conn, nil
}

// readLoop читает тики до ошибки или отмены контекста
func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Закрытие по отмене контекста прерывает блокирующее чтение
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				f.logger.Warn("Поток котировок разорван", zap.Error(err))
			}
			return
		}

		var tick models.Tick
		if err := json.Unmarshal(message, &tick); err != nil {
			f.logger.Warn("Не удалось разобрать тик", zap.Error(err))
			continue
		}

		if err := f.manager.OnTick(tick); err != nil {
			// Испорченная котировка уже залогирована менеджером
			continue
		}
	}
}
