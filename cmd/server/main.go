package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"quanthybrid/internal/api"
	"quanthybrid/internal/broker"
	"quanthybrid/internal/config"
	"quanthybrid/internal/execution"
	"quanthybrid/internal/marketdata"
	"quanthybrid/internal/monitoring"
	"quanthybrid/internal/notifications"
	"quanthybrid/internal/repository"
	"quanthybrid/internal/risk"
	"quanthybrid/internal/state"
	"quanthybrid/internal/strategy"
	"quanthybrid/internal/websocket"
	"quanthybrid/pkg/crypto"
	"quanthybrid/pkg/utils"

	_ "github.com/lib/pq"
)

// Соль для вывода ключа шифрования учётных данных брокера.
// Изменение сделает существующие зашифрованные значения нечитаемыми.
const credentialSalt = "quanthybrid-broker-credentials"

func main() {
	// .env опционален: в production переменные приходят из окружения
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := utils.MustInitLogger(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()

	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("Не удалось подключиться к базе данных", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Подключение к базе данных установлено",
		zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Репозитории
	orderRepo := repository.NewOrderRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	positionRepo := repository.NewPositionRepository(db)

	// Глобальное торговое состояние
	tradingState := state.NewTradingState(logger)

	// Учётные данные брокера могут храниться в зашифрованном виде
	if err := decryptBrokerCredentials(cfg); err != nil {
		logger.Fatal("Не удалось расшифровать учётные данные брокера", zap.Error(err))
	}
	brokerClient := broker.NewClient(cfg.Broker, logger)

	// Уведомления: Telegram основной канал, email для high-priority
	var channels []notifications.Channel
	if cfg.Notifications.TelegramToken != "" {
		channels = append(channels, notifications.NewTelegramChannel(cfg.Notifications))
	}
	if cfg.Notifications.SMTPHost != "" {
		channels = append(channels, notifications.NewEmailChannel(cfg.Notifications))
	}
	notifier := notifications.NewManager(cfg.Notifications, channels, logger)

	// Рыночные данные
	instruments := parseInstruments(getEnv("TRADING_INSTRUMENTS", "NSE:2885=RELIANCE"))
	symbols := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		symbols = append(symbols, inst.Symbol)
	}

	marketManager := marketdata.NewManager(logger)
	feedURL := getEnv("MARKET_FEED_URL", "wss://stream.broker.example.com/quotes")
	feed := marketdata.NewFeed(marketdata.DefaultFeedConfig(feedURL, symbols),
		marketManager, tradingState, logger)

	// Риск-менеджер пассивен: готов сразу после создания
	riskManager := risk.NewManager(cfg.Risk, cfg.Breakers, tradingState, logger)
	tradingState.SetComponentStatus(state.ComponentRiskManager, true)

	// Исполнение ордеров
	orderManager := execution.NewManager(brokerClient, orderRepo, tradeRepo, positionRepo,
		tradingState, notifier, cfg.Broker.PollInterval, logger)

	// Монитор безопасности
	safetyMonitor := monitoring.NewSafetyMonitor(
		cfg.Monitoring, cfg.Breakers, cfg.Recovery,
		tradingState, riskManager, brokerClient, marketManager,
		tradeRepo, orderRepo, orderManager, notifier,
		symbols, logger)

	// Стратегия
	maStrategy := strategy.NewMACrossover(strategy.DefaultMACrossoverParams())
	engineCfg := strategy.DefaultEngineConfig(cfg.Monitoring.CapitalBase)
	engine := strategy.NewEngine(engineCfg, maStrategy, instruments,
		marketManager, riskManager, orderManager, brokerClient, positionRepo,
		tradeRepo, tradingState, logger)

	// WebSocket hub для дашборда, зеркалирует уведомления
	hub := websocket.NewHub(logger)
	notifier.SetBroadcaster(hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run()
	go notifier.Start(ctx)
	go feed.Run(ctx)
	go orderManager.Start(ctx)
	go safetyMonitor.Run(ctx)
	go engine.Run(ctx)
	go broadcastStatus(ctx, hub, tradingState, riskManager, safetyMonitor, orderManager)

	// HTTP API
	deps := &api.Dependencies{
		State:     tradingState,
		Risk:      riskManager,
		Monitor:   safetyMonitor,
		Pending:   orderManager,
		Orders:    orderRepo,
		Canceller: orderManager,
		Trades:    tradeRepo,
		Positions: positionRepo,
		Hub:       hub,
		Logger:    logger,
	}
	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP сервер запущен", zap.String("addr", server.Addr))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				logger.Fatal("Сервер остановлен с ошибкой", zap.Error(err))
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("Сервер остановлен с ошибкой", zap.Error(err))
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Остановка сервера")

	tradingState.DisableTrading()
	cancel()
	hub.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Принудительная остановка сервера", zap.Error(err))
	}

	logger.Info("Сервер остановлен")
}

// initDatabase создаёт подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// decryptBrokerCredentials расшифровывает API ключ и секрет брокера,
// если они заданы в зашифрованном виде (BROKER_CREDENTIALS_ENCRYPTED=true).
// Ключ шифрования выводится из ENCRYPTION_KEY через PBKDF2.
func decryptBrokerCredentials(cfg *config.Config) error {
	if getEnv("BROKER_CREDENTIALS_ENCRYPTED", "false") != "true" {
		return nil
	}

	key := crypto.DeriveKey(cfg.Security.EncryptionKey, []byte(credentialSalt))

	apiKey, err := crypto.Decrypt(cfg.Broker.APIKey, key)
	if err != nil {
		return fmt.Errorf("decrypt BROKER_API_KEY: %w", err)
	}
	apiSecret, err := crypto.Decrypt(cfg.Broker.APISecret, key)
	if err != nil {
		return fmt.Errorf("decrypt BROKER_API_SECRET: %w", err)
	}

	cfg.Broker.APIKey = apiKey
	cfg.Broker.APISecret = apiSecret
	return nil
}

// parseInstruments разбирает список инструментов из окружения.
// Формат: "NSE:2885=RELIANCE,NSE:11536=TCS"
func parseInstruments(raw string) []strategy.Instrument {
	var instruments []strategy.Instrument
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		instruments = append(instruments, strategy.Instrument{
			InstrumentID: parts[0],
			Symbol:       parts[1],
		})
	}
	return instruments
}

// broadcastStatus периодически отправляет снимок состояния
// подключённым клиентам дашборда
func broadcastStatus(
	ctx context.Context,
	hub *websocket.Hub,
	ts *state.TradingState,
	riskManager *risk.Manager,
	monitor *monitoring.SafetyMonitor,
	orderManager *execution.Manager,
) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hub.BroadcastStatus(map[string]interface{}{
				"state":          ts.GetSnapshot(),
				"risk":           riskManager.Metrics(),
				"monitor":        monitor.Status(),
				"pending_orders": orderManager.PendingCount(),
			})
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
