package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Security      SecurityConfig
	Broker        BrokerConfig
	Risk          RiskConfig
	Breakers      BreakerConfig
	Recovery      RecoveryConfig
	Monitoring    MonitoringConfig
	Notifications NotificationConfig
	Logging       LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	EncryptionKey string // ключ AES-256 для шифрования учётных данных брокера
}

// BrokerConfig - настройки подключения к брокеру
type BrokerConfig struct {
	BaseURL        string
	APIKey         string
	APISecret      string
	RequestTimeout time.Duration
	MaxRetries     int
	PollInterval   time.Duration // период опроса статусов размещённых ордеров
}

// RiskConfig - лимиты риск-менеджера
type RiskConfig struct {
	MaxPositionSize  int     // максимальный размер одной позиции (штук)
	MinPositionSize  int     // минимальный размер позиции
	MaxDailyLoss     float64 // максимальный дневной убыток (валюта)
	MaxDrawdown      float64 // максимальная просадка (доля, 0.20 = 20%)
	MaxTotalExposure float64 // максимальная суммарная экспозиция (валюта)

	// Пороги волатильности для корректировки размера ордера
	HighVolatility   float64 // выше: количество умножается на 0.5
	MediumVolatility float64 // выше: количество умножается на 0.75
	MaxVolatility    float64 // выше: ордер отклоняется
	VolatilityBase   float64 // базовая волатильность для расчёта размера

	MinTrendStrength   float64 // минимальная сила тренда для входа
	MaxCapitalPerTrade float64 // максимальный капитал на одну сделку
}

// BreakerConfig - пороги circuit breaker по уровням просадки.
// Просадка задаётся в процентах от капитала.
type BreakerConfig struct {
	Level1Drawdown   float64       // reduce_size: размер ордеров умножается на Level1SizeFactor
	Level1SizeFactor float64
	Level2Drawdown   float64       // hedge_only: разрешены только хеджирующие ордера
	Level2SizeFactor float64
	Level3Drawdown   float64       // stop_trading: полная остановка торговли
	Cooldown         time.Duration // минимальное время на уровне до понижения
}

// RecoveryConfig - параметры режима восстановления после убытков
type RecoveryConfig struct {
	ActivationLoss float64 // дневной убыток (%) активирующий режим восстановления
	SizeFactor     float64 // множитель размера позиций в режиме восстановления
	MinWinRate     float64 // минимальный win rate для выхода из режима
	MinTrades      int     // минимум сделок для оценки win rate
}

// MonitoringConfig - пороги монитора безопасности
type MonitoringConfig struct {
	CheckInterval     time.Duration // период цикла проверок SafetyMonitor
	MaxCPUPercent     float64
	MaxMemoryPercent  float64
	MaxDiskPercent    float64
	MaxLatency        time.Duration // максимальная латентность API брокера
	MarginWarning     float64       // использование маржи (%): предупреждение
	MarginCritical    float64       // использование маржи (%): аварийная остановка
	MaxQuoteStaleness time.Duration // максимальный возраст котировки
	MinTickFrequency  int           // минимум тиков в минуту для здорового фида
	MaxErrorStreak    int           // подряд ошибок проверки до аварийной остановки

	CapitalBase      float64       // капитал для расчёта просадки в процентах
	MaxTradesPerHour int           // максимум сделок в час до предупреждения
	MinOrderSpacing  time.Duration // минимальный интервал между ордерами одного символа
	MaxSpreadPercent float64       // максимальный спред bid-ask (%)
}

// NotificationConfig - настройки доставки уведомлений
type NotificationConfig struct {
	QueueSize      int           // размер буфера очереди уведомлений
	ThrottleWindow time.Duration // окно подсчёта для throttling
	MaxPerWindow   int           // максимум уведомлений одного типа за окно

	TelegramToken  string
	TelegramChatID string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailTo      string

	// Дублировать high-priority уведомления на email
	EmailHighPriority bool
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "quanthybrid"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		},
		Broker: BrokerConfig{
			BaseURL:        getEnv("BROKER_BASE_URL", "https://api.broker.example.com"),
			APIKey:         getEnv("BROKER_API_KEY", ""),
			APISecret:      getEnv("BROKER_API_SECRET", ""),
			RequestTimeout: getEnvAsDuration("BROKER_REQUEST_TIMEOUT", 10*time.Second),
			MaxRetries:     getEnvAsInt("BROKER_MAX_RETRIES", 4),
			PollInterval:   getEnvAsDuration("ORDER_POLL_INTERVAL", 1*time.Second),
		},
		Risk: RiskConfig{
			MaxPositionSize:  getEnvAsInt("MAX_POSITION_SIZE", 1000),
			MinPositionSize:  getEnvAsInt("MIN_POSITION_SIZE", 1),
			MaxDailyLoss:     getEnvAsFloat("MAX_DAILY_LOSS", 100000.0),
			MaxDrawdown:      getEnvAsFloat("MAX_DRAWDOWN", 0.20),
			MaxTotalExposure: getEnvAsFloat("MAX_TOTAL_EXPOSURE", 10000000.0),

			HighVolatility:   getEnvAsFloat("HIGH_VOLATILITY_THRESHOLD", 2.5),
			MediumVolatility: getEnvAsFloat("MEDIUM_VOLATILITY_THRESHOLD", 1.5),
			MaxVolatility:    getEnvAsFloat("MAX_VOLATILITY", 5.0),
			VolatilityBase:   getEnvAsFloat("VOLATILITY_BASE", 1.0),

			MinTrendStrength:   getEnvAsFloat("MIN_TREND_STRENGTH", 0.1),
			MaxCapitalPerTrade: getEnvAsFloat("MAX_CAPITAL_PER_TRADE", 100000.0),
		},
		Breakers: BreakerConfig{
			Level1Drawdown:   getEnvAsFloat("BREAKER_L1_DRAWDOWN", 2.0),
			Level1SizeFactor: getEnvAsFloat("BREAKER_L1_SIZE_FACTOR", 0.5),
			Level2Drawdown:   getEnvAsFloat("BREAKER_L2_DRAWDOWN", 3.5),
			Level2SizeFactor: getEnvAsFloat("BREAKER_L2_SIZE_FACTOR", 0.75),
			Level3Drawdown:   getEnvAsFloat("BREAKER_L3_DRAWDOWN", 5.0),
			Cooldown:         getEnvAsDuration("BREAKER_COOLDOWN", 60*time.Minute),
		},
		Recovery: RecoveryConfig{
			ActivationLoss: getEnvAsFloat("RECOVERY_ACTIVATION_LOSS", -3.0),
			SizeFactor:     getEnvAsFloat("RECOVERY_SIZE_FACTOR", 0.3),
			MinWinRate:     getEnvAsFloat("RECOVERY_MIN_WIN_RATE", 0.60),
			MinTrades:      getEnvAsInt("RECOVERY_MIN_TRADES", 10),
		},
		Monitoring: MonitoringConfig{
			CheckInterval:     getEnvAsDuration("MONITOR_CHECK_INTERVAL", 60*time.Second),
			MaxCPUPercent:     getEnvAsFloat("MAX_CPU_PERCENT", 70.0),
			MaxMemoryPercent:  getEnvAsFloat("MAX_MEMORY_PERCENT", 80.0),
			MaxDiskPercent:    getEnvAsFloat("MAX_DISK_PERCENT", 90.0),
			MaxLatency:        getEnvAsDuration("MAX_API_LATENCY", 500*time.Millisecond),
			MarginWarning:     getEnvAsFloat("MARGIN_WARNING", 50.0),
			MarginCritical:    getEnvAsFloat("MARGIN_CRITICAL", 70.0),
			MaxQuoteStaleness: getEnvAsDuration("MAX_QUOTE_STALENESS", 5*time.Second),
			MinTickFrequency:  getEnvAsInt("MIN_TICK_FREQUENCY", 10),
			MaxErrorStreak:    getEnvAsInt("MAX_ERROR_STREAK", 3),

			CapitalBase:      getEnvAsFloat("CAPITAL_BASE", 100000.0),
			MaxTradesPerHour: getEnvAsInt("MAX_TRADES_PER_HOUR", 5),
			MinOrderSpacing:  getEnvAsDuration("MIN_ORDER_SPACING", 60*time.Second),
			MaxSpreadPercent: getEnvAsFloat("MAX_SPREAD_PERCENT", 0.1),
		},
		Notifications: NotificationConfig{
			QueueSize:      getEnvAsInt("NOTIFICATION_QUEUE_SIZE", 100),
			ThrottleWindow: getEnvAsDuration("NOTIFICATION_THROTTLE_WINDOW", 1*time.Minute),
			MaxPerWindow:   getEnvAsInt("NOTIFICATION_MAX_PER_WINDOW", 10),

			TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
			TelegramChatID: getEnv("TELEGRAM_CHAT_ID", ""),

			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			EmailTo:      getEnv("EMAIL_TO", ""),

			EmailHighPriority: getEnvAsBool("NOTIFICATION_EMAIL_HIGH_PRIORITY", true),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Валидация критичных параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_KEY обязателен для шифрования учётных данных брокера
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for encrypting broker credentials")
	}

	if len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	// Валидация портов
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	// Валидация риск-лимитов
	if c.Risk.MaxPositionSize <= 0 {
		return fmt.Errorf("MAX_POSITION_SIZE must be positive, got %d", c.Risk.MaxPositionSize)
	}

	if c.Risk.MinPositionSize <= 0 || c.Risk.MinPositionSize > c.Risk.MaxPositionSize {
		return fmt.Errorf("MIN_POSITION_SIZE must be in [1, MAX_POSITION_SIZE], got %d", c.Risk.MinPositionSize)
	}

	if c.Risk.MaxDrawdown <= 0 || c.Risk.MaxDrawdown >= 1 {
		return fmt.Errorf("MAX_DRAWDOWN must be in (0, 1), got %f", c.Risk.MaxDrawdown)
	}

	if c.Risk.MaxDailyLoss <= 0 {
		return fmt.Errorf("MAX_DAILY_LOSS must be positive, got %f", c.Risk.MaxDailyLoss)
	}

	if c.Risk.MediumVolatility >= c.Risk.HighVolatility {
		return fmt.Errorf("MEDIUM_VOLATILITY_THRESHOLD must be below HIGH_VOLATILITY_THRESHOLD")
	}

	if c.Risk.HighVolatility >= c.Risk.MaxVolatility {
		return fmt.Errorf("HIGH_VOLATILITY_THRESHOLD must be below MAX_VOLATILITY")
	}

	// Уровни circuit breaker должны быть строго возрастающими
	if c.Breakers.Level1Drawdown >= c.Breakers.Level2Drawdown ||
		c.Breakers.Level2Drawdown >= c.Breakers.Level3Drawdown {
		return fmt.Errorf("breaker drawdown levels must be strictly increasing: %f, %f, %f",
			c.Breakers.Level1Drawdown, c.Breakers.Level2Drawdown, c.Breakers.Level3Drawdown)
	}

	if c.Recovery.MinWinRate < 0 || c.Recovery.MinWinRate > 1 {
		return fmt.Errorf("RECOVERY_MIN_WIN_RATE must be in [0, 1], got %f", c.Recovery.MinWinRate)
	}

	if c.Recovery.MinTrades < 1 {
		return fmt.Errorf("RECOVERY_MIN_TRADES must be at least 1, got %d", c.Recovery.MinTrades)
	}

	// Валидация таймаутов (должны быть положительными)
	if c.Broker.RequestTimeout <= 0 {
		return fmt.Errorf("BROKER_REQUEST_TIMEOUT must be positive, got %v", c.Broker.RequestTimeout)
	}

	if c.Broker.PollInterval <= 0 {
		return fmt.Errorf("ORDER_POLL_INTERVAL must be positive, got %v", c.Broker.PollInterval)
	}

	if c.Monitoring.CheckInterval <= 0 {
		return fmt.Errorf("MONITOR_CHECK_INTERVAL must be positive, got %v", c.Monitoring.CheckInterval)
	}

	if c.Monitoring.CapitalBase <= 0 {
		return fmt.Errorf("CAPITAL_BASE must be positive, got %f", c.Monitoring.CapitalBase)
	}

	if c.Broker.MaxRetries < 0 || c.Broker.MaxRetries > 10 {
		return fmt.Errorf("BROKER_MAX_RETRIES must be in [0, 10], got %d", c.Broker.MaxRetries)
	}

	if c.Notifications.QueueSize < 1 {
		return fmt.Errorf("NOTIFICATION_QUEUE_SIZE must be at least 1, got %d", c.Notifications.QueueSize)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
