package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger.go - настройка структурированного логирования
//
// Единая точка инициализации zap-логгера для всех компонентов системы.
// Каждый компонент получает именованный дочерний логгер через logger.Named(...)
//
// Форматы:
// - json: для production (парсится агрегаторами логов)
// - console: для локальной разработки (читаемый вывод)
//
// Уровни: debug, info, warn, error

// InitLogger создает и настраивает zap-логгер
//
// Параметры:
//   - level: уровень логирования ("debug", "info", "warn", "error")
//   - format: формат вывода ("json" или "console")
//
// Возвращает ошибку при неизвестном уровне
func InitLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("unknown log level: %s", level)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if strings.ToLower(format) == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg.Encoding = "json"
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

// MustInitLogger инициализирует логгер или паникует
//
// Используется только в main, где без логгера продолжать нет смысла
func MustInitLogger(level, format string) *zap.Logger {
	logger, err := InitLogger(level, format)
	if err != nil {
		panic(err)
	}
	return logger
}
