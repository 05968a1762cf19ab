// Package notifications реализует очередь уведомлений с доставкой
// по каналам в зависимости от приоритета и rate-gate по типу события.
package notifications

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/smtp"
	"time"

	jsoniter "github.com/json-iterator/go"

	"quanthybrid/internal/config"
	"quanthybrid/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Channel - канал доставки уведомлений
type Channel interface {
	Name() string
	Send(ctx context.Context, n models.Notification) error
}

// ============ Telegram ============

// TelegramChannel отправляет уведомления через Telegram Bot API.
// Основной канал доставки.
type TelegramChannel struct {
	token      string
	chatID     string
	httpClient *http.Client
}

// NewTelegramChannel создаёт Telegram канал
func NewTelegramChannel(cfg config.NotificationConfig) *TelegramChannel {
	return &TelegramChannel{
		token:  cfg.TelegramToken,
		chatID: cfg.TelegramChatID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name возвращает имя канала
func (t *TelegramChannel) Name() string {
	return "telegram"
}

// Send отправляет сообщение в настроенный чат
func (t *TelegramChannel) Send(ctx context.Context, n models.Notification) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       n.Message,
		"parse_mode": "HTML",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram api returned status %d", resp.StatusCode)
	}

	return nil
}

// ============ Email ============

// EmailChannel отправляет уведомления по SMTP.
// Вторичный канал: используется для critical и,
// при включённой настройке, для high-priority.
type EmailChannel struct {
	host     string
	port     int
	user     string
	password string
	to       string
}

// NewEmailChannel создаёт email канал
func NewEmailChannel(cfg config.NotificationConfig) *EmailChannel {
	return &EmailChannel{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		to:       cfg.EmailTo,
	}
}

// Name возвращает имя канала
func (e *EmailChannel) Name() string {
	return "email"
}

// Send отправляет письмо с темой, зависящей от приоритета
func (e *EmailChannel) Send(ctx context.Context, n models.Notification) error {
	var subject string
	switch n.Priority {
	case models.PriorityCritical:
		subject = "CRITICAL ALERT - QuantHybrid"
	case models.PriorityHigh:
		subject = "High Priority Alert - QuantHybrid"
	default:
		subject = "QuantHybrid Notification"
	}

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		e.user, e.to, subject, n.Message)

	auth := smtp.PlainAuth("", e.user, e.password, e.host)
	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	if err := smtp.SendMail(addr, auth, e.user, []string{e.to}, []byte(body)); err != nil {
		return fmt.Errorf("email send failed: %w", err)
	}

	return nil
}
