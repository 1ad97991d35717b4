package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// WebhookConfig - параметры доставки вебхуков
type WebhookConfig struct {
	URL        string
	Secret     string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

// WebhookHandler отправляет событие на внешний URL с подписью HMAC и повторами
type WebhookHandler struct {
	cfg        WebhookConfig
	logger     *logrus.Logger
	httpClient *http.Client
}

func NewWebhookHandler(cfg WebhookConfig, logger *logrus.Logger) *WebhookHandler {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &WebhookHandler{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (w *WebhookHandler) Name() string { return "webhook" }

func (w *WebhookHandler) Handle(ctx context.Context, event Event, raw []byte) error {
	log := w.logger.WithField("event_id", event.ID).WithField("event_type", event.Type)

	if w.cfg.URL == "" {
		log.Debug("Webhook URL is not configured. Skipping webhook delivery.")
		return nil
	}

	maxRetries := w.cfg.MaxRetries
	delay := w.cfg.BaseDelay

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2 // Экспоненциальная задержка
		}

		status, err := w.send(ctx, raw)
		if err != nil {
			log.WithError(err).Warnf("Failed to send webhook. Retries left: %d", maxRetries-1-i)
			continue
		}
		if status >= 200 && status < 300 {
			log.Info("Webhook delivered successfully.")
			return nil
		}
		log.Warnf("Webhook delivery failed with status code %d. Retries left: %d", status, maxRetries-1-i)
	}

	return fmt.Errorf("failed to deliver webhook after %d attempts", maxRetries)
}

func (w *WebhookHandler) send(ctx context.Context, raw []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(raw))
	if err != nil {
		return 0, fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Добавляем HMAC подпись, если WEBHOOK_SECRET задан
	if w.cfg.Secret != "" {
		req.Header.Set("X-Webhook-Signature", generateHMACSHA256(raw, w.cfg.Secret))
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// generateHMACSHA256 генерирует HMAC-SHA256 подпись для данных
func generateHMACSHA256(data []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
