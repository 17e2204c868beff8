package ops

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// WebhookSender delivers a latch transition notification.
type WebhookSender interface {
	Send(eventType string, alert Alert)
}

// WebhookConfig configures outbound ops-alert delivery (§6 configuration
// keys OPS_ALERT_WEBHOOK_*).
type WebhookConfig struct {
	URL            string
	Provider       string // "" = infer from URL
	MinSeverity    Severity
	TimeoutSeconds float64
	AuthHeader     string
	AuthValue      string
}

type webhookPayload struct {
	Event     string   `json:"event"`
	EventType string   `json:"event_type"`
	ID        string   `json:"id"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	Value     float64  `json:"value"`
	Threshold float64  `json:"threshold"`
	Timestamp string   `json:"timestamp"`
	Text      string   `json:"text"`
}

// Webhook is the default WebhookSender, grounded on
// original_source/app/ops_routes.py's _send_alert_webhook /
// _resolve_webhook_provider / _build_webhook_payload trio. Uses the same
// bounded-timeout net/http.Client pattern as internal/forex's upstream
// client (§4.D/§4.G).
type Webhook struct {
	cfg    WebhookConfig
	client *http.Client
	logger *zap.Logger
}

// NewWebhook constructs a Webhook sender. If cfg.URL is empty, Send is a
// no-op.
func NewWebhook(cfg WebhookConfig, logger *zap.Logger) *Webhook {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 5
	}
	if cfg.MinSeverity == "" {
		cfg.MinSeverity = SeverityWarning
	}
	return &Webhook{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds * float64(time.Second))},
		logger: logger,
	}
}

func (w *Webhook) provider() string {
	if w.cfg.Provider != "" {
		return w.cfg.Provider
	}
	url := strings.ToLower(w.cfg.URL)
	switch {
	case strings.Contains(url, "discord"):
		return "discord"
	case strings.Contains(url, "slack"):
		return "slack"
	default:
		return "generic"
	}
}

// Send delivers the webhook when the alert's severity meets the
// configured minimum. Delivery failures are logged and swallowed (§7:
// TransientUpstream never bubbles to the caller).
func (w *Webhook) Send(eventType string, alert Alert) {
	if w.cfg.URL == "" {
		return
	}
	if SeverityRank(alert.Severity) < SeverityRank(w.cfg.MinSeverity) {
		return
	}

	text := buildHumanText(eventType, alert)
	payload := webhookPayload{
		Event:     "ops_alert",
		EventType: eventType,
		ID:        alert.ID,
		Severity:  alert.Severity,
		Message:   alert.Message,
		Value:     alert.Value,
		Threshold: alert.Threshold,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Text:      text,
	}

	var body interface{}
	switch w.provider() {
	case "discord":
		body = map[string]string{"content": text}
	case "slack":
		body = map[string]string{"text": text}
	default:
		body = payload
	}

	raw, err := json.Marshal(body)
	if err != nil {
		w.logger.Warn("ops: failed to encode webhook payload", zap.Error(err))
		return
	}

	req, err := http.NewRequest(http.MethodPost, w.cfg.URL, bytes.NewReader(raw))
	if err != nil {
		w.logger.Warn("ops: failed to build webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if w.cfg.AuthHeader != "" {
		req.Header.Set(w.cfg.AuthHeader, w.cfg.AuthValue)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn("ops: webhook delivery failed", zap.String("provider", w.provider()), zap.String("id", alert.ID), zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		w.logger.Warn("ops: webhook rejected", zap.String("provider", w.provider()), zap.String("id", alert.ID), zap.Int("status", resp.StatusCode))
	}
}

func buildHumanText(eventType string, alert Alert) string {
	verb := "triggered"
	if eventType == "resolved" {
		verb = "resolved"
	}
	return "[" + string(alert.Severity) + "] " + alert.ID + " " + verb + ": " + alert.Message
}
