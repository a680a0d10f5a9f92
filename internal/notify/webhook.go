package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookSender posts JSON payloads to a generic receiver (Teams
// connector, ServiceNow inbound API, or any internal hook).
type WebhookSender struct {
	url        string
	headers    map[string]string
	httpClient *http.Client
}

func NewWebhookSender(url string, headers map[string]string) *WebhookSender {
	return &WebhookSender{
		url:     url,
		headers: headers,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *WebhookSender) Name() string {
	return ChannelWebhook
}

func (s *WebhookSender) Send(ctx context.Context, msg *Message) error {
	payload := map[string]any{
		"title":      msg.Title,
		"body":       msg.Body,
		"severity":   string(msg.Severity),
		"recipients": msg.Recipients,
		"timestamp":  time.Now().Format(time.RFC3339),
	}
	fields := make(map[string]string, len(msg.Fields))
	for _, f := range msg.Fields {
		fields[f.Title] = f.Value
	}
	payload["fields"] = fields

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
