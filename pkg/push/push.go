// Package push is the client side of the device-notification collaborator.
// Delivery is best-effort: a failed push never fails the operation that
// triggered it.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Notification is a single device push.
type Notification struct {
	DeviceToken string         `json:"device_token"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Data        map[string]any `json:"data,omitempty"`
}

// Sender delivers a notification to one device.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// HTTPSender posts notifications to a push gateway.
type HTTPSender struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPSender creates a sender against the given gateway endpoint.
func NewHTTPSender(endpoint, apiKey string) *HTTPSender {
	return &HTTPSender{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Send posts the notification. Errors are returned for the caller to log;
// callers must not propagate them to users.
func (s *HTTPSender) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("push: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("push: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push: gateway status %d", resp.StatusCode)
	}
	return nil
}

// NopSender drops notifications. Used in tests and when no gateway is
// configured.
type NopSender struct{}

// Send logs and discards the notification.
func (NopSender) Send(_ context.Context, n Notification) error {
	log.Printf("[push] (nop) %s → %q", n.DeviceToken, n.Title)
	return nil
}
