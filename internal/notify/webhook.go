package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prizeworks/payoutd/internal/settle"
)

// Webhook posts settlement reports as JSON to a configured endpoint, which
// renders them for the chat surface. With no URL configured it is a no-op:
// settlement never depends on notification.
type Webhook struct {
	url  string
	http *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:  url,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

func (w *Webhook) Notify(ctx context.Context, r *settle.Report) error {
	if w.url == "" {
		return nil
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("post report: status %d", resp.StatusCode)
	}
	return nil
}
