package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hamed0406/statuspulse/internal/domain"
)

type Webhook struct {
	Client *http.Client
	now    func() time.Time
}

func NewWebhook() *Webhook {
	return &Webhook{
		Client: &http.Client{Timeout: 10 * time.Second},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (w *Webhook) Send(ctx context.Context, cfg domain.AlertConfig, m domain.Monitor, status domain.Status) error {
	body, err := json.Marshal(domain.NewStatusChangedEvent(m, status, w.now()))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Destination, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
