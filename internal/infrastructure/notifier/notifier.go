package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const defaultTimeout = 5 * time.Second

type HTTPNotifier struct {
	client *http.Client
}

func NewHTTPNotifier(timeout time.Duration) *HTTPNotifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPNotifier{client: &http.Client{Timeout: timeout}}
}

// SendCallback posts payload to callbackURL in the background. Failures are
// logged only; the transaction outcome does not depend on delivery.
func (n *HTTPNotifier) SendCallback(callbackURL string, payload CallbackPayload) {
	go func() {
		if err := n.Send(context.Background(), callbackURL, payload); err != nil {
			slog.Warn("client callback failed", "transaction_id", payload.TransactionID, "url", callbackURL, "error", err)
		}
	}()
}

func (n *HTTPNotifier) Send(ctx context.Context, callbackURL string, payload CallbackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	slog.Info("client callback sent", "transaction_id", payload.TransactionID, "status", payload.Status)
	return nil
}

type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("callback returned status %d", e.Code)
}
