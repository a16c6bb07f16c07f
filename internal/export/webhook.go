package export

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/yourorg/btc-maxpain/internal/model"
)

// WebhookSink POSTs each report as JSON.
type WebhookSink struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewWebhookSink creates a sink posting to url, authenticating with apiKey when set.
// Each report is sent once; a failed delivery is not retried.
func NewWebhookSink(url, apiKey string, timeout time.Duration) *WebhookSink {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.HTTPClient.Timeout = timeout
	rc.HTTPClient.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &WebhookSink{
		url:        url,
		apiKey:     apiKey,
		httpClient: rc.StandardClient(),
	}
}

func (w *WebhookSink) Name() string { return "webhook" }

func (w *WebhookSink) Export(ctx context.Context, r *model.Report) error {
	if w.url == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	data, err := EncodeJSON(r)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}
	return nil
}
