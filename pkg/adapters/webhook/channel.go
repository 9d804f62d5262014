// Package webhook delivers replies to an HTTP messaging gateway and verifies the
// signatures the gateway puts on inbound requests.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Channel implements ports.Channel by POSTing {to, text} JSON to URL.
type Channel struct {
	URL   string
	Token string
	HTTP  *http.Client
}

// NewChannel creates a channel with a traced HTTP client.
func NewChannel(url, token string) *Channel {
	return &Channel{
		URL:   url,
		Token: token,
		HTTP: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type outbound struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// Send posts the message. Any non-2xx status is an error.
func (c *Channel) Send(ctx context.Context, recipient, text string) error {
	if c.URL == "" {
		return fmt.Errorf("missing webhook url")
	}
	if recipient == "" {
		return fmt.Errorf("missing recipient")
	}
	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	body, err := json.Marshal(outbound{To: recipient, Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("webhook delivery failed: status %d: %s", res.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
