package emitter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/obsidianstack/forwarder/internal/config"
	"github.com/obsidianstack/forwarder/internal/transaction"
)

// maxErrorBody caps how much of a rejection body is kept for the log line.
const maxErrorBody = 512

// Client posts transactions to the remote collector's intake.
// Send blocks until the collector answers or the timeout elapses; callers that
// need asynchrony run it on their own goroutine.
type Client struct {
	url       string
	timeout   time.Duration
	formatter Formatter
	http      *http.Client
}

// New builds a Client from the forwarder config.
func New(cfg config.ForwarderConfig) *Client {
	return &Client{
		url:       cfg.IntakeURL(),
		timeout:   cfg.SendTimeout,
		formatter: JSONFormatter{Compress: cfg.CompressEnabled()},
		http:      buildHTTPClient(cfg),
	}
}

// URL returns the collector intake URL.
func (c *Client) URL() string { return c.url }

// Send delivers one transaction. Any transport error, formatting error, or
// non-2xx status is returned as an error; the cause is informational only.
func (c *Client) Send(ctx context.Context, tr *transaction.Transaction) error {
	body, hdr, err := c.formatter.Format(tr.Payload())
	if err != nil {
		slog.Error("emitter: could not format transaction", "id", tr.ID(), "err", err)
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(sendCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("emitter: build request: %w", err)
	}
	for k, v := range hdr {
		req.Header[k] = v
	}

	slog.Info("emitter: sending transaction", "id", tr.ID(), "url", c.url, "bytes", len(body))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("emitter: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("emitter: collector answered %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// authRoundTripper injects the collector API key into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.auth.Mode == "apikey" {
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.Header, t.auth.Key())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs the delivery http.Client. The client timeout
// backs up the per-request context deadline.
func buildHTTPClient(cfg config.ForwarderConfig) *http.Client {
	var rt http.RoundTripper = http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Auth.Mode == "apikey" {
		rt = &authRoundTripper{base: rt, auth: cfg.Auth}
	}
	return &http.Client{
		Transport: rt,
		Timeout:   cfg.SendTimeout,
	}
}
