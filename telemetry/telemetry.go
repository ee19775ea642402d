// Package telemetry delivers failure reports to an HTTP error-reporting sink.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fwojciec/relay"
)

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 5 * time.Second

var _ relay.Reporter = (*Client)(nil)

// Client posts reports as JSON. Delivery runs in the background and never
// fails the caller.
type Client struct {
	url     string
	source  string
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithTimeout sets the per-report delivery timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.timeout = d }
}

// WithSource sets the source used for reports that carry none.
func WithSource(source string) Option {
	return func(cl *Client) { cl.source = source }
}

// WithLogger sets the logger for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New creates a Client posting to url.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:     url,
		source:  "relay",
		http:    http.DefaultClient,
		timeout: DefaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Report sends r in the background. The request is detached from ctx
// cancellation so a finished turn does not abort delivery.
func (c *Client) Report(ctx context.Context, r relay.Report) {
	if r.Source == "" {
		r.Source = c.source
	}
	ctx = context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.send(ctx, r); err != nil {
			c.logger.Debug("telemetry delivery failed", "error", err)
		}
	}()
}

// Wait blocks until all in-flight reports have been attempted.
func (c *Client) Wait() {
	c.wg.Wait()
}

func (c *Client) send(ctx context.Context, r relay.Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("post report: status %d", resp.StatusCode)
	}
	return nil
}
