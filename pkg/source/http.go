package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/ava-labs/chain-monitor/pkg/metrics"
	"github.com/ava-labs/chain-monitor/pkg/registry"
)

const (
	DefaultUserAgent   = "curl/7.79.1"
	DefaultHTTPTimeout = 10 * time.Second
)

var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// HTTPConfig configures the HTTP client of an explorer adapter.
type HTTPConfig struct {
	Timeout time.Duration
	// RequestsPerSecond paces requests to one provider; 0 disables pacing.
	RequestsPerSecond float64
	UserAgent         string
}

type httpClient struct {
	source  registry.SourceID
	rest    *resty.Client
	pace    *rate.Limiter
	metrics *metrics.Metrics
}

func newHTTPClient(source registry.SourceID, cfg HTTPConfig, m *metrics.Metrics) *httpClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &httpClient{
		source: source,
		rest: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", ua).
			SetHeader("Accept", "application/json"),
		pace:    rate.NewLimiter(limit, 1),
		metrics: m,
	}
}

// getJSON fetches url and decodes the JSON body into out.
func (c *httpClient) getJSON(ctx context.Context, url string, out any) (err error) {
	if err := c.pace.Wait(ctx); err != nil {
		return fmt.Errorf("wait for request slot: %w", err)
	}

	start := time.Now()
	defer func() {
		c.metrics.RecordFetch(c.source, err, time.Since(start).Seconds())
	}()

	resp, err := c.rest.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("GET %s: %w: %s", url, ErrUnexpectedStatus, resp.Status())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
