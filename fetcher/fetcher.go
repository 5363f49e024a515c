// Package fetcher retrieves raw product pages over HTTP with bounded
// retries and error classification.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-price-tracker/config"
	"github.com/aluiziolira/go-price-tracker/metrics"
)

const acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"

// UserAgentSource hands out user agents for outbound requests.
type UserAgentSource interface {
	RandomUserAgent() string
}

// Fetcher performs one-shot page retrievals. Each attempt runs on a fresh
// colly collector sharing a single transport, so tests can stub whole sites
// by swapping the transport.
type Fetcher struct {
	cfg       *config.Config
	agents    UserAgentSource
	metrics   *metrics.Metrics
	transport http.RoundTripper
}

// New builds a fetcher configured from cfg. agents may be nil, in which
// case the configured fallback user agent is used for every request.
func New(cfg *config.Config, agents UserAgentSource, m *metrics.Metrics) *Fetcher {
	return &Fetcher{
		cfg:     cfg,
		agents:  agents,
		metrics: m,
		transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.FetchTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// SetTransport replaces the HTTP transport. Tests use this to serve
// canned responses.
func (f *Fetcher) SetTransport(rt http.RoundTripper) {
	f.transport = rt
}

// FetchHTML retrieves the page at pageURL and returns its raw HTML.
// Success is any 2xx or 3xx response; redirects follow the HTTP client's
// standard ten-hop limit. Timeouts, connection failures, HTTP 5xx and 429
// are retried with exponential backoff until the attempt budget is spent;
// other HTTP errors fail immediately. The returned error wraps the
// classified cause in an ErrFetch.
func (f *Fetcher) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	budget := f.cfg.FetchRetries
	if budget < 1 {
		budget = 1
	}

	var (
		lastErr    error
		lastStatus int
		made       int
	)
	for attempt := 1; attempt <= budget; attempt++ {
		if attempt > 1 {
			delay := f.backoff(attempt - 1)
			slog.Debug("fetch retry",
				slog.String("url", pageURL),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			f.metrics.IncFetchRetries()
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		made = attempt
		html, status, err := f.fetchOnce(pageURL)
		if err == nil {
			f.metrics.IncFetch("success")
			return html, nil
		}

		lastErr = err
		lastStatus = status
		f.metrics.IncFetch("error")
		f.metrics.IncFetchError(errorTypeLabel(err))
		slog.Warn("fetch attempt failed",
			slog.String("url", pageURL),
			slog.Int("attempt", attempt),
			slog.Int("status", status),
			slog.Any("error", err),
		)
		if !retryable(err) {
			break
		}
	}

	return "", ErrFetch{URL: pageURL, StatusCode: lastStatus, Attempts: made, Err: lastErr}
}

// fetchOnce issues a single request and classifies whatever came back.
func (f *Fetcher) fetchOnce(pageURL string) (string, int, error) {
	collector := colly.NewCollector(colly.MaxDepth(1), colly.AllowURLRevisit())
	collector.SetRequestTimeout(f.cfg.FetchTimeout)
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobotsTxt
	collector.ParseHTTPErrorResponse = true
	collector.WithTransport(f.transport)

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", f.userAgent())
		r.Headers.Set("Accept", acceptHeader)
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	var (
		html   string
		status int
		cause  error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		if r.StatusCode >= http.StatusBadRequest {
			cause = classifyError(nil, r.StatusCode)
			return
		}
		html = string(r.Body)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			status = r.StatusCode
		}
		cause = classifyError(err, status)
	})

	start := time.Now()
	visitErr := collector.Visit(pageURL)
	f.metrics.ObserveFetchDuration(time.Since(start))

	if cause == nil && visitErr != nil {
		cause = classifyError(visitErr, status)
	}
	if cause != nil {
		return "", status, cause
	}
	return html, status, nil
}

func (f *Fetcher) userAgent() string {
	if f.agents != nil {
		if ua := f.agents.RandomUserAgent(); ua != "" {
			return ua
		}
	}
	return f.cfg.UserAgent
}

// backoff returns the delay before the given retry, growing by the
// configured factor and capped at the configured maximum.
func (f *Fetcher) backoff(retry int) time.Duration {
	if retry <= 0 {
		retry = 1
	}

	base := f.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	factor := f.cfg.RetryBackoffFactor
	if factor < 1 {
		factor = 2
	}

	delay := time.Duration(float64(base) * math.Pow(factor, float64(retry-1)))
	if limit := f.cfg.RetryBackoffMax; limit > 0 && delay > limit {
		delay = limit
	}
	return delay
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode >= http.StatusBadRequest {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		default:
			return ErrHTTPStatus{StatusCode: statusCode, Err: wrapped}
		}
	}

	return err
}
