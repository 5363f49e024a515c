// Package scraper orchestrates single-product scrapes: URL validation,
// polite pacing, fetch, site resolution and extraction.
package scraper

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/aluiziolira/go-price-tracker/config"
	"github.com/aluiziolira/go-price-tracker/extractor"
	"github.com/aluiziolira/go-price-tracker/metrics"
	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/aluiziolira/go-price-tracker/registry"
)

// HTMLFetcher retrieves one page of raw HTML.
type HTMLFetcher interface {
	FetchHTML(ctx context.Context, pageURL string) (string, error)
}

// Scraper coordinates one-off product scrapes. A single program-wide rate
// limiter spaces outbound requests regardless of which goroutine asks.
type Scraper struct {
	cfg      *config.Config
	fetcher  HTMLFetcher
	registry *registry.Registry
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	preview  *expirable.LRU[string, models.Snapshot]
}

// New builds the orchestrator from its collaborators.
func New(cfg *config.Config, f HTMLFetcher, reg *registry.Registry, m *metrics.Metrics) *Scraper {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.RequestDelay), 1)
	}

	size := cfg.PreviewCacheSize
	if size <= 0 {
		size = 128
	}

	return &Scraper{
		cfg:      cfg,
		fetcher:  f,
		registry: reg,
		metrics:  m,
		limiter:  limiter,
		preview:  expirable.NewLRU[string, models.Snapshot](size, nil, cfg.PreviewCacheTTL),
	}
}

// ScrapeProduct fetches and extracts the product page at rawURL. It is a
// pure read: nothing is persisted and repeated calls hit the site again.
func (s *Scraper) ScrapeProduct(ctx context.Context, rawURL string) (models.Snapshot, error) {
	parsed, err := validateURL(rawURL)
	if err != nil {
		s.metrics.IncScrape("invalid_url")
		return models.Snapshot{}, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return models.Snapshot{}, err
	}

	html, err := s.fetcher.FetchHTML(ctx, rawURL)
	if err != nil {
		s.metrics.IncScrape("fetch_error")
		return models.Snapshot{}, err
	}

	domain := parsed.Hostname()
	site := s.registry.Lookup(domain)

	snap := extractor.Extract(html, site)
	snap.URL = rawURL
	snap.Domain = domain

	if snap.IsEmpty() {
		s.metrics.IncScrape("empty")
		slog.Warn("scrape yielded no fields",
			slog.String("url", rawURL),
			slog.String("site", site.Name),
		)
	} else {
		s.metrics.IncScrape("success")
	}
	slog.Debug("scraped product",
		slog.String("url", rawURL),
		slog.String("site", site.Name),
		slog.Bool("has_price", snap.HasPrice()),
	)
	return snap, nil
}

// Preview returns a cached snapshot when one is fresh, scraping otherwise.
// A preview followed by a create within the TTL costs one fetch, not two.
func (s *Scraper) Preview(ctx context.Context, rawURL string) (models.Snapshot, error) {
	if snap, ok := s.preview.Get(rawURL); ok {
		return snap, nil
	}

	snap, err := s.ScrapeProduct(ctx, rawURL)
	if err != nil {
		return models.Snapshot{}, err
	}
	s.preview.Add(rawURL, snap)
	return snap, nil
}

func validateURL(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, ErrInvalidURL{URL: rawURL, Reason: "empty"}
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, ErrInvalidURL{URL: rawURL, Reason: err.Error()}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, ErrInvalidURL{URL: rawURL, Reason: "scheme must be http or https"}
	}
	if parsed.Host == "" {
		return nil, ErrInvalidURL{URL: rawURL, Reason: "missing host"}
	}
	return parsed, nil
}
