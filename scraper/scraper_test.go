package scraper

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-price-tracker/config"
	"github.com/aluiziolira/go-price-tracker/fetcher"
	"github.com/aluiziolira/go-price-tracker/metrics"
	"github.com/aluiziolira/go-price-tracker/registry"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	html  string
	err   error
}

func (f *fakeFetcher) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.html, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

const productPage = `<html><head><script type="application/ld+json">
{"@type":"Product","name":"Widget","offers":{"price":"999","priceCurrency":"INR","availability":"https://schema.org/InStock"}}
</script></head><body></body></html>`

func newTestScraper(f HTMLFetcher) *Scraper {
	cfg := config.DefaultConfig()
	cfg.RequestDelay = 0
	cfg.PreviewCacheTTL = time.Minute
	return New(cfg, f, registry.New(), metrics.New())
}

func TestScrapeProductInvalidURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{name: "empty", url: ""},
		{name: "whitespace", url: "   "},
		{name: "no scheme", url: "shop.example.com/widget"},
		{name: "wrong scheme", url: "ftp://shop.example.com/widget"},
		{name: "missing host", url: "http:///widget"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{html: productPage}
			s := newTestScraper(f)

			_, err := s.ScrapeProduct(context.Background(), tt.url)

			var invalid ErrInvalidURL
			if !errors.As(err, &invalid) {
				t.Fatalf("error = %v, want ErrInvalidURL", err)
			}
			if f.Calls() != 0 {
				t.Errorf("fetch was attempted for an invalid url")
			}
		})
	}
}

func TestScrapeProductSuccess(t *testing.T) {
	f := &fakeFetcher{html: productPage}
	s := newTestScraper(f)

	snap, err := s.ScrapeProduct(context.Background(), "https://shop.example.com/widget")
	if err != nil {
		t.Fatalf("ScrapeProduct() error = %v", err)
	}

	if snap.URL != "https://shop.example.com/widget" {
		t.Errorf("URL = %q", snap.URL)
	}
	if snap.Domain != "shop.example.com" {
		t.Errorf("Domain = %q, want shop.example.com", snap.Domain)
	}
	if snap.Name != "Widget" {
		t.Errorf("Name = %q, want Widget", snap.Name)
	}
	if snap.Price == nil || *snap.Price != 999 {
		t.Fatalf("Price = %v, want 999", snap.Price)
	}
}

func TestScrapeProductFetchError(t *testing.T) {
	fetchErr := fetcher.ErrFetch{URL: "https://shop.example.com/widget", StatusCode: 503, Attempts: 3, Err: errors.New("unavailable")}
	f := &fakeFetcher{err: fetchErr}
	s := newTestScraper(f)

	_, err := s.ScrapeProduct(context.Background(), "https://shop.example.com/widget")

	var fe fetcher.ErrFetch
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want the fetch error passed through", err)
	}
}

func TestScrapeProductIsPureRead(t *testing.T) {
	f := &fakeFetcher{html: productPage}
	s := newTestScraper(f)

	for i := 0; i < 3; i++ {
		if _, err := s.ScrapeProduct(context.Background(), "https://shop.example.com/widget"); err != nil {
			t.Fatalf("scrape %d: %v", i, err)
		}
	}
	if got := f.Calls(); got != 3 {
		t.Fatalf("fetch calls = %d, want 3 (ScrapeProduct must not cache)", got)
	}
}

func TestPreviewCachesSnapshot(t *testing.T) {
	f := &fakeFetcher{html: productPage}
	s := newTestScraper(f)

	first, err := s.Preview(context.Background(), "https://shop.example.com/widget")
	if err != nil {
		t.Fatalf("first preview: %v", err)
	}
	second, err := s.Preview(context.Background(), "https://shop.example.com/widget")
	if err != nil {
		t.Fatalf("second preview: %v", err)
	}

	if got := f.Calls(); got != 1 {
		t.Fatalf("fetch calls = %d, want 1 (second preview should hit the cache)", got)
	}
	if first.Name != second.Name || *first.Price != *second.Price {
		t.Errorf("cached snapshot differs: %+v vs %+v", first, second)
	}
}

func TestPreviewCacheExpires(t *testing.T) {
	f := &fakeFetcher{html: productPage}
	cfg := config.DefaultConfig()
	cfg.RequestDelay = 0
	cfg.PreviewCacheTTL = 10 * time.Millisecond
	s := New(cfg, f, registry.New(), metrics.New())

	if _, err := s.Preview(context.Background(), "https://shop.example.com/widget"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := s.Preview(context.Background(), "https://shop.example.com/widget"); err != nil {
		t.Fatal(err)
	}

	if got := f.Calls(); got != 2 {
		t.Fatalf("fetch calls = %d, want 2 after TTL expiry", got)
	}
}

func TestScrapeProductSpacesRequests(t *testing.T) {
	f := &fakeFetcher{html: productPage}
	cfg := config.DefaultConfig()
	cfg.RequestDelay = 50 * time.Millisecond
	cfg.PreviewCacheTTL = time.Minute
	s := New(cfg, f, registry.New(), metrics.New())

	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := s.ScrapeProduct(context.Background(), "https://shop.example.com/widget"); err != nil {
			t.Fatalf("scrape %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("two scrapes took %v, want at least the configured delay between them", elapsed)
	}
}

func TestScrapeProductIntegration(t *testing.T) {
	const pageURL = "http://shop.example.test/widget"

	transport := httpmock.NewMockTransport()
	resp := httpmock.NewStringResponse(http.StatusOK, productPage)
	resp.Header.Set("Content-Type", "text/html")
	transport.RegisterResponder("GET", pageURL, httpmock.ResponderFromResponse(resp))

	cfg := config.DefaultConfig()
	cfg.RequestDelay = 0
	cfg.RetryBackoff = time.Millisecond

	reg := registry.New()
	m := metrics.New()
	f := fetcher.New(cfg, reg, m)
	f.SetTransport(transport)

	s := New(cfg, f, reg, m)

	snap, err := s.ScrapeProduct(context.Background(), pageURL)
	if err != nil {
		t.Fatalf("ScrapeProduct() error = %v", err)
	}
	if snap.Name != "Widget" {
		t.Errorf("Name = %q, want Widget", snap.Name)
	}
	if snap.Price == nil || *snap.Price != 999 {
		t.Fatalf("Price = %v, want 999", snap.Price)
	}
	if snap.Currency != "INR" {
		t.Errorf("Currency = %q, want INR", snap.Currency)
	}
	if snap.Availability != "InStock" {
		t.Errorf("Availability = %q, want InStock", snap.Availability)
	}
}
