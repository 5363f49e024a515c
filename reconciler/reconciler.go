// Package reconciler re-scrapes tracked products and folds the results
// back into the store.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aluiziolira/go-price-tracker/metrics"
	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/aluiziolira/go-price-tracker/notify"
	"github.com/aluiziolira/go-price-tracker/store"
)

// ErrNoPrice marks a scrape that returned a page but no usable price.
// The product is left untouched and retried on the next cycle.
var ErrNoPrice = errors.New("reconcile: no price extracted")

// ProductScraper is the slice of the orchestrator the engine needs.
type ProductScraper interface {
	ScrapeProduct(ctx context.Context, pageURL string) (models.Snapshot, error)
}

// Engine runs reconciliation cycles over tracked products.
type Engine struct {
	store    store.ProductStore
	scraper  ProductScraper
	notifier notify.Notifier
	metrics  *metrics.Metrics
}

// New creates an Engine. notifier and m may be nil.
func New(st store.ProductStore, sc ProductScraper, notifier notify.Notifier, m *metrics.Metrics) *Engine {
	return &Engine{
		store:    st,
		scraper:  sc,
		notifier: notifier,
		metrics:  m,
	}
}

// ReconcileOne re-scrapes a single product and persists what changed.
//
// A scrape failure or a snapshot without a price aborts the product
// without writes. Price comparison is exact: any numeric difference
// counts as a change and appends a history row. Name, image and
// currency are backfilled only until the product's metadata is marked
// complete, which happens on the first cycle where the scrape supplies
// at least one of them.
func (e *Engine) ReconcileOne(ctx context.Context, product *models.Product) error {
	snap, err := e.scraper.ScrapeProduct(ctx, product.URL)
	if err != nil {
		e.metrics.IncReconcile("error")
		slog.Warn("reconcile scrape failed",
			slog.String("product_id", product.ID.String()),
			slog.String("url", product.URL),
			slog.Any("error", err),
		)
		return fmt.Errorf("scrape %s: %w", product.URL, err)
	}
	if !snap.HasPrice() {
		e.metrics.IncReconcile("error")
		slog.Warn("reconcile found no price",
			slog.String("product_id", product.ID.String()),
			slog.String("url", product.URL),
		)
		return ErrNoPrice
	}

	newPrice := *snap.Price
	priceChanged := newPrice != product.CurrentPrice

	update := &models.ProductUpdate{}
	if priceChanged {
		update.CurrentPrice = &newPrice
	}
	if snap.Availability != "" && snap.Availability != product.Availability {
		availability := snap.Availability
		update.Availability = &availability
	}
	if !product.MetadataComplete {
		filled := false
		if snap.Name != "" {
			filled = true
			if snap.Name != product.Name {
				name := snap.Name
				update.Name = &name
			}
		}
		if snap.Image != "" {
			filled = true
			if snap.Image != product.Image {
				image := snap.Image
				update.Image = &image
			}
		}
		if snap.Currency != "" {
			filled = true
			if snap.Currency != product.Currency {
				currency := snap.Currency
				update.Currency = &currency
			}
		}
		if filled {
			complete := true
			update.MetadataComplete = &complete
		}
	}

	if !update.IsEmpty() {
		if err := e.store.Update(ctx, product.ID, update); err != nil {
			e.metrics.IncReconcile("error")
			return fmt.Errorf("update product %s: %w", product.ID, err)
		}
	}

	if priceChanged {
		if err := e.store.AppendPriceHistory(ctx, product.ID, newPrice, snap.Availability); err != nil {
			e.metrics.IncReconcile("error")
			return fmt.Errorf("append history for %s: %w", product.ID, err)
		}
		e.metrics.IncPriceChange()
	}

	if product.TargetPrice != nil && newPrice <= *product.TargetPrice {
		e.metrics.IncPriceDrop()
		if e.notifier != nil {
			e.notifier.PriceDrop(ctx, product, newPrice)
		}
	}

	e.metrics.IncReconcile("success")
	slog.Debug("reconciled product",
		slog.String("product_id", product.ID.String()),
		slog.Float64("price", newPrice),
		slog.Bool("price_changed", priceChanged),
	)
	return nil
}

// ReconcileAll runs ReconcileOne for every tracked product concurrently
// and stamps last_checked on the ones that succeeded. Per-product
// failures are tallied, never propagated.
func (e *Engine) ReconcileAll(ctx context.Context) (models.BatchResult, error) {
	start := time.Now()

	products, err := e.store.FindAll(ctx)
	if err != nil {
		return models.BatchResult{}, fmt.Errorf("load products: %w", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		result  models.BatchResult
		checked []uuid.UUID
	)
	for i := range products {
		wg.Add(1)
		go func(p *models.Product) {
			defer wg.Done()

			if err := e.ReconcileOne(ctx, p); err != nil {
				mu.Lock()
				result.Failure++
				mu.Unlock()
				return
			}

			mu.Lock()
			result.Success++
			checked = append(checked, p.ID)
			mu.Unlock()
		}(&products[i])
	}
	wg.Wait()

	if err := e.store.BulkUpdateLastChecked(ctx, checked, time.Now()); err != nil {
		slog.Error("stamp last_checked failed", slog.Any("error", err))
	}

	result.Duration = time.Since(start)
	e.metrics.ObserveBatchDuration(result.Duration)
	slog.Info("reconcile batch complete",
		slog.Int("success", result.Success),
		slog.Int("failure", result.Failure),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}
