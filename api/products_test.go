package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/aluiziolira/go-price-tracker/scraper"
)

func floatPtr(v float64) *float64 { return &v }

func seedProduct(t *testing.T, e *env, mutate ...func(*models.Product)) *models.Product {
	t.Helper()
	product := &models.Product{
		URL:          "https://shop.example.com/widget-1",
		Name:         "Widget",
		Domain:       "shop.example.com",
		CurrentPrice: 999,
		Currency:     "INR",
		Availability: models.AvailabilityInStock,
	}
	for _, m := range mutate {
		m(product)
	}
	if err := e.store.Create(context.Background(), product); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func TestListProducts(t *testing.T) {
	e := newEnv(t)
	seedProduct(t, e)
	seedProduct(t, e, func(p *models.Product) { p.URL = "https://shop.example.com/widget-2" })

	rec := e.do(t, http.MethodGet, "/api/v1/products", nil, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		Products []models.Product `json:"products"`
		Count    int              `json:"count"`
	}
	decodeBody(t, rec, &resp)
	if resp.Count != 2 || len(resp.Products) != 2 {
		t.Fatalf("count = %d, products = %d, want 2 each", resp.Count, len(resp.Products))
	}
}

func TestCreateProductExplicit(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/products", gin.H{
		"url":           "https://shop.example.com/lamp",
		"name":          "Desk Lamp",
		"current_price": 1299.0,
		"currency":      "INR",
		"image":         "https://shop.example.com/lamp.jpg",
		"target_price":  1000.0,
	}, true)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var got models.Product
	decodeBody(t, rec, &got)
	if got.ID == uuid.Nil {
		t.Fatal("created product has no id")
	}
	if got.Name != "Desk Lamp" || got.CurrentPrice != 1299 {
		t.Fatalf("product = %q/%v, want Desk Lamp/1299", got.Name, got.CurrentPrice)
	}
	if got.Availability != models.AvailabilityInStock {
		t.Fatalf("availability = %q, want default %q", got.Availability, models.AvailabilityInStock)
	}
	if !got.MetadataComplete {
		t.Fatal("name, image and currency were all given, metadata should be complete")
	}
	if got.TargetPrice == nil || *got.TargetPrice != 1000 {
		t.Fatalf("target price = %v, want 1000", got.TargetPrice)
	}

	rows, err := e.store.FindHistory(context.Background(), got.ID, 0)
	if err != nil {
		t.Fatalf("FindHistory() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Price != 1299 {
		t.Fatalf("history = %+v, want one seed row at 1299", rows)
	}
}

func TestCreateProductPartialMetadata(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/products", gin.H{
		"url":           "https://shop.example.com/lamp",
		"name":          "Desk Lamp",
		"current_price": 1299.0,
	}, true)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var got models.Product
	decodeBody(t, rec, &got)
	if got.MetadataComplete {
		t.Fatal("image and currency are missing, metadata should stay incomplete")
	}
}

func TestCreateProductScrapesURLOnlyRequests(t *testing.T) {
	e := newEnv(t)
	const pageURL = "https://shop.example.com/chair"
	e.previewer.snaps[pageURL] = models.Snapshot{
		URL:          pageURL,
		Domain:       "shop.example.com",
		Name:         "Office Chair",
		Price:        floatPtr(4599),
		Currency:     "INR",
		Availability: models.AvailabilityLimitedStock,
		Image:        "https://shop.example.com/chair.jpg",
	}

	rec := e.do(t, http.MethodPost, "/api/v1/products", gin.H{
		"url":          pageURL,
		"target_price": 4000.0,
	}, true)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if e.previewer.calls != 1 {
		t.Fatalf("previewer calls = %d, want 1", e.previewer.calls)
	}
	var got models.Product
	decodeBody(t, rec, &got)
	if got.Name != "Office Chair" || got.CurrentPrice != 4599 {
		t.Fatalf("product = %q/%v, want scraped values", got.Name, got.CurrentPrice)
	}
	if got.Availability != models.AvailabilityLimitedStock {
		t.Fatalf("availability = %q, want scraped %q", got.Availability, models.AvailabilityLimitedStock)
	}
	if got.TargetPrice == nil || *got.TargetPrice != 4000 {
		t.Fatalf("target price = %v, want 4000 from the request", got.TargetPrice)
	}
	if !got.MetadataComplete {
		t.Fatal("scrape supplied name, image and currency, metadata should be complete")
	}
	if got.LastChecked == nil {
		t.Fatal("scrape-then-create should stamp last checked")
	}
}

func TestCreateProductScrapedNameFallsBackToURL(t *testing.T) {
	e := newEnv(t)
	const pageURL = "https://shop.example.com/no-name"
	e.previewer.snaps[pageURL] = models.Snapshot{
		URL:    pageURL,
		Domain: "shop.example.com",
		Price:  floatPtr(100),
	}

	rec := e.do(t, http.MethodPost, "/api/v1/products", gin.H{"url": pageURL}, true)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var got models.Product
	decodeBody(t, rec, &got)
	if got.Name != pageURL {
		t.Fatalf("name = %q, want fallback to the URL", got.Name)
	}
	if got.MetadataComplete {
		t.Fatal("metadata should stay incomplete without name, image and currency")
	}
}

func TestCreateProductNoPriceOnPage(t *testing.T) {
	e := newEnv(t)
	const pageURL = "https://shop.example.com/teaser"
	e.previewer.snaps[pageURL] = models.Snapshot{URL: pageURL, Name: "Coming Soon"}

	rec := e.do(t, http.MethodPost, "/api/v1/products", gin.H{"url": pageURL}, true)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestCreateProductFetchFailure(t *testing.T) {
	e := newEnv(t)
	const pageURL = "https://down.example.com/item"
	e.previewer.errs[pageURL] = errors.New("connection refused")

	rec := e.do(t, http.MethodPost, "/api/v1/products", gin.H{"url": pageURL}, true)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestCreateProductScraperRejectsURL(t *testing.T) {
	e := newEnv(t)
	const pageURL = "https://shop.example.com/blocked"
	e.previewer.errs[pageURL] = scraper.ErrInvalidURL{URL: pageURL, Reason: "robots.txt disallows"}

	rec := e.do(t, http.MethodPost, "/api/v1/products", gin.H{"url": pageURL}, true)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCreateProductRejectsBadURL(t *testing.T) {
	e := newEnv(t)

	for _, raw := range []string{"ftp://shop.example.com/x", "not a url", "/relative/path", "http://"} {
		rec := e.do(t, http.MethodPost, "/api/v1/products", gin.H{"url": raw}, true)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("url %q: status = %d, want %d", raw, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestCreateProductDuplicateURL(t *testing.T) {
	e := newEnv(t)
	existing := seedProduct(t, e)

	rec := e.do(t, http.MethodPost, "/api/v1/products", gin.H{
		"url":           existing.URL,
		"name":          "Widget Again",
		"current_price": 1.0,
	}, true)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestCreateProductMissingURL(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/products", gin.H{"name": "No URL"}, true)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetProduct(t *testing.T) {
	e := newEnv(t)
	product := seedProduct(t, e)

	rec := e.do(t, http.MethodGet, "/api/v1/products/"+product.ID.String(), nil, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got models.Product
	decodeBody(t, rec, &got)
	if got.ID != product.ID || got.Name != product.Name {
		t.Fatalf("got %q/%q, want the seeded product", got.ID, got.Name)
	}
}

func TestGetProductNotFound(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/v1/products/"+uuid.NewString(), nil, true)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetProductBadID(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/v1/products/not-a-uuid", nil, true)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUpdateProduct(t *testing.T) {
	e := newEnv(t)
	product := seedProduct(t, e)

	rec := e.do(t, http.MethodPatch, "/api/v1/products/"+product.ID.String(), gin.H{
		"name":         "Widget Pro",
		"target_price": 750.0,
	}, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var got models.Product
	decodeBody(t, rec, &got)
	if got.Name != "Widget Pro" {
		t.Fatalf("name = %q, want Widget Pro", got.Name)
	}
	if got.TargetPrice == nil || *got.TargetPrice != 750 {
		t.Fatalf("target price = %v, want 750", got.TargetPrice)
	}
	if got.CurrentPrice != product.CurrentPrice {
		t.Fatalf("current price = %v, want untouched %v", got.CurrentPrice, product.CurrentPrice)
	}
}

func TestUpdateProductValidation(t *testing.T) {
	e := newEnv(t)
	product := seedProduct(t, e)

	cases := []struct {
		name string
		body gin.H
	}{
		{"empty name", gin.H{"name": ""}},
		{"zero price", gin.H{"current_price": 0.0}},
		{"negative target", gin.H{"target_price": -5.0}},
		{"unknown availability", gin.H{"availability": "Maybe"}},
		{"no fields", gin.H{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPatch, "/api/v1/products/"+product.ID.String(), tc.body, true)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestUpdateProductNotFound(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPatch, "/api/v1/products/"+uuid.NewString(), gin.H{"name": "Ghost"}, true)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDeleteProduct(t *testing.T) {
	e := newEnv(t)
	product := seedProduct(t, e)

	rec := e.do(t, http.MethodDelete, "/api/v1/products/"+product.ID.String(), nil, true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec = e.do(t, http.MethodGet, "/api/v1/products/"+product.ID.String(), nil, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status after delete = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDeleteProductNotFound(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodDelete, "/api/v1/products/"+uuid.NewString(), nil, true)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestProductHistoryJSON(t *testing.T) {
	e := newEnv(t)
	product := seedProduct(t, e)
	e.store.history[product.ID] = append(e.store.history[product.ID], models.PriceHistory{
		ID:        2,
		ProductID: product.ID,
		Price:     899,
	})

	rec := e.do(t, http.MethodGet, "/api/v1/products/"+product.ID.String()+"/history", nil, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		ProductID uuid.UUID             `json:"product_id"`
		History   []models.PriceHistory `json:"history"`
	}
	decodeBody(t, rec, &resp)
	if resp.ProductID != product.ID {
		t.Fatalf("product_id = %s, want %s", resp.ProductID, product.ID)
	}
	if len(resp.History) != 2 {
		t.Fatalf("history rows = %d, want 2", len(resp.History))
	}
}

func TestProductHistoryLimit(t *testing.T) {
	e := newEnv(t)
	product := seedProduct(t, e)
	e.store.history[product.ID] = append(e.store.history[product.ID], models.PriceHistory{
		ID:        2,
		ProductID: product.ID,
		Price:     899,
	})

	rec := e.do(t, http.MethodGet, "/api/v1/products/"+product.ID.String()+"/history?limit=1", nil, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		History []models.PriceHistory `json:"history"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.History) != 1 {
		t.Fatalf("history rows = %d, want 1", len(resp.History))
	}
}

func TestProductHistoryCSV(t *testing.T) {
	e := newEnv(t)
	product := seedProduct(t, e)

	rec := e.do(t, http.MethodGet, "/api/v1/products/"+product.ID.String()+"/history?format=csv", nil, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("Content-Type = %q, want text/csv", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "-history.csv") {
		t.Fatalf("Content-Disposition = %q, want a csv attachment", cd)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("csv lines = %d, want header plus one row", len(lines))
	}
	if !strings.HasPrefix(lines[0], "product_id,name,url,price") {
		t.Fatalf("csv header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "999") {
		t.Fatalf("csv row = %q, want seeded price", lines[1])
	}
}

func TestProductHistoryJSONL(t *testing.T) {
	e := newEnv(t)
	product := seedProduct(t, e)

	rec := e.do(t, http.MethodGet, "/api/v1/products/"+product.ID.String()+"/history?format=jsonl", nil, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("Content-Type = %q, want application/x-ndjson", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("jsonl lines = %d, want 1", len(lines))
	}
	var row struct {
		ProductID uuid.UUID `json:"product_id"`
		Price     float64   `json:"price"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &row); err != nil {
		t.Fatalf("decode jsonl row %q: %v", lines[0], err)
	}
	if row.ProductID != product.ID || row.Price != 999 {
		t.Fatalf("row = %+v, want seeded product/price", row)
	}
}

func TestProductHistoryBadQuery(t *testing.T) {
	e := newEnv(t)
	product := seedProduct(t, e)

	for _, query := range []string{"?format=xml", "?limit=-1", "?limit=abc"} {
		rec := e.do(t, http.MethodGet, "/api/v1/products/"+product.ID.String()+"/history"+query, nil, true)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("query %q: status = %d, want %d", query, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestProductHistoryUnknownProduct(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/v1/products/"+uuid.NewString()+"/history", nil, true)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
