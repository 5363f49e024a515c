package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aluiziolira/go-price-tracker/export"
	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/aluiziolira/go-price-tracker/scraper"
	"github.com/aluiziolira/go-price-tracker/store"
)

type createProductRequest struct {
	URL          string   `json:"url" binding:"required"`
	Name         string   `json:"name"`
	CurrentPrice float64  `json:"current_price"`
	Currency     string   `json:"currency"`
	Availability string   `json:"availability"`
	TargetPrice  *float64 `json:"target_price"`
	Image        string   `json:"image"`
}

type updateProductRequest struct {
	Name         *string  `json:"name"`
	CurrentPrice *float64 `json:"current_price"`
	Currency     *string  `json:"currency"`
	Availability *string  `json:"availability"`
	TargetPrice  *float64 `json:"target_price"`
	Image        *string  `json:"image"`
}

func (s *Server) listProducts(c *gin.Context) {
	products, err := s.store.FindAll(c.Request.Context())
	if err != nil {
		slog.Error("list products failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// createProduct accepts either a fully specified product or just a URL.
// A URL-only request is scraped first and rejected when the page yields
// no price.
func (s *Server) createProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	parsed, err := url.Parse(req.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must be absolute http(s)"})
		return
	}

	if _, err := s.store.FindByURL(c.Request.Context(), req.URL); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "product already tracked"})
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		slog.Error("product lookup failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "product lookup failed"})
		return
	}

	var product *models.Product
	if req.Name == "" && req.CurrentPrice == 0 {
		scraped, ok := s.scrapeForCreate(c, req)
		if !ok {
			return
		}
		product = scraped
	} else {
		product = &models.Product{
			URL:          req.URL,
			Name:         req.Name,
			Domain:       parsed.Hostname(),
			CurrentPrice: req.CurrentPrice,
			Currency:     req.Currency,
			Availability: req.Availability,
			TargetPrice:  req.TargetPrice,
			Image:        req.Image,
		}
	}

	if product.Availability == "" {
		product.Availability = models.AvailabilityInStock
	}
	product.MetadataComplete = product.Name != "" && product.Image != "" && product.Currency != ""

	if err := product.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.Create(c.Request.Context(), product); err != nil {
		slog.Error("create product failed", slog.String("url", product.URL), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create product"})
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (s *Server) scrapeForCreate(c *gin.Context, req createProductRequest) (*models.Product, bool) {
	snap, err := s.scraper.Preview(c.Request.Context(), req.URL)
	if err != nil {
		var invalid scraper.ErrInvalidURL
		if errors.As(err, &invalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
			return nil, false
		}
		slog.Warn("create-by-url scrape failed", slog.String("url", req.URL), slog.Any("error", err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "fetching product page failed"})
		return nil, false
	}
	if !snap.HasPrice() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no price found on product page"})
		return nil, false
	}

	name := snap.Name
	if name == "" {
		name = req.URL
	}
	now := time.Now()
	return &models.Product{
		URL:          req.URL,
		Name:         name,
		Domain:       snap.Domain,
		CurrentPrice: *snap.Price,
		Currency:     snap.Currency,
		Availability: snap.Availability,
		TargetPrice:  req.TargetPrice,
		Image:        snap.Image,
		SKU:          snap.SKU,
		MPN:          snap.MPN,
		Brand:        snap.Brand,
		LastChecked:  &now,
	}, true
}

func (s *Server) getProduct(c *gin.Context) {
	id, ok := parseProductID(c)
	if !ok {
		return
	}

	product, err := s.store.FindByID(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (s *Server) updateProduct(c *gin.Context) {
	id, ok := parseProductID(c)
	if !ok {
		return
	}

	var req updateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	if req.Name != nil && *req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
		return
	}
	if req.CurrentPrice != nil && *req.CurrentPrice <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "current price must be positive"})
		return
	}
	if req.TargetPrice != nil && *req.TargetPrice <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target price must be positive"})
		return
	}
	if req.Availability != nil && !models.ValidAvailability(*req.Availability) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown availability"})
		return
	}

	update := &models.ProductUpdate{
		Name:         req.Name,
		CurrentPrice: req.CurrentPrice,
		Currency:     req.Currency,
		Availability: req.Availability,
		TargetPrice:  req.TargetPrice,
		Image:        req.Image,
	}
	if update.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	if err := s.store.Update(c.Request.Context(), id, update); err != nil {
		respondStoreError(c, err)
		return
	}

	product, err := s.store.FindByID(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (s *Server) deleteProduct(c *gin.Context) {
	id, ok := parseProductID(c)
	if !ok {
		return
	}

	if err := s.store.Delete(c.Request.Context(), id); err != nil {
		respondStoreError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) productHistory(c *gin.Context) {
	id, ok := parseProductID(c)
	if !ok {
		return
	}

	format := c.Query("format")
	if format != "" && format != "csv" && format != "jsonl" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or jsonl"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	product, err := s.store.FindByID(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	rows, err := s.store.FindHistory(c.Request.Context(), id, limit)
	if err != nil {
		slog.Error("load history failed", slog.String("product_id", id.String()), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

	switch format {
	case "csv":
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s-history.csv", id))
		c.Status(http.StatusOK)
		if err := export.WriteCSV(c.Writer, product, rows); err != nil {
			slog.Error("csv export failed", slog.Any("error", err))
		}
	case "jsonl":
		c.Header("Content-Type", "application/x-ndjson")
		c.Status(http.StatusOK)
		if err := export.WriteJSONL(c.Writer, product, rows); err != nil {
			slog.Error("jsonl export failed", slog.Any("error", err))
		}
	default:
		c.JSON(http.StatusOK, gin.H{
			"product_id": id,
			"history":    rows,
		})
	}
}

func parseProductID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return uuid.Nil, false
	}
	return id, true
}

func respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	slog.Error("store operation failed", slog.Any("error", err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
