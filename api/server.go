// Package api exposes the tracker over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/aluiziolira/go-price-tracker/config"
	"github.com/aluiziolira/go-price-tracker/metrics"
	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/aluiziolira/go-price-tracker/store"
)

// Previewer is the slice of the scrape orchestrator the API needs.
type Previewer interface {
	Preview(ctx context.Context, pageURL string) (models.Snapshot, error)
}

// SchedulerControl drives the reconciliation schedule.
type SchedulerControl interface {
	Start(expr string) error
	Stop()
	IsRunning() bool
	Schedule() string
	TriggerNow(ctx context.Context) (models.BatchResult, error)
}

// RegistryReloader re-reads the site selector table from disk.
type RegistryReloader interface {
	Reload() error
}

// Server wires handlers, middleware and routes.
type Server struct {
	cfg          *config.Config
	store        store.ProductStore
	scraper      Previewer
	scheduler    SchedulerControl
	registry     RegistryReloader
	passwordHash []byte
	router       *gin.Engine
}

// New builds the HTTP server. The metrics argument may be nil, which
// disables the /metrics endpoint.
func New(cfg *config.Config, st store.ProductStore, previewer Previewer, sched SchedulerControl, reg RegistryReloader, m *metrics.Metrics) (*Server, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}

	s := &Server{
		cfg:          cfg,
		store:        st,
		scraper:      previewer,
		scheduler:    sched,
		registry:     reg,
		passwordHash: hash,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", s.health)
	if m != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
	r.POST("/api/v1/auth/login", s.login)

	authed := r.Group("/api/v1", s.requireAuth())
	{
		authed.GET("/products", s.listProducts)
		authed.POST("/products", s.createProduct)
		authed.GET("/products/:id", s.getProduct)
		authed.PATCH("/products/:id", s.updateProduct)
		authed.DELETE("/products/:id", s.deleteProduct)
		authed.GET("/products/:id/history", s.productHistory)

		authed.POST("/scrape/preview", s.scrapePreview)
		authed.POST("/reconcile/run", s.reconcileNow)

		authed.POST("/scheduler/start", s.schedulerStart)
		authed.POST("/scheduler/stop", s.schedulerStop)
		authed.GET("/scheduler/status", s.schedulerStatus)

		authed.POST("/registry/reload", s.registryReload)
	}

	s.router = r
	return s, nil
}

// Router returns the configured gin engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
