package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aluiziolira/go-price-tracker/scraper"
)

type previewRequest struct {
	URL string `json:"url" binding:"required"`
}

type schedulerStartRequest struct {
	Cron string `json:"cron"`
}

// scrapePreview scrapes a URL without persisting anything. A page that
// yields no price is reported as 422 along with whatever fields were
// extracted.
func (s *Server) scrapePreview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	snap, err := s.scraper.Preview(c.Request.Context(), req.URL)
	if err != nil {
		var invalid scraper.ErrInvalidURL
		if errors.As(err, &invalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
			return
		}
		slog.Warn("preview scrape failed", slog.String("url", req.URL), slog.Any("error", err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "fetching product page failed"})
		return
	}

	if !snap.HasPrice() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    "no price found on product page",
			"snapshot": snap,
		})
		return
	}

	c.JSON(http.StatusOK, snap)
}

func (s *Server) reconcileNow(c *gin.Context) {
	result, err := s.scheduler.TriggerNow(c.Request.Context())
	if err != nil {
		slog.Error("manual reconcile failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconcile run failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  result.Success,
		"failure":  result.Failure,
		"duration": result.Duration.String(),
	})
}

func (s *Server) schedulerStart(c *gin.Context) {
	var req schedulerStartRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
	}

	if err := s.scheduler.Start(req.Cron); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"running": true,
		"cron":    s.scheduler.Schedule(),
	})
}

func (s *Server) schedulerStop(c *gin.Context) {
	s.scheduler.Stop()
	c.JSON(http.StatusOK, gin.H{"running": false})
}

func (s *Server) schedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"running": s.scheduler.IsRunning(),
		"cron":    s.scheduler.Schedule(),
	})
}

func (s *Server) registryReload(c *gin.Context) {
	if err := s.registry.Reload(); err != nil {
		slog.Error("registry reload failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registry reload failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}
