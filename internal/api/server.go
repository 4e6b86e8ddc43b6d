// Package api serves the storefront's read-only HTTP surface.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/maxim-sld/meditation-bot/internal/entitlement"
	"github.com/maxim-sld/meditation-bot/types"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	resolver *entitlement.Resolver
	catalog  types.Catalog
	health   pinger
	log      zerolog.Logger
}

func NewServer(resolver *entitlement.Resolver, catalog types.Catalog, health pinger, log zerolog.Logger) *Server {
	return &Server{
		resolver: resolver,
		catalog:  catalog,
		health:   health,
		log:      log.With().Str("component", "api").Logger(),
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/access", s.Access)
	r.GET("/check", s.CheckPaid)
	r.GET("/catalog", s.Catalog)
	r.GET("/plans", s.Plans)
	r.GET("/healthz", s.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, types.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// Access answers GET /access?user=<externalId>&item=<itemId>.
func (s *Server) Access(c *gin.Context) {
	userID, ok := parseID(c.Query("user"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user must be a positive integer"})
		return
	}
	itemID, ok := parseID(c.Query("item"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item must be a positive integer"})
		return
	}

	allowed, err := s.resolver.CheckExternal(c.Request.Context(), userID, itemID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access": allowed})
}

// CheckPaid keeps the old GET /check?user_id= contract: a missing or
// malformed id is simply not paid.
func (s *Server) CheckPaid(c *gin.Context) {
	userID, ok := parseID(c.Query("user_id"))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"paid": false})
		return
	}
	paid, err := s.resolver.SubscriptionActive(c.Request.Context(), userID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paid": paid})
}

type itemResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	IsFree      bool   `json:"is_free"`
	PackageID   *int64 `json:"package_id"`
}

func (s *Server) Catalog(c *gin.Context) {
	items, err := s.catalog.ListContentItems(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, itemResponse{
			ID:          it.ID,
			Title:       it.Title,
			Description: it.Description,
			IsFree:      it.IsFree,
			PackageID:   it.PackageID,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": out, "total": len(out)})
}

type planResponse struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	DurationDays int    `json:"duration_days"`
	Price        int64  `json:"price"`
}

func (s *Server) Plans(c *gin.Context) {
	plans, err := s.catalog.ListActivePlans(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, planResponse{ID: p.ID, Title: p.Title, DurationDays: p.DurationDays, Price: p.Price})
	}
	c.JSON(http.StatusOK, gin.H{"plans": out, "total": len(out)})
}

func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.health.Ping(ctx); err != nil {
		s.log.Warn().Err(err).Msg("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
