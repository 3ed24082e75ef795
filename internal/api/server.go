// Package api serves the local HTTP stats endpoint.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rxminer/rxminer/internal/config"
	"github.com/rxminer/rxminer/internal/stats"
	"github.com/rxminer/rxminer/internal/util"
)

// Server exposes the in-memory mining counters over HTTP
type Server struct {
	cfg     *config.Config
	stats   *stats.Stats
	jobView JobView
	router  *gin.Engine
	server  *http.Server
}

// JobView supplies the job epoch shown in the stats response.
// Implemented by job.Registry.
type JobView interface {
	Epoch() uint64
}

// StatsResponse is the /api/stats payload
type StatsResponse struct {
	Snapshot stats.Snapshot `json:"stats"`
	Epoch    uint64         `json:"epoch"`
	Now      int64          `json:"now"`
}

// NewServer creates the stats API server
func NewServer(cfg *config.Config, st *stats.Stats, jobs JobView) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:     cfg,
		stats:   st,
		jobView: jobs,
		router:  router,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures API endpoints
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/stats", s.handleStats)
		api.GET("/workers", s.handleWorkers)
	}
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// handleStats returns the aggregate counters
func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, StatsResponse{
		Snapshot: s.stats.Snapshot(),
		Epoch:    s.jobView.Epoch(),
		Now:      time.Now().Unix(),
	})
}

// handleWorkers returns the per-thread breakdown
func (s *Server) handleWorkers(c *gin.Context) {
	c.JSON(http.StatusOK, s.stats.Snapshot().Threads)
}

// Start begins serving on the configured bind address
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.cfg.API.Bind,
		Handler: s.router,
	}

	ln := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ln <- err
		}
	}()

	select {
	case err := <-ln:
		return fmt.Errorf("api server: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	util.Infof("Stats API listening on %s", s.cfg.API.Bind)
	return nil
}

// Stop shuts the server down gracefully
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.server.Shutdown(ctx)
	util.Info("Stats API stopped")
}
