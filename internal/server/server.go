// Package server exposes one index over HTTP.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dluc/usearch"
)

type Server struct {
	router   *gin.Engine
	index    *usearch.Index
	gatherer prometheus.Gatherer
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer serves the metrics of g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New creates a server around idx.
func New(idx *usearch.Index, opts ...Option) *Server {
	s := &Server{
		index:  idx,
		router: gin.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleHealthCheck())
	s.router.GET("/v1/specs", s.handleSpecs())
	s.router.GET("/v1/stats", s.handleStats())

	s.router.POST("/v1/vectors", s.handleAddVector())
	s.router.POST("/v1/vectors/batch", s.handleAddBatch())
	s.router.GET("/v1/vectors/:key", s.handleGetVector())
	s.router.DELETE("/v1/vectors/:key", s.handleDeleteVector())
	s.router.POST("/v1/search", s.handleSearch())
	s.router.POST("/v1/compact", s.handleCompact())
	s.router.POST("/v1/save", s.handleSave())

	if s.gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() *gin.Engine {
	return s.router
}

// Run listens on addr until the listener fails.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
