// Package httpapi exposes the mail readers over a small JSON HTTP API.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nhle/mail-integration/internal/metrics"
	"github.com/nhle/mail-integration/internal/provider"
	"github.com/nhle/mail-integration/internal/store"
)

// Options wires the server's collaborators. Registry is required; the rest
// are optional.
type Options struct {
	Registry *provider.Registry
	Logger   *zap.Logger
	Metrics  *metrics.Metrics

	// Gatherer backs GET /metrics. The route is not mounted when nil.
	Gatherer prometheus.Gatherer

	// AccessLog receives one record per provider operation and backs
	// GET /email/access-log.
	AccessLog store.AccessLog
}

// Server routes HTTP requests to per-request readers.
type Server struct {
	registry  *provider.Registry
	logger    *zap.Logger
	metrics   *metrics.Metrics
	accessLog store.AccessLog
	engine    *gin.Engine
}

// New builds the gin engine with every route mounted.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registerValidators()

	s := &Server{
		registry:  opts.Registry,
		logger:    logger,
		metrics:   opts.Metrics,
		accessLog: opts.AccessLog,
		engine:    gin.New(),
	}

	s.engine.Use(gin.Recovery(), requestID(), requestLogger(logger), observe(opts.Metrics))

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	email := s.engine.Group("/email")
	email.POST("/health", s.health)
	email.POST("/folders", s.folders)
	email.POST("/inbox", s.inbox)
	email.POST("/detail", s.detail)
	email.POST("/attachments", s.attachments)
	email.POST("/attachment/download", s.download)
	email.GET("/access-log", s.accessLogEntries)

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}
