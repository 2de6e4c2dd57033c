// Package server exposes the webhook ingest endpoints.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/losverdes/membersync/internal/config"
	"github.com/losverdes/membersync/internal/queue"
	"github.com/losverdes/membersync/internal/webhook"
)

// Server holds the handler dependencies.
type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	webhookSvc *webhook.Service
	publisher  queue.Publisher
	log        *zap.Logger
}

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func NewServer(
	engine *gin.Engine,
	cfg config.Config,
	webhookSvc *webhook.Service,
	publisher queue.Publisher,
	log *zap.Logger,
) *Server {
	s := &Server{
		engine:     engine,
		cfg:        cfg,
		webhookSvc: webhookSvc,
		publisher:  publisher,
		log:        log.Named("server"),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.POST("/squarespace/order-webhook", s.HandleSquarespaceWebhook)
	s.engine.POST("/bigcommerce/order-webhook", s.HandleBigCommerceWebhook)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
