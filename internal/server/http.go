package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	conf "github.com/hoteldex/hotel-admin/config"
	"github.com/hoteldex/hotel-admin/internal/errors"
	"github.com/hoteldex/hotel-admin/registry"
	"github.com/hoteldex/hotel-admin/registry/consul"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	Engine   *gin.Engine
	srv      *http.Server
	config   *conf.ConsulConfig
	exitChan chan error
	registry registry.ServiceRegistrator
}

// BuildServer constructs the HTTP server: gin engine, operational
// endpoints and the consul registration.
func BuildServer(config *conf.ConsulConfig, exitChan chan error) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	reg, err := consul.NewConsulRegistry(config)
	if err != nil {
		return nil, errors.Internal(
			err.Error(),
			errors.WithID("server.build.consul_registry.error"),
		)
	}

	return &Server{
		Engine: engine,
		srv: &http.Server{
			Addr:              config.PublicAddress,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		exitChan: exitChan,
		config:   config,
		registry: reg,
	}, nil
}

// Start registers the service and serves until shutdown.
func (s *Server) Start() {
	if err := s.registry.Register(); err != nil {
		s.exitChan <- err
		return
	}
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.exitChan <- errors.Internal(
			err.Error(),
			errors.WithID("server.start.serve.error"),
		)
	}
}

// Stop deregisters the service and drains in-flight requests.
func (s *Server) Stop() {
	if err := s.registry.Deregister(); err != nil {
		s.exitChan <- err
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
}

func requestLogger() gin.HandlerFunc {
	log := slog.Default().With("component", "http.server")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("hotel_admin.http.request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
