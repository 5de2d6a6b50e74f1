package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pride/internal/audit"
	"pride/internal/config"
	"pride/internal/forecast"
	"pride/internal/handler"
	"pride/internal/middleware"
	"pride/internal/service"
	"pride/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Config    *config.Config
	Sessions  *session.Manager
	Auth      service.AuthService
	Datasets  service.DatasetService
	Forecasts *forecast.Service
	Audit     *audit.Log
	// ModelHealth reports the remote model service's state; nil when models
	// are local or absent.
	ModelHealth func(ctx context.Context) error
	Logger      *zap.Logger
}

type Server struct {
	router *gin.Engine
	deps   Deps
	logger *zap.Logger
}

func NewServer(deps Deps) *Server {
	gin.SetMode(deps.Config.Server.Mode)
	router := gin.Default()
	router.MaxMultipartMemory = deps.Config.Server.MaxUploadBytes

	s := &Server{
		router: router,
		deps:   deps,
		logger: deps.Logger,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	maxUpload := s.deps.Config.Server.MaxUploadBytes

	authHandler := handler.NewAuthHandler(s.deps.Auth, s.logger)
	datasetHandler := handler.NewDatasetHandler(s.deps.Datasets, maxUpload, s.logger)
	analyticsHandler := handler.NewAnalyticsHandler(s.logger)
	forecastHandler := handler.NewForecastHandler(s.deps.Forecasts, s.deps.Audit, maxUpload, s.logger)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	s.router.GET("/health", s.health)

	authGroup := s.router.Group("/api/auth")
	if s.deps.Config.Auth.AllowRegistration {
		authGroup.POST("/register", authHandler.Register)
	}
	authGroup.POST("/login", authHandler.Login)

	// Authenticated routes
	api := s.router.Group("/api")
	api.Use(middleware.AuthMiddleware(s.deps.Sessions, s.logger))
	{
		api.POST("/auth/logout", authHandler.Logout)
		api.GET("/auth/me", authHandler.Me)

		api.GET("/schema", datasetHandler.Schema)
		api.POST("/datasets", datasetHandler.Upload)
		api.GET("/datasets/current", datasetHandler.Current)
		api.GET("/datasets/current/export", datasetHandler.Export)
		api.GET("/datasets/current/options", datasetHandler.Options)

		api.POST("/analysis/count", analyticsHandler.Count)
		api.POST("/analysis/sum", analyticsHandler.Sum)
		api.POST("/analysis/monthly", analyticsHandler.Monthly)
		api.POST("/analysis/stats", analyticsHandler.Stats)
		api.POST("/analysis/points", analyticsHandler.Points)

		api.POST("/forecast/year", forecastHandler.Year)
		api.POST("/forecast/components", forecastHandler.Components)
		api.POST("/forecast/batch", forecastHandler.Batch)
	}
}

func (s *Server) health(c *gin.Context) {
	resp := gin.H{
		"status":   "ok",
		"sessions": s.deps.Sessions.Count(),
	}
	if s.deps.ModelHealth != nil {
		if err := s.deps.ModelHealth(c.Request.Context()); err != nil {
			resp["status"] = "degraded"
			resp["model_service"] = err.Error()
		} else {
			resp["model_service"] = "ok"
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.deps.Config.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
