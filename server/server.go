// Package server provides HTTP server management and lifecycle handling for
// the ordonnances API. It includes server setup, middleware configuration,
// route management, and graceful shutdown capabilities with proper error
// handling and logging.
package server

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medicalia/ordonnances-api/config"
	"github.com/medicalia/ordonnances-api/handlers"
	"github.com/medicalia/ordonnances-api/logging"
	"github.com/medicalia/ordonnances-api/metrics"
)

// Server represents the HTTP server
type Server struct {
	server  *http.Server
	router  chi.Router
	handler *handlers.Handler
	config  *config.Config
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, h *handlers.Handler) *Server {
	router := chi.NewRouter()

	server := &Server{
		server: &http.Server{
			Handler: router,
			Addr:    cfg.Address + ":" + cfg.Port,
			// OCR and summary calls wait on upstream models, the write
			// timeout must outlive the 45s OCR budget.
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router:  router,
		handler: h,
		config:  cfg,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(RealIPMiddleware)
	s.router.Use(logging.LoggingMiddleware(logging.DefaultLoggingService.Logger))
	s.router.Use(middleware.RedirectSlashes)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		// The mobile app and the web hand-off pages call from any origin.
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	s.router.Use(RequestSizeMiddleware(s.config))
	s.router.Use(RateLimitHandler)
	s.router.Use(metrics.Metrics)
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	h := s.handler

	// Service routes
	s.router.Get("/", h.Root)
	s.router.Get("/favicon.ico", h.Favicon)
	s.router.Get("/ping", h.Ping)
	s.router.Get("/health", h.Health)
	s.router.Get("/version", h.Version)
	s.router.Handle("/metrics", promhttp.Handler())

	// Ingestion routes
	s.router.Post("/ocr-photo", h.OCRPhoto)
	s.router.Post("/analyze-ordonnance", h.AnalyzeOrdonnancePDF)
	s.router.Post("/api/ordonnance/analyze", h.AnalyzeRawText)
	s.router.Post("/api/ordonnance/ocr", h.CreateFromOCR)
	s.router.Post("/api/ordonnance/finalize", h.Finalize)
	s.router.Get("/api/ordonnances", h.ListOrdonnances)
	s.router.Post("/api/ordonnances/create", h.CreateOCRRecord)

	// QR and passport routes
	s.router.Get("/api/ordonnances/{id}/qr", h.OrdonnanceQR)
	s.router.Get("/api/qr/resolve", h.ResolveQR)
	s.router.Get("/api/passport/qr", h.PassportQR)
	s.router.Post("/api/passport/qr", h.PassportQR)
	s.router.Get("/api/passport/resolve", h.ResolvePassport)

	// Web hand-off pages for scanned QR codes
	s.router.Get("/o/{token}", h.OrdonnancePage)
	s.router.Get("/p/{token}", h.PassportPage)
	s.router.Get("/open/o/{token}", h.OpenOrdonnance)
	s.router.Get("/open/p/{token}", h.OpenPassport)

	// Medical summary, the underscore alias serves older app builds
	s.router.Post("/ai/medical-summary", h.MedicalSummary)
	s.router.Post("/ai/medical_summary", h.MedicalSummary)
	s.router.Get("/ai/medical-summary/health", h.SummaryHealth)
	s.router.Get("/ai/medical_summary/health", h.SummaryHealth)

	// Delivery routes
	s.router.Post("/delivery/orders", h.CreateDeliveryOrder)
	s.router.Get("/delivery/orders", h.ListDeliveryOrders)
	s.router.Get("/delivery/orders/{id}", h.GetDeliveryOrder)
	s.router.Patch("/delivery/orders/{id}/status", h.UpdateDeliveryStatus)
}

// Start starts the server
func (s *Server) Start() error {
	// Start profiling server if in development mode
	if s.config.Env == config.EnvDevelopment {
		s.startProfilingServer()
	}

	logging.Info(fmt.Sprintf("Starting server at: %s:%s", s.config.Address, s.config.Port))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		// If graceful shutdown fails, force close
		if err := s.server.Close(); err != nil {
			logging.Error("Server close error", "error", err)
			return err
		}
	}

	logging.Info("Server shutdown complete")
	return nil
}

// startProfilingServer starts the pprof profiling server in development mode
func (s *Server) startProfilingServer() {
	go func() {
		fmt.Println("Profiling server started at http://localhost:6060/debug/pprof/")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			fmt.Println("Profiling server failed: ", err)
		}
	}()
}
