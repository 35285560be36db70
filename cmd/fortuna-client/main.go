package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dafibh/fortuna/fortuna-client/internal/config"
	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/dafibh/fortuna/fortuna-client/internal/export"
	"github.com/dafibh/fortuna/fortuna-client/internal/handler"
	"github.com/dafibh/fortuna/fortuna-client/internal/ledger"
	"github.com/dafibh/fortuna/fortuna-client/internal/middleware"
	"github.com/dafibh/fortuna/fortuna-client/internal/orchestrator"
	"github.com/dafibh/fortuna/fortuna-client/internal/registry"
	"github.com/dafibh/fortuna/fortuna-client/internal/session"
	"github.com/dafibh/fortuna/fortuna-client/internal/store"
	"github.com/dafibh/fortuna/fortuna-client/internal/websocket"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Session and ledger client
	sess := session.New(cfg.LedgerToken)
	client := ledger.NewClient(ledger.ClientConfig{
		BaseURL: cfg.LedgerBaseURL,
		Tokens:  sess,
		Timeout: cfg.LedgerTimeout,
	})
	log.Info().Str("ledger", cfg.LedgerBaseURL).Msg("Ledger client ready")

	// Push channel and session guard
	hub := websocket.NewHub()
	guard := session.NewGuard(sess, client, session.RedirectFunc(func(path string) {
		log.Info().Str("redirect", path).Msg("Session ended")
	}), hub)

	// Snapshot caches
	orch := orchestrator.New(client, hub)
	guard.OnTeardown(orch.Reset)
	categories := registry.New(orch)
	incomes := store.New(domain.KindIncome, orch)
	expenses := store.New(domain.KindExpense, orch)

	// Export sink
	var sink export.Sink
	if cfg.S3.Enabled() {
		s3Sink, err := export.NewS3Sink(context.Background(), cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 export sink")
		}
		sink = s3Sink
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Archiving exports to S3")
	} else {
		sink = export.NewFileSink(cfg.ExportDir)
		log.Info().Str("dir", cfg.ExportDir).Msg("Saving exports locally")
	}

	// Rate limiter
	rateLimiter := middleware.NewRateLimiterWithConfig(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	defer rateLimiter.Stop()

	// Initialize handlers
	handlers := handler.Handlers{
		Session:      handler.NewSessionHandler(client, guard, hub),
		Categories:   handler.NewCategoryHandler(categories),
		Transactions: handler.NewTransactionHandler(orch, cfg.RecentLimit, incomes, expenses),
		Dashboard:    handler.NewDashboardHandler(orch, cfg.RecentLimit),
		Exports:      handler.NewExportHandler(export.NewService(client, sink)),
		WebSocket:    handler.NewWebSocketHandler(hub, orch, cfg.CORSOrigins),
		Status:       handler.NewStatusHandler(orch),
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Request logging middleware with zerolog
	e.Use(zerologMiddleware())

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Register API routes
	handler.RegisterRoutes(e, handlers, middleware.RequireSession(guard), middleware.RateLimitMiddleware(rateLimiter))

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	hub.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			event := log.Info()
			if res.Status >= http.StatusInternalServerError {
				event = log.Warn()
			}
			event.
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			return nil
		}
	}
}
