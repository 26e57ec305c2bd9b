package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/ev-warranty/internal/audit"
	"github.com/ukydev/ev-warranty/internal/auth"
	"github.com/ukydev/ev-warranty/internal/config"
	"github.com/ukydev/ev-warranty/internal/db"
	"github.com/ukydev/ev-warranty/internal/handlers"
	"github.com/ukydev/ev-warranty/internal/middleware"
	"github.com/ukydev/ev-warranty/internal/service"
)

const shutdownTimeout = 15 * time.Second

// server is the wired API together with the resources it holds.
type server struct {
	handler http.Handler
	closers []func(context.Context) error
}

// newServer opens the store, connects the audit sinks and builds the router.
func newServer(ctx context.Context, cfg *config.Config, logger log.FieldLogger) (*server, error) {
	srv := &server{}

	store, closeStore, err := db.Open(ctx, cfg.Store, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	srv.closers = append(srv.closers, closeStore)
	logger.WithField("store", cfg.Store).Info("Store ready")

	sinks := audit.Multi{audit.NewStoreSink(store, logger), audit.NewLogSink(logger)}
	if cfg.MQTTEnabled() {
		client, err := audit.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID, logger)
		if err != nil {
			srv.close(logger)
			return nil, err
		}
		srv.closers = append(srv.closers, func(context.Context) error {
			client.Disconnect(250)
			return nil
		})
		sinks = append(sinks, audit.NewMQTTSink(client, cfg.MQTTTopicPrefix, logger))
		logger.WithFields(log.Fields{"broker": cfg.MQTTBroker, "prefix": cfg.MQTTTopicPrefix}).Info("Publishing claim history to MQTT")
	}

	authService, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		srv.close(logger)
		return nil, err
	}

	claims := service.NewClaimService(store, sinks, logger)
	catalog := service.NewCatalogService(store, logger)

	srv.handler = handlers.NewRouter(handlers.RouterConfig{
		Auth:      handlers.NewAuthHandler(authService, store, logger),
		Claims:    handlers.NewClaimHandler(claims, logger),
		Catalog:   handlers.NewCatalogHandler(catalog, logger),
		Guard:     middleware.NewAuthMiddleware(authService),
		RateLimit: middleware.NewRateLimitMiddleware(cfg.TrustedProxies...),
		Logger:    logger,
	})
	return srv, nil
}

func (s *server) close(logger log.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			logger.WithError(err).Warn("Failed to release resource")
		}
	}
	s.closers = nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.WithFields(log.Fields{"port": cfg.Port, "store": cfg.Store}).Info("Starting warranty claims API")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	srv, err := newServer(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialise server")
	}
	defer srv.close(logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
	}
	logger.Info("Server stopped")
}
