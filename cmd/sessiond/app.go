package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/sessionkeeper/internal/db"
	"github.com/nkiryanov/sessionkeeper/internal/handlers"
	"github.com/nkiryanov/sessionkeeper/internal/logger"
	"github.com/nkiryanov/sessionkeeper/internal/repository"
	"github.com/nkiryanov/sessionkeeper/internal/repository/memory"
	"github.com/nkiryanov/sessionkeeper/internal/repository/postgres"
	"github.com/nkiryanov/sessionkeeper/internal/service/activity"
	"github.com/nkiryanov/sessionkeeper/internal/service/audit"
	"github.com/nkiryanov/sessionkeeper/internal/service/auth"
	"github.com/nkiryanov/sessionkeeper/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/sessionkeeper/internal/service/janitor"
	"github.com/nkiryanov/sessionkeeper/internal/service/principal"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger  logger.Logger
	toucher *activity.Toucher
	janitor *janitor.Janitor
	close   func()
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	threshold, err := decimal.NewFromString(c.RotationThreshold)
	if err != nil {
		return nil, fmt.Errorf("invalid rotation threshold %q. Err: %w", c.RotationThreshold, err)
	}

	// Connect to the database and run migrations
	// Without database everything is kept in memory
	var storage repository.Storage
	closeStorage := func() {}
	switch c.DatabaseDSN {
	case "":
		logger.Warn("Database is not configured, sessions are kept in memory")
		storage = memory.NewStorage()
	default:
		pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
		}
		storage = postgres.NewStorage(pool)
		closeStorage = pool.Close
	}

	// Security events go to log, database journal and metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sink := audit.Multi{
		audit.NewLogSink(logger),
		audit.NewStoreSink(storage.SecurityEvent(), logger),
		audit.NewMetricsSink(reg),
	}

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey: c.SecretKey,
		Issuer:    c.TokenIssuer,
		Audience:  c.TokenAudience,
		AccessTTL: c.AccessTokenTTL,
	})
	if err != nil {
		closeStorage()
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	toucher := activity.New(activity.Config{}, storage.Principal(), logger)

	authService, err := auth.NewService(auth.Config{
		SecretKey:         c.SecretKey,
		RenewalTTL:        c.RenewalTokenTTL,
		MaxUses:           c.RenewalMaxUses,
		RotationThreshold: threshold,
		FailedLoginLimit:  c.FailedLoginLimit,
		Activity:          toucher,
	}, storage, tokenManager, sink, logger)
	if err != nil {
		closeStorage()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	principalService := principal.NewService(auth.DefaultHasher, storage.Principal())

	mux := handlers.NewRouter(
		authService,
		principalService,
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		logger,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     logger,
		toucher:    toucher,
		janitor:    janitor.New(janitor.Config{}, storage.RenewalToken(), logger),
		close:      closeStorage,
	}, nil
}

// Run starts http server with background workers and stops them gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	toucherStopped := s.toucher.Run(srvCtx)
	janitorStopped := s.janitor.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-toucherStopped
	<-janitorStopped

	return err
}
