package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cvoptimizer/internal/ai"
	"cvoptimizer/internal/config"
	"cvoptimizer/internal/document"
	"cvoptimizer/internal/errors"
	"cvoptimizer/internal/observability"
	"cvoptimizer/internal/talent"
	"cvoptimizer/internal/wallet"
)

const shutdownTimeout = 30 * time.Second

// NewDependencies wires every service the API needs from the application
// config. The returned close function releases them in reverse order.
func NewDependencies(ctx context.Context, cfg *config.Config, version string, logger *errors.Logger) (Dependencies, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (Dependencies, func(), error) {
		closeAll()
		return Dependencies{}, func() {}, err
	}

	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, version), logger)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize observability: %w", err))
	}
	closers = append(closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := om.Shutdown(shutdownCtx); err != nil {
			logger.LogError(err, "Failed to shutdown observability")
		}
	})

	store, err := wallet.NewStore(ctx, cfg.Wallet, logger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() { closeLogged(logger, "wallet store", store.Close) })

	services, err := ai.NewServices(cfg, logger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() { closeLogged(logger, "AI services", services.Close) })

	publisher, err := talent.NewPublisher(cfg.Talent, logger)
	if err != nil {
		return fail(err)
	}
	talentService := talent.NewService(cfg.Talent, cfg.CostFor("talent"), store, publisher, logger)
	closers = append(closers, func() { closeLogged(logger, "talent publisher", talentService.Close) })

	extractor := document.NewExtractor(document.Config{
		MaxFileSize: cfg.App.MaxFileSize,
		Layout:      cfg.Layout,
	}, logger)

	return Dependencies{
		Extractor:     extractor,
		AI:            services,
		Wallet:        store,
		Talent:        talentService,
		Observability: om,
	}, closeAll, nil
}

func closeLogged(logger *errors.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.LogError(err, "Failed to close "+what)
	}
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer() *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort(s.Host, s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.ReadTimeout,
		WriteTimeout:      s.WriteTimeout,
		IdleTimeout:       s.IdleTimeout,
	}
}

// Start serves the API until ctx is cancelled or SIGINT/SIGTERM arrives,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := s.setupHTTPServer()
	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", server.Addr, err)
	}

	s.displayServerInfo(listener.Addr().String())

	serverErrors := make(chan error, 1)
	go func() {
		s.Logger.Info("Starting HTTP server", "address", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err := <-serverErrors:
		s.cleanupRateLimiter()
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.Logger.Info("Received shutdown signal, starting graceful shutdown")
		return s.performGracefulShutdown(server)
	}
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.cleanupRateLimiter()

	s.Logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

// cleanupRateLimiter cleans up the rate limiter resources
func (s *Server) cleanupRateLimiter() {
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Debug("Rate limiter cleaned up")
	}
}
