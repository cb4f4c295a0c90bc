package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/lifecycle"
)

// httpShutdownTimeout bounds how long open requests may take to finish.
const httpShutdownTimeout = 5 * time.Second

// Run starts background jobs and serves the control API until ctx is done or
// a client requests shutdown. Either way every instance is closed before Run
// returns.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.start(); err != nil {
		ln.Close()
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("Stop signal received")
	case <-s.shutdownRequested:
		s.logger.Info("Shutdown requested through the API")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	result := s.Shutdown(context.WithoutCancel(ctx))
	if runErr == nil && !result.Success {
		runErr = fmt.Errorf("%d instances could not be closed", len(result.Failed))
	}
	return runErr
}

func (s *Server) start() error {
	if err := s.android.Attach(s.scheduler, s.config.Android.PollInterval); err != nil {
		return fmt.Errorf("failed to schedule android readiness: %w", err)
	}
	if err := s.scheduleJobs(); err != nil {
		return err
	}
	if err := s.lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}
	s.stopAndroidFeed = s.forwardAndroidStatus()
	s.scheduler.Start()
	return nil
}

// Shutdown closes every instance, then stops the API and background work.
// It is bounded by the configured graceful and final timeouts plus the HTTP
// drain.
func (s *Server) Shutdown(ctx context.Context) lifecycle.ShutdownResult {
	lc := s.config.Lifecycle
	result := s.lifecycle.ShutdownAll(ctx, lc.GracefulTimeout, lc.FinalTimeout)
	if !result.Success {
		s.logger.Warn("Some instances could not be closed",
			zap.Int("failed", len(result.Failed)),
			zap.Int("closed", len(result.Entries)-len(result.Failed)))
	}

	httpCtx, cancel := context.WithTimeout(ctx, httpShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(httpCtx); err != nil {
		s.logger.Warn("HTTP server did not drain", zap.Error(err))
	}

	if err := s.lifecycle.Stop(); err != nil {
		s.logger.Warn("Failed to stop monitor", zap.Error(err))
	}
	if err := s.scheduler.Shutdown(); err != nil {
		s.logger.Warn("Failed to stop scheduler", zap.Error(err))
	}
	if s.stopAndroidFeed != nil {
		s.stopAndroidFeed()
	}

	// The bus flushes queued events into the audit log before it closes.
	if err := s.bus.Close(ctx); err != nil {
		s.logger.Warn("Event bus did not flush", zap.Error(err))
	}
	s.closeStores()

	s.logger.Info("launcherd stopped", zap.Duration("shutdown", result.Duration))
	_ = s.logger.Sync()
	return result
}

func (s *Server) closeStores() {
	if s.audit == nil {
		return
	}
	if err := s.audit.Close(); err != nil {
		s.logger.Warn("Failed to close audit log", zap.Error(err))
	}
}
