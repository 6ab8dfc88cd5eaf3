package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/kart-io/logger"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/sentinel-assistant/pkg/infra/server/transport/http"
	mwopts "github.com/kart-io/sentinel-assistant/pkg/options/middleware"
	httpopts "github.com/kart-io/sentinel-assistant/pkg/options/server/http"
)

// Manager owns the HTTP server and extra runnables (watchers, janitors).
type Manager struct {
	opts       *httpopts.Options
	httpServer *http.Server
	servers    []Runnable
	mu         sync.Mutex
	started    []Runnable
	running    bool
}

// NewManager creates a new server manager.
func NewManager(httpOpts *httpopts.Options, mwOpts *mwopts.Options) *Manager {
	if httpOpts == nil {
		httpOpts = httpopts.NewOptions()
	}
	return &Manager{
		opts:       httpOpts,
		httpServer: http.NewServer(httpOpts, mwOpts),
	}
}

// HTTPServer returns the HTTP server.
func (m *Manager) HTTPServer() *http.Server {
	return m.httpServer
}

// AddServer adds a runnable started before the HTTP server.
func (m *Manager) AddServer(server Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, server)
}

// Start starts runnables in order and then the HTTP server. On failure the
// components already started are stopped again.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("server manager already started")
	}

	for _, s := range m.servers {
		if err := s.Start(ctx); err != nil {
			m.rollback(ctx)
			return fmt.Errorf("failed to start %s: %w", s.Name(), err)
		}
		m.started = append(m.started, s)
		logger.Infow("Component started", "name", s.Name())
	}

	if err := m.httpServer.Start(ctx); err != nil {
		m.rollback(ctx)
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	logger.Infow("HTTP server started", "addr", m.httpServer.Addr())

	m.running = true
	return nil
}

func (m *Manager) rollback(ctx context.Context) {
	for i := len(m.started) - 1; i >= 0; i-- {
		_ = m.started[i].Stop(ctx)
	}
	m.started = nil
}

// Stop stops the HTTP server first so no new request reaches a stopped
// component, then the runnables in reverse order.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	m.running = false

	var errs []error
	if err := m.httpServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop HTTP server: %w", err))
	}
	logger.Info("HTTP server stopped")

	for i := len(m.started) - 1; i >= 0; i-- {
		s := m.started[i]
		if err := s.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", s.Name(), err))
		}
	}
	m.started = nil

	return utilerrors.NewAggregate(errs)
}

// Run starts everything and blocks until ctx is cancelled or the HTTP server
// fails, then shuts down within the configured shutdown timeout.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Server shutting down...")
	case runErr = <-m.httpServer.Err():
		logger.Errorw("HTTP server failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.ShutdownTimeout)
	defer cancel()

	if err := m.Stop(shutdownCtx); err != nil {
		return utilerrors.NewAggregate([]error{runErr, err})
	}
	return runErr
}
