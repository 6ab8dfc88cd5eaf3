// Package http provides the gin-based HTTP transport.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	apierrors "github.com/kart-io/sentinel-assistant/pkg/errors"
	"github.com/kart-io/sentinel-assistant/pkg/infra/middleware"
	mwopts "github.com/kart-io/sentinel-assistant/pkg/options/middleware"
	options "github.com/kart-io/sentinel-assistant/pkg/options/server/http"
	"github.com/kart-io/sentinel-assistant/pkg/utils/response"
)

// Server is the HTTP server implementation.
type Server struct {
	opts   *options.Options
	engine *gin.Engine

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	errCh    chan error
}

// NewServer creates a new HTTP server. Middleware is applied here so that
// every route group registered later inherits it.
func NewServer(serverOpts *options.Options, middlewareOpts *mwopts.Options) *Server {
	if serverOpts == nil {
		serverOpts = options.NewOptions()
	}
	if middlewareOpts == nil {
		middlewareOpts = mwopts.NewOptions()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.ContextWithFallback = true

	s := &Server{
		opts:   serverOpts,
		engine: engine,
		errCh:  make(chan error, 1),
	}
	s.applyMiddleware(middlewareOpts)
	if serverOpts.MaxBodyBytes > 0 {
		engine.Use(limitBody(serverOpts.MaxBodyBytes))
	}

	engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrRouteNotFound)
	})
	engine.NoMethod(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrRouteNotFound)
	})
	engine.HandleMethodNotAllowed = true

	return s
}

// Name returns the server name.
func (s *Server) Name() string {
	return "http[gin]"
}

// Engine returns the underlying gin.Engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Err reports a serve failure that happened after Start returned.
func (s *Server) Err() <-chan error {
	return s.errCh
}

// Start binds the listener synchronously and serves in the background.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- err
		}
	}()
	return nil
}

// applyMiddleware 按 recovery → request-id → tracing → logger 的固定顺序注册中间件。
func (s *Server) applyMiddleware(opts *mwopts.Options) {
	_ = opts.Complete()

	if opts.IsEnabled(mwopts.MiddlewareRecovery) {
		s.engine.Use(middleware.RecoveryWithOptions(*opts.Recovery, nil))
	}
	if opts.IsEnabled(mwopts.MiddlewareRequestID) {
		s.engine.Use(middleware.RequestIDWithOptions(*opts.RequestID))
	}
	if opts.IsEnabled(mwopts.MiddlewareTracing) {
		s.engine.Use(middleware.TracingWithOptions(*opts.Tracing))
	}
	if opts.IsEnabled(mwopts.MiddlewareLogger) {
		s.engine.Use(middleware.LoggerWithOptions(*opts.Logger))
	}
}

// limitBody 超限时由读取方得到 *http.MaxBytesError。
func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
