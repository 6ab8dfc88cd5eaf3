// Package middleware provides HTTP middleware configuration options.
package middleware

import (
	"fmt"
	"slices"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-assistant/pkg/options"
)

// 中间件名称常量。
const (
	MiddlewareRecovery  = "recovery"
	MiddlewareRequestID = "request-id"
	MiddlewareLogger    = "logger"
	MiddlewareTracing   = "tracing"
)

var _ options.IOptions = (*Options)(nil)

// Options 中间件配置。Middleware 决定启用哪些中间件，顺序固定为
// recovery → request-id → tracing → logger。
type Options struct {
	Middleware []string          `json:"enabled" mapstructure:"enabled"`
	Recovery   *RecoveryOptions  `json:"recovery" mapstructure:"recovery"`
	RequestID  *RequestIDOptions `json:"request-id" mapstructure:"request-id"`
	Logger     *LoggerOptions    `json:"logger" mapstructure:"logger"`
	Tracing    *TracingOptions   `json:"tracing" mapstructure:"tracing"`
}

// NewOptions 创建默认中间件选项，所有中间件默认启用。
// tracing 在未开启链路追踪时只产生不记录的 span。
func NewOptions() *Options {
	return &Options{
		Middleware: []string{MiddlewareRecovery, MiddlewareRequestID, MiddlewareTracing, MiddlewareLogger},
		Recovery:   NewRecoveryOptions(),
		RequestID:  NewRequestIDOptions(),
		Logger:     NewLoggerOptions(),
		Tracing:    NewTracingOptions(),
	}
}

// IsEnabled reports whether the named middleware is enabled.
func (o *Options) IsEnabled(name string) bool {
	return slices.Contains(o.Middleware, name)
}

// AddFlags adds flags for middleware options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.Middleware, options.Join(prefixes...)+"middleware.enabled", o.Middleware, "Enabled middleware (recovery, request-id, tracing, logger).")
	o.Recovery.AddFlags(fs, prefixes...)
	o.RequestID.AddFlags(fs, prefixes...)
	o.Logger.AddFlags(fs, prefixes...)
	o.Tracing.AddFlags(fs, prefixes...)
}

// Validate validates the middleware options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	for _, name := range o.Middleware {
		switch name {
		case MiddlewareRecovery, MiddlewareRequestID, MiddlewareLogger, MiddlewareTracing:
		default:
			errs = append(errs, fmt.Errorf("unknown middleware %q", name))
		}
	}
	errs = append(errs, o.RequestID.Validate()...)
	return errs
}

// Complete fills nil sub-options with defaults.
func (o *Options) Complete() error {
	if o.Recovery == nil {
		o.Recovery = NewRecoveryOptions()
	}
	if o.RequestID == nil {
		o.RequestID = NewRequestIDOptions()
	}
	if o.Logger == nil {
		o.Logger = NewLoggerOptions()
	}
	if o.Tracing == nil {
		o.Tracing = NewTracingOptions()
	}
	return nil
}

// RecoveryOptions defines recovery middleware options.
type RecoveryOptions struct {
	EnableStackTrace bool `json:"enable-stack-trace" mapstructure:"enable-stack-trace"`
}

// NewRecoveryOptions creates default recovery options.
func NewRecoveryOptions() *RecoveryOptions {
	return &RecoveryOptions{}
}

// AddFlags adds flags for recovery options.
func (o *RecoveryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.EnableStackTrace, options.Join(prefixes...)+"middleware.recovery.enable-stack-trace", o.EnableStackTrace, "Log the stack trace of recovered panics.")
}

// RequestIDOptions defines request ID middleware options.
type RequestIDOptions struct {
	Header string `json:"header" mapstructure:"header"`
}

// NewRequestIDOptions creates default request ID options.
func NewRequestIDOptions() *RequestIDOptions {
	return &RequestIDOptions{Header: "X-Request-ID"}
}

// AddFlags adds flags for request ID options.
func (o *RequestIDOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Header, options.Join(prefixes...)+"middleware.request-id.header", o.Header, "Request ID header name.")
}

// Validate validates the request ID options.
func (o *RequestIDOptions) Validate() []error {
	if o == nil {
		return nil
	}
	if o.Header == "" {
		return []error{fmt.Errorf("request ID header name is required")}
	}
	return nil
}

// LoggerOptions defines access log middleware options.
type LoggerOptions struct {
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// NewLoggerOptions creates default access log options.
func NewLoggerOptions() *LoggerOptions {
	return &LoggerOptions{
		SkipPaths: []string{"/healthz", "/readyz", "/metrics"},
	}
}

// AddFlags adds flags for access log options.
func (o *LoggerOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.SkipPaths, options.Join(prefixes...)+"middleware.logger.skip-paths", o.SkipPaths, "Paths to skip logging.")
}

// TracingOptions defines inbound tracing middleware options.
type TracingOptions struct {
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// NewTracingOptions creates default tracing middleware options.
func NewTracingOptions() *TracingOptions {
	return &TracingOptions{
		SkipPaths: []string{"/healthz", "/readyz", "/metrics"},
	}
}

// AddFlags adds flags for tracing middleware options.
func (o *TracingOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.SkipPaths, options.Join(prefixes...)+"middleware.tracing.skip-paths", o.SkipPaths, "Paths that do not start a span.")
}
