// Package options contains flags and options for initializing the assistant server.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/sentinel-assistant/internal/assistant"
	"github.com/kart-io/sentinel-assistant/pkg/infra/app"
	assistantopts "github.com/kart-io/sentinel-assistant/pkg/options/assistant"
	cacheopts "github.com/kart-io/sentinel-assistant/pkg/options/cache"
	historyopts "github.com/kart-io/sentinel-assistant/pkg/options/history"
	indexopts "github.com/kart-io/sentinel-assistant/pkg/options/index"
	llmopts "github.com/kart-io/sentinel-assistant/pkg/options/llm"
	logopts "github.com/kart-io/sentinel-assistant/pkg/options/logger"
	middlewareopts "github.com/kart-io/sentinel-assistant/pkg/options/middleware"
	httpopts "github.com/kart-io/sentinel-assistant/pkg/options/server/http"
	tracingopts "github.com/kart-io/sentinel-assistant/pkg/options/tracing"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// MiddlewareOptions contains middleware configuration.
	MiddlewareOptions *middlewareopts.Options `json:"middleware" mapstructure:"middleware"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// AssistantOptions contains answering configuration.
	AssistantOptions *assistantopts.Options `json:"assistant" mapstructure:"assistant"`

	// HistoryOptions contains conversation history configuration.
	HistoryOptions *historyopts.Options `json:"history" mapstructure:"history"`

	// IndexOptions contains knowledge index configuration.
	IndexOptions *indexopts.Options `json:"index" mapstructure:"index"`

	// CacheOptions contains embedding cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// TracingOptions contains OpenTelemetry configuration.
	TracingOptions *tracingopts.Options `json:"tracing" mapstructure:"tracing"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:       httpopts.NewOptions(),
		LogOptions:        logopts.NewOptions(),
		MiddlewareOptions: middlewareopts.NewOptions(),
		ChatOptions:       llmopts.NewChatOptions(),
		EmbeddingOptions:  llmopts.NewEmbeddingOptions(),
		AssistantOptions:  assistantopts.NewOptions(),
		HistoryOptions:    historyopts.NewOptions(),
		IndexOptions:      indexopts.NewOptions(),
		CacheOptions:      cacheopts.NewOptions(),
		TracingOptions:    tracingopts.NewOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss app.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.MiddlewareOptions.AddFlags(fss.FlagSet("middleware"))
	o.ChatOptions.AddFlags(fss.FlagSet("chat"), "chat")
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding")
	o.AssistantOptions.AddFlags(fss.FlagSet("assistant"))
	o.HistoryOptions.AddFlags(fss.FlagSet("history"))
	o.IndexOptions.AddFlags(fss.FlagSet("index"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return err
	}
	if err := o.LogOptions.Complete(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := o.MiddlewareOptions.Complete(); err != nil {
		return fmt.Errorf("middleware: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.AssistantOptions.Complete(); err != nil {
		return fmt.Errorf("assistant: %w", err)
	}
	if err := o.HistoryOptions.Complete(); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if err := o.IndexOptions.Complete(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := o.TracingOptions.Complete(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.MiddlewareOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.AssistantOptions.Validate()...)
	errs = append(errs, o.HistoryOptions.Validate()...)
	errs = append(errs, o.IndexOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)

	return utilerrors.NewAggregate(errs)
}

// Config builds an assistant.Config based on ServerOptions.
func (o *ServerOptions) Config() (*assistant.Config, error) {
	return &assistant.Config{
		HTTPOptions:       o.HTTPOptions,
		LogOptions:        o.LogOptions,
		MiddlewareOptions: o.MiddlewareOptions,
		EmbeddingOptions:  o.EmbeddingOptions,
		ChatOptions:       o.ChatOptions,
		AssistantOptions:  o.AssistantOptions,
		HistoryOptions:    o.HistoryOptions,
		IndexOptions:      o.IndexOptions,
		CacheOptions:      o.CacheOptions,
		TracingOptions:    o.TracingOptions,
	}, nil
}
