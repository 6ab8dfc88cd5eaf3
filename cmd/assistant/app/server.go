// Package app provides the assistant server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/sentinel-assistant/cmd/assistant/app/options"
	"github.com/kart-io/sentinel-assistant/internal/assistant"
	"github.com/kart-io/sentinel-assistant/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `Sentinel Assistant Service

A knowledge-grounded question answering service.

This server provides:
  - Lazy semantic index over a folder of knowledge documents
  - Relevance gating so off-topic questions are refused without a model call
  - Per-session conversation history
  - Pluggable embedding and chat providers (OpenAI compatible, HuggingFace, Ollama, local)`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(assistant.Name),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
