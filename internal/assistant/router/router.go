// Package router provides assistant service routing.
package router

import (
	"net/http"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-assistant/internal/assistant/handler"
	"github.com/kart-io/sentinel-assistant/pkg/infra/server"
)

// Register registers the assistant routes.
func Register(mgr *server.Manager, h *handler.AssistantHandler) error {
	logger.Info("Registering assistant routes...")

	httpServer := mgr.HTTPServer()
	if httpServer == nil {
		return nil
	}
	engine := httpServer.Engine()

	api := engine.Group("/api")
	{
		api.Handle(http.MethodPost, "/chat", h.Chat)
		api.Handle(http.MethodDelete, "/chat", h.ClearHistory)
		api.Handle(http.MethodPost, "/index/reload", h.ReloadIndex)
		api.Handle(http.MethodGet, "/stats", h.Stats)
	}

	engine.GET("/healthz", h.Healthz)
	engine.GET("/readyz", h.Readyz)
	engine.GET("/metrics", h.Metrics)
	engine.GET("/version", h.Version)

	logger.Info("HTTP routes registered")
	return nil
}
