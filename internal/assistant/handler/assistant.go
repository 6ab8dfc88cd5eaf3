// Package handler provides HTTP handlers for the assistant service.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/version"

	"github.com/kart-io/sentinel-assistant/internal/assistant/biz"
	"github.com/kart-io/sentinel-assistant/internal/assistant/errno"
	"github.com/kart-io/sentinel-assistant/internal/assistant/metrics"
	apierrors "github.com/kart-io/sentinel-assistant/pkg/errors"
	ctxlog "github.com/kart-io/sentinel-assistant/pkg/infra/logger"
	"github.com/kart-io/sentinel-assistant/pkg/utils/json"
	"github.com/kart-io/sentinel-assistant/pkg/utils/response"
	"github.com/kart-io/sentinel-assistant/pkg/validator"
)

// Service 问答服务。
type Service interface {
	Answer(ctx context.Context, sessionID, query string) (*biz.Answer, error)
	ClearHistory(ctx context.Context, sessionID string) error
	Reload(ctx context.Context, rebuild bool) error
	Ready() bool
	Stats() map[string]any
}

var _ Service = (*biz.Service)(nil)

// Config 处理器配置。
type Config struct {
	// ReadyRequiresIndex 为 true 时索引构建前 /readyz 返回 503。
	ReadyRequiresIndex bool
	// MetricsNamespace Prometheus 指标前缀。
	MetricsNamespace string
	// MetricsSubsystem Prometheus 指标子系统。
	MetricsSubsystem string
}

// AssistantHandler handles assistant HTTP requests.
type AssistantHandler struct {
	service Service
	metrics *metrics.AssistantMetrics
	config  Config
}

// NewAssistantHandler creates a new AssistantHandler.
func NewAssistantHandler(service Service, m *metrics.AssistantMetrics, cfg Config) *AssistantHandler {
	if m == nil {
		m = metrics.Default()
	}
	if cfg.MetricsNamespace == "" {
		cfg.MetricsNamespace = "sentinel"
	}
	return &AssistantHandler{service: service, metrics: m, config: cfg}
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages  []biz.Message `json:"messages"`
	SessionID string        `json:"sessionId,omitempty" validate:"omitempty,sessionid"`
}

// Query 返回最后一条消息的内容。
func (r *ChatRequest) Query() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Content
}

// ClearRequest is the body of DELETE /api/chat.
type ClearRequest struct {
	SessionID string `json:"sessionId,omitempty" validate:"omitempty,sessionid"`
}

// decode 解析 JSON 请求体；allowEmpty 为 true 时空请求体视为 {}。
func decode(c *gin.Context, v any, allowEmpty bool) error {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierrors.ErrRequestTooLarge.WithCause(err)
		}
		return apierrors.ErrBadRequest.WithCause(err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		if allowEmpty {
			return nil
		}
		return apierrors.ErrBadRequest.WithMessage("Request body is required")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apierrors.ErrBadRequest.WithMessage("Invalid JSON body").WithCause(err)
	}
	if errs := validator.Global().Validate(v, validator.LangFromAcceptLanguage(c.GetHeader("Accept-Language"))); errs != nil {
		return apierrors.ErrInvalidParam.WithMessage(errs.First()).WithCause(errs)
	}
	return nil
}

func sessionOrDefault(id string) string {
	if id = strings.TrimSpace(id); id == "" {
		return biz.DefaultSession
	}
	return id
}

// Chat answers the last message of the conversation.
func (h *AssistantHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := decode(c, &req, false); err != nil {
		response.Fail(c, err)
		return
	}

	ctx := c.Request.Context()
	ans, err := h.service.Answer(ctx, sessionOrDefault(req.SessionID), req.Query())
	if err != nil {
		ctxlog.GetLogger(ctx).Errorw("Chat request failed",
			ctxlog.FieldSession, sessionOrDefault(req.SessionID),
			"error", err.Error(),
		)
		response.Fail(c, err)
		return
	}

	c.Header("X-Answer-Kind", string(ans.Kind))
	response.OK(c, ans.Message)
}

// ClearHistory removes the history of a session.
func (h *AssistantHandler) ClearHistory(c *gin.Context) {
	var req ClearRequest
	if err := decode(c, &req, true); err != nil {
		response.Fail(c, err)
		return
	}

	if err := h.service.ClearHistory(c.Request.Context(), sessionOrDefault(req.SessionID)); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "History cleared")
}

// ReloadIndex drops the index. The index is rebuilt immediately unless ?rebuild=false.
func (h *AssistantHandler) ReloadIndex(c *gin.Context) {
	rebuild := c.DefaultQuery("rebuild", "true") != "false"
	if err := h.service.Reload(c.Request.Context(), rebuild); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "Index reloaded")
}

// Stats returns service statistics.
func (h *AssistantHandler) Stats(c *gin.Context) {
	response.JSON(c, h.service.Stats())
}

// Healthz reports liveness.
func (h *AssistantHandler) Healthz(c *gin.Context) {
	response.JSON(c, gin.H{"status": "ok"})
}

// Readyz reports readiness.
func (h *AssistantHandler) Readyz(c *gin.Context) {
	if h.config.ReadyRequiresIndex && !h.service.Ready() {
		response.Fail(c, errno.ErrIndexNotReady)
		return
	}
	response.JSON(c, gin.H{"status": "ready", "index": h.service.Ready()})
}

// Metrics exports metrics in the Prometheus text format.
func (h *AssistantHandler) Metrics(c *gin.Context) {
	out := h.metrics.Export(h.config.MetricsNamespace, h.config.MetricsSubsystem)
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(out))
}

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	ServiceName string `json:"service_name,omitempty"`
	GitVersion  string `json:"git_version"`
	GitCommit   string `json:"git_commit,omitempty"`
	BuildDate   string `json:"build_date,omitempty"`
	GoVersion   string `json:"go_version,omitempty"`
	Platform    string `json:"platform,omitempty"`
}

// Version returns build information.
func (h *AssistantHandler) Version(c *gin.Context) {
	info := version.Get()
	response.JSON(c, VersionResponse{
		ServiceName: info.ServiceName,
		GitVersion:  info.GitVersion,
		GitCommit:   info.GitCommit,
		BuildDate:   info.BuildDate,
		GoVersion:   info.GoVersion,
		Platform:    info.Platform,
	})
}
