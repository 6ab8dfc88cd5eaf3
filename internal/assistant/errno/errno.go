// Package errno defines the error codes of the assistant service (service 21).
package errno

import (
	"net/http"

	"github.com/kart-io/sentinel-assistant/pkg/errors"
)

func init() {
	errors.RegisterService(errors.ServiceAssistant, "assistant")
}

var (
	// ErrEmptyQuery 空问题；不作为失败返回，调用方以提示语回复。
	ErrEmptyQuery = errors.NewRequestError(errors.ServiceAssistant, 1).
			Message("Please enter a valid question.", "请输入有效的问题。").
			MustBuild()

	// ErrConfiguration 知识库目录缺失等配置错误。
	ErrConfiguration = errors.NewConfigError(errors.ServiceAssistant, 1).
				Message("Service is not configured correctly", "服务配置错误").
				MustBuild()

	// ErrEmbedding 向量模型加载或推理失败，下次请求会重试。
	ErrEmbedding = errors.NewInternalError(errors.ServiceAssistant, 1).
			Message("Failed to compute embedding", "向量计算失败").
			MustBuild()

	// ErrIndexNotReady 索引尚未构建（仅用于就绪检查）。
	ErrIndexNotReady = errors.NewBuilder(errors.ServiceAssistant, errors.CategoryInternal, 2).
				HTTP(http.StatusServiceUnavailable).
				Message("Knowledge index is not built yet", "知识索引尚未构建").
				MustBuild()

	// ErrModelInvocation 语言模型调用失败（网络、鉴权、限流）。
	ErrModelInvocation = errors.NewNetworkError(errors.ServiceAssistant, 1).
				Message("Language model request failed", "语言模型调用失败").
				MustBuild()

	// ErrModelTimeout 语言模型调用超时，可重试。
	ErrModelTimeout = errors.NewTimeoutError(errors.ServiceAssistant, 1).
			Message("Language model request timed out, please retry", "语言模型调用超时，请重试").
			MustBuild()
)
