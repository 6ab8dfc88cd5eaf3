package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// OK represents a successful operation.
var OK = Register(&Errno{
	Code:      0,
	HTTP:      http.StatusOK,
	GRPCCode:  codes.OK,
	MessageEN: "Success",
	MessageZH: "成功",
})

// ============================================================================
// Request Errors (Category: 01)
// ============================================================================

var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 0),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Bad request",
		MessageZH: "请求错误",
	})

	// ErrInvalidParam indicates an invalid parameter.
	ErrInvalidParam = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 1),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Invalid parameter",
		MessageZH: "参数无效",
	})

	// ErrRequestTooLarge indicates a body over the configured limit.
	ErrRequestTooLarge = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 2),
		HTTP:      http.StatusRequestEntityTooLarge,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Request body too large",
		MessageZH: "请求体过大",
	})
)

// ============================================================================
// Resource Errors (Category: 04)
// ============================================================================

// ErrRouteNotFound indicates an unknown route.
var ErrRouteNotFound = Register(&Errno{
	Code:      MakeCode(ServiceCommon, CategoryResource, 0),
	HTTP:      http.StatusNotFound,
	GRPCCode:  codes.NotFound,
	MessageEN: "Route not found",
	MessageZH: "路由不存在",
})

// ============================================================================
// Internal Errors (Category: 07)
// ============================================================================

var (
	// ErrInternal is the fallback for errors without a code.
	ErrInternal = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryInternal, 0),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Server error",
		MessageZH: "服务器内部错误",
	})

	// ErrPanic indicates a recovered panic.
	ErrPanic = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryInternal, 1),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Server error",
		MessageZH: "服务器内部错误",
	})

	// ErrNotReady indicates a dependency is not ready yet.
	ErrNotReady = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryInternal, 2),
		HTTP:      http.StatusServiceUnavailable,
		GRPCCode:  codes.Unavailable,
		MessageEN: "Service not ready",
		MessageZH: "服务未就绪",
	})
)

// ============================================================================
// Cache Errors (Category: 09)
// ============================================================================

// ErrCache indicates a cache failure.
var ErrCache = Register(&Errno{
	Code:      MakeCode(ServiceCommon, CategoryCache, 0),
	HTTP:      http.StatusInternalServerError,
	GRPCCode:  codes.Internal,
	MessageEN: "Cache error",
	MessageZH: "缓存错误",
})

// ============================================================================
// Network / Timeout / Config Errors (Category: 10, 11, 12)
// ============================================================================

var (
	// ErrNetwork indicates an upstream network failure.
	ErrNetwork = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryNetwork, 0),
		HTTP:      http.StatusBadGateway,
		GRPCCode:  codes.Unavailable,
		MessageEN: "Network error",
		MessageZH: "网络错误",
	})

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryTimeout, 0),
		HTTP:      http.StatusGatewayTimeout,
		GRPCCode:  codes.DeadlineExceeded,
		MessageEN: "Request timeout",
		MessageZH: "请求超时",
	})

	// ErrConfig indicates invalid configuration.
	ErrConfig = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryConfig, 0),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.FailedPrecondition,
		MessageEN: "Configuration error",
		MessageZH: "配置错误",
	})
)
