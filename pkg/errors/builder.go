package errors

import (
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/grpc/codes"
)

var (
	serviceRegistry = make(map[int]string)
	serviceMu       sync.RWMutex
)

// RegisterService records the name owning a service code.
// Re-registering the same name is a no-op, a different name panics.
func RegisterService(code int, name string) {
	serviceMu.Lock()
	defer serviceMu.Unlock()

	if existing, ok := serviceRegistry[code]; ok && existing != name {
		panic(fmt.Sprintf("service code %d already registered by '%s', cannot register for '%s'", code, existing, name))
	}
	serviceRegistry[code] = name
}

// GetServiceName returns the registered name for a service code.
func GetServiceName(code int) (string, bool) {
	serviceMu.RLock()
	defer serviceMu.RUnlock()
	name, ok := serviceRegistry[code]
	return name, ok
}

type statusPair struct {
	http int
	grpc codes.Code
}

// categoryStatus 各分类的默认 HTTP / gRPC 状态，未列出的分类按内部错误处理。
var categoryStatus = map[int]statusPair{
	CategoryRequest:    {http.StatusBadRequest, codes.InvalidArgument},
	CategoryAuth:       {http.StatusUnauthorized, codes.Unauthenticated},
	CategoryPermission: {http.StatusForbidden, codes.PermissionDenied},
	CategoryResource:   {http.StatusNotFound, codes.NotFound},
	CategoryConflict:   {http.StatusConflict, codes.AlreadyExists},
	CategoryRateLimit:  {http.StatusTooManyRequests, codes.ResourceExhausted},
	CategoryNetwork:    {http.StatusBadGateway, codes.Unavailable},
	CategoryTimeout:    {http.StatusGatewayTimeout, codes.DeadlineExceeded},
	CategoryConfig:     {http.StatusInternalServerError, codes.FailedPrecondition},
}

// ErrnoBuilder 以链式调用定义业务错误码，状态码默认取自分类。
//
//	var ErrModelTimeout = errors.NewTimeoutError(ServiceAssistant, 1).
//	    Message("Model call timed out", "模型调用超时").
//	    MustBuild()
type ErrnoBuilder struct {
	code   int
	status statusPair
	en, zh string
}

// NewBuilder creates a builder with the category's default statuses.
func NewBuilder(service, category, sequence int) *ErrnoBuilder {
	st, ok := categoryStatus[category]
	if !ok {
		st = statusPair{http.StatusInternalServerError, codes.Internal}
	}
	return &ErrnoBuilder{code: MakeCode(service, category, sequence), status: st}
}

// HTTP overrides the HTTP status code.
func (b *ErrnoBuilder) HTTP(status int) *ErrnoBuilder {
	b.status.http = status
	return b
}

// GRPC overrides the gRPC status code.
func (b *ErrnoBuilder) GRPC(code codes.Code) *ErrnoBuilder {
	b.status.grpc = code
	return b
}

// Message sets the English and Chinese messages. An empty zh falls back to en.
func (b *ErrnoBuilder) Message(en, zh string) *ErrnoBuilder {
	b.en, b.zh = en, zh
	return b
}

// Build validates and registers the Errno.
func (b *ErrnoBuilder) Build() (*Errno, error) {
	if b.en == "" {
		return nil, fmt.Errorf("errno %d: english message is required", b.code)
	}
	zh := b.zh
	if zh == "" {
		zh = b.en
	}

	e := &Errno{
		Code:      b.code,
		HTTP:      b.status.http,
		GRPCCode:  b.status.grpc,
		MessageEN: b.en,
		MessageZH: zh,
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if existing, ok := errnoRegistry[e.Code]; ok {
		return nil, fmt.Errorf("errno code %d already registered: %s", e.Code, existing.MessageEN)
	}
	errnoRegistry[e.Code] = e
	return e, nil
}

// MustBuild is Build that panics on error. Intended for package-level vars.
func (b *ErrnoBuilder) MustBuild() *Errno {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

func NewRequestError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryRequest, sequence)
}

func NewInternalError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryInternal, sequence)
}

func NewNetworkError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryNetwork, sequence)
}

func NewTimeoutError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryTimeout, sequence)
}

func NewConfigError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryConfig, sequence)
}
