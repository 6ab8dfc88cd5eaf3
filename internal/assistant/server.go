// Package assistant wires the grounded answering service.
package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/sentinel-assistant/internal/assistant/biz"
	"github.com/kart-io/sentinel-assistant/internal/assistant/handler"
	"github.com/kart-io/sentinel-assistant/internal/assistant/metrics"
	"github.com/kart-io/sentinel-assistant/internal/assistant/router"
	"github.com/kart-io/sentinel-assistant/internal/assistant/watcher"
	"github.com/kart-io/sentinel-assistant/pkg/infra/app"
	"github.com/kart-io/sentinel-assistant/pkg/infra/pool"
	"github.com/kart-io/sentinel-assistant/pkg/infra/server"
	"github.com/kart-io/sentinel-assistant/pkg/infra/tracing"
	"github.com/kart-io/sentinel-assistant/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/sentinel-assistant/pkg/llm/huggingface"
	_ "github.com/kart-io/sentinel-assistant/pkg/llm/local"
	_ "github.com/kart-io/sentinel-assistant/pkg/llm/ollama"
	_ "github.com/kart-io/sentinel-assistant/pkg/llm/openai"
	"github.com/kart-io/sentinel-assistant/pkg/llm/resilience"
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

// Name is the name of the application.
const Name = "sentinel-assistant"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions       *httpopts.Options
	LogOptions        *logopts.Options
	MiddlewareOptions *middlewareopts.Options
	EmbeddingOptions  *llmopts.ProviderOptions
	ChatOptions       *llmopts.ProviderOptions
	AssistantOptions  *assistantopts.Options
	HistoryOptions    *historyopts.Options
	IndexOptions      *indexopts.Options
	CacheOptions      *cacheopts.Options
	TracingOptions    *tracingopts.Options
}

// Server represents the assistant server.
type Server struct {
	srv     *server.Manager
	service *biz.Service
	warmup  bool
	closers []func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. 初始化日志
	cfg.LogOptions.WithService(Name, app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting assistant service...")

	s := &Server{warmup: cfg.IndexOptions.Warmup}
	m := metrics.Default()

	// 2. 初始化链路追踪（可选）
	tp, err := tracing.NewProvider(ctx, cfg.TracingOptions, Name, app.GetVersion())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if tp.Enabled() {
		logger.Infow("Tracing initialized",
			"exporter", cfg.TracingOptions.ExporterType,
			"endpoint", cfg.TracingOptions.Endpoint,
		)
		s.closers = append(s.closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.TracingOptions.ShutdownTimeout)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warnw("Failed to flush traces", "error", err.Error())
			}
		})
	}

	// 3. 初始化 Redis 向量缓存（可选）
	redisClient := cfg.newRedisClient()
	if redisClient != nil {
		s.closers = append(s.closers, func() { _ = redisClient.Close() })
	}

	// 4. 模型延迟构建：首次提问时才创建
	embedder := biz.NewEmbedder(cfg.embeddingFactory(redisClient), m)
	chat := cfg.chatFactory()

	// 5. 索引构建协程池
	indexCfg := biz.IndexConfig{Workers: cfg.IndexOptions.BuildWorkers}
	if cfg.IndexOptions.BuildWorkers > 1 {
		p, err := pool.NewPool("index-build", &pool.Config{
			Capacity:       cfg.IndexOptions.BuildWorkers,
			ExpiryDuration: pool.DefaultPoolConfig().ExpiryDuration,
		})
		if err != nil {
			s.close()
			return nil, fmt.Errorf("failed to create index worker pool: %w", err)
		}
		indexCfg.Pool = p
		s.closers = append(s.closers, p.Release)
	}

	// 6. 初始化 Biz 层
	corpus := biz.NewCorpusLoader(cfg.AssistantOptions.KnowledgeDir)
	index := biz.NewIndex(corpus, embedder, indexCfg, m)
	history := biz.NewHistoryStore(cfg.HistoryOptions, m)
	s.service = biz.NewService(cfg.AssistantOptions, index, embedder, history, chat, m)
	logger.Infow("Assistant service initialized",
		"knowledge_dir", cfg.AssistantOptions.KnowledgeDir,
		"threshold", cfg.AssistantOptions.RelevanceThreshold,
		"model_timeout", cfg.AssistantOptions.ModelTimeout.String(),
		"index.workers", cfg.IndexOptions.BuildWorkers,
		"cache.enabled", redisClient != nil,
	)

	// 7. 初始化 Handler 层与服务器
	h := handler.NewAssistantHandler(s.service, m, handler.Config{
		ReadyRequiresIndex: cfg.IndexOptions.Warmup,
		MetricsNamespace:   "sentinel",
		MetricsSubsystem:   "assistant",
	})
	s.srv = server.NewManager(cfg.HTTPOptions, cfg.MiddlewareOptions)

	// 8. 后台组件
	if cfg.HistoryOptions.IdleTTL > 0 {
		s.srv.AddServer(biz.NewJanitor(history, cfg.HistoryOptions.IdleTTL, cfg.HistoryOptions.SweepInterval))
	}
	if cfg.IndexOptions.Watch {
		s.srv.AddServer(watcher.New(cfg.AssistantOptions.KnowledgeDir, cfg.IndexOptions.WatchDebounce,
			func(ctx context.Context) error {
				return s.service.Reload(ctx, true)
			}))
	}

	// 9. 注册路由
	if err := router.Register(s.srv, h); err != nil {
		s.close()
		return nil, fmt.Errorf("failed to register routes: %w", err)
	}

	logger.Info("Assistant service is ready")
	return s, nil
}

// newRedisClient 缓存未启用或 Redis 不可达时返回 nil。
func (cfg *Config) newRedisClient() *goredis.Client {
	if cfg.CacheOptions == nil || !cfg.CacheOptions.Enabled {
		logger.Info("Embedding cache is disabled")
		return nil
	}

	client := cfg.CacheOptions.Redis.NewClient()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnw("failed to connect to redis, embedding cache will be disabled", "error", err.Error())
		_ = client.Close()
		return nil
	}

	logger.Infow("Redis embedding cache initialized",
		"addr", cfg.CacheOptions.Redis.Addr(),
		"ttl", cfg.CacheOptions.TTL.String(),
	)
	return client
}

func (cfg *Config) embeddingFactory(redisClient *goredis.Client) biz.EmbedderFactory {
	opts := cfg.EmbeddingOptions
	return func(context.Context) (llm.EmbeddingProvider, error) {
		p, err := llm.NewEmbeddingProvider(opts.Provider, opts.ToConfigMap())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
		}
		logger.Infow("Embedding provider initialized", "provider", opts.Provider, "model", opts.Model)

		var provider llm.EmbeddingProvider = resilience.NewResilientEmbeddingProvider(p,
			retryConfig(opts), breakerConfig(opts))
		if redisClient != nil {
			provider = llm.NewCachedEmbeddingProvider(provider, redisClient, &llm.EmbeddingCacheConfig{
				TTL:       cfg.CacheOptions.TTL,
				KeyPrefix: cfg.CacheOptions.KeyPrefix,
				Model:     opts.Model,
			})
		}
		return provider, nil
	}
}

func (cfg *Config) chatFactory() biz.ChatFactory {
	opts := cfg.ChatOptions
	return func(context.Context) (llm.ChatProvider, error) {
		p, err := llm.NewChatProvider(opts.Provider, opts.ToConfigMap())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
		}
		logger.Infow("Chat provider initialized", "provider", opts.Provider, "model", opts.Model)
		// 对话调用不重试，仅熔断
		return resilience.NewResilientChatProvider(p, breakerConfig(opts)), nil
	}
}

func retryConfig(opts *llmopts.ProviderOptions) *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = opts.RetryAttempts
	return cfg
}

func breakerConfig(opts *llmopts.ProviderOptions) *resilience.CircuitBreakerConfig {
	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.MaxFailures = opts.BreakerFailures
	cfg.Timeout = opts.BreakerCooldown
	cfg.OnStateChange = func(_ string, _, to resilience.State) {
		if to == resilience.StateOpen {
			metrics.Default().RecordBreakerOpen()
		}
	}
	return cfg
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.close()

	if s.warmup {
		if err := s.service.Warmup(ctx); err != nil {
			// 失败不缓存，首次提问时会重试
			logger.Warnw("Knowledge index warmup failed", "error", err.Error())
		}
	}
	return s.srv.Run(ctx)
}

func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Listen: %s\n", cfg.HTTPOptions.Addr)
	fmt.Printf("  Knowledge: %s\n", cfg.AssistantOptions.KnowledgeDir)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	if cfg.MiddlewareOptions != nil {
		fmt.Printf("  Enabled Middlewares: %v\n", cfg.MiddlewareOptions.Middleware)
	}
}
