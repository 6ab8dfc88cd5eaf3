package biz

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/sentinel-assistant/internal/assistant/errno"
	"github.com/kart-io/sentinel-assistant/internal/assistant/metrics"
	ctxlog "github.com/kart-io/sentinel-assistant/pkg/infra/logger"
	"github.com/kart-io/sentinel-assistant/pkg/infra/tracing"
	"github.com/kart-io/sentinel-assistant/pkg/llm"
	assistantopts "github.com/kart-io/sentinel-assistant/pkg/options/assistant"
)

// ChatFactory 构建对话模型，仅在首次需要回答时调用。
type ChatFactory func(ctx context.Context) (llm.ChatProvider, error)

// StaticChatFactory 返回已构建好的对话模型。
func StaticChatFactory(p llm.ChatProvider) ChatFactory {
	return func(context.Context) (llm.ChatProvider, error) {
		return p, nil
	}
}

type chatLoader struct {
	factory  ChatFactory
	mu       sync.Mutex
	provider llm.ChatProvider
}

func (c *chatLoader) get(ctx context.Context) (llm.ChatProvider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.provider != nil {
		return c.provider, nil
	}
	p, err := c.factory(ctx)
	if err != nil {
		return nil, errno.ErrConfiguration.WithMessage("Failed to initialize language model").WithCause(err)
	}
	c.provider = p
	logger.Infow("Chat model initialized", "provider", p.Name())
	return p, nil
}

// Service 组合索引、相关性判断、会话历史与对话模型回答问题。
type Service struct {
	opts     *assistantopts.Options
	index    *Index
	embedder TextEmbedder
	gate     Gate
	history  *HistoryStore
	chat     *chatLoader
	metrics  *metrics.AssistantMetrics
}

// NewService 创建问答服务。
func NewService(
	opts *assistantopts.Options,
	index *Index,
	embedder TextEmbedder,
	history *HistoryStore,
	chat ChatFactory,
	m *metrics.AssistantMetrics,
) *Service {
	if opts == nil {
		opts = assistantopts.NewOptions()
	}
	if m == nil {
		m = metrics.Default()
	}
	return &Service{
		opts:     opts,
		index:    index,
		embedder: embedder,
		gate:     NewGate(opts.RelevanceThreshold),
		history:  history,
		chat:     &chatLoader{factory: chat},
		metrics:  m,
	}
}

// Answer 回答 session 中的问题 query。
//
// 空问题返回输入提示，无关问题返回拒答文案，两者都不修改历史。
// 其余问题以最佳匹配段落作为唯一上下文调用对话模型，
// 成功后问题与回答一起写入历史；调用失败时历史保持不变。
func (s *Service) Answer(ctx context.Context, sessionID, query string) (*Answer, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "assistant.answer")
	defer span.End()

	ans, err := s.answer(ctx, sessionID, query)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	tracing.AddSpanAttributes(ctx,
		attribute.String("assistant.answer.kind", string(ans.Kind)),
		attribute.Float64("assistant.answer.score", ans.Score),
	)
	return ans, nil
}

// promptMessage 未配置提示语时使用 ErrEmptyQuery 的文案。
func (s *Service) promptMessage() string {
	if s.opts.PromptMessage != "" {
		return s.opts.PromptMessage
	}
	return errno.ErrEmptyQuery.MessageEN
}

func (s *Service) answer(ctx context.Context, sessionID, query string) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		s.metrics.RecordQuery(metrics.OutcomePrompt)
		return &Answer{Kind: AnswerPrompt, Message: s.promptMessage()}, nil
	}
	if sessionID == "" {
		sessionID = DefaultSession
	}
	tracing.AddSpanAttributes(ctx, attribute.String("assistant.session", sessionID))
	ctx = ctxlog.WithSession(ctx, sessionID)

	snap, err := s.index.Get(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	doc, score, ok := snap.Search(vec)
	if !ok || !s.gate.IsRelevant(score) {
		s.metrics.RecordQuery(metrics.OutcomeRefused)
		ctxlog.GetLogger(ctx).Infow("Question refused as unrelated",
			"score", score,
			"threshold", s.gate.Threshold(),
		)
		return &Answer{Kind: AnswerRefused, Message: s.opts.RefusalMessage, Score: score, Source: doc.Name}, nil
	}

	reply, err := s.invoke(ctx, sessionID, doc, query)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	s.metrics.RecordQuery(metrics.OutcomeAnswered)
	return &Answer{Kind: AnswerModel, Message: reply, Score: score, Source: doc.Name}, nil
}

// invoke 调用对话模型，等待期间不持有任何锁。
func (s *Service) invoke(ctx context.Context, sessionID string, doc Document, query string) (string, error) {
	chat, err := s.chat.get(ctx)
	if err != nil {
		return "", err
	}

	history := s.history.Recent(sessionID)
	user := Message{Role: llm.RoleUser, Content: query}

	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: llm.RoleSystem, Content: s.SystemPrompt(doc.Text)})
	msgs = append(msgs, history...)
	msgs = append(msgs, user)

	callCtx, cancel := context.WithTimeout(ctx, s.opts.ModelTimeout)
	callCtx, span := tracing.StartSpan(callCtx, tracerName, "assistant.model.chat")
	span.SetAttributes(
		attribute.String("llm.provider", chat.Name()),
		attribute.Int("llm.messages", len(msgs)),
	)
	start := time.Now()
	reply, err := chat.Chat(callCtx, msgs)
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	tracing.RecordError(callCtx, err)
	span.End()
	cancel()

	elapsed := time.Since(start)
	s.metrics.RecordModelCall(elapsed, timedOut, err)
	if err != nil {
		if timedOut {
			return "", errno.ErrModelTimeout.WithCause(err)
		}
		return "", errno.ErrModelInvocation.WithCause(err)
	}

	s.history.Append(sessionID, user, Message{Role: llm.RoleAssistant, Content: reply})
	ctxlog.GetLogger(ctx).Debugw("Question answered",
		"source", doc.Name,
		"history", len(history)+2,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return reply, nil
}

// SystemPrompt 以 passage 作为唯一上下文生成系统提示词。
func (s *Service) SystemPrompt(passage string) string {
	return strings.ReplaceAll(s.opts.SystemPrompt, assistantopts.ContextPlaceholder, passage)
}

func (s *Service) fail(ctx context.Context, err error) error {
	s.metrics.RecordQuery(metrics.OutcomeFailed)
	ctxlog.GetLogger(ctx).Errorw("Failed to answer question", "error", err.Error())
	return err
}

// ClearHistory 清除会话历史，会话不存在时同样成功。
func (s *Service) ClearHistory(_ context.Context, sessionID string) error {
	if sessionID == "" {
		sessionID = DefaultSession
	}
	s.history.Clear(sessionID)
	logger.Infow("History cleared", "session", sessionID)
	return nil
}

// History 返回会话历史的副本。
func (s *Service) History(sessionID string) []Message {
	if sessionID == "" {
		sessionID = DefaultSession
	}
	return s.history.History(sessionID)
}

// Reload 失效索引；rebuild 为 true 时立即重建。
func (s *Service) Reload(ctx context.Context, rebuild bool) error {
	s.index.Invalidate()
	if !rebuild {
		return nil
	}
	return s.index.Warmup(ctx)
}

// Warmup 预先构建索引。
func (s *Service) Warmup(ctx context.Context) error {
	return s.index.Warmup(ctx)
}

// Ready 报告索引是否已构建。
func (s *Service) Ready() bool {
	return s.index.Ready()
}

// Stats 返回服务状态与业务指标。
func (s *Service) Stats() map[string]any {
	stats := map[string]any{
		"threshold": s.gate.Threshold(),
		"sessions":  s.history.Sessions(),
		"ready":     false,
	}
	if snap := s.index.Snapshot(); snap != nil {
		stats["ready"] = true
		stats["documents"] = snap.Len()
		stats["dimension"] = snap.Dimension
		stats["built_at"] = snap.BuiltAt
	}
	stats["metrics"] = s.metrics.Stats()
	return stats
}
