package biz

import (
	"context"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-assistant/internal/assistant/metrics"
	historyopts "github.com/kart-io/sentinel-assistant/pkg/options/history"
)

type session struct {
	mu       sync.Mutex
	messages []Message
	lastUsed time.Time
	removed  bool
}

// HistoryStore 按会话保存对话历史。
// 同一会话的修改串行执行，不同会话之间只共享一次 map 查找。
type HistoryStore struct {
	opts    *historyopts.Options
	metrics *metrics.AssistantMetrics
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewHistoryStore 创建会话存储，opts 为 nil 时不做任何限制。
func NewHistoryStore(opts *historyopts.Options, m *metrics.AssistantMetrics) *HistoryStore {
	if opts == nil {
		opts = historyopts.NewOptions()
	}
	if m == nil {
		m = metrics.Default()
	}
	return &HistoryStore{
		opts:     opts,
		metrics:  m,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

func (h *HistoryStore) lookup(key string) *session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[key]
}

func (h *HistoryStore) getOrCreate(key string) *session {
	if s := h.lookup(key); s != nil {
		return s
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[key]; ok {
		return s
	}
	s := &session{lastUsed: h.now()}
	h.sessions[key] = s
	h.metrics.SetActiveSessions(len(h.sessions))
	return s
}

// pairLimit 将奇数上限向上取偶，截断后历史总是从用户消息开始。
func pairLimit(n int) int {
	if n > 0 && n%2 != 0 {
		return n + 1
	}
	return n
}

// Append 追加消息，会话不存在时创建，返回更新后历史的副本。
func (h *HistoryStore) Append(key string, msgs ...Message) []Message {
	for {
		s := h.getOrCreate(key)
		s.mu.Lock()
		// 会话在查找与加锁之间被清除，重新创建
		if s.removed {
			s.mu.Unlock()
			continue
		}

		s.messages = append(s.messages, msgs...)
		if limit := pairLimit(h.opts.MaxMessages); limit > 0 && len(s.messages) > limit {
			s.messages = append([]Message(nil), s.messages[len(s.messages)-limit:]...)
		}
		s.lastUsed = h.now()
		out := append([]Message(nil), s.messages...)
		s.mu.Unlock()
		return out
	}
}

// History 返回会话历史的副本，会话不存在时为空。
func (h *HistoryStore) History(key string) []Message {
	s := h.lookup(key)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Recent 返回发送给模型的最近消息，条数受 window 限制。
func (h *HistoryStore) Recent(key string) []Message {
	msgs := h.History(key)
	if w := pairLimit(h.opts.Window); w > 0 && len(msgs) > w {
		msgs = msgs[len(msgs)-w:]
	}
	return msgs
}

// Len 返回会话的消息数。
func (h *HistoryStore) Len(key string) int {
	s := h.lookup(key)
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Clear 删除会话，会话不存在时为空操作。
func (h *HistoryStore) Clear(key string) {
	h.mu.Lock()
	s, ok := h.sessions[key]
	delete(h.sessions, key)
	h.metrics.SetActiveSessions(len(h.sessions))
	h.mu.Unlock()

	if !ok {
		return
	}
	s.mu.Lock()
	s.removed = true
	s.messages = nil
	s.mu.Unlock()
}

// Sessions 返回当前会话数。
func (h *HistoryStore) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// EvictIdle 删除空闲超过 ttl 的会话，返回删除数量。
func (h *HistoryStore) EvictIdle(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := h.now().Add(-ttl)

	h.mu.Lock()
	defer h.mu.Unlock()

	evicted := 0
	for key, s := range h.sessions {
		s.mu.Lock()
		if s.lastUsed.Before(cutoff) {
			s.removed = true
			s.messages = nil
			delete(h.sessions, key)
			evicted++
		}
		s.mu.Unlock()
	}
	h.metrics.SetActiveSessions(len(h.sessions))
	h.metrics.RecordSessionsEvicted(evicted)
	return evicted
}

// Janitor 定期清理空闲会话。
type Janitor struct {
	store    *HistoryStore
	ttl      time.Duration
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewJanitor 创建清理器。
func NewJanitor(store *HistoryStore, ttl, interval time.Duration) *Janitor {
	return &Janitor{store: store, ttl: ttl, interval: interval}
}

// Name returns the component name.
func (j *Janitor) Name() string {
	return "history-janitor"
}

// Start 启动后台清理，不阻塞。
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	j.cancel = cancel
	j.done = make(chan struct{})

	go j.loop(ctx, j.done)
	logger.Infow("History janitor started", "idle_ttl", j.ttl.String(), "interval", j.interval.String())
	return nil
}

func (j *Janitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := j.store.EvictIdle(j.ttl); n > 0 {
				logger.Infow("Evicted idle sessions", "count", n, "remaining", j.store.Sessions())
			}
		}
	}
}

// Stop 停止清理并等待后台协程退出。
func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel, j.done = nil, nil
	j.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
