package biz

import (
	"context"
	"io/fs"
	"strings"
	"sync"
	"sync/atomic"
	"testing/fstest"
	"time"

	"github.com/kart-io/sentinel-assistant/internal/assistant/metrics"
	"github.com/kart-io/sentinel-assistant/pkg/llm"
)

// countingFS 统计 Open 调用次数。
type countingFS struct {
	fsys  fstest.MapFS
	opens atomic.Int32
}

func (c *countingFS) Open(name string) (fs.File, error) {
	c.opens.Add(1)
	return c.fsys.Open(name)
}

func newCountingFS(files map[string]string) *countingFS {
	m := fstest.MapFS{}
	for name, content := range files {
		m[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return &countingFS{fsys: m}
}

// conceptEmbedder 将词映射到少量概念维度：业务、地理、功能词。
type conceptEmbedder struct {
	calls atomic.Int32
}

var concepts = map[string]int{
	"company": 0, "services": 0, "service": 0, "offer": 0, "provides": 0,
	"it": 0, "consulting": 0, "pricing": 0, "support": 0,
	"capital": 1, "france": 1, "paris": 1, "city": 1,
	"what": 2, "is": 2, "the": 2, "do": 2, "you": 2, "of": 2, "our": 2,
}

func (c *conceptEmbedder) vector(text string) []float32 {
	v := make([]float32, 3)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		if dim, ok := concepts[w]; ok {
			v[dim]++
		}
	}
	return v
}

func (c *conceptEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := c.EmbedSingle(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *conceptEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.calls.Add(1)
	return c.vector(text), nil
}

func (c *conceptEmbedder) Name() string { return "concept" }

// rawEmbedder 原样返回预设向量。
type rawEmbedder struct {
	vectors map[string][]float32
}

func (r *rawEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = r.EmbedSingle(ctx, t)
	}
	return out, nil
}

func (r *rawEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	return r.vectors[text], nil
}

func (r *rawEmbedder) Name() string { return "raw" }

// fakeChat 记录收到的消息并返回预设回复。
type fakeChat struct {
	mu       sync.Mutex
	reply    string
	err      error
	block    bool
	delay    time.Duration
	calls    int
	messages [][]llm.Message
}

func (f *fakeChat) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	f.calls++
	f.messages = append(f.messages, append([]llm.Message(nil), messages...))
	reply, err, block, delay := f.reply, f.err, f.block, f.delay
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return reply, err
}

func (f *fakeChat) Name() string { return "fake" }

func (f *fakeChat) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeChat) Last() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return nil
	}
	return f.messages[len(f.messages)-1]
}

func newTestEmbedder(p llm.EmbeddingProvider) *Embedder {
	return NewEmbedder(StaticEmbedderFactory(p), metrics.New())
}
