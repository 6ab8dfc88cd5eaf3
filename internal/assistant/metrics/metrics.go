// Package metrics 提供问答服务的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Outcome 单次问答的结果类型。
type Outcome string

const (
	OutcomePrompt   Outcome = "prompt"
	OutcomeRefused  Outcome = "refused"
	OutcomeAnswered Outcome = "answered"
	OutcomeFailed   Outcome = "failed"
)

// AssistantMetrics 问答服务业务指标。
type AssistantMetrics struct {
	// 问答指标
	queriesTotal    uint64
	queriesPrompt   uint64
	queriesRefused  uint64
	queriesAnswered uint64
	queriesFailed   uint64

	// 向量指标
	embeddingsTotal  uint64
	embeddingsErrors uint64

	// 模型调用指标
	modelCallsTotal    uint64
	modelCallsDuration float64
	modelCallsErrors   uint64
	modelCallsTimeouts uint64
	breakerOpens       uint64

	// 索引指标
	indexBuilds      uint64
	indexBuildErrors uint64
	indexDocuments   int64
	indexBuildSecs   float64

	// 会话指标
	activeSessions  int64
	sessionsEvicted uint64

	durationMu sync.Mutex
	startTime  time.Time
}

var (
	globalMetrics *AssistantMetrics
	metricsOnce   sync.Once
)

// New 创建独立的指标实例。
func New() *AssistantMetrics {
	return &AssistantMetrics{startTime: time.Now()}
}

// Default 获取全局指标实例。
func Default() *AssistantMetrics {
	metricsOnce.Do(func() {
		globalMetrics = New()
	})
	return globalMetrics
}

// RecordQuery 记录一次问答及其结果。
func (m *AssistantMetrics) RecordQuery(outcome Outcome) {
	atomic.AddUint64(&m.queriesTotal, 1)
	switch outcome {
	case OutcomePrompt:
		atomic.AddUint64(&m.queriesPrompt, 1)
	case OutcomeRefused:
		atomic.AddUint64(&m.queriesRefused, 1)
	case OutcomeAnswered:
		atomic.AddUint64(&m.queriesAnswered, 1)
	case OutcomeFailed:
		atomic.AddUint64(&m.queriesFailed, 1)
	}
}

// RecordEmbedding 记录一次向量计算。
func (m *AssistantMetrics) RecordEmbedding(err error) {
	atomic.AddUint64(&m.embeddingsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.embeddingsErrors, 1)
	}
}

// RecordModelCall 记录一次对话模型调用。
func (m *AssistantMetrics) RecordModelCall(duration time.Duration, timedOut bool, err error) {
	atomic.AddUint64(&m.modelCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.modelCallsErrors, 1)
		if timedOut {
			atomic.AddUint64(&m.modelCallsTimeouts, 1)
		}
		return
	}

	m.durationMu.Lock()
	m.modelCallsDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordBreakerOpen 记录一次熔断器打开。
func (m *AssistantMetrics) RecordBreakerOpen() {
	atomic.AddUint64(&m.breakerOpens, 1)
}

// RecordIndexBuild 记录一次索引构建。
func (m *AssistantMetrics) RecordIndexBuild(documents int, duration time.Duration, err error) {
	if err != nil {
		atomic.AddUint64(&m.indexBuildErrors, 1)
		return
	}
	atomic.AddUint64(&m.indexBuilds, 1)
	atomic.StoreInt64(&m.indexDocuments, int64(documents))

	m.durationMu.Lock()
	m.indexBuildSecs = duration.Seconds()
	m.durationMu.Unlock()
}

// SetActiveSessions 设置当前会话数。
func (m *AssistantMetrics) SetActiveSessions(n int) {
	atomic.StoreInt64(&m.activeSessions, int64(n))
}

// RecordSessionsEvicted 记录被空闲清理的会话数。
func (m *AssistantMetrics) RecordSessionsEvicted(n int) {
	if n > 0 {
		atomic.AddUint64(&m.sessionsEvicted, uint64(n))
	}
}

type sample struct {
	name  string
	help  string
	kind  string
	value string
}

// Export 导出 Prometheus 文本格式指标。
func (m *AssistantMetrics) Export(namespace, subsystem string) string {
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	m.durationMu.Lock()
	modelDuration := m.modelCallsDuration
	buildSecs := m.indexBuildSecs
	startTime := m.startTime
	m.durationMu.Unlock()

	u := func(v *uint64) string { return fmt.Sprintf("%d", atomic.LoadUint64(v)) }
	samples := []sample{
		{"queries_total", "Total number of questions received.", "counter", u(&m.queriesTotal)},
		{"queries_prompt_total", "Questions answered with the prompt-for-input message.", "counter", u(&m.queriesPrompt)},
		{"queries_refused_total", "Questions refused as unrelated.", "counter", u(&m.queriesRefused)},
		{"queries_answered_total", "Questions answered by the language model.", "counter", u(&m.queriesAnswered)},
		{"queries_failed_total", "Questions that ended in an error.", "counter", u(&m.queriesFailed)},
		{"embeddings_total", "Total number of embedding computations.", "counter", u(&m.embeddingsTotal)},
		{"embeddings_errors_total", "Number of failed embedding computations.", "counter", u(&m.embeddingsErrors)},
		{"model_calls_total", "Total number of chat model calls.", "counter", u(&m.modelCallsTotal)},
		{"model_calls_duration_seconds_total", "Total duration of successful chat model calls.", "counter", fmt.Sprintf("%.6f", modelDuration)},
		{"model_calls_errors_total", "Number of failed chat model calls.", "counter", u(&m.modelCallsErrors)},
		{"model_calls_timeouts_total", "Number of chat model calls that timed out.", "counter", u(&m.modelCallsTimeouts)},
		{"model_breaker_opens_total", "Number of times a model circuit breaker opened.", "counter", u(&m.breakerOpens)},
		{"index_builds_total", "Number of successful index builds.", "counter", u(&m.indexBuilds)},
		{"index_build_errors_total", "Number of failed index builds.", "counter", u(&m.indexBuildErrors)},
		{"index_documents", "Documents in the current index.", "gauge", fmt.Sprintf("%d", atomic.LoadInt64(&m.indexDocuments))},
		{"index_build_duration_seconds", "Duration of the last index build.", "gauge", fmt.Sprintf("%.6f", buildSecs)},
		{"sessions_active", "Sessions currently holding history.", "gauge", fmt.Sprintf("%d", atomic.LoadInt64(&m.activeSessions))},
		{"sessions_evicted_total", "Sessions evicted after being idle.", "counter", u(&m.sessionsEvicted)},
		{"uptime_seconds", "Service uptime in seconds.", "gauge", fmt.Sprintf("%.2f", time.Since(startTime).Seconds())},
	}

	var sb strings.Builder
	for _, s := range samples {
		name := prefix + "_" + s.name
		fmt.Fprintf(&sb, "# HELP %s %s\n", name, s.help)
		fmt.Fprintf(&sb, "# TYPE %s %s\n", name, s.kind)
		fmt.Fprintf(&sb, "%s %s\n\n", name, s.value)
	}
	return sb.String()
}

// Stats 返回当前统计信息（用于 API）。
func (m *AssistantMetrics) Stats() map[string]any {
	m.durationMu.Lock()
	modelDuration := m.modelCallsDuration
	startTime := m.startTime
	m.durationMu.Unlock()

	modelTotal := atomic.LoadUint64(&m.modelCallsTotal)
	modelErrors := atomic.LoadUint64(&m.modelCallsErrors)
	avgModelDuration := 0.0
	if ok := modelTotal - modelErrors; ok > 0 {
		avgModelDuration = modelDuration / float64(ok)
	}

	return map[string]any{
		"queries": map[string]any{
			"total":    atomic.LoadUint64(&m.queriesTotal),
			"prompt":   atomic.LoadUint64(&m.queriesPrompt),
			"refused":  atomic.LoadUint64(&m.queriesRefused),
			"answered": atomic.LoadUint64(&m.queriesAnswered),
			"failed":   atomic.LoadUint64(&m.queriesFailed),
		},
		"model": map[string]any{
			"calls_total":       modelTotal,
			"errors":            modelErrors,
			"timeouts":          atomic.LoadUint64(&m.modelCallsTimeouts),
			"breaker_opens":     atomic.LoadUint64(&m.breakerOpens),
			"avg_duration_secs": avgModelDuration,
		},
		"index": map[string]any{
			"builds":    atomic.LoadUint64(&m.indexBuilds),
			"errors":    atomic.LoadUint64(&m.indexBuildErrors),
			"documents": atomic.LoadInt64(&m.indexDocuments),
		},
		"sessions": map[string]any{
			"active":  atomic.LoadInt64(&m.activeSessions),
			"evicted": atomic.LoadUint64(&m.sessionsEvicted),
		},
		"uptime_seconds": time.Since(startTime).Seconds(),
	}
}

// Reset 重置所有指标（仅用于测试）。
func (m *AssistantMetrics) Reset() {
	for _, v := range []*uint64{
		&m.queriesTotal, &m.queriesPrompt, &m.queriesRefused, &m.queriesAnswered, &m.queriesFailed,
		&m.embeddingsTotal, &m.embeddingsErrors,
		&m.modelCallsTotal, &m.modelCallsErrors, &m.modelCallsTimeouts, &m.breakerOpens,
		&m.indexBuilds, &m.indexBuildErrors, &m.sessionsEvicted,
	} {
		atomic.StoreUint64(v, 0)
	}
	atomic.StoreInt64(&m.indexDocuments, 0)
	atomic.StoreInt64(&m.activeSessions, 0)

	m.durationMu.Lock()
	m.modelCallsDuration = 0
	m.indexBuildSecs = 0
	m.startTime = time.Now()
	m.durationMu.Unlock()
}
