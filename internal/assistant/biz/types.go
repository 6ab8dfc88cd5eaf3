package biz

import "github.com/kart-io/sentinel-assistant/pkg/llm"

// DefaultSession 请求未携带 sessionId 时使用的会话。
const DefaultSession = "default"

const tracerName = "github.com/kart-io/sentinel-assistant/internal/assistant/biz"

// Document 知识库中的一个文档，加载后不可变。
type Document struct {
	// Position 文档在目录列表中的序号。
	Position int
	// Name 文件名。
	Name string
	// Text 去除首尾空白后的内容。
	Text string
}

// Embedding 单位长度的向量。
type Embedding []float32

// Message 对话消息。
type Message = llm.Message

// AnswerKind 回答类型。
type AnswerKind string

const (
	// AnswerPrompt 空问题，提示用户输入。
	AnswerPrompt AnswerKind = "prompt"
	// AnswerRefused 问题与知识库无关。
	AnswerRefused AnswerKind = "refused"
	// AnswerModel 由语言模型生成的回答。
	AnswerModel AnswerKind = "answered"
)

// Answer 一次问答的结果。
type Answer struct {
	Kind    AnswerKind `json:"kind"`
	Message string     `json:"message"`
	// Score 最佳匹配得分，空问题时为 0。
	Score float64 `json:"score"`
	// Source 最佳匹配文档名，未检索时为空。
	Source string `json:"source,omitempty"`
}
