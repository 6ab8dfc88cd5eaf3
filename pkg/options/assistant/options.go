// Package assistant provides answering pipeline configuration options.
package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-assistant/pkg/options"
)

// ContextPlaceholder 系统提示词中被最佳匹配段落替换的占位符。
const ContextPlaceholder = "{{context}}"

// 默认文案。
const (
	DefaultPromptMessage  = "Please enter a valid question."
	DefaultRefusalMessage = "I’m sorry, but your question seems unrelated to our company or its services. Could you please ask something about Infotech or what we offer?"
	DefaultSystemPrompt   = "You are Sales Manager representing Infotech Solutions. Use ONLY the following context to answer the user: " +
		ContextPlaceholder +
		" If the question is unclear or unrelated, politely say that you don't have that information in a short. highlist output text using bold where it is needed."
)

var _ options.IOptions = (*Options)(nil)

// Options 问答流程配置。
type Options struct {
	// KnowledgeDir 知识库目录，目录下每个文件即一个文档。
	KnowledgeDir string `json:"knowledge-dir" mapstructure:"knowledge-dir"`

	// RelevanceThreshold 最佳匹配得分低于该值时拒答。
	RelevanceThreshold float64 `json:"relevance-threshold" mapstructure:"relevance-threshold"`

	// ModelTimeout 单次对话模型调用超时。
	ModelTimeout time.Duration `json:"model-timeout" mapstructure:"model-timeout"`

	// PromptMessage 空问题时的提示。
	PromptMessage string `json:"prompt-message" mapstructure:"prompt-message"`

	// RefusalMessage 无关问题的拒答文案。
	RefusalMessage string `json:"refusal-message" mapstructure:"refusal-message"`

	// SystemPrompt 系统提示词模板，必须包含 {{context}}。
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		KnowledgeDir:       "data/knowledge",
		RelevanceThreshold: 0.35,
		ModelTimeout:       60 * time.Second,
		PromptMessage:      DefaultPromptMessage,
		RefusalMessage:     DefaultRefusalMessage,
		SystemPrompt:       DefaultSystemPrompt,
	}
}

// AddFlags adds flags for assistant options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "assistant."
	fs.StringVar(&o.KnowledgeDir, p+"knowledge-dir", o.KnowledgeDir, "Directory holding the knowledge documents.")
	fs.Float64Var(&o.RelevanceThreshold, p+"relevance-threshold", o.RelevanceThreshold, "Minimum similarity for a question to be answered.")
	fs.DurationVar(&o.ModelTimeout, p+"model-timeout", o.ModelTimeout, "Timeout of a single chat model call.")
	fs.StringVar(&o.PromptMessage, p+"prompt-message", o.PromptMessage, "Reply sent for an empty question.")
	fs.StringVar(&o.RefusalMessage, p+"refusal-message", o.RefusalMessage, "Reply sent for an unrelated question.")
	fs.StringVar(&o.SystemPrompt, p+"system-prompt", o.SystemPrompt, "System prompt template; must contain "+ContextPlaceholder+".")
}

// Validate validates the assistant options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.KnowledgeDir == "" {
		errs = append(errs, fmt.Errorf("assistant.knowledge-dir is required"))
	}
	if o.RelevanceThreshold < -1 || o.RelevanceThreshold > 1 {
		errs = append(errs, fmt.Errorf("assistant.relevance-threshold must be within [-1, 1]"))
	}
	if o.ModelTimeout <= 0 {
		errs = append(errs, fmt.Errorf("assistant.model-timeout must be positive"))
	}
	if !strings.Contains(o.SystemPrompt, ContextPlaceholder) {
		errs = append(errs, fmt.Errorf("assistant.system-prompt must contain %s", ContextPlaceholder))
	}
	return errs
}

// Complete restores empty texts to their defaults.
func (o *Options) Complete() error {
	if o.PromptMessage == "" {
		o.PromptMessage = DefaultPromptMessage
	}
	if o.RefusalMessage == "" {
		o.RefusalMessage = DefaultRefusalMessage
	}
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	return nil
}
