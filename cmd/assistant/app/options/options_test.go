package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerOptions_Flags(t *testing.T) {
	o := NewServerOptions()
	fss := o.Flags()

	assert.Equal(t, []string{"http", "log", "middleware", "chat", "embedding", "assistant", "history", "index", "cache", "tracing"}, fss.Order)
	assert.NotNil(t, fss.FlagSets["chat"].Lookup("chat.model"))
	assert.NotNil(t, fss.FlagSets["embedding"].Lookup("embedding.provider"))
	assert.NotNil(t, fss.FlagSets["assistant"].Lookup("assistant.relevance-threshold"))
	assert.NotNil(t, fss.FlagSets["cache"].Lookup("cache.redis.host"))
}

func TestServerOptions_FlagOverrides(t *testing.T) {
	o := NewServerOptions()
	fss := o.Flags()

	require.NoError(t, fss.FlagSets["chat"].Parse([]string{"--chat.model=llama-3.1-8b-instant"}))
	require.NoError(t, fss.FlagSets["assistant"].Parse([]string{"--assistant.relevance-threshold=0.5"}))

	assert.Equal(t, "llama-3.1-8b-instant", o.ChatOptions.Model)
	assert.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", o.EmbeddingOptions.Model)
	assert.InDelta(t, 0.5, o.AssistantOptions.RelevanceThreshold, 1e-9)
}

func TestServerOptions_Validate(t *testing.T) {
	o := NewServerOptions()
	require.NoError(t, o.Complete())
	assert.NoError(t, o.Validate())

	o.AssistantOptions.RelevanceThreshold = 2
	o.ChatOptions.Provider = ""
	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider is required")
}

func TestServerOptions_CompleteReadsAPIKeyFromEnv(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-test")

	o := NewServerOptions()
	require.NoError(t, o.Complete())
	assert.Equal(t, "gsk-test", o.ChatOptions.APIKey)

	cfg, err := o.Config()
	require.NoError(t, err)
	assert.Same(t, o.ChatOptions, cfg.ChatOptions)
	assert.Same(t, o.AssistantOptions, cfg.AssistantOptions)
}
