package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-assistant/pkg/llm"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embed":
			var req embedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			resp := embedResponse{Model: req.Model}
			for range req.Input {
				resp.Embeddings = append(resp.Embeddings, []float32{0.6, 0.8})
			}
			_ = json.NewEncoder(w).Encode(resp)
		case "/api/chat":
			var req chatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.False(t, req.Stream)
			assert.Equal(t, 0.7, req.Options["temperature"])
			_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: "local answer"}, Done: true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProvider(t *testing.T) {
	srv := newServer(t)
	p, err := llm.NewChatProvider(ProviderName, map[string]any{"base_url": srv.URL})
	require.NoError(t, err)

	answer, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "local answer", answer)

	emb, err := llm.NewEmbeddingProvider(ProviderName, map[string]any{"base_url": srv.URL})
	require.NoError(t, err)
	vecs, err := emb.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)

	v, err := emb.EmbedSingle(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.6, 0.8}, v)
}
