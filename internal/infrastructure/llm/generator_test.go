package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pluginrelay/internal/domain/entity"
)

const testPrompt = "Request: \"Add a free shipping notice\""

func TestOpenAIGenerator_Generate(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"<?php echo 1;"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	g := NewOpenAIGenerator("test-key", srv.URL+"/v1", "", nil)
	assert.Equal(t, ProviderOpenAI, g.Provider())
	assert.Equal(t, DefaultOpenAIModel, g.Model())

	text, err := g.Generate(context.Background(), testPrompt)
	require.NoError(t, err)
	assert.Equal(t, "<?php echo 1;", text)

	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, testPrompt, messages[0].(map[string]any)["content"])
}

func TestOpenAIGenerator_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "api error", status: http.StatusUnauthorized, body: `{"error":{"message":"bad key","type":"invalid_request_error"}}`},
		{name: "no choices", status: http.StatusOK, body: `{"id":"c1","choices":[]}`},
		{name: "blank content", status: http.StatusOK, body: `{"id":"c1","choices":[{"index":0,"message":{"role":"assistant","content":"  "}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewOpenAIGenerator("k", srv.URL+"/v1", "m", nil).Generate(context.Background(), testPrompt)
			require.Error(t, err)
			assert.ErrorIs(t, err, entity.ErrGenerationFailed)
		})
	}
}

func TestOllamaGenerator_Generate(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"qwen2.5-coder","response":"<?php echo 2;","done":true}`+"\n")
	}))
	defer srv.Close()

	g, err := NewOllamaGenerator(srv.URL+"/v1/", "", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultOllamaModel, g.Model())

	text, err := g.Generate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "<?php echo 2;", text)
	assert.Equal(t, false, gotBody["stream"])
}

func TestOllamaGenerator_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"model not found"}`)
	}))
	defer srv.Close()

	g, err := NewOllamaGenerator(srv.URL, "missing", nil)
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), testPrompt)
	assert.ErrorIs(t, err, entity.ErrGenerationFailed)
}

func TestGeminiGenerator_Generate(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-1.5-pro:generateContent")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"<?php echo 3;"}]}}]}`)
	}))
	defer srv.Close()

	g := NewGeminiGenerator(context.Background(), "test-key", srv.URL+"/", "", nil)
	assert.Equal(t, ProviderGemini, g.Provider())

	text, err := g.Generate(context.Background(), testPrompt)
	require.NoError(t, err)
	assert.Equal(t, "<?php echo 3;", text)

	raw, err := json.Marshal(gotBody)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Add a free shipping notice")
}

func TestGeminiGenerator_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	g := NewGeminiGenerator(context.Background(), "test-key", srv.URL+"/", "", nil)
	_, err := g.Generate(context.Background(), testPrompt)
	assert.ErrorIs(t, err, entity.ErrGenerationFailed)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	g, err := New(ctx, Options{Provider: ProviderOpenAI, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, g.Provider())

	g, err = New(ctx, Options{Provider: ProviderOllama})
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, g.Provider())

	g, err = New(ctx, Options{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, g.Provider())

	_, err = New(ctx, Options{Provider: "bard"})
	assert.Error(t, err)
}
