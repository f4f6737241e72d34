package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pluginrelay/app/usecase"
	"pluginrelay/internal/domain/entity"
	"pluginrelay/internal/domain/repository"
	"pluginrelay/internal/mocks"
)

type fixture struct {
	llm     *mocks.LLMGenerator
	history *mocks.GenerationRepository
	server  *httptest.Server
}

func newFixture(t *testing.T, withHistory bool) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{llm: new(mocks.LLMGenerator)}
	f.llm.On("Provider").Return("gemini")
	f.llm.On("Model").Return("gemini-1.5-pro")

	var opts []usecase.ServiceOption
	var repo repository.GenerationRepository
	if withHistory {
		f.history = new(mocks.GenerationRepository)
		f.history.On("Save", mock.Anything, mock.Anything).Return(nil).Maybe()
		repo = f.history
		opts = append(opts, usecase.WithHistory(repo))
	}

	svc := usecase.NewPluginGeneratorService(f.llm, logger, opts...)
	h := NewRelayHandler(svc, usecase.NewHistoryService(repo), logger)

	r := mux.NewRouter()
	h.RegisterRoutes(r)
	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) post(t *testing.T, body string) (*http.Response, entity.GenerateResponse) {
	t.Helper()
	resp, err := http.Post(f.server.URL+"/api/generate", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out entity.GenerateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHandleGenerate_Success(t *testing.T) {
	f := newFixture(t, false)
	f.llm.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, `Request: "Add a free shipping notice"`)
	})).Return("Here you go\n```php\n<?php\n/* Plugin Name: Notice */\necho ‘ok’;\n```", nil)

	resp, out := f.post(t, `{"prompt":"Add a free shipping notice"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "<?php\n/* Plugin Name: Notice */\necho 'ok';", out.Code)
	assert.Equal(t, "ok", resp.Header.Get(headerGenerationStatus))
	assert.NotEmpty(t, resp.Header.Get(headerGenerationID))
}

func TestHandleGenerate_FailureReturnsFallback(t *testing.T) {
	f := newFixture(t, false)
	f.llm.On("Generate", mock.Anything, mock.Anything).
		Return("", fmt.Errorf("%w: quota exceeded", entity.ErrGenerationFailed))

	resp, out := f.post(t, `{"prompt":"x"}`)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, entity.FallbackCode, out.Code)
	assert.Equal(t, "failed", resp.Header.Get(headerGenerationStatus))
}

func TestHandleGenerate_MissingPromptIsForwarded(t *testing.T) {
	f := newFixture(t, false)
	f.llm.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, `Request: ""`)
	})).Return("<?php // nothing", nil)

	resp, out := f.post(t, `{}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<?php // nothing", out.Code)
}

func TestHandleGenerate_BadBody(t *testing.T) {
	f := newFixture(t, false)

	resp, out := f.post(t, `{"prompt":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, entity.FallbackCode, out.Code)
	f.llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestHandleGenerateWS(t *testing.T) {
	f := newFixture(t, false)
	f.llm.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, `"good"`)
	})).Return("<?php echo 1;", nil)
	f.llm.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, `"bad"`)
	})).Return("", entity.ErrGenerationFailed)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/generate/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var out entity.StreamResponse

	require.NoError(t, conn.WriteJSON(entity.GenerateRequest{Prompt: "good"}))
	require.NoError(t, conn.ReadJSON(&out))
	assert.True(t, out.OK)
	assert.Equal(t, "<?php echo 1;", out.Code)
	assert.NotEmpty(t, out.ID)

	require.NoError(t, conn.WriteJSON(entity.GenerateRequest{Prompt: "bad"}))
	require.NoError(t, conn.ReadJSON(&out))
	assert.False(t, out.OK)
	assert.Equal(t, entity.FallbackCode, out.Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	out = entity.StreamResponse{}
	require.NoError(t, conn.ReadJSON(&out))
	assert.False(t, out.OK)
	assert.Equal(t, entity.FallbackCode, out.Code)
}

func TestHistoryEndpoints_Disabled(t *testing.T) {
	f := newFixture(t, false)

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/api/generations"},
		{http.MethodGet, "/api/generations/abc"},
		{http.MethodGet, "/api/generations/abc/download"},
		{http.MethodDelete, "/api/generations/abc"},
	} {
		r, err := http.NewRequest(req.method, f.server.URL+req.path, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(r)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, req.method+" "+req.path)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	f := newFixture(t, true)

	g := entity.NewGeneration("blue", "gemini", "gemini-1.5-pro")
	g.Succeed("<?php echo 'blue';")

	f.history.On("List", mock.Anything, 5).Return([]*entity.Generation{g}, nil)
	f.history.On("GetByID", mock.Anything, g.ID).Return(g, nil)
	f.history.On("GetByID", mock.Anything, "missing").Return(nil, repository.ErrGenerationNotFound)
	f.history.On("Delete", mock.Anything, g.ID).Return(nil)
	f.history.On("Delete", mock.Anything, "broken").Return(errors.New("io error"))

	t.Run("list", func(t *testing.T) {
		resp, err := http.Get(f.server.URL + "/api/generations?limit=5")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var list []*entity.Generation
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
		require.Len(t, list, 1)
		assert.Equal(t, g.ID, list[0].ID)
	})

	t.Run("bad limit", func(t *testing.T) {
		resp, err := http.Get(f.server.URL + "/api/generations?limit=ten")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("get", func(t *testing.T) {
		resp, err := http.Get(f.server.URL + "/api/generations/" + g.ID)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got entity.Generation
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, g.Code, got.Code)
	})

	t.Run("get missing", func(t *testing.T) {
		resp, err := http.Get(f.server.URL + "/api/generations/missing")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.NotEmpty(t, body["error"])
	})

	t.Run("download", func(t *testing.T) {
		resp, err := http.Get(f.server.URL + "/api/generations/" + g.ID + "/download")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, g.Code, string(body))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="custom-plugin.php"`)
	})

	t.Run("delete", func(t *testing.T) {
		r, _ := http.NewRequest(http.MethodDelete, f.server.URL+"/api/generations/"+g.ID, nil)
		resp, err := http.DefaultClient.Do(r)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		r, _ = http.NewRequest(http.MethodDelete, f.server.URL+"/api/generations/broken", nil)
		resp, err = http.DefaultClient.Do(r)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestGenerateIsJournaled(t *testing.T) {
	f := newFixture(t, true)
	f.llm.On("Generate", mock.Anything, mock.Anything).Return("<?php echo 1;", nil)

	resp, _ := f.post(t, `{"prompt":"x"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	f.history.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(g *entity.Generation) bool {
		return g.ID == resp.Header.Get(headerGenerationID) && g.Code == "<?php echo 1;"
	}))
}

func TestHealthSuggestionsAndMetrics(t *testing.T) {
	f := newFixture(t, false)

	resp, err := http.Get(f.server.URL + "/api/health")
	require.NoError(t, err)
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, true, health["ok"])
	assert.Equal(t, "gemini", health["provider"])
	assert.Equal(t, "gemini-1.5-pro", health["model"])

	resp, err = http.Get(f.server.URL + "/api/suggestions")
	require.NoError(t, err)
	var sugg map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sugg))
	resp.Body.Close()
	assert.Equal(t, entity.Suggestions, sugg["suggestions"])

	resp, err = http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "pluginrelay_http_requests_total")
}
