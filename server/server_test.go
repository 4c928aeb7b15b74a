package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/ollamarelay/adapters/ollama"
)

func newRelay(t *testing.T, backend http.HandlerFunc, opts ...Option) http.Handler {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client := ollama.NewOllamaLLM(srv.URL, "mistral", ollama.WithRequestTimeout(5*time.Second))
	return New(client, client, client.Model(), opts...).Handler()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func unreachable(w http.ResponseWriter, r *http.Request) {
	panic("backend must not be called")
}

func TestAsk(t *testing.T) {
	h := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Hi", body["prompt"])
		assert.Equal(t, "mistral", body["model"])
		assert.Equal(t, false, body["stream"])
		fmt.Fprint(w, `{"response":"Hello","done":true}`)
	})

	rec := do(h, http.MethodPost, "/ask", `{"prompt":"Hi"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"model":"mistral","response":"Hello","done":true}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestAskForwardsModelAndOptions(t *testing.T) {
	h := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3", body["model"])
		assert.Equal(t, map[string]any{"temperature": 0.7, "num_ctx": float64(2048)}, body["options"])
		fmt.Fprint(w, `{"model":"llama3","response":"ok","done":true}`)
	}, WithDefaultOptions(map[string]any{"temperature": 0.1, "num_ctx": 2048}))

	rec := do(h, http.MethodPost, "/ask", `{"prompt":"Hi","model":"llama3","options":{"temperature":0.7}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"model":"llama3","response":"ok","done":true}`, rec.Body.String())
}

func TestAskValidation(t *testing.T) {
	h := newRelay(t, unreachable)

	tests := map[string]struct {
		body string
		want string
	}{
		"empty object": {`{}`, `{"error":"prompt (string) is required"}`},
		"non-string":   {`{"prompt":42}`, `{"error":"prompt (string) is required"}`},
		"empty prompt": {`{"prompt":""}`, `{"error":"prompt (string) is required"}`},
		"not json":     {`prompt=Hi`, `{"error":"prompt (string) is required"}`},
		"bad model":    {`{"prompt":"Hi","model":3}`, `{"error":"model must be a string"}`},
		"bad options":  {`{"prompt":"Hi","options":[1]}`, `{"error":"options must be an object"}`},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			for _, path := range []string{"/ask", "/ask/stream"} {
				rec := do(h, http.MethodPost, path, tt.body)

				assert.Equal(t, http.StatusBadRequest, rec.Code, path)
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"), path)
				assert.JSONEq(t, tt.want, rec.Body.String(), path)
			}
		})
	}
}

func TestAskUpstreamFailure(t *testing.T) {
	h := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'mistral' not found"}`)
	})

	rec := do(h, http.MethodPost, "/ask", `{"prompt":"Hi"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"ollama_error","details":"404 model 'mistral' not found"}`, rec.Body.String())
}

func TestErrorBodyKeepsEmptyDetails(t *testing.T) {
	rec := httptest.NewRecorder()

	writeJSON(rec, http.StatusInternalServerError, errorResponse{Error: "stream_error"})

	assert.JSONEq(t, `{"error":"stream_error","details":""}`, rec.Body.String())
}

func TestAskStream(t *testing.T) {
	h := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])

		// Three network writes, the first split mid-record.
		flusher := w.(http.Flusher)
		for _, part := range []string{
			`{"response":"He","do`,
			"ne\":false}\n{\"response\":\"l",
			"lo\",\"done\":true}\n",
		} {
			fmt.Fprint(w, part)
			flusher.Flush()
		}
	})

	rec := do(h, http.MethodPost, "/ask/stream", `{"prompt":"Hi"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t,
		"data: {\"text\":\"He\"}\n\n"+
			"data: {\"text\":\"llo\"}\n\n"+
			"event: done\ndata: {\"model\":\"mistral\",\"totalChars\":5}\n\n",
		rec.Body.String())
}

func TestAskStreamFailsBeforeBytes(t *testing.T) {
	h := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"out of memory"}`)
	})

	rec := do(h, http.MethodPost, "/ask/stream", `{"prompt":"Hi"}`)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "event: error\ndata: {\"error\":\"ollama_error\",\"details\":\"500 out of memory\"}\n\n", rec.Body.String())
}

func TestAskStreamBackendErrorRecord(t *testing.T) {
	h := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "{\"response\":\"He\",\"done\":false}\nnot json\n{\"error\":\"model unloaded\"}\n{\"response\":\"never\"}\n")
	})

	rec := do(h, http.MethodPost, "/ask/stream", `{"prompt":"Hi"}`)

	assert.Equal(t,
		"data: {\"text\":\"He\"}\n\n"+
			"event: error\ndata: {\"error\":\"ollama_error\",\"details\":\"model unloaded\"}\n\n",
		rec.Body.String())
}

func TestAskStreamConnectionDrop(t *testing.T) {
	h := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "{\"response\":\"He\",\"done\":false}\n")
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	})

	rec := do(h, http.MethodPost, "/ask/stream", `{"prompt":"Hi"}`)

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "data: {\"text\":\"He\"}\n\nevent: error\n"), body)
	assert.Contains(t, body, `"error":"stream_error"`)
	assert.NotContains(t, body, "event: done")
}

func TestStatus(t *testing.T) {
	h := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprint(w, `{"models":[{"name":"mistral:latest"},{"name":"llama3:8b"}]}`)
	})

	rec := do(h, http.MethodGet, "/status", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"ollama":"up","model":"mistral","modelInstalled":true,"models":["mistral:latest","llama3:8b"]}`, rec.Body.String())
}

func TestStatusBackendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(unreachable))
	srv.Close()
	client := ollama.NewOllamaLLM(srv.URL, "mistral")
	h := New(client, client, "mistral").Handler()

	rec := do(h, http.MethodGet, "/status", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["ok"])
	assert.NotEmpty(t, body["error"])
}

func TestRootAndRouting(t *testing.T) {
	h := newRelay(t, unreachable, WithVersion("1.2.3"))

	rec := do(h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"service":"ollama-relay","version":"1.2.3"}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/missing", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodGet, "/ask", "").Code)
}

func TestModelInstalledMatching(t *testing.T) {
	installed := []string{"mistral:latest", "llama3:8b"}

	assert.True(t, ModelInstalled("mistral", installed))
	assert.True(t, ModelInstalled("mistral:latest", installed))
	assert.True(t, ModelInstalled("llama3:8b", installed))
	assert.False(t, ModelInstalled("llama3", installed))
	assert.False(t, ModelInstalled("gemma", nil))
}
