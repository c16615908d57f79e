package ai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/internal/infrastructure/ai"
	"github.com/jhoicas/pharma-sentinel/pkg/config"
)

func request() ports.ReasoningRequest {
	return ports.ReasoningRequest{
		Task:          "synthesizer",
		System:        "Eres un analista",
		Input:         map[string]any{"drugs": []string{"Propofol"}},
		ExpectedShape: `{"decisions": []}`,
		Tools:         []ports.ToolSpec{{Name: "clear_stale_alerts", Description: "borra alertas viejas"}},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Anthropic
// ──────────────────────────────────────────────────────────────────────────────

func TestAnthropic_ExtraeJSONYToolCalls(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.Header.Get("x-api-key"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		text := "Aquí está:\n```json\n{\"decisions\": [], \"tool_calls\": [{\"name\": \"clear_stale_alerts\"}, {\"name\": \" \"}]}\n```"
		_ = json.NewEncoder(w).Encode(map[string]any{"content": []map[string]string{{"type": "text", "text": text}}})
	}))
	defer srv.Close()

	gw := ai.NewAnthropicGateway("key-1", "claude-test", srv.URL)
	reply, err := gw.Ask(context.Background(), request())
	require.NoError(t, err)

	assert.JSONEq(t, `{"decisions": [], "tool_calls": [{"name": "clear_stale_alerts"}, {"name": " "}]}`, string(reply.Content))
	require.Len(t, reply.ToolCalls, 1, "se descartan capacidades sin nombre")
	assert.Equal(t, "clear_stale_alerts", reply.ToolCalls[0].Name)

	system, _ := got["system"].(string)
	assert.Contains(t, system, "Eres un analista")
	assert.Contains(t, system, `{"decisions": []}`)
	assert.Contains(t, system, "clear_stale_alerts")
	assert.Equal(t, "claude-test", got["model"])
}

func TestAnthropic_ErroresSonNoDisponible(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"HTTP 529": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(529)
			_, _ = w.Write([]byte(`{"error": {"type": "overloaded_error", "message": "Overloaded"}}`))
		},
		"sin JSON": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "no puedo"}]}`))
		},
		"contenido vacío": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"content": []}`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			_, err := ai.NewAnthropicGateway("k", "m", srv.URL).Ask(context.Background(), request())
			assert.Error(t, err)
		})
	}
}

func TestAnthropic_RespetaElContexto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := ai.NewAnthropicGateway("k", "m", srv.URL).Ask(ctx, request())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestAnthropic_SinAPIKey(t *testing.T) {
	_, err := ai.NewAnthropicGateway("", "m", "").Ask(context.Background(), request())
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")
}

// ──────────────────────────────────────────────────────────────────────────────
// Gemini
// ──────────────────────────────────────────────────────────────────────────────

func TestGemini_RespuestaJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/gemini-test:generateContent"))
		assert.Equal(t, "key-2", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "{\"summary\": \"ok\"}"}]}}]}`))
	}))
	defer srv.Close()

	reply, err := ai.NewGeminiGateway("key-2", "gemini-test", srv.URL).Ask(context.Background(), request())
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary": "ok"}`, string(reply.Content))
	assert.Nil(t, reply.ToolCalls)
}

func TestGemini_ErrorDeLaAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"code": 400, "message": "API key not valid"}}`))
	}))
	defer srv.Close()

	_, err := ai.NewGeminiGateway("k", "m", srv.URL).Ask(context.Background(), request())
	assert.ErrorContains(t, err, "API key not valid")
}

// ──────────────────────────────────────────────────────────────────────────────
// Factory
// ──────────────────────────────────────────────────────────────────────────────

func TestNewGateway(t *testing.T) {
	gw, err := ai.NewGateway(config.AIConfig{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, gw)

	gw, err = ai.NewGateway(config.AIConfig{Provider: "anthropic"})
	require.NoError(t, err)
	assert.Nil(t, gw, "sin API key no hay gateway")

	gw, err = ai.NewGateway(config.AIConfig{Provider: "Gemini", GeminiAPIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &ai.GeminiGateway{}, gw)

	_, err = ai.NewGateway(config.AIConfig{Provider: "openai"})
	assert.Error(t, err)
}
