package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
)

var _ ports.ReasoningGateway = (*AnthropicGateway)(nil)

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion     = "2023-06-01"
	anthropicMaxTokens   = 4096
)

// AnthropicGateway adaptador sobre la API REST de Anthropic Messages. Usa net/http; sin SDK.
type AnthropicGateway struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
}

// NewAnthropicGateway construye el adaptador. url vacío usa el endpoint público.
// El timeout de red es un tope; el caller impone además su context.WithTimeout.
func NewAnthropicGateway(apiKey, model, url string) *AnthropicGateway {
	if url == "" {
		url = anthropicMessagesURL
	}
	return &AnthropicGateway{
		apiKey:     apiKey,
		model:      model,
		url:        url,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// ── Protocolo Messages API ────────────────────────────────────────────────────

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system"`
	Temperature float32            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Ask envía la pregunta a Claude y devuelve el objeto JSON de la respuesta.
func (g *AnthropicGateway) Ask(ctx context.Context, req ports.ReasoningRequest) (*ports.ReasoningReply, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("AI: ANTHROPIC_API_KEY no configurado")
	}
	user, err := userText(req)
	if err != nil {
		return nil, err
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}

	body, err := json.Marshal(anthropicRequest{
		Model:       g.model,
		MaxTokens:   maxTokens,
		System:      systemText(req),
		Temperature: req.Temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: user}},
	})
	if err != nil {
		return nil, fmt.Errorf("AI: serializar request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("AI: crear HTTP request: %w", err)
	}
	httpReq.Header.Set("x-api-key", g.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("AI: timeout o cancelación: %w", ctx.Err())
		}
		return nil, fmt.Errorf("AI: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("AI: leer respuesta: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp anthropicResponse
		if jsonErr := json.Unmarshal(rawBody, &errResp); jsonErr == nil && errResp.Error != nil {
			return nil, fmt.Errorf("AI: Anthropic error (%s): %s", errResp.Error.Type, errResp.Error.Message)
		}
		return nil, fmt.Errorf("AI: Anthropic HTTP %d", resp.StatusCode)
	}

	var anthResp anthropicResponse
	if err := json.Unmarshal(rawBody, &anthResp); err != nil {
		return nil, fmt.Errorf("AI: deserializar respuesta Anthropic: %w", err)
	}
	var text strings.Builder
	for _, c := range anthResp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("AI: Claude devolvió respuesta vacía")
	}
	return buildReply(req.Task, text.String())
}
