package ports

import (
	"context"
	"encoding/json"
)

// ToolSpec capacidad que el servicio de razonamiento puede solicitar invocar.
type ToolSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ToolCall invocación solicitada por el servicio de razonamiento.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ReasoningRequest pregunta estructurada al servicio de razonamiento.
// Input se serializa a JSON; ExpectedShape describe el objeto JSON que debe devolver.
type ReasoningRequest struct {
	Task          string
	System        string
	Input         any
	ExpectedShape string
	Temperature   float32
	MaxTokens     int
	Tools         []ToolSpec
}

// ReasoningReply objeto JSON devuelto y las herramientas solicitadas (si las hay).
type ReasoningReply struct {
	Content   json.RawMessage
	ToolCalls []ToolCall
}

// ReasoningGateway puerto de salida hacia el servicio de razonamiento (Anthropic, Gemini, ...).
// Cualquier error (red, timeout, HTTP, JSON) significa "no disponible": el caller usa su fallback.
type ReasoningGateway interface {
	Ask(ctx context.Context, req ReasoningRequest) (*ReasoningReply, error)
}
