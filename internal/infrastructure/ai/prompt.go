// Package ai implementa ports.ReasoningGateway sobre las APIs REST de Anthropic y Gemini.
// Ningún adaptador interpreta la respuesta más allá de extraer el objeto JSON y las
// capacidades pedidas; la validación del esquema la hace cada unidad.
package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
)

const maxResponseBytes = 256 * 1024

const jsonOnlyRules = `
Devuelve ÚNICAMENTE un objeto JSON válido (sin markdown, sin bloques de código, sin texto fuera del JSON)
con exactamente esta estructura:
%s`

const toolRules = `
Puedes solicitar estas capacidades agregando al objeto el campo
"tool_calls": [{"name": "<nombre>", "arguments": {}}]:
%s`

// systemText arma las instrucciones de sistema: rol + forma esperada + capacidades.
func systemText(req ports.ReasoningRequest) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(req.System))
	if req.ExpectedShape != "" {
		fmt.Fprintf(&b, jsonOnlyRules, req.ExpectedShape)
	}
	if len(req.Tools) > 0 {
		var lines []string
		for _, t := range req.Tools {
			lines = append(lines, fmt.Sprintf("- %s: %s", t.Name, t.Description))
		}
		fmt.Fprintf(&b, toolRules, strings.Join(lines, "\n"))
	}
	return b.String()
}

// userText serializa la entrada estructurada.
func userText(req ports.ReasoningRequest) (string, error) {
	raw, err := json.MarshalIndent(req.Input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("AI: serializar entrada de %s: %w", req.Task, err)
	}
	return "Datos:\n" + string(raw), nil
}

// jsonBlockRe captura desde el primer '{' hasta el último '}'.
var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// extractJSON extrae el objeto JSON de un texto libre, aunque venga envuelto en markdown.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "```"); idx != -1 {
		after := text[idx+3:]
		if nl := strings.Index(after, "\n"); nl != -1 {
			after = after[nl+1:]
		}
		if end := strings.LastIndex(after, "```"); end != -1 {
			after = after[:end]
		}
		text = strings.TrimSpace(after)
	}
	if strings.HasPrefix(text, "{") {
		return text
	}
	return strings.TrimSpace(jsonBlockRe.FindString(text))
}

// buildReply separa tool_calls del objeto devuelto. El contenido queda intacto.
func buildReply(task, text string) (*ports.ReasoningReply, error) {
	clean := extractJSON(text)
	if clean == "" || !json.Valid([]byte(clean)) {
		return nil, fmt.Errorf("AI: %s: no se encontró JSON válido en la respuesta", task)
	}
	var envelope struct {
		ToolCalls []ports.ToolCall `json:"tool_calls"`
	}
	// tool_calls con forma inválida se ignora: el contenido sigue siendo útil.
	_ = json.Unmarshal([]byte(clean), &envelope)
	calls := envelope.ToolCalls[:0]
	for _, c := range envelope.ToolCalls {
		if strings.TrimSpace(c.Name) != "" {
			calls = append(calls, c)
		}
	}
	if len(calls) == 0 {
		calls = nil
	}
	return &ports.ReasoningReply{Content: json.RawMessage(clean), ToolCalls: calls}, nil
}
