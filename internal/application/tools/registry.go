// Package tools registro en proceso de capacidades que el servicio de razonamiento puede solicitar.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/internal/domain"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

// ClearStaleAlerts nombre de la capacidad que borra alertas no reconocidas de corridas anteriores.
const ClearStaleAlerts = "clear_stale_alerts"

// Func implementación de una capacidad. runToken es la corrida que la invoca.
type Func func(ctx context.Context, runToken string, args json.RawMessage) (string, error)

type tool struct {
	spec ports.ToolSpec
	fn   Func
}

// Registry capacidades registradas por nombre. Seguro para uso concurrente.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]tool
	log   *logger.Logger
}

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{tools: make(map[string]tool), log: log.Named("tools")}
}

// NewDefaultRegistry registro con clear_stale_alerts sobre el repositorio de alertas.
func NewDefaultRegistry(alerts repository.AlertRepository, log *logger.Logger) *Registry {
	r := NewRegistry(log)
	r.Register(ports.ToolSpec{
		Name:        ClearStaleAlerts,
		Description: "Borra las alertas no reconocidas de corridas anteriores antes de publicar las nuevas.",
	}, func(ctx context.Context, runToken string, _ json.RawMessage) (string, error) {
		n, err := alerts.DeleteUnacknowledgedExcept(ctx, runToken)
		if err != nil {
			return "", fmt.Errorf("borrar alertas: %w", err)
		}
		return fmt.Sprintf("%d alertas obsoletas eliminadas", n), nil
	})
	return r
}

// Register agrega (o reemplaza) una capacidad.
func (r *Registry) Register(spec ports.ToolSpec, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[spec.Name] = tool{spec: spec, fn: fn}
}

// Specs capacidades anunciadas al servicio de razonamiento, ordenadas por nombre.
func (r *Registry) Specs() []ports.ToolSpec {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ports.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke ejecuta la capacidad pedida. Nombre desconocido => ErrNotFound.
func (r *Registry) Invoke(ctx context.Context, runToken string, call ports.ToolCall) (string, error) {
	r.mu.RLock()
	t, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("capacidad %q: %w", call.Name, domain.ErrNotFound)
	}
	out, err := t.fn(ctx, runToken, call.Arguments)
	if err != nil {
		return "", fmt.Errorf("capacidad %q: %w", call.Name, err)
	}
	r.log.Info().Str("run_token", runToken).Str("tool", call.Name).Str("result", out).Msg("capacidad ejecutada")
	return out, nil
}
