package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound = errors.New("recurso no encontrado")

	// ErrReasoningUnavailable y ErrMalformedReasoning no son fallas de la corrida:
	// disparan el camino determinista en la unidad que necesitaba el razonamiento.
	ErrReasoningUnavailable = errors.New("servicio de razonamiento no disponible")
	ErrMalformedReasoning   = errors.New("respuesta de razonamiento con forma inválida")

	ErrSourceUnavailable = errors.New("fuente de datos externa no configurada")

	// ErrSynthesisFailed falla local del sintetizador (storage): aborta la corrida.
	ErrSynthesisFailed = errors.New("falla de síntesis")
)

// Fases del pipeline usadas para clasificar fallas.
const (
	PhaseCollection = "collection"
	PhaseSynthesis  = "synthesis"
	PhaseDownstream = "downstream"
)

// PhaseError envuelve la falla de una unidad con la fase en la que ocurrió.
// Collection y downstream son recuperables; synthesis aborta la corrida (lo decide el orquestador).
type PhaseError struct {
	Phase string
	Unit  string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Unit, e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// NewPhaseError construye un PhaseError; devuelve nil si err es nil.
func NewPhaseError(phase, unit string, err error) error {
	if err == nil {
		return nil
	}
	return &PhaseError{Phase: phase, Unit: unit, Err: err}
}
