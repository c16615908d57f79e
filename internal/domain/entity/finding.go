package entity

import (
	"encoding/json"
	"time"
)

// Productores conocidos de findings (agent_logs.agent_name).
const (
	ProducerInventory   = "inventory"
	ProducerShortage    = "shortage_registry"
	ProducerNews        = "news"
	ProducerSynthesizer = "synthesizer"
	ProducerSubstitutes = "substitutes"
	ProducerOrders      = "orders"
)

// Finding salida normalizada de una unidad para una corrida. Append-only.
type Finding struct {
	ID         string
	ProducerID string
	RunToken   string
	Payload    json.RawMessage
	Summary    string
	CreatedAt  time.Time

	// DrugWrites filas de drugs modificadas por el productor en esta corrida. No se persiste.
	DrugWrites int
}

// ErrorPayload forma del payload de una unidad que falló.
type ErrorPayload struct {
	Error string `json:"error"`
	Trace string `json:"trace,omitempty"`
}

// NewErrorFinding construye el finding de una unidad que falló, con el error y la traza.
func NewErrorFinding(producerID, runToken string, err error, trace string) *Finding {
	p := ErrorPayload{Error: err.Error(), Trace: trace}
	raw, _ := json.Marshal(p)
	return &Finding{
		ProducerID: producerID,
		RunToken:   runToken,
		Payload:    raw,
		Summary:    "ERROR: " + err.Error(),
	}
}

// Failed indica si el payload corresponde a una falla de la unidad.
func (f *Finding) Failed() bool {
	if f == nil || len(f.Payload) == 0 {
		return false
	}
	var p ErrorPayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		return false
	}
	return p.Error != ""
}
