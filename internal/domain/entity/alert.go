package entity

import (
	"encoding/json"
	"time"
)

// Alert proyección persistida de una Decision dentro de una corrida.
// (RunToken, Type, DrugName, Title) es único.
type Alert struct {
	ID             string
	RunToken       string
	Type           ActionType
	Severity       Severity
	DrugName       string
	DrugID         string // vacío si el medicamento no está en inventario
	Title          string
	Description    string
	ActionPayload  json.RawMessage
	ActionRequired bool
	Source         string
	Acknowledged   bool
	CreatedAt      time.Time
}

// AlertKey clave de deduplicación dentro de una corrida.
type AlertKey struct {
	Type     ActionType
	DrugName string
	Title    string
}

// Key devuelve la clave de deduplicación de la alerta.
func (a *Alert) Key() AlertKey {
	return AlertKey{Type: a.Type, DrugName: a.DrugName, Title: a.Title}
}
