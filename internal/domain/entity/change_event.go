package entity

// Tipos de evento del change feed.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// ChangeEvent notificación de cambio sobre una tabla vigilada.
type ChangeEvent struct {
	Table     string         `json:"table"`
	EventType string         `json:"eventType"`
	Record    map[string]any `json:"record"`
	OldRecord map[string]any `json:"oldRecord"`
}
