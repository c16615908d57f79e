package dto

import (
	"encoding/json"
	"time"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
)

// RunAcceptedResponse respuesta 202 de un disparo manual.
type RunAcceptedResponse struct {
	RunToken string `json:"run_token"`
	Mode     string `json:"mode"`
	Status   string `json:"status"`
}

// AlertResponse alerta expuesta por la API.
type AlertResponse struct {
	ID             string          `json:"id"`
	RunToken       string          `json:"run_token"`
	Type           string          `json:"alert_type"`
	Severity       string          `json:"severity"`
	DrugName       string          `json:"drug_name"`
	DrugID         string          `json:"drug_id,omitempty"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	ActionPayload  json.RawMessage `json:"action_payload,omitempty"`
	ActionRequired bool            `json:"action_required"`
	Source         string          `json:"source"`
	Acknowledged   bool            `json:"acknowledged"`
	CreatedAt      time.Time       `json:"created_at"`
}

// AlertListResponse listado de alertas de una corrida.
type AlertListResponse struct {
	RunToken string          `json:"run_token"`
	Items    []AlertResponse `json:"items"`
}

// ToAlertResponse mapea la entidad al DTO.
func ToAlertResponse(a *entity.Alert) AlertResponse {
	return AlertResponse{
		ID:             a.ID,
		RunToken:       a.RunToken,
		Type:           string(a.Type),
		Severity:       string(a.Severity),
		DrugName:       a.DrugName,
		DrugID:         a.DrugID,
		Title:          a.Title,
		Description:    a.Description,
		ActionPayload:  a.ActionPayload,
		ActionRequired: a.ActionRequired,
		Source:         a.Source,
		Acknowledged:   a.Acknowledged,
		CreatedAt:      a.CreatedAt,
	}
}

// FindingResponse entrada de la bitácora expuesta por la API.
type FindingResponse struct {
	ID        string          `json:"id"`
	Producer  string          `json:"producer"`
	RunToken  string          `json:"run_token"`
	Payload   json.RawMessage `json:"payload"`
	Summary   string          `json:"summary"`
	Failed    bool            `json:"failed"`
	CreatedAt time.Time       `json:"created_at"`
}

// ToFindingResponse mapea la entidad al DTO.
func ToFindingResponse(f *entity.Finding) FindingResponse {
	return FindingResponse{
		ID:        f.ID,
		Producer:  f.ProducerID,
		RunToken:  f.RunToken,
		Payload:   f.Payload,
		Summary:   f.Summary,
		Failed:    f.Failed(),
		CreatedAt: f.CreatedAt,
	}
}
