package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
)

var _ repository.AlertRepository = (*AlertRepo)(nil)

// AlertRepo alertas (tabla alerts). El índice único alerts_run_key_uq hace cumplir la deduplicación.
type AlertRepo struct {
	q Querier
}

func NewAlertRepository(q Querier) *AlertRepo {
	return &AlertRepo{q: q}
}

func (r *AlertRepo) ListByRun(ctx context.Context, runToken string) ([]*entity.Alert, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, run_token, alert_type, severity, drug_name, COALESCE(drug_id::text, ''), title,
		       COALESCE(description, ''), COALESCE(action_payload::text, ''), action_required,
		       COALESCE(source, ''), acknowledged, created_at
		FROM alerts
		WHERE run_token = $1
		ORDER BY created_at, id`, runToken)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()
	var out []*entity.Alert
	for rows.Next() {
		var a entity.Alert
		var kind, severity, payload string
		err := rows.Scan(&a.ID, &a.RunToken, &kind, &severity, &a.DrugName, &a.DrugID, &a.Title,
			&a.Description, &payload, &a.ActionRequired, &a.Source, &a.Acknowledged, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Type = entity.ActionType(kind)
		a.Severity = entity.Severity(severity)
		if payload != "" {
			a.ActionPayload = []byte(payload)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Insert usa ON CONFLICT DO NOTHING sobre (run_token, alert_type, drug_name, title):
// una fila existente no es error, devuelve inserted=false.
func (r *AlertRepo) Insert(ctx context.Context, a *entity.Alert) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	var payload any
	if len(a.ActionPayload) > 0 {
		payload = string(a.ActionPayload)
	}
	cmd, err := r.q.Exec(ctx, `
		INSERT INTO alerts (id, run_token, alert_type, severity, drug_name, drug_id, title, description,
		                    action_payload, action_required, source, acknowledged, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (run_token, alert_type, drug_name, title) DO NOTHING`,
		a.ID, a.RunToken, string(a.Type), string(a.Severity), a.DrugName, nullIfEmpty(a.DrugID), a.Title,
		nullIfEmpty(a.Description), payload, a.ActionRequired, nullIfEmpty(a.Source), a.Acknowledged, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert alert: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *AlertRepo) DeleteUnacknowledgedExcept(ctx context.Context, runToken string) (int, error) {
	cmd, err := r.q.Exec(ctx,
		`DELETE FROM alerts WHERE acknowledged = false AND run_token <> $1`, runToken)
	if err != nil {
		return 0, fmt.Errorf("delete stale alerts: %w", err)
	}
	return int(cmd.RowsAffected()), nil
}
