package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
)

var _ repository.FindingRepository = (*FindingRepo)(nil)

// FindingRepo bitácora append-only de findings (tabla agent_logs).
type FindingRepo struct {
	q Querier
}

func NewFindingRepository(q Querier) *FindingRepo {
	return &FindingRepo{q: q}
}

func (r *FindingRepo) Append(ctx context.Context, f *entity.Finding) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	payload := f.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO agent_logs (id, agent_name, run_token, payload, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		f.ID, f.ProducerID, f.RunToken, string(payload), f.Summary, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert agent log: %w", err)
	}
	return nil
}

// ListByRun devuelve los findings de la corrida en orden de llegada.
func (r *FindingRepo) ListByRun(ctx context.Context, runToken string) ([]*entity.Finding, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, agent_name, run_token, payload::text, COALESCE(summary, ''), created_at
		FROM agent_logs
		WHERE run_token = $1
		ORDER BY created_at, id`, runToken)
	if err != nil {
		return nil, fmt.Errorf("list agent logs: %w", err)
	}
	defer rows.Close()
	var out []*entity.Finding
	for rows.Next() {
		var f entity.Finding
		var payload string
		if err := rows.Scan(&f.ID, &f.ProducerID, &f.RunToken, &payload, &f.Summary, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan agent log: %w", err)
		}
		f.Payload = []byte(payload)
		out = append(out, &f)
	}
	return out, rows.Err()
}
