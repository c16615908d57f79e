package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/pharma-sentinel/internal/domain"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
)

var _ repository.ShortageRepository = (*ShortageRepo)(nil)

const shortageColumns = `id, drug_name, type, source, COALESCE(source_url, ''), COALESCE(impact_severity, ''),
	COALESCE(description, ''), reported_date, resolved, created_at`

// ShortageRepo registros de desabastecimiento (tabla shortages).
type ShortageRepo struct {
	q Querier
}

func NewShortageRepository(q Querier) *ShortageRepo {
	return &ShortageRepo{q: q}
}

// ListUnresolved filtra por reported_date >= since; los registros sin fecha quedan fuera.
func (r *ShortageRepo) ListUnresolved(ctx context.Context, since time.Time) ([]*entity.Shortage, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+shortageColumns+`
		FROM shortages
		WHERE resolved = false AND reported_date >= $1
		ORDER BY reported_date DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("list shortages: %w", err)
	}
	defer rows.Close()
	var out []*entity.Shortage
	for rows.Next() {
		s, err := scanShortage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shortage: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ShortageRepo) FindByDrug(ctx context.Context, drugName string, kind entity.ShortageType) (*entity.Shortage, error) {
	s, err := scanShortage(r.q.QueryRow(ctx, `
		SELECT `+shortageColumns+`
		FROM shortages
		WHERE lower(drug_name) = lower($1) AND type = $2
		ORDER BY created_at DESC
		LIMIT 1`, drugName, string(kind)))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find shortage: %w", err)
	}
	return s, nil
}

func (r *ShortageRepo) Insert(ctx context.Context, s *entity.Shortage) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO shortages (id, drug_name, type, source, source_url, impact_severity, description, reported_date, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.DrugName, string(s.Type), s.Source, nullIfEmpty(s.SourceURL), nullIfEmpty(s.ImpactSeverity),
		nullIfEmpty(s.Description), s.ReportedDate, s.Resolved, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert shortage: %w", err)
	}
	return nil
}

func (r *ShortageRepo) Update(ctx context.Context, s *entity.Shortage) error {
	cmd, err := r.q.Exec(ctx, `
		UPDATE shortages
		SET source = $2, source_url = $3, impact_severity = $4, description = $5, reported_date = $6, resolved = $7
		WHERE id = $1`,
		s.ID, s.Source, nullIfEmpty(s.SourceURL), nullIfEmpty(s.ImpactSeverity),
		nullIfEmpty(s.Description), s.ReportedDate, s.Resolved,
	)
	if err != nil {
		return fmt.Errorf("update shortage: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanShortage(row scanner) (*entity.Shortage, error) {
	var s entity.Shortage
	var kind string
	err := row.Scan(&s.ID, &s.DrugName, &kind, &s.Source, &s.SourceURL, &s.ImpactSeverity,
		&s.Description, &s.ReportedDate, &s.Resolved, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.Type = entity.ShortageType(kind)
	return &s, nil
}
