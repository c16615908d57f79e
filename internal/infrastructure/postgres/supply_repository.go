package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
)

var (
	_ repository.SubstituteRepository = (*SubstituteRepo)(nil)
	_ repository.SupplierRepository   = (*SupplierRepo)(nil)
	_ repository.SurgeryRepository    = (*SurgeryRepo)(nil)
)

// SubstituteRepo sustitutos terapéuticos (tabla substitutes, única por drug_name + substitute_name).
type SubstituteRepo struct {
	q Querier
}

func NewSubstituteRepository(q Querier) *SubstituteRepo {
	return &SubstituteRepo{q: q}
}

func (r *SubstituteRepo) ListByDrug(ctx context.Context, drugName string) ([]*entity.Substitute, error) {
	rows, err := r.q.Query(ctx, `
		SELECT drug_name, substitute_name, COALESCE(equivalence_notes, ''), preference_rank
		FROM substitutes
		WHERE lower(drug_name) = lower($1)
		ORDER BY preference_rank, substitute_name`, drugName)
	if err != nil {
		return nil, fmt.Errorf("list substitutes: %w", err)
	}
	defer rows.Close()
	var out []*entity.Substitute
	for rows.Next() {
		var s entity.Substitute
		if err := rows.Scan(&s.DrugName, &s.SubstituteName, &s.EquivalenceNotes, &s.PreferenceRank); err != nil {
			return nil, fmt.Errorf("scan substitute: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *SubstituteRepo) Upsert(ctx context.Context, s *entity.Substitute) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO substitutes (drug_name, substitute_name, equivalence_notes, preference_rank)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (drug_name, substitute_name)
		DO UPDATE SET equivalence_notes = EXCLUDED.equivalence_notes, preference_rank = EXCLUDED.preference_rank`,
		s.DrugName, s.SubstituteName, nullIfEmpty(s.EquivalenceNotes), s.PreferenceRank,
	)
	if err != nil {
		return fmt.Errorf("upsert substitute: %w", err)
	}
	return nil
}

// SupplierRepo proveedores (tabla suppliers).
type SupplierRepo struct {
	q Querier
}

func NewSupplierRepository(q Querier) *SupplierRepo {
	return &SupplierRepo{q: q}
}

func (r *SupplierRepo) ListActive(ctx context.Context) ([]*entity.Supplier, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, name, COALESCE(contact_email, ''), lead_time_days, is_nearby_hospital, active
		FROM suppliers
		WHERE active = true
		ORDER BY lead_time_days, name`)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()
	var out []*entity.Supplier
	for rows.Next() {
		var s entity.Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.ContactEmail, &s.LeadTimeDays, &s.IsNearbyHospital, &s.Active); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// SurgeryRepo agenda quirúrgica (tabla surgery_schedule). drugs_needed es JSONB.
type SurgeryRepo struct {
	q Querier
}

func NewSurgeryRepository(q Querier) *SurgeryRepo {
	return &SurgeryRepo{q: q}
}

func (r *SurgeryRepo) ListScheduled(ctx context.Context, from, until time.Time) ([]*entity.Surgery, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, procedure, scheduled_at, status, COALESCE(drugs_needed::text, '[]')
		FROM surgery_schedule
		WHERE status = 'SCHEDULED' AND scheduled_at BETWEEN $1 AND $2
		ORDER BY scheduled_at`, from, until)
	if err != nil {
		return nil, fmt.Errorf("list surgeries: %w", err)
	}
	defer rows.Close()
	var out []*entity.Surgery
	for rows.Next() {
		var s entity.Surgery
		var drugs string
		if err := rows.Scan(&s.ID, &s.Procedure, &s.ScheduledAt, &s.Status, &drugs); err != nil {
			return nil, fmt.Errorf("scan surgery: %w", err)
		}
		if err := json.Unmarshal([]byte(drugs), &s.DrugsNeeded); err != nil {
			return nil, fmt.Errorf("surgery %s: drugs_needed: %w", s.ID, err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
