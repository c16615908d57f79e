package repository

import (
	"context"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
)

// SubstituteRepository sustitutos terapéuticos.
type SubstituteRepository interface {
	ListByDrug(ctx context.Context, drugName string) ([]*entity.Substitute, error)
	Upsert(ctx context.Context, s *entity.Substitute) error
}
