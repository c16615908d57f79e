package repository

import (
	"context"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
)

// FindingRepository bitácora append-only de findings (agent_logs).
type FindingRepository interface {
	Append(ctx context.Context, f *entity.Finding) error
	ListByRun(ctx context.Context, runToken string) ([]*entity.Finding, error)
}
