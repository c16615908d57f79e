package repository

import (
	"context"
	"time"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
)

// SurgeryRepository agenda quirúrgica.
type SurgeryRepository interface {
	ListScheduled(ctx context.Context, from, until time.Time) ([]*entity.Surgery, error)
}
