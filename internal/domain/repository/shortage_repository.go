package repository

import (
	"context"
	"time"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
)

// ShortageRepository puerto de los registros de desabastecimiento.
type ShortageRepository interface {
	// ListUnresolved devuelve los no resueltos creados desde since.
	ListUnresolved(ctx context.Context, since time.Time) ([]*entity.Shortage, error)
	// FindByDrug devuelve el registro más reciente del medicamento y tipo; (nil, nil) si no hay.
	FindByDrug(ctx context.Context, drugName string, kind entity.ShortageType) (*entity.Shortage, error)
	Insert(ctx context.Context, s *entity.Shortage) error
	Update(ctx context.Context, s *entity.Shortage) error
}
