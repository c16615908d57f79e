package repository

import (
	"context"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
)

// DrugRepository puerto de persistencia del inventario de medicamentos.
type DrugRepository interface {
	List(ctx context.Context) ([]*entity.Drug, error)
	// GetByName devuelve (nil, nil) si no existe.
	GetByName(ctx context.Context, name string) (*entity.Drug, error)
	// UpdateBurnRates persiste los valores recalculados; devuelve cuántas filas cambió.
	UpdateBurnRates(ctx context.Context, updates []entity.BurnRateUpdate) (int, error)
}
