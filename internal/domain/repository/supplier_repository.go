package repository

import (
	"context"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
)

// SupplierRepository proveedores activos.
type SupplierRepository interface {
	ListActive(ctx context.Context) ([]*entity.Supplier, error)
}
