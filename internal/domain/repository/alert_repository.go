package repository

import (
	"context"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
)

// AlertRepository persistencia de alertas.
type AlertRepository interface {
	ListByRun(ctx context.Context, runToken string) ([]*entity.Alert, error)
	// Insert devuelve inserted=false si la clave (run, tipo, medicamento, título) ya existía.
	Insert(ctx context.Context, a *entity.Alert) (inserted bool, err error)
	// DeleteUnacknowledgedExcept borra alertas no reconocidas de otras corridas.
	DeleteUnacknowledgedExcept(ctx context.Context, runToken string) (int, error)
}
