package ports

import (
	"context"
	"time"

	"github.com/jhoicas/pharma-sentinel/internal/application/dto"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
)

// ShortageRegistry fuente externa de desabastecimientos. Reintentos a cargo del adaptador.
type ShortageRegistry interface {
	FetchShortages(ctx context.Context, terms []string) ([]dto.RegistryRecord, error)
}

// NewsSource buscador de noticias. Reintentos a cargo del adaptador.
type NewsSource interface {
	Search(ctx context.Context, q dto.NewsQuery) ([]dto.NewsArticle, error)
}

// RunObserver recibe el inicio y el final de cada corrida.
type RunObserver interface {
	RunStarted(ctx context.Context, report *entity.RunReport)
	RunCompleted(ctx context.Context, report *entity.RunReport)
}

// SelfWriteTracker recibe aviso de las escrituras propias en drugs: Expect antes de escribir,
// Settle con las filas que realmente cambiaron.
type SelfWriteTracker interface {
	ExpectSelfWrites(n int)
	SettleSelfWrites(expected, actual int)
}

// AlertReportRenderer genera la hoja imprimible de alertas de una corrida.
type AlertReportRenderer interface {
	RenderAlertReport(runToken string, alerts []*entity.Alert, generatedAt time.Time) ([]byte, error)
}
