// Package collector contiene las unidades de recolección de la fase 1 (inventario,
// registro de desabastecimiento y noticias). Cada una arma su Finding y, si el servicio
// de razonamiento no responde o responde mal, cae a un cálculo determinista sobre los
// datos ya obtenidos.
package collector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
)

// Collector unidad de la fase 1. Collect solo devuelve error ante fallas locales irrecuperables
// (lectura o escritura en storage); nunca por el servicio de razonamiento.
type Collector interface {
	Name() string
	Collect(ctx context.Context, runToken string) (*entity.Finding, error)
}

// record serializa el payload y agrega el finding a la bitácora de la corrida.
func record(ctx context.Context, findings repository.FindingRepository, producer, runToken string, payload any, summary string, drugWrites int) (*entity.Finding, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: serializar payload: %w", producer, err)
	}
	f := &entity.Finding{
		ProducerID: producer,
		RunToken:   runToken,
		Payload:    raw,
		Summary:    summary,
		DrugWrites: drugWrites,
	}
	if err := findings.Append(ctx, f); err != nil {
		return nil, fmt.Errorf("%s: registrar finding: %w", producer, err)
	}
	return f, nil
}
