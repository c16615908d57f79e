package synthesis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
)

// DefaultShortageLookback ventana de desabastecimientos no resueltos incluidos en el snapshot.
const DefaultShortageLookback = 180 * 24 * time.Hour

// Snapshot estado vivo que acompaña a los findings: inventario y desabastecimientos no resueltos.
type Snapshot struct {
	Drugs     []*entity.Drug     `json:"drugs"`
	Shortages []*entity.Shortage `json:"unresolved_shortages"`
	TakenAt   time.Time          `json:"taken_at"`
}

// LoadSnapshot lee inventario y desabastecimientos no resueltos reportados desde now-lookback.
func LoadSnapshot(
	ctx context.Context,
	drugs repository.DrugRepository,
	shortages repository.ShortageRepository,
	lookback time.Duration,
	now time.Time,
) (*Snapshot, error) {
	if lookback <= 0 {
		lookback = DefaultShortageLookback
	}
	ds, err := drugs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listar inventario: %w", err)
	}
	ss, err := shortages.ListUnresolved(ctx, now.Add(-lookback))
	if err != nil {
		return nil, fmt.Errorf("listar desabastecimientos: %w", err)
	}
	return &Snapshot{Drugs: ds, Shortages: ss, TakenAt: now}, nil
}

// Empty indica que no hay inventario sobre el que decidir.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Drugs) == 0
}

// Drug busca un medicamento por nombre sin distinguir mayúsculas.
func (s *Snapshot) Drug(name string) *entity.Drug {
	if s == nil {
		return nil
	}
	name = strings.TrimSpace(name)
	for _, d := range s.Drugs {
		if strings.EqualFold(d.Name, name) {
			return d
		}
	}
	return nil
}

// ShortagesFor desabastecimientos no resueltos del medicamento, en el orden del snapshot.
func (s *Snapshot) ShortagesFor(name string) []*entity.Shortage {
	if s == nil {
		return nil
	}
	var out []*entity.Shortage
	for _, sh := range s.Shortages {
		if !sh.Resolved && strings.EqualFold(sh.DrugName, name) {
			out = append(out, sh)
		}
	}
	return out
}

// DrugIDs mapa nombre → id para proyectar alertas.
func (s *Snapshot) DrugIDs() map[string]string {
	out := make(map[string]string)
	if s == nil {
		return out
	}
	for _, d := range s.Drugs {
		out[d.Name] = d.ID
	}
	return out
}
