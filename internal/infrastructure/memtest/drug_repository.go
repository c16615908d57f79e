package memtest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
)

var _ repository.DrugRepository = (*DrugRepo)(nil)

// DrugRepo inventario en memoria (tests y modo demo).
type DrugRepo struct {
	mu    sync.Mutex
	drugs map[string]*entity.Drug

	// ListErr y UpdateErr permiten simular fallas de I/O.
	ListErr   error
	UpdateErr error
}

// NewDrugRepo construye el repositorio con los medicamentos dados.
func NewDrugRepo(drugs ...*entity.Drug) *DrugRepo {
	r := &DrugRepo{drugs: make(map[string]*entity.Drug, len(drugs))}
	for _, d := range drugs {
		r.Put(d)
	}
	return r
}

// Put inserta o reemplaza un medicamento (simula una edición manual).
func (r *DrugRepo) Put(d *entity.Drug) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *d
	if c.ID == "" {
		c.ID = newID()
	}
	r.drugs[strings.ToLower(c.Name)] = &c
}

func (r *DrugRepo) List(_ context.Context) ([]*entity.Drug, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ListErr != nil {
		return nil, r.ListErr
	}
	out := make([]*entity.Drug, 0, len(r.drugs))
	for _, d := range r.drugs {
		c := *d
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CriticalityRank != out[j].CriticalityRank {
			return out[i].CriticalityRank < out[j].CriticalityRank
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *DrugRepo) GetByName(_ context.Context, name string) (*entity.Drug, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drugs[strings.ToLower(name)]
	if !ok {
		return nil, nil
	}
	c := *d
	return &c, nil
}

func (r *DrugRepo) UpdateBurnRates(_ context.Context, updates []entity.BurnRateUpdate) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		return 0, r.UpdateErr
	}
	n := 0
	for _, u := range updates {
		d, ok := r.drugs[strings.ToLower(u.DrugName)]
		if !ok {
			continue
		}
		d.BurnRateDays = u.BurnRateDays
		if u.PredictedUsageRate != nil {
			d.PredictedUsageRate = u.PredictedUsageRate
		}
		d.PredictedBurnRateDays = u.PredictedBurnRateDays
		n++
	}
	return n, nil
}
