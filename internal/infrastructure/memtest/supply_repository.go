package memtest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
)

var (
	_ repository.SubstituteRepository = (*SubstituteRepo)(nil)
	_ repository.SupplierRepository   = (*SupplierRepo)(nil)
	_ repository.SurgeryRepository    = (*SurgeryRepo)(nil)
)

// SubstituteRepo sustitutos en memoria, únicos por (drug, substitute).
type SubstituteRepo struct {
	mu    sync.Mutex
	items []*entity.Substitute

	UpsertErr error
}

func NewSubstituteRepo(items ...*entity.Substitute) *SubstituteRepo {
	r := &SubstituteRepo{}
	for _, s := range items {
		_ = r.Upsert(context.Background(), s)
	}
	return r
}

func (r *SubstituteRepo) ListByDrug(_ context.Context, drugName string) ([]*entity.Substitute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Substitute
	for _, s := range r.items {
		if strings.EqualFold(s.DrugName, drugName) {
			c := *s
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PreferenceRank < out[j].PreferenceRank })
	return out, nil
}

func (r *SubstituteRepo) Upsert(_ context.Context, s *entity.Substitute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpsertErr != nil {
		return r.UpsertErr
	}
	c := *s
	for i, cur := range r.items {
		if strings.EqualFold(cur.DrugName, s.DrugName) && strings.EqualFold(cur.SubstituteName, s.SubstituteName) {
			r.items[i] = &c
			return nil
		}
	}
	r.items = append(r.items, &c)
	return nil
}

// SupplierRepo proveedores en memoria.
type SupplierRepo struct {
	mu    sync.Mutex
	items []*entity.Supplier
}

func NewSupplierRepo(items ...*entity.Supplier) *SupplierRepo {
	return &SupplierRepo{items: items}
}

func (r *SupplierRepo) ListActive(_ context.Context) ([]*entity.Supplier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Supplier
	for _, s := range r.items {
		if s.Active {
			c := *s
			out = append(out, &c)
		}
	}
	return out, nil
}

// SurgeryRepo agenda quirúrgica en memoria.
type SurgeryRepo struct {
	mu    sync.Mutex
	items []*entity.Surgery
}

func NewSurgeryRepo(items ...*entity.Surgery) *SurgeryRepo {
	return &SurgeryRepo{items: items}
}

func (r *SurgeryRepo) ListScheduled(_ context.Context, from, until time.Time) ([]*entity.Surgery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Surgery
	for _, s := range r.items {
		if s.Status != "SCHEDULED" || s.ScheduledAt.Before(from) || s.ScheduledAt.After(until) {
			continue
		}
		c := *s
		out = append(out, &c)
	}
	return out, nil
}
