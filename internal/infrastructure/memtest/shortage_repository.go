package memtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jhoicas/pharma-sentinel/internal/domain"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
)

var _ repository.ShortageRepository = (*ShortageRepo)(nil)

// ShortageRepo registros de desabastecimiento en memoria.
type ShortageRepo struct {
	mu    sync.Mutex
	items []*entity.Shortage

	ListErr error
}

func NewShortageRepo(items ...*entity.Shortage) *ShortageRepo {
	r := &ShortageRepo{}
	for _, s := range items {
		_ = r.Insert(context.Background(), s)
	}
	return r
}

// ListUnresolved filtra por reported_date >= since, como el adaptador SQL (fecha nula queda fuera).
func (r *ShortageRepo) ListUnresolved(_ context.Context, since time.Time) ([]*entity.Shortage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ListErr != nil {
		return nil, r.ListErr
	}
	var out []*entity.Shortage
	for _, s := range r.items {
		if s.Resolved || s.ReportedDate == nil || s.ReportedDate.Before(since) {
			continue
		}
		c := *s
		out = append(out, &c)
	}
	return out, nil
}

func (r *ShortageRepo) FindByDrug(_ context.Context, drugName string, kind entity.ShortageType) (*entity.Shortage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *entity.Shortage
	for _, s := range r.items {
		if strings.EqualFold(s.DrugName, drugName) && s.Type == kind {
			if found == nil || s.CreatedAt.After(found.CreatedAt) {
				found = s
			}
		}
	}
	if found == nil {
		return nil, nil
	}
	c := *found
	return &c, nil
}

func (r *ShortageRepo) Insert(_ context.Context, s *entity.Shortage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *s
	if c.ID == "" {
		c.ID = newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.ID, s.CreatedAt = c.ID, c.CreatedAt
	r.items = append(r.items, &c)
	return nil
}

func (r *ShortageRepo) Update(_ context.Context, s *entity.Shortage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cur := range r.items {
		if cur.ID == s.ID {
			c := *s
			r.items[i] = &c
			return nil
		}
	}
	return domain.ErrNotFound
}

// All devuelve todos los registros (resueltos incluidos).
func (r *ShortageRepo) All() []*entity.Shortage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Shortage, 0, len(r.items))
	for _, s := range r.items {
		c := *s
		out = append(out, &c)
	}
	return out
}
