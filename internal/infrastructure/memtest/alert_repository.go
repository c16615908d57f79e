package memtest

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
)

var _ repository.AlertRepository = (*AlertRepo)(nil)

type alertIndexKey struct {
	run string
	key entity.AlertKey
}

// AlertRepo alertas en memoria con el mismo índice único que la tabla alerts.
type AlertRepo struct {
	mu    sync.Mutex
	items []*entity.Alert
	index map[alertIndexKey]bool

	ListErr   error
	InsertErr error
}

func NewAlertRepo() *AlertRepo {
	return &AlertRepo{index: make(map[alertIndexKey]bool)}
}

func (r *AlertRepo) ListByRun(_ context.Context, runToken string) ([]*entity.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ListErr != nil {
		return nil, r.ListErr
	}
	var out []*entity.Alert
	for _, a := range r.items {
		if a.RunToken == runToken {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *AlertRepo) Insert(_ context.Context, a *entity.Alert) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.InsertErr != nil {
		return false, r.InsertErr
	}
	k := alertIndexKey{run: a.RunToken, key: a.Key()}
	if r.index[k] {
		return false, nil
	}
	c := *a
	if c.ID == "" {
		c.ID = newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	a.ID, a.CreatedAt = c.ID, c.CreatedAt
	r.items = append(r.items, &c)
	r.index[k] = true
	return true, nil
}

func (r *AlertRepo) DeleteUnacknowledgedExcept(_ context.Context, runToken string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.items[:0]
	n := 0
	for _, a := range r.items {
		if !a.Acknowledged && a.RunToken != runToken {
			delete(r.index, alertIndexKey{run: a.RunToken, key: a.Key()})
			n++
			continue
		}
		kept = append(kept, a)
	}
	r.items = kept
	return n, nil
}

// All devuelve todas las alertas.
func (r *AlertRepo) All() []*entity.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Alert, 0, len(r.items))
	for _, a := range r.items {
		c := *a
		out = append(out, &c)
	}
	return out
}
