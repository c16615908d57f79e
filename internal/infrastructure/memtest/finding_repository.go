package memtest

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
)

var _ repository.FindingRepository = (*FindingRepo)(nil)

// FindingRepo bitácora append-only en memoria.
type FindingRepo struct {
	mu    sync.Mutex
	items []*entity.Finding

	AppendErr error
	ListErr   error
}

func NewFindingRepo() *FindingRepo { return &FindingRepo{} }

func (r *FindingRepo) Append(_ context.Context, f *entity.Finding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.AppendErr != nil {
		return r.AppendErr
	}
	c := *f
	if c.ID == "" {
		c.ID = newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	f.ID, f.CreatedAt = c.ID, c.CreatedAt
	r.items = append(r.items, &c)
	return nil
}

func (r *FindingRepo) ListByRun(_ context.Context, runToken string) ([]*entity.Finding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ListErr != nil {
		return nil, r.ListErr
	}
	var out []*entity.Finding
	for _, f := range r.items {
		if f.RunToken == runToken {
			c := *f
			out = append(out, &c)
		}
	}
	return out, nil
}
