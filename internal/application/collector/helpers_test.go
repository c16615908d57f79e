package collector_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pharma-sentinel/internal/application/dto"
	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes compartidos
// ──────────────────────────────────────────────────────────────────────────────

// scriptedGateway responde por Task con un JSON fijo; sin respuesta para la tarea => error.
type scriptedGateway struct {
	mu      sync.Mutex
	replies map[string]string
	calls   []string
}

func newGateway(replies map[string]string) *scriptedGateway {
	return &scriptedGateway{replies: replies}
}

func (g *scriptedGateway) Ask(_ context.Context, req ports.ReasoningRequest) (*ports.ReasoningReply, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req.Task)
	raw, ok := g.replies[req.Task]
	if !ok {
		return nil, errors.New("servicio caído")
	}
	return &ports.ReasoningReply{Content: json.RawMessage(raw)}, nil
}

func (g *scriptedGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

type fakeRegistry struct {
	records []dto.RegistryRecord
	err     error
	terms   []string
}

func (f *fakeRegistry) FetchShortages(_ context.Context, terms []string) ([]dto.RegistryRecord, error) {
	f.terms = terms
	return f.records, f.err
}

type fakeNews struct {
	byQuery map[string][]dto.NewsArticle
	all     []dto.NewsArticle
	err     error
	queries []string
}

func (f *fakeNews) Search(_ context.Context, q dto.NewsQuery) ([]dto.NewsArticle, error) {
	f.queries = append(f.queries, q.Query)
	if f.err != nil {
		return nil, f.err
	}
	if arts, ok := f.byQuery[q.Query]; ok {
		return arts, nil
	}
	return f.all, nil
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func drug(name string, rank int, stock, usage string) *entity.Drug {
	return &entity.Drug{
		Name:                 name,
		CriticalityRank:      rank,
		StockQuantity:        dec(stock),
		UsageRateDaily:       dec(usage),
		ReorderThresholdDays: 14,
		Unit:                 "units",
	}
}
