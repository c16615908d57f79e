package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jhoicas/pharma-sentinel/internal/application/dto"
	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/internal/domain"
)

var _ ports.ShortageRegistry = (*FDARegistry)(nil)

const fdaLimit = 100

// FDARegistry cliente del endpoint drug/shortages de openFDA. Una sola consulta por lote de términos.
type FDARegistry struct {
	baseURL string
	client  *retryingClient
}

func NewFDARegistry(baseURL string, timeout time.Duration, retries int) *FDARegistry {
	return &FDARegistry{baseURL: baseURL, client: newRetryingClient(timeout, retries)}
}

type fdaResponse struct {
	Results []struct {
		GenericName        string `json:"generic_name"`
		Status             string `json:"status"`
		ShortageReason     string `json:"shortage_reason"`
		Presentation       string `json:"presentation"`
		UpdateDate         string `json:"update_date"`
		InitialPostingDate string `json:"initial_posting_date"`
		OpenFDA            struct {
			GenericName []string `json:"generic_name"`
		} `json:"openfda"`
	} `json:"results"`
}

// FetchShortages busca los términos con OR sobre openfda.generic_name. 404 = sin registros.
func (r *FDARegistry) FetchShortages(ctx context.Context, terms []string) ([]dto.RegistryRecord, error) {
	if r.baseURL == "" {
		return nil, domain.ErrSourceUnavailable
	}
	if len(terms) == 0 {
		return []dto.RegistryRecord{}, nil
	}
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		parts = append(parts, fmt.Sprintf(`openfda.generic_name:"%s"`, strings.ReplaceAll(t, `"`, "")))
	}
	q := url.Values{}
	q.Set("search", strings.Join(parts, " OR "))
	q.Set("limit", fmt.Sprint(fdaLimit))

	body, err := r.client.get(ctx, r.baseURL+"?"+q.Encode(), nil)
	if errors.Is(err, errNotFound) {
		return []dto.RegistryRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FDA: %w", err)
	}

	var resp fdaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("FDA: deserializar respuesta: %w", err)
	}
	out := make([]dto.RegistryRecord, 0, len(resp.Results))
	for _, res := range resp.Results {
		name := res.GenericName
		if name == "" && len(res.OpenFDA.GenericName) > 0 {
			name = res.OpenFDA.GenericName[0]
		}
		out = append(out, dto.RegistryRecord{
			GenericName:        name,
			Status:             res.Status,
			ShortageReason:     res.ShortageReason,
			Presentation:       res.Presentation,
			UpdateDate:         res.UpdateDate,
			InitialPostingDate: res.InitialPostingDate,
		})
	}
	return out, nil
}
