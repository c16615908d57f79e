package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jhoicas/pharma-sentinel/internal/application/dto"
	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/internal/domain"
)

var _ ports.NewsSource = (*NewsAPI)(nil)

// NewsAPI cliente de newsapi.org/v2/everything.
type NewsAPI struct {
	baseURL string
	apiKey  string
	client  *retryingClient
}

func NewNewsAPI(baseURL, apiKey string, timeout time.Duration, retries int) *NewsAPI {
	return &NewsAPI{baseURL: baseURL, apiKey: apiKey, client: newRetryingClient(timeout, retries)}
}

type newsResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		PublishedAt time.Time `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// Search sin API key devuelve ErrSourceUnavailable; el colector deja de consultar.
func (n *NewsAPI) Search(ctx context.Context, q dto.NewsQuery) ([]dto.NewsArticle, error) {
	if n.apiKey == "" || n.baseURL == "" {
		return nil, domain.ErrSourceUnavailable
	}
	params := url.Values{}
	params.Set("q", q.Query)
	params.Set("language", "en")
	params.Set("sortBy", "relevancy")
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if !q.From.IsZero() {
		params.Set("from", q.From.UTC().Format("2006-01-02T15:04:05"))
	}

	header := http.Header{}
	header.Set("X-Api-Key", n.apiKey)
	body, err := n.client.get(ctx, n.baseURL+"?"+params.Encode(), header)
	if errors.Is(err, errNotFound) {
		return []dto.NewsArticle{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("NewsAPI: %w", err)
	}

	var resp newsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("NewsAPI: deserializar respuesta: %w", err)
	}
	if resp.Status != "" && resp.Status != "ok" {
		return nil, fmt.Errorf("NewsAPI: %s", resp.Message)
	}
	out := make([]dto.NewsArticle, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		out = append(out, dto.NewsArticle{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			Source:      a.Source.Name,
			PublishedAt: a.PublishedAt,
		})
	}
	return out, nil
}
