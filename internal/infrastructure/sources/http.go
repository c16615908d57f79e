// Package sources contiene los adaptadores REST de las fuentes externas: el registro de
// desabastecimiento de la FDA y el buscador de noticias. Los reintentos viven acá, no en el núcleo.
package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	maxBodyBytes       = 4 << 20
	retryInitial       = 500 * time.Millisecond
	retryMaxInterval   = 5 * time.Second
	retryMaxElapsed    = 2 * time.Minute
	retryRandomization = 0.2
)

// errNotFound el servidor respondió 404: para estas APIs significa "sin resultados".
var errNotFound = errors.New("sin resultados")

// retryingClient GET con backoff exponencial acotado ante errores de red y 5xx/429.
type retryingClient struct {
	http    *http.Client
	retries int
}

func newRetryingClient(timeout time.Duration, retries int) *retryingClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &retryingClient{
		http:    &http.Client{Timeout: timeout},
		retries: retries,
	}
}

func (c *retryingClient) policy(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = retryInitial
	exp.MaxInterval = retryMaxInterval
	exp.MaxElapsedTime = retryMaxElapsed
	exp.RandomizationFactor = retryRandomization
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.retries)), ctx)
}

// get reintenta solo los errores transitorios; el resto corta con backoff.Permanent.
func (c *retryingClient) get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	var body []byte
	op := func() error {
		b, retry, err := c.once(ctx, url, header)
		if err != nil {
			if !retry {
				return backoff.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	}
	if err := backoff.Retry(op, c.policy(ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *retryingClient) once(ctx context.Context, url string, header http.Header) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("crear request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, true, fmt.Errorf("leer respuesta: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return body, false, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, errNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("HTTP %d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
