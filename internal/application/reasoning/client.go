package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/internal/domain"
)

// DefaultTimeout tope de cada llamada si no se configura otro.
const DefaultTimeout = 60 * time.Second

// Client envuelve el ReasoningGateway con un timeout por llamada y la decodificación de la respuesta.
// Un Client con gateway nil es válido: toda llamada devuelve ErrReasoningUnavailable.
type Client struct {
	gw      ports.ReasoningGateway
	timeout time.Duration
}

// NewClient construye el cliente. timeout <= 0 usa DefaultTimeout.
func NewClient(gw ports.ReasoningGateway, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{gw: gw, timeout: timeout}
}

// Available indica si hay un gateway configurado.
func (c *Client) Available() bool {
	return c != nil && c.gw != nil
}

// Ask envía la pregunta y decodifica el objeto devuelto en out (si no es nil).
// Errores: ErrReasoningUnavailable (sin gateway, red, timeout) o ErrMalformedReasoning (JSON inválido).
func (c *Client) Ask(ctx context.Context, req ports.ReasoningRequest, out any) (*ports.ReasoningReply, error) {
	if !c.Available() {
		return nil, domain.ErrReasoningUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.gw.Ask(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrReasoningUnavailable, req.Task, err)
	}
	if reply == nil || len(bytes.TrimSpace(reply.Content)) == 0 {
		return nil, fmt.Errorf("%w: %s: respuesta vacía", domain.ErrMalformedReasoning, req.Task)
	}
	if out != nil {
		if err := json.Unmarshal(reply.Content, out); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedReasoning, req.Task, err)
		}
	}
	return reply, nil
}

// IsFallback indica si err significa "usar el camino determinista".
func IsFallback(err error) bool {
	return errors.Is(err, domain.ErrReasoningUnavailable) || errors.Is(err, domain.ErrMalformedReasoning)
}
