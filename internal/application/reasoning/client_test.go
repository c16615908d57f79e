package reasoning_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/internal/application/reasoning"
	"github.com/jhoicas/pharma-sentinel/internal/domain"
)

type gatewayFunc func(ctx context.Context, req ports.ReasoningRequest) (*ports.ReasoningReply, error)

func (f gatewayFunc) Ask(ctx context.Context, req ports.ReasoningRequest) (*ports.ReasoningReply, error) {
	return f(ctx, req)
}

func TestAsk_SinGateway(t *testing.T) {
	c := reasoning.NewClient(nil, 0)
	assert.False(t, c.Available())

	_, err := c.Ask(context.Background(), ports.ReasoningRequest{Task: "x"}, nil)
	assert.ErrorIs(t, err, domain.ErrReasoningUnavailable)
	assert.True(t, reasoning.IsFallback(err))
}

func TestAsk_DecodificaRespuesta(t *testing.T) {
	gw := gatewayFunc(func(_ context.Context, _ ports.ReasoningRequest) (*ports.ReasoningReply, error) {
		return &ports.ReasoningReply{Content: json.RawMessage(`{"summary":"ok"}`)}, nil
	})
	var out struct {
		Summary string `json:"summary"`
	}
	_, err := reasoning.NewClient(gw, time.Second).Ask(context.Background(), ports.ReasoningRequest{}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Summary)
}

func TestAsk_JSONInvalidoEsMalformado(t *testing.T) {
	gw := gatewayFunc(func(_ context.Context, _ ports.ReasoningRequest) (*ports.ReasoningReply, error) {
		return &ports.ReasoningReply{Content: json.RawMessage(`{"summary": 3}`)}, nil
	})
	var out struct {
		Summary string `json:"summary"`
	}
	_, err := reasoning.NewClient(gw, time.Second).Ask(context.Background(), ports.ReasoningRequest{}, &out)
	assert.ErrorIs(t, err, domain.ErrMalformedReasoning)
}

func TestAsk_TimeoutEsNoDisponible(t *testing.T) {
	gw := gatewayFunc(func(ctx context.Context, _ ports.ReasoningRequest) (*ports.ReasoningReply, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	start := time.Now()
	_, err := reasoning.NewClient(gw, 20*time.Millisecond).Ask(context.Background(), ports.ReasoningRequest{}, nil)
	assert.ErrorIs(t, err, domain.ErrReasoningUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second, "la llamada debe quedar acotada por el timeout")
}

func TestIsFallback_OtroError(t *testing.T) {
	assert.False(t, reasoning.IsFallback(errors.New("disco lleno")))
}
