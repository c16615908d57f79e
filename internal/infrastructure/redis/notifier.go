package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

var _ ports.RunObserver = (*RunNotifier)(nil)

const publishTimeout = 3 * time.Second

// Tipos de mensaje publicados.
const (
	EventRunStarted   = "run_started"
	EventRunCompleted = "run_completed"
)

// Publisher destino de los mensajes; PubSubClient lo implementa.
type Publisher interface {
	Publish(ctx context.Context, channel, message string) error
}

// RunMessage cuerpo JSON publicado en el canal.
type RunMessage struct {
	Event  string            `json:"event"`
	Report *entity.RunReport `json:"report"`
}

// RunNotifier observador de corridas que publica inicio y fin. Una falla de publicación
// solo se loguea: nunca afecta el resultado de la corrida.
type RunNotifier struct {
	pub     Publisher
	channel string
	log     *logger.Logger
}

func NewRunNotifier(pub Publisher, channel string, log *logger.Logger) *RunNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &RunNotifier{pub: pub, channel: channel, log: log.Named("run_notifier")}
}

func (n *RunNotifier) RunStarted(ctx context.Context, report *entity.RunReport) {
	n.publish(ctx, EventRunStarted, report)
}

func (n *RunNotifier) RunCompleted(ctx context.Context, report *entity.RunReport) {
	n.publish(ctx, EventRunCompleted, report)
}

func (n *RunNotifier) publish(ctx context.Context, event string, report *entity.RunReport) {
	raw, err := json.Marshal(RunMessage{Event: event, Report: report})
	if err != nil {
		n.log.Error().Err(err).Msg("serializar reporte")
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := n.pub.Publish(ctx, n.channel, string(raw)); err != nil {
		n.log.Warn().Err(err).Str("event", event).Str("run_token", report.RunToken).Msg("no se pudo publicar")
	}
}
