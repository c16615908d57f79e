package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

const defaultReconnect = 5 * time.Second

// ChangeFeed escucha el canal LISTEN alimentado por el trigger notify_drug_change
// y entrega cada notificación decodificada como entity.ChangeEvent.
type ChangeFeed struct {
	pool      *pgxpool.Pool
	channel   string
	reconnect time.Duration
	log       *logger.Logger
}

func NewChangeFeed(pool *pgxpool.Pool, channel string, log *logger.Logger) *ChangeFeed {
	if channel == "" {
		channel = "drug_changes"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ChangeFeed{pool: pool, channel: channel, reconnect: defaultReconnect, log: log.Named("change_feed")}
}

// Subscribe abre la suscripción en segundo plano. El canal devuelto se cierra cuando ctx termina.
// Si se pierde la conexión se reintenta cada reconnect; las notificaciones de ese intervalo se pierden.
func (f *ChangeFeed) Subscribe(ctx context.Context) <-chan entity.ChangeEvent {
	out := make(chan entity.ChangeEvent, 64)
	go func() {
		defer close(out)
		for {
			err := f.listen(ctx, out)
			if ctx.Err() != nil {
				return
			}
			f.log.Warn().Err(err).Dur("retry_in", f.reconnect).Msg("suscripción perdida, reintentando")
			select {
			case <-ctx.Done():
				return
			case <-time.After(f.reconnect):
			}
		}
	}()
	return out
}

func (f *ChangeFeed) listen(ctx context.Context, out chan<- entity.ChangeEvent) error {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", f.channel, err)
	}
	f.log.Info().Str("channel", f.channel).Msg("escuchando cambios")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		ev, err := DecodeChangeEvent(n.Payload)
		if err != nil {
			f.log.Warn().Err(err).Str("payload", n.Payload).Msg("notificación descartada")
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// DecodeChangeEvent interpreta el payload JSON {table, eventType, record, oldRecord} de pg_notify.
func DecodeChangeEvent(payload string) (entity.ChangeEvent, error) {
	var ev entity.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, fmt.Errorf("payload inválido: %w", err)
	}
	if ev.Table == "" || ev.EventType == "" {
		return ev, fmt.Errorf("payload sin table/eventType")
	}
	return ev, nil
}
