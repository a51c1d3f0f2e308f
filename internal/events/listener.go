package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/paper-feed-service/internal/observability"
)

// Handler applies a consumed event.
type Handler interface {
	ApplyBookmarkEvent(ctx context.Context, event Event) error
}

// messageReader is the subset of *kafka.Reader used by Listener.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Listener consumes bookmark events produced by other instances.
type Listener struct {
	reader     messageReader
	handler    Handler
	instanceID string
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewListener creates a listener that ignores events produced by instanceID.
func NewListener(cfg Config, handler Handler, instanceID string, logger zerolog.Logger, metrics *observability.Metrics) *Listener {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})
	return newListener(reader, handler, instanceID, logger, metrics)
}

func newListener(reader messageReader, handler Handler, instanceID string, logger zerolog.Logger, metrics *observability.Metrics) *Listener {
	return &Listener{
		reader:     reader,
		handler:    handler,
		instanceID: instanceID,
		logger:     logger.With().Str("component", "event_listener").Logger(),
		metrics:    metrics,
	}
}

// Run starts the listener loop. Blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info().Msg("starting bookmark event listener")

	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("bookmark event listener stopped via context cancellation")
				return ctx.Err()
			}
			l.logger.Error().Err(err).Msg("failed to read message from Kafka")
			continue
		}

		l.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received bookmark event")

		l.handle(ctx, msg)
	}
}

func (l *Listener) handle(ctx context.Context, msg kafka.Message) {
	var event Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		l.logger.Error().Err(err).
			Str("raw_value", string(msg.Value)).
			Msg("failed to unmarshal bookmark event")
		l.record("unknown", "invalid")
		return
	}

	log := observability.WithEventContext(l.logger, event.ID.String(), string(event.Type))

	if event.PaperID == "" || (event.Type != TypeBookmarkAdded && event.Type != TypeBookmarkRemoved) {
		log.Warn().Msg("ignoring malformed bookmark event")
		l.record(string(event.Type), "invalid")
		return
	}

	// Our own toggles were applied before they were published.
	if event.Source == l.instanceID {
		l.record(string(event.Type), "skipped")
		return
	}

	if err := l.handler.ApplyBookmarkEvent(ctx, event); err != nil {
		log.Error().Err(err).
			Str("paper_id", event.PaperID).
			Msg("failed to apply bookmark event")
		l.record(string(event.Type), "failed")
		return
	}
	l.record(string(event.Type), "applied")
}

func (l *Listener) record(eventType, outcome string) {
	if l.metrics != nil {
		l.metrics.RecordEventConsumed(eventType, outcome)
	}
}

// Close closes the Kafka reader.
func (l *Listener) Close() error {
	l.logger.Info().Msg("closing bookmark event listener")
	return l.reader.Close()
}
