// Package outbox relays pending audit outbox rows to Kafka.
//
// Delivery is at-least-once: rows are marked published only after the
// broker acknowledged them, so a crash between the two steps republishes.
// Consumers dedupe on the event_id header.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"sixd/internal/platform/kafka"
	auditpostgres "sixd/pkg/platform/audit/store/postgres"
)

// Source reads and acknowledges outbox rows.
type Source interface {
	FetchPending(ctx context.Context, limit int) ([]auditpostgres.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Sink publishes a batch of messages.
type Sink interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

var (
	relayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sixd_outbox_relayed_total",
		Help: "Outbox rows published to Kafka",
	})
	relayErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sixd_outbox_relay_errors_total",
		Help: "Outbox relay failures by stage",
	}, []string{"stage"})
)

// Relay polls the outbox and publishes batches.
type Relay struct {
	source    Source
	sink      Sink
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewRelay(source Source, sink Sink, logger *slog.Logger, interval time.Duration, batchSize int) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		source:    source,
		sink:      sink,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for {
				n, err := r.RelayOnce(ctx)
				if err != nil {
					r.logger.WarnContext(ctx, "outbox relay pass failed", "error", err)
					break
				}
				if n < r.batchSize {
					break
				}
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many rows it relayed.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := r.source.FetchPending(ctx, r.batchSize)
	if err != nil {
		relayErrors.WithLabelValues("fetch").Inc()
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, len(entries))
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		msgs[i] = kafka.Message{
			Key:   []byte(e.AggregateID),
			Value: e.Payload,
			Time:  e.CreatedAt,
			Headers: map[string]string{
				"event_id":   e.ID.String(),
				"event_type": e.EventType,
			},
		}
		ids[i] = e.ID
	}

	if err := r.sink.Publish(ctx, msgs...); err != nil {
		relayErrors.WithLabelValues("publish").Inc()
		return 0, err
	}
	if err := r.source.MarkPublished(ctx, ids, r.now()); err != nil {
		relayErrors.WithLabelValues("mark").Inc()
		return 0, err
	}
	relayedTotal.Add(float64(len(entries)))
	return len(entries), nil
}
