package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/clinicbook/libs/otel"
	"github.com/segmentio/kafka-go"
)

// Source hands out batches of unpublished records. *Repository implements it.
type Source interface {
	Claim(ctx context.Context, limit int, fn func([]Record) error) (int, error)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type PublisherConfig struct {
	PollEvery time.Duration
	BatchSize int
}

// Publisher relays outbox rows to Kafka. Delivery is at least once; the
// consumer side dedupes on event_id.
type Publisher struct {
	source    Source
	writer    MessageWriter
	logger    *slog.Logger
	pollEvery time.Duration
	batchSize int
}

func NewPublisher(source Source, writer MessageWriter, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		source:    source,
		writer:    writer,
		logger:    logger,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

// NewKafkaWriter keys messages by aggregate id so one appointment's events stay ordered.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain while batches come back full.
			for {
				n, err := p.PublishBatch(ctx)
				if err != nil {
					if ctx.Err() == nil {
						p.logger.Error("outbox publish failed", "err", err)
					}
					break
				}
				if n < p.batchSize {
					break
				}
			}
		}
	}
}

func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	return p.source.Claim(ctx, p.batchSize, func(records []Record) error {
		msgs := make([]kafka.Message, len(records))
		for i, r := range records {
			msgs[i] = toMessage(ctx, r)
		}
		return p.writer.WriteMessages(ctx, msgs...)
	})
}

func toMessage(ctx context.Context, r Record) kafka.Message {
	msgCtx := otelx.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
	return kafka.Message{
		Topic:   r.EventType,
		Key:     []byte(r.AggregateID),
		Value:   r.Payload,
		Headers: kafkax.InjectTraceHeaders(msgCtx, kafkax.Headers(kafkax.EventMeta{EventID: r.EventID, EventType: r.EventType})),
	}
}
