package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/config"
	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const EventSaleCompleted = "sale.completed"

// Publisher announces completed sales to downstream consumers
// (inventory reports, loyalty statements).
type Publisher interface {
	PublishSaleCompleted(ctx context.Context, sale *models.Sale) error
	Close() error
}

// SaleCompleted is the message body of EventSaleCompleted.
type SaleCompleted struct {
	Event      string       `json:"event"`
	OccurredAt time.Time    `json:"occurred_at"`
	Sale       *models.Sale `json:"sale"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
	logger zerolog.Logger
}

// NewKafkaWriter builds the writer for cfg.Topic over cfg.Brokers.
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(writer messageWriter, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		now:    time.Now,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// PublishSaleCompleted writes the sale keyed by its id, so every event of
// one sale lands on the same partition.
func (p *KafkaPublisher) PublishSaleCompleted(ctx context.Context, sale *models.Sale) error {
	body, err := json.Marshal(SaleCompleted{
		Event:      EventSaleCompleted,
		OccurredAt: p.now().UTC(),
		Sale:       sale,
	})
	if err != nil {
		return fmt.Errorf("marshal sale event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("sale-completed-%d", sale.ID)),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(EventSaleCompleted)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish sale %s: %w", sale.SaleNumber, err)
	}

	p.logger.Debug().
		Int64("sale_id", sale.ID).
		Str("sale_number", sale.SaleNumber).
		Msg("sale event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishSaleCompleted(context.Context, *models.Sale) error { return nil }

func (NopPublisher) Close() error { return nil }
