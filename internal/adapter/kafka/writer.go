// Package kafka publishes the consolidated table to a sink topic for
// downstream consumers that prefer a stream over the CSV artifact.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/cifuentesedw/emergencias-etl/internal/config"
	"github.com/cifuentesedw/emergencias-etl/internal/domain"
)

// Publisher produces consolidated records to the sink topic.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured sink topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishTable serializes and publishes every consolidated record in a
// single WriteMessages call.
func (p *Publisher) PublishTable(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	p.logger.Info("publishing consolidated table", "records", len(msgs))
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a consolidated record into a Kafka message.
// Missing fields serialize as JSON null and structurally unavailable ones
// as "NA", keeping the three absence states distinct on the wire. The key
// is the record's provenance, which is stable across replays.
func serializeToMessage(rec domain.Record) (kafkago.Message, error) {
	payload := make(map[string]any, len(domain.CanonicalFields()))
	for _, f := range domain.CanonicalFields() {
		v := rec.Get(f)
		switch v.State {
		case domain.StateMissing:
			payload[string(f)] = nil
		case domain.StateNotApplicable:
			payload[string(f)] = "NA"
		default:
			payload[string(f)] = presentJSON(v)
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize record %s: %w", rec.Provenance, err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Provenance.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source_era", Value: []byte(strconv.Itoa(int(rec.Provenance.Era)))},
			{Key: "published_at", Value: []byte(domain.Now().Format(time.RFC3339))},
		},
	}, nil
}

func presentJSON(v domain.Value) any {
	switch v.Kind {
	case domain.KindInteger:
		return v.Int
	case domain.KindDecimal:
		return v.Dec
	case domain.KindDate:
		return v.Date.String()
	default:
		return v.Text
	}
}
