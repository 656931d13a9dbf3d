package kafka_client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/spacesedan/reviewscope/internal/models"
	"github.com/spacesedan/reviewscope/internal/reporting"
)

// producerAPI is the part of *kafka.Producer the recorder uses.
type producerAPI interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// Recorder publishes every analysis to a Kafka topic.
type Recorder struct {
	producer   producerAPI
	topic      string
	retryDelay time.Duration
}

func NewRecorder(cfg KafkaConfig) (*Recorder, error) {
	slog.Info("[KafkaClient] Initializing Kafka Producer...",
		slog.String("broker", cfg.Broker),
		slog.String("topic", cfg.topic()))

	p, err := kafka.NewProducer(cfg.ProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("[KafkaClient] Failed to create producer: %w", err)
	}

	slog.Info("[KafkaClient] Kafka Producer initialized successfully")
	return newRecorder(p, cfg.topic()), nil
}

func newRecorder(p producerAPI, topic string) *Recorder {
	return &Recorder{producer: p, topic: topic, retryDelay: RETRY_DELAY}
}

func (r *Recorder) Name() string { return "kafka" }

// Record produces the analysis keyed by its ID and waits for the broker's
// delivery report.
func (r *Recorder) Record(ctx context.Context, rec models.AnalysisRecord) error {
	payload, err := reporting.EncodeRecord(rec)
	if err != nil {
		return err
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &r.topic, Partition: kafka.PartitionAny},
		Key:            []byte(rec.AnalysisID),
		Value:          []byte(payload),
		Headers: []kafka.Header{
			{Key: "source", Value: []byte(rec.Source)},
		},
	}

	delivery := make(chan kafka.Event, 1)
	for i := 0; i < MAX_RETRIES; i++ {
		err = r.producer.Produce(msg, delivery)
		if err == nil {
			break
		}
		slog.Warn("[KafkaClient] Failed to produce message, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}
	if err != nil {
		return fmt.Errorf("[KafkaClient] failed to produce analysis %s: %w", rec.AnalysisID, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("[KafkaClient] no delivery report for analysis %s: %w", rec.AnalysisID, ctx.Err())
	case ev := <-delivery:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("[KafkaClient] unexpected delivery event %v", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("[KafkaClient] delivery failed: %w", m.TopicPartition.Error)
		}
		slog.Debug("[KafkaClient] Published analysis",
			slog.String("analysis_id", rec.AnalysisID),
			slog.Int("partition", int(m.TopicPartition.Partition)),
			slog.Any("offset", m.TopicPartition.Offset))
	}
	return nil
}

func (r *Recorder) Close() error {
	slog.Info("[KafkaClient] Flushing Kafka producer before shutdown...")
	if remaining := r.producer.Flush(FLUSH_TIMEOUT_MS); remaining > 0 {
		slog.Warn("[KafkaClient] Not all messages were delivered before shutdown",
			slog.Int("remaining", remaining))
	}
	r.producer.Close()
	slog.Info("[KafkaClient] Kafka producer shut down")
	return nil
}
