package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/arjunrose/Personal-Locker/internal/config"
	"github.com/arjunrose/Personal-Locker/internal/model"
)

// Kafka publishes alerts to a topic for downstream consumers. The frame
// itself stays out of the payload; consumers fetch it over the API when
// they need it.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(cfg config.KafkaConfig) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (k *Kafka) Name() string { return "kafka" }

type kafkaAlert struct {
	LogID         string `json:"log_id"`
	Timestamp     int64  `json:"timestamp"`
	AttemptNumber int    `json:"attempt_number"`
	Recipient     string `json:"recipient"`
	CapturedAt    string `json:"captured_at"`
}

func (k *Kafka) Send(ctx context.Context, recipient string, entry model.IntruderLog) error {
	payload, err := json.Marshal(kafkaAlert{
		LogID:         entry.ID,
		Timestamp:     entry.Timestamp,
		AttemptNumber: entry.AttemptNumber,
		Recipient:     recipient,
		CapturedAt:    time.UnixMilli(entry.Timestamp).UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.ID),
		Value: payload,
	})
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
