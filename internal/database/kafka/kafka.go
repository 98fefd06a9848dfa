package kafka

import (
	"github.com/segmentio/kafka-go"

	"github.com/vitalio/medsearch/internal/config"
)

// NewWriter creates a Kafka writer for the configured progress topic.
func NewWriter(cfg *config.KafkaConfig) *kafka.Writer {
	return kafka.NewWriter(kafka.WriterConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
		Async:    true, // progress delivery is fire-and-forget
	})
}
