package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/johncmanuel/isabot/internal/config"
	"github.com/johncmanuel/isabot/internal/domain"
)

// EntryEvent is the message published for each created entry. Downstream
// consumers get the ranked rows precomputed so they never re-derive them.
type EntryEvent struct {
	EntryID   string             `json:"entry_id"`
	CreatedAt int64              `json:"created_at"`
	Players   int                `json:"players"`
	Rankings  []domain.RankedRow `json:"rankings"`
}

// KafkaPublisher publishes entry-created events to a Kafka topic.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewKafkaPublisher connects a synchronous producer to the configured
// brokers.
func NewKafkaPublisher(cfg *config.KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	return &KafkaPublisher{
		producer: producer,
		topic:    cfg.Topic,
		logger:   logger,
	}, nil
}

// PublishEntry emits one entry-created event keyed by entry id.
func (p *KafkaPublisher) PublishEntry(_ context.Context, entry domain.LeaderboardEntry) error {
	event := EntryEvent{
		EntryID:   entry.EntryID,
		CreatedAt: entry.CreatedAt,
		Players:   len(entry.Players),
		Rankings:  entry.Rank(),
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding entry event: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(entry.EntryID),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return fmt.Errorf("publishing entry event: %w", err)
	}

	p.logger.Info("published entry event",
		"entry_id", entry.EntryID,
		"topic", p.topic,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

// Close shuts down the producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
