package registry

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/charmbracelet/log"
)

const roomDirectoryTopic = "room-directory"

// announcement is the wire shape published to roomDirectoryTopic.
type announcement struct {
	DirectoryEvent
	InstanceID string `json:"instanceId"`
}

// KafkaAnnouncer publishes room lifecycle events to a shared topic and, on
// the consuming side, feeds every instance's announcements (including its
// own) into a local Directory (spec.md §4.7). Publish sends through a sync
// producer and waits for the broker's acknowledgement; producer errors are
// logged, never returned to the room registry.
type KafkaAnnouncer struct {
	instanceID string
	producer   sarama.SyncProducer
	consumer   sarama.Consumer
	logger     *log.Logger
}

// NewKafkaAnnouncer dials brokers using the sync-producer/consumer pattern
// (not the abandoned segmentio-based producer/consumer files elsewhere in
// the retrieved pack, which import a library absent from that repo's own
// go.mod).
func NewKafkaAnnouncer(brokers []string, instanceID string, logger *log.Logger) (*KafkaAnnouncer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("registry: kafka producer: %w", err)
	}
	consumer, err := sarama.NewConsumer(brokers, sarama.NewConfig())
	if err != nil {
		producer.Close()
		return nil, fmt.Errorf("registry: kafka consumer: %w", err)
	}

	return &KafkaAnnouncer{instanceID: instanceID, producer: producer, consumer: consumer, logger: logger}, nil
}

// Publish implements DirectoryPublisher.
func (k *KafkaAnnouncer) Publish(event DirectoryEvent) {
	payload, err := json.Marshal(announcement{DirectoryEvent: event, InstanceID: k.instanceID})
	if err != nil {
		if k.logger != nil {
			k.logger.Warn("kafka announcement marshal failed", "room", event.RoomCode, "err", err)
		}
		return
	}

	msg := &sarama.ProducerMessage{Topic: roomDirectoryTopic, Value: sarama.ByteEncoder(payload)}
	if _, _, err := k.producer.SendMessage(msg); err != nil && k.logger != nil {
		k.logger.Warn("kafka publish failed", "room", event.RoomCode, "err", err)
	}
}

// Consume drains roomDirectoryTopic and upserts every announcement
// (including this instance's own) into dir, until stop is closed.
func (k *KafkaAnnouncer) Consume(dir *Directory, stop <-chan struct{}) error {
	partitionConsumer, err := k.consumer.ConsumePartition(roomDirectoryTopic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("registry: kafka partition consumer: %w", err)
	}
	defer partitionConsumer.Close()

	for {
		select {
		case <-stop:
			return nil
		case msg := <-partitionConsumer.Messages():
			var a announcement
			if err := json.Unmarshal(msg.Value, &a); err != nil {
				if k.logger != nil {
					k.logger.Warn("kafka announcement decode failed", "err", err)
				}
				continue
			}
			dir.Upsert(a.DirectoryEvent, a.InstanceID)
		case err := <-partitionConsumer.Errors():
			if k.logger != nil {
				k.logger.Warn("kafka partition consumer error", "err", err)
			}
		}
	}
}

// Close shuts down both the producer and consumer.
func (k *KafkaAnnouncer) Close() {
	if err := k.producer.Close(); err != nil && k.logger != nil {
		k.logger.Warn("error closing kafka producer", "err", err)
	}
	if err := k.consumer.Close(); err != nil && k.logger != nil {
		k.logger.Warn("error closing kafka consumer", "err", err)
	}
}
