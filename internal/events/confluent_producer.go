package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/peerlearn/peerlearn/pkg/log"
	"github.com/peerlearn/peerlearn/pkg/pubsub"
)

const (
	headerEventType = "event_type"
	headerChatID    = "chat_id"
	headerIsGroup   = "is_group"

	closeFlushTimeout = 5 * time.Second
)

// StreamConfig points the chat event stream at a Kafka cluster.
type StreamConfig struct {
	Brokers    string
	Topic      string
	Partitions int
}

// ChatStream appends every chat event (new message, reaction, unsend,
// group membership) to one topic. Records are keyed by conversation.
type ChatStream struct {
	producer *kafka.Producer
	topic    string
	failed   atomic.Int64
	drained  chan struct{}
}

// NewChatStream connects to the brokers and creates the chat topic when missing.
func NewChatStream(cfg StreamConfig) (*ChatStream, error) {
	l := log.L()

	if cfg.Partitions <= 0 {
		cfg.Partitions = 1
	}
	if err := createChatTopic(cfg); err != nil {
		l.Warn().Err(err).Str("topic", cfg.Topic).Msg("could not create chat event topic")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("chat stream producer: %w", err)
	}

	s := &ChatStream{
		producer: p,
		topic:    cfg.Topic,
		drained:  make(chan struct{}),
	}
	go s.watchDeliveries()
	return s, nil
}

func createChatTopic(cfg StreamConfig) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": cfg.Brokers})
	if err != nil {
		return fmt.Errorf("chat stream admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             cfg.Topic,
		NumPartitions:     cfg.Partitions,
		ReplicationFactor: 1,
	}})
	if err != nil {
		return err
	}
	for _, r := range results {
		switch r.Error.Code() {
		case kafka.ErrNoError, kafka.ErrTopicAlreadyExists:
		default:
			return fmt.Errorf("create topic %s: %v", r.Topic, r.Error)
		}
	}
	return nil
}

// watchDeliveries logs chat events the brokers rejected.
func (s *ChatStream) watchDeliveries() {
	l := log.L()
	for e := range s.producer.Events() {
		msg, ok := e.(*kafka.Message)
		if !ok || msg.TopicPartition.Error == nil {
			continue
		}
		s.failed.Add(1)
		l.Error().Err(msg.TopicPartition.Error).
			Str("chat_key", string(msg.Key)).
			Str("event_type", headerValue(msg.Headers, headerEventType)).
			Msg("chat event not delivered")
	}
	close(s.drained)
}

// Produce queues the event. Delivery is reported asynchronously.
func (s *ChatStream) Produce(ctx context.Context, event *pubsub.Event) error {
	record, err := chatEventRecord(&s.topic, event)
	if err != nil {
		return err
	}
	if err := s.producer.Produce(record, nil); err != nil {
		return fmt.Errorf("queue %s event for chat %s: %w", event.Type, event.ChatID, err)
	}
	return nil
}

// Failed returns how many chat events the brokers rejected so far.
func (s *ChatStream) Failed() int64 {
	return s.failed.Load()
}

// Close flushes queued chat events and stops the producer.
func (s *ChatStream) Close() error {
	remaining := s.producer.Flush(int(closeFlushTimeout.Milliseconds()))
	s.producer.Close()
	<-s.drained
	if remaining > 0 {
		return fmt.Errorf("chat stream closed with %d events unflushed", remaining)
	}
	return nil
}

// chatEventRecord keys the record by conversation channel, so the events of
// one chat land on one partition in publish order.
func chatEventRecord(topic *string, event *pubsub.Event) (*kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.Channel()),
		Value:          value,
		Timestamp:      event.Timestamp,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(event.Type)},
			{Key: headerChatID, Value: []byte(event.ChatID)},
			{Key: headerIsGroup, Value: []byte(strconv.FormatBool(event.IsGroup))},
		},
	}, nil
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
