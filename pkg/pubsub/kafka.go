package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// kafkaSubscription tracks a single consumer subscription.
type kafkaSubscription struct {
	consumer *kafka.Consumer
	cancel   context.CancelFunc
	done     chan struct{}
}

// KafkaPubSub implements PubSub interface using Apache Kafka. Subscribers of the
// same topic share the configured group, so each event is consumed once.
type KafkaPubSub struct {
	producer      *kafka.Producer
	subscriptions []*kafkaSubscription
	config        KafkaConfig
	buffer        int
	mu            sync.Mutex
	doneCh        chan struct{}
	closed        bool
}

// NewKafkaPubSub creates a new Kafka-based PubSub instance.
func NewKafkaPubSub(cfg KafkaConfig, buffer int) (*KafkaPubSub, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "all",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	kps := &KafkaPubSub{
		producer: p,
		config:   cfg,
		buffer:   buffer,
		doneCh:   make(chan struct{}),
	}

	go kps.deliveryReportHandler()

	if len(cfg.Topics) > 0 {
		if err := kps.ensureTopics(cfg.Topics); err != nil {
			l := log.L()
			l.Warn().Err(err).Msg("failed to ensure kafka topics (may already exist)")
		}
	}

	return kps, nil
}

// ensureTopics creates the given topics if they don't exist.
func (k *KafkaPubSub) ensureTopics(names []string) error {
	admin, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, topicSpecs(names, k.config.Partitions))
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}

	l := log.L()
	for _, r := range results {
		if r.Error.Code() != kafka.ErrNoError && r.Error.Code() != kafka.ErrTopicAlreadyExists {
			l.Warn().Str("topic", r.Topic).Str("error", r.Error.String()).Msg("failed to create kafka topic")
		}
	}

	return nil
}

// topicSpecs describes single-replica topics; partitions defaults to 4.
func topicSpecs(names []string, partitions int) []kafka.TopicSpecification {
	if partitions <= 0 {
		partitions = 4
	}
	specs := make([]kafka.TopicSpecification, 0, len(names))
	for _, name := range names {
		specs = append(specs, kafka.TopicSpecification{
			Topic:             name,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		})
	}
	return specs
}

// deliveryReportHandler processes delivery reports from the producer.
func (k *KafkaPubSub) deliveryReportHandler() {
	l := log.L()
	for e := range k.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				l.Error().Err(ev.TopicPartition.Error).
					Str("topic", *ev.TopicPartition.Topic).
					Str("key", string(ev.Key)).
					Msg("kafka delivery failed")
			}
		}
	}
	close(k.doneCh)
}

// Publish produces event to topic keyed by event.Key.
func (k *KafkaPubSub) Publish(ctx context.Context, topic string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(event.Key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	return nil
}

// Subscribe creates a group consumer on topic.
func (k *KafkaPubSub) Subscribe(ctx context.Context, topic string) (<-chan *Event, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, ErrClosed
	}

	groupID := k.config.GroupID
	if groupID == "" {
		groupID = "chat"
	}

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":       k.config.Brokers,
		"group.id":                groupID,
		"auto.offset.reset":       "earliest",
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 5000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	if err := c.Subscribe(topic, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &kafkaSubscription{
		consumer: c,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	k.subscriptions = append(k.subscriptions, sub)

	eventCh := make(chan *Event, k.buffer)
	go k.consumeMessages(subCtx, sub, topic, eventCh)

	return eventCh, nil
}

// consumeMessages polls Kafka and forwards events to the channel.
func (k *KafkaPubSub) consumeMessages(ctx context.Context, sub *kafkaSubscription, topic string, eventCh chan<- *Event) {
	defer close(sub.done)
	defer close(eventCh)

	logger := log.L().With().Str("topic", topic).Str("driver", "kafka").Logger()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev := sub.consumer.Poll(500)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			var event Event
			if err := json.Unmarshal(e.Value, &event); err != nil {
				logger.Warn().Err(err).Str("offset", e.TopicPartition.Offset.String()).Msg("dropping malformed kafka message")
				continue
			}

			select {
			case eventCh <- &event:
			case <-ctx.Done():
				return
			}

		case kafka.Error:
			logger.Error().Err(e).Int("code", int(e.Code())).Bool("fatal", e.IsFatal()).Msg("kafka consumer error")
			if e.IsFatal() {
				return
			}
		}
	}
}

// Close closes all subscriptions and the producer.
func (k *KafkaPubSub) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	subs := k.subscriptions
	k.subscriptions = nil
	k.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
		<-sub.done
		sub.consumer.Close()
	}

	k.producer.Flush(5000)
	k.producer.Close()
	<-k.doneCh

	return nil
}
