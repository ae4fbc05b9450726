package tap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"PPLive/logger"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	Retries      int
	Compression  string // none/snappy/lz4/zstd
	KafkaVersion sarama.KafkaVersion

	// EnsureTopic creates the topic (or grows its partitions) on startup.
	EnsureTopic       bool
	Partitions        int32
	ReplicationFactor int16
}

func BuildKafkaConfig(c KafkaConfig) *sarama.Config {
	cfg := sarama.NewConfig()
	if c.KafkaVersion == (sarama.KafkaVersion{}) {
		c.KafkaVersion = sarama.V2_1_0_0
	}
	cfg.Version = c.KafkaVersion

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	if c.Retries <= 0 {
		c.Retries = 3
	}
	cfg.Producer.Retry.Max = c.Retries
	cfg.Producer.Partitioner = sarama.NewHashPartitioner // Key 控制分区: one chat stays on one partition
	switch strings.ToLower(c.Compression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

// KafkaPublisher writes envelopes to one topic keyed by Envelope.Key.
type KafkaPublisher struct {
	topic string
	prod  sarama.SyncProducer
}

func NewKafkaPublisher(c KafkaConfig) (*KafkaPublisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers missing")
	}
	cfg := BuildKafkaConfig(c)
	if c.EnsureTopic {
		admin, err := sarama.NewClusterAdmin(c.Brokers, cfg)
		if err != nil {
			return nil, fmt.Errorf("new cluster admin: %w", err)
		}
		err = EnsureTopic(admin, topicOrDefault(c.Topic), c.Partitions, c.ReplicationFactor)
		_ = admin.Close()
		if err != nil {
			return nil, err
		}
	}
	p, err := sarama.NewSyncProducer(c.Brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("new sync producer: %w", err)
	}
	return NewKafkaPublisherFromProducer(p, c.Topic), nil
}

func NewKafkaPublisherFromProducer(p sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{topic: topicOrDefault(topic), prod: p}
}

func topicOrDefault(topic string) string {
	if topic == "" {
		return "pplive.events"
	}
	return topic
}

func (k *KafkaPublisher) Publish(_ context.Context, ev Envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(ev.Key),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-id"), Value: []byte(ev.ID)},
			{Key: []byte("event-type"), Value: []byte(ev.Type)},
		},
	}
	if _, _, err := k.prod.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka send %s: %w", ev.Type, err)
	}
	return nil
}

func (k *KafkaPublisher) Close() error { return k.prod.Close() }

// EnsureTopic creates topic when missing and grows its partition count when
// below partitions. Kafka never shrinks partitions, so a larger existing
// count is left alone.
func EnsureTopic(admin sarama.ClusterAdmin, topic string, partitions int32, rf int16) error {
	if partitions <= 0 {
		partitions = 6
	}
	if rf <= 0 {
		rf = 1
	}
	descs, err := admin.DescribeTopics([]string{topic})
	if err != nil {
		return fmt.Errorf("describe topic %s: %w", topic, err)
	}
	exists := len(descs) == 1 && errors.Is(descs[0].Err, sarama.ErrNoError)

	if !exists {
		minISR := "1"
		if rf >= 3 {
			minISR = "2"
		}
		td := &sarama.TopicDetail{
			NumPartitions:     partitions,
			ReplicationFactor: rf,
			ConfigEntries: map[string]*string{
				"cleanup.policy":                 strPtr("delete"),
				"min.insync.replicas":            strPtr(minISR),
				"unclean.leader.election.enable": strPtr("false"),
				"compression.type":               strPtr("producer"),
			},
		}
		if err := admin.CreateTopic(topic, td, false); err != nil {
			var te *sarama.TopicError
			if (errors.As(err, &te) && te.Err == sarama.ErrTopicAlreadyExists) || errors.Is(err, sarama.ErrTopicAlreadyExists) {
				logger.Info("[Tap] topic exists (race)", zap.String("topic", topic))
				return nil
			}
			return fmt.Errorf("create topic %s: %w", topic, err)
		}
		logger.Info("[Tap] topic created", zap.String("topic", topic),
			zap.Int32("partitions", partitions), zap.Int16("rf", rf))
		return nil
	}

	cur := int32(len(descs[0].Partitions))
	if partitions > cur {
		if err := admin.CreatePartitions(topic, partitions, nil, false); err != nil {
			return fmt.Errorf("expand partitions %s from %d to %d: %w", topic, cur, partitions, err)
		}
		logger.Info("[Tap] partitions expanded", zap.String("topic", topic),
			zap.Int32("from", cur), zap.Int32("to", partitions))
	}
	return nil
}

func strPtr(s string) *string { return &s }
