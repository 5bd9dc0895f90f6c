package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

const metadataTimeout = 10 * time.Second

// TopicConfig holds the desired shape of the export topic.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
}

func (tc TopicConfig) Validate() error {
	if tc.Name == "" {
		return errors.New("topic name cannot be empty")
	}
	if tc.NumPartitions <= 0 {
		return fmt.Errorf("number of partitions must be > 0, got %d", tc.NumPartitions)
	}
	if tc.ReplicationFactor <= 0 {
		return fmt.Errorf("replication factor must be > 0, got %d", tc.ReplicationFactor)
	}
	return nil
}

// EnsureTopic creates the topic when it is missing and grows its partition
// count when it has fewer than configured. A topic with more partitions or a
// different replication factor is left alone and only logged.
func EnsureTopic(ctx context.Context, admin *kafka.AdminClient, tc TopicConfig, log *zap.SugaredLogger) error {
	if err := tc.Validate(); err != nil {
		return fmt.Errorf("invalid topic config: %w", err)
	}

	meta, err := lookupTopic(admin, tc.Name)
	if err != nil {
		return err
	}
	if meta == nil {
		return createTopic(ctx, admin, tc, log)
	}

	partitions := len(meta.Partitions)
	var rf int
	if partitions > 0 {
		rf = len(meta.Partitions[0].Replicas)
	}
	if rf != tc.ReplicationFactor {
		log.Warnw("export topic replication factor differs from config",
			"topic", tc.Name,
			"current", rf,
			"desired", tc.ReplicationFactor,
		)
	}

	switch {
	case partitions < tc.NumPartitions:
		return growPartitions(ctx, admin, tc, log)
	case partitions > tc.NumPartitions:
		log.Warnw("export topic has more partitions than configured, keeping them",
			"topic", tc.Name,
			"current", partitions,
			"desired", tc.NumPartitions,
		)
	}
	return nil
}

// lookupTopic returns nil metadata when the topic does not exist.
func lookupTopic(admin *kafka.AdminClient, name string) (*kafka.TopicMetadata, error) {
	md, err := admin.GetMetadata(&name, false, int(metadataTimeout.Milliseconds()))
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata for topic %q: %w", name, err)
	}

	meta, ok := md.Topics[name]
	if !ok || meta.Error.Code() == kafka.ErrUnknownTopicOrPart {
		return nil, nil
	}
	if meta.Error.Code() != kafka.ErrNoError {
		return nil, fmt.Errorf("topic %q has error: %w", name, meta.Error)
	}
	return &meta, nil
}

func createTopic(ctx context.Context, admin *kafka.AdminClient, tc TopicConfig, log *zap.SugaredLogger) error {
	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             tc.Name,
		NumPartitions:     tc.NumPartitions,
		ReplicationFactor: tc.ReplicationFactor,
	}})
	if err != nil {
		return fmt.Errorf("failed to create topic %q: %w", tc.Name, err)
	}

	for _, res := range results {
		switch res.Error.Code() {
		case kafka.ErrNoError:
			log.Infow("created export topic",
				"topic", res.Topic,
				"partitions", tc.NumPartitions,
				"replicationFactor", tc.ReplicationFactor,
			)
		case kafka.ErrTopicAlreadyExists:
			// Lost a race with another instance.
			log.Infow("export topic already exists", "topic", res.Topic)
		default:
			return fmt.Errorf("failed to create topic %q: %w", res.Topic, res.Error)
		}
	}
	return nil
}

func growPartitions(ctx context.Context, admin *kafka.AdminClient, tc TopicConfig, log *zap.SugaredLogger) error {
	results, err := admin.CreatePartitions(ctx, []kafka.PartitionsSpecification{{
		Topic:      tc.Name,
		IncreaseTo: tc.NumPartitions,
	}})
	if err != nil {
		return fmt.Errorf("failed to increase partitions for topic %q: %w", tc.Name, err)
	}
	for _, res := range results {
		if res.Error.Code() != kafka.ErrNoError {
			return fmt.Errorf("failed to increase partitions for topic %q: %w", res.Topic, res.Error)
		}
		log.Infow("increased export topic partitions", "topic", res.Topic, "partitions", tc.NumPartitions)
	}
	return nil
}
