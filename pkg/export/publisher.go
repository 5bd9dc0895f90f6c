package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

const queueFullRetryDelay = time.Second

// Msg is one record headed for the export topic.
type Msg struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Publisher delivers export records.
type Publisher interface {
	// Publish blocks until the record is acknowledged or ctx is done.
	Publish(ctx context.Context, msg Msg) error
	// Errors receives at most one fatal error, after which the publisher is
	// unusable.
	Errors() <-chan error
	// Close flushes in-flight records for up to timeout. Safe to call twice.
	Close(timeout time.Duration)
}

// KafkaPublisher is a synchronous Kafka producer.
//
// Background goroutines drain the producer's event and log channels until
// Close is called or the construction context is cancelled.
type KafkaPublisher struct {
	producer   *kafka.Producer
	log        *zap.SugaredLogger
	errCh      chan error
	eventsDone chan struct{}
	logsDone   chan struct{}
	closedCh   chan struct{}
	once       sync.Once
}

var _ Publisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(ctx context.Context, conf *kafka.ConfigMap, log *zap.SugaredLogger) (*KafkaPublisher, error) {
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}

	logsEnabled, err := conf.Get("go.logs.channel.enable", false)
	if err != nil {
		return nil, fmt.Errorf("failed to get go.logs.channel.enable: %w", err)
	}

	p, err := kafka.NewProducer(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	kp := &KafkaPublisher{
		producer:   p,
		log:        log,
		errCh:      make(chan error, 1),
		eventsDone: make(chan struct{}),
		logsDone:   make(chan struct{}),
		closedCh:   make(chan struct{}),
	}

	if enabled, _ := logsEnabled.(bool); enabled {
		go kp.forwardLogs(ctx)
	} else {
		close(kp.logsDone)
	}
	go kp.watchEvents(ctx)

	return kp, nil
}

// Publish produces msg and waits for its delivery receipt. When ctx is
// cancelled first the record may still be delivered later.
func (p *KafkaPublisher) Publish(ctx context.Context, msg Msg) error {
	deliveryCh := make(chan kafka.Event, 1)

	km := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &msg.Topic,
			Partition: kafka.PartitionAny,
		},
		Key:   msg.Key,
		Value: msg.Value,
	}
	for k, v := range msg.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := p.produce(ctx, km, deliveryCh); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case ev := <-deliveryCh:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event: %T", ev)
		}
		if err := m.TopicPartition.Error; err != nil {
			return fmt.Errorf("delivery failed: %w", err)
		}
		p.log.Debugw("delivered export record",
			"topic", msg.Topic,
			"partition", m.TopicPartition.Partition,
			"offset", m.TopicPartition.Offset,
		)
		return nil
	}
}

func (p *KafkaPublisher) Errors() <-chan error {
	return p.errCh
}

func (p *KafkaPublisher) Close(timeout time.Duration) {
	p.once.Do(func() {
		p.log.Info("closing kafka publisher")
		defer close(p.errCh)

		close(p.closedCh)
		<-p.eventsDone
		<-p.logsDone

		if pending := p.producer.Flush(int(timeout.Milliseconds())); pending > 0 {
			p.log.Warnw("flush incomplete, export records will be lost", "pending", pending)
		}
		p.producer.Close()
		p.log.Info("kafka publisher closed")
	})
}

// produce enqueues msg, retrying while the local queue is full.
func (p *KafkaPublisher) produce(ctx context.Context, msg *kafka.Message, deliveryCh chan kafka.Event) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := p.producer.Produce(msg, deliveryCh)
		if err == nil {
			return nil
		}

		var kerr kafka.Error
		if !errors.As(err, &kerr) {
			return fmt.Errorf("failed to produce: %w", err)
		}
		switch kerr.Code() {
		case kafka.ErrQueueFull:
			p.log.Warnw("producer queue full, retrying", "delay", queueFullRetryDelay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(queueFullRetryDelay):
			}
		case kafka.ErrBrokerNotAvailable:
			return fmt.Errorf("broker not available: %w", err)
		case kafka.ErrInvalidMsgSize:
			return fmt.Errorf("invalid message size: %w", err)
		case kafka.ErrUnknownTopicOrPart:
			return fmt.Errorf("unknown topic or partition: %w", err)
		case kafka.ErrAuthentication:
			return fmt.Errorf("authentication error: %w", err)
		default:
			return fmt.Errorf("failed to produce: %w", err)
		}
	}
}

func (p *KafkaPublisher) watchEvents(ctx context.Context) {
	defer close(p.eventsDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.closedCh:
			return
		case ev, ok := <-p.producer.Events():
			if !ok {
				p.fail(errors.New("kafka producer event channel closed"))
				return
			}
			switch e := ev.(type) {
			case kafka.Error:
				if e.IsFatal() || e.Code() == kafka.ErrAllBrokersDown {
					p.fail(fmt.Errorf("fatal kafka error %#x: %w", e.Code(), e))
					return
				}
				p.log.Warnw("ignoring kafka error", "code", e.Code(), "error", e)
			case *kafka.Message:
				// Receipts go to the per-message channel.
				p.log.Warnw("unexpected delivery receipt on event channel", "topicPartition", e.TopicPartition)
			default:
				p.log.Debugw("kafka producer event", "event", e.String())
			}
		}
	}
}

func (p *KafkaPublisher) fail(err error) {
	select {
	case p.errCh <- err:
	default:
		p.log.Warnw("dropping kafka error, one already pending", "error", err)
	}
}

func (p *KafkaPublisher) forwardLogs(ctx context.Context) {
	defer close(p.logsDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.closedCh:
			return
		case l, ok := <-p.producer.Logs():
			if !ok {
				return
			}
			p.log.Debugw("librdkafka", "level", l.Level, "tag", l.Tag, "message", l.Message)
		}
	}
}
