package stream

import (
	"context"
	"time"

	"github.com/pkg/errors"
	segmentio "github.com/segmentio/kafka-go"

	"github.com/featurebasedb/edp/logger"
)

const (
	kafkaBackoffInterval    = 100 * time.Millisecond
	kafkaBackoffMaxInterval = 5 * time.Second
	kafkaMaxTries           = 5
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...segmentio.Message) error
	Close() error
}

// KafkaPublisher is a Publisher backed by Kafka. The stream name is the
// topic and the partition key is the message key, hashed to a partition.
type KafkaPublisher struct {
	writer messageWriter
	log    logger.Logger
}

// NewKafkaPublisher returns a publisher writing to brokers.
func NewKafkaPublisher(brokers []string, log logger.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers given")
	}
	w := &segmentio.Writer{
		Addr:         segmentio.TCP(brokers...),
		Balancer:     &segmentio.Hash{},
		RequiredAcks: segmentio.RequireAll,
	}
	return newKafkaPublisher(w, log), nil
}

func newKafkaPublisher(w messageWriter, log logger.Logger) *KafkaPublisher {
	if log == nil {
		log = logger.NopLogger
	}
	return &KafkaPublisher{writer: w, log: log}
}

func (p *KafkaPublisher) Put(ctx context.Context, stream, partitionKey string, data []byte) error {
	msg := segmentio.Message{
		Topic: stream,
		Key:   []byte(partitionKey),
		Value: data,
	}
	return p.writeWithBackoff(ctx, msg)
}

// writeWithBackoff retries temporary kafka errors with exponential backoff.
func (p *KafkaPublisher) writeWithBackoff(ctx context.Context, msg segmentio.Message) error {
	interval := kafkaBackoffInterval
	var lastErr error
	for tries := 1; ; tries++ {
		err := p.writer.WriteMessages(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if !temporary(err) || tries >= kafkaMaxTries {
			return errors.Wrapf(lastErr, "writing to %s after %d tries", msg.Topic, tries)
		}
		p.log.Warnf("temporary write error: %v", err)

		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrapf(lastErr, "writing to %s", msg.Topic)
		}
		interval *= 2
		if interval > kafkaBackoffMaxInterval {
			interval = kafkaBackoffMaxInterval
		}
	}
}

func temporary(err error) bool {
	switch err := err.(type) {
	case segmentio.Error:
		return err.Temporary()
	case segmentio.WriteErrors:
		for _, e := range err {
			if e == nil {
				continue
			}
			if kerr, ok := e.(segmentio.Error); !ok || !kerr.Temporary() {
				return false
			}
		}
		return true
	}
	return false
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
