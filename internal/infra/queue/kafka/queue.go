// Package kafka provides a Kafka-backed implementation of the classification
// work queue. Delivery is at-least-once: offsets are committed only after a
// lease is acked, so a worker crash redelivers every in-flight task.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/trace"

	"github.com/lenderlens/lenderlens/internal/app/classification"
	"github.com/lenderlens/lenderlens/pkg/common/logger"
)

// Config contains the settings for connecting to the Kafka brokers.
type Config struct {
	// Brokers is a list of broker addresses to connect to.
	Brokers []string
	// Topic is the work topic classification tasks are published on.
	Topic string
	// GroupID identifies the worker consumer group.
	GroupID string
	// ClientID uniquely identifies this client to the cluster.
	ClientID string
}

var _ classification.WorkQueue = (*Queue)(nil)

// Queue implements the WorkQueue port on top of a Kafka topic.
type Queue struct {
	client        sarama.Client
	producer      sarama.SyncProducer
	consumerGroup sarama.ConsumerGroup
	topic         string

	logger *logger.Logger
	tracer trace.Tracer
}

// Connect establishes the Kafka client, producer and consumer group,
// retrying the initial connection with exponential backoff since brokers
// commonly come up after the workers in a fresh deployment.
func Connect(cfg Config, log *logger.Logger, tracer trace.Tracer) (*Queue, error) {
	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest

	var client sarama.Client
	connect := func() error {
		var err error
		client, err = sarama.NewClient(cfg.Brokers, sc)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(connect, bo); err != nil {
		return nil, fmt.Errorf("connecting to kafka brokers: %w", err)
	}

	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("creating producer: %w", err)
	}

	consumerGroup, err := sarama.NewConsumerGroupFromClient(cfg.GroupID, client)
	if err != nil {
		producer.Close()
		client.Close()
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	return &Queue{
		client:        client,
		producer:      producer,
		consumerGroup: consumerGroup,
		topic:         cfg.Topic,
		logger:        log.With("component", "kafka_queue", "topic", cfg.Topic),
		tracer:        tracer,
	}, nil
}

// Enqueue publishes a task to the work topic, reattempting failed sends per
// the task's retry policy. Tasks are keyed by batch so one batch's items stay
// roughly co-located without imposing any ordering.
func (q *Queue) Enqueue(ctx context.Context, task classification.ClassifyTask, opts classification.EnqueueOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encoding task: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: q.topic,
		Key:   sarama.StringEncoder(task.BatchID.String()),
		Value: sarama.ByteEncoder(value),
	}

	send := func() error {
		_, _, err := q.producer.SendMessage(msg)
		return err
	}

	retries := uint64(0)
	if opts.MaxAttempts > 1 {
		retries = uint64(opts.MaxAttempts - 1)
	}
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(opts.Backoff), retries), ctx)
	if err := backoff.Retry(send, bo); err != nil {
		return fmt.Errorf("publishing task: %w", err)
	}
	return nil
}

// Leases starts consuming the work topic and returns the lease channel. The
// channel closes once the context is cancelled and the consumer group winds
// down.
func (q *Queue) Leases(ctx context.Context) (<-chan classification.Lease, error) {
	leases := make(chan classification.Lease)
	h := &consumerHandler{topic: q.topic, leases: leases, logger: q.logger}

	go func() {
		defer close(leases)
		for {
			if err := q.consumerGroup.Consume(ctx, []string{q.topic}, h); err != nil {
				q.logger.Error(ctx, "consumer group session ended with error", "error", err)
			}
			if ctx.Err() != nil {
				return
			}
			// Rebalance or transient broker error; rejoin after a pause.
			time.Sleep(time.Second)
		}
	}()

	return leases, nil
}

// Close shuts down the producer, consumer group and client.
func (q *Queue) Close() error {
	var firstErr error
	if err := q.producer.Close(); err != nil {
		firstErr = err
	}
	if err := q.consumerGroup.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := q.client.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// consumerHandler adapts consumer group claims into leases.
type consumerHandler struct {
	topic  string
	leases chan<- classification.Lease
	logger *logger.Logger
}

func (h *consumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim delivers each message as a lease whose ack advances the
// partition's committed offset through the ack tracker. Unacked messages stay
// uncommitted and are redelivered after a rebalance or restart.
func (h *consumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	tracker := newAckTracker(claim.InitialOffset())
	partition := claim.Partition()

	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			tracker.observe(msg.Offset)

			var task classification.ClassifyTask
			if err := json.Unmarshal(msg.Value, &task); err != nil {
				// A payload that can't parse will never parse; skip it
				// instead of wedging the partition.
				h.logger.Error(session.Context(), "dropping undecodable task payload",
					"partition", partition, "offset", msg.Offset, "error", err)
				if next := tracker.Ack(msg.Offset); next >= 0 {
					session.MarkOffset(h.topic, partition, next, "")
				}
				continue
			}

			offset := msg.Offset
			lease := classification.Lease{
				Task: task,
				Ack: func() {
					if next := tracker.Ack(offset); next >= 0 {
						session.MarkOffset(h.topic, partition, next, "")
					}
				},
			}

			select {
			case h.leases <- lease:
			case <-session.Context().Done():
				return nil
			}

		case <-session.Context().Done():
			return nil
		}
	}
}
