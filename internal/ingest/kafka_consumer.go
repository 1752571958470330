package ingest

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	prefaberrors "github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"

	"github.com/roadwatch/server/internal/config"
	"github.com/roadwatch/server/internal/lib/grouping"
)

// Submitter receives batches of observations
type Submitter interface {
	SubmitObservations(ctx context.Context, source string, observations []grouping.Observation) error
}

// messageReader is the part of *kafka.Consumer the consumer loop needs
type messageReader interface {
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	Close() error
}

// Batcher accumulates observations until the batch is full or the window
// since its first observation has passed
type Batcher struct {
	size    int
	window  time.Duration
	pending []grouping.Observation
	opened  time.Time
}

// NewBatcher creates a batcher flushing at size observations or after window
func NewBatcher(size int, window time.Duration) *Batcher {
	return &Batcher{size: size, window: window}
}

// Add appends an observation and returns a full batch when size is reached
func (b *Batcher) Add(obs grouping.Observation, now time.Time) []grouping.Observation {
	if len(b.pending) == 0 {
		b.opened = now
	}
	b.pending = append(b.pending, obs)
	if len(b.pending) >= b.size {
		return b.Drain()
	}
	return nil
}

// Due returns the pending batch once its window has elapsed
func (b *Batcher) Due(now time.Time) []grouping.Observation {
	if len(b.pending) == 0 || now.Sub(b.opened) < b.window {
		return nil
	}
	return b.Drain()
}

// Drain returns and clears whatever is pending
func (b *Batcher) Drain() []grouping.Observation {
	out := b.pending
	b.pending = nil
	return out
}

// Pending is the number of buffered observations
func (b *Batcher) Pending() int {
	return len(b.pending)
}

// ConsumerStats counts what the consumer has seen
type ConsumerStats struct {
	Received  int64 `json:"received"`
	Rejected  int64 `json:"rejected"`
	Submitted int64 `json:"submitted"`
	Batches   int64 `json:"batches"`
}

// DetectionConsumer reads vehicle detections from Kafka and submits them to
// the assessment service in batches
type DetectionConsumer struct {
	reader       messageReader
	submitter    Submitter
	topic        string
	batcher      *Batcher
	pollInterval time.Duration
	now          func() time.Time

	received  atomic.Int64
	rejected  atomic.Int64
	submitted atomic.Int64
	batches   atomic.Int64
}

// NewDetectionConsumer connects to the configured brokers and subscribes to
// the detection topic
func NewDetectionConsumer(cfg config.KafkaConfig, submitter Submitter) (*DetectionConsumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Brokers,
		"group.id":           cfg.GroupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	if err := c.SubscribeTopics([]string{cfg.Topic}, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", cfg.Topic, err)
	}
	return newDetectionConsumer(c, submitter, cfg), nil
}

func newDetectionConsumer(reader messageReader, submitter Submitter, cfg config.KafkaConfig) *DetectionConsumer {
	return &DetectionConsumer{
		reader:       reader,
		submitter:    submitter,
		topic:        cfg.Topic,
		batcher:      NewBatcher(cfg.BatchSize, cfg.BatchWindow),
		pollInterval: cfg.PollInterval,
		now:          time.Now,
	}
}

// Source names batches submitted by this consumer
func (c *DetectionConsumer) Source() string {
	return "kafka:" + c.topic
}

// Stats returns the consumer counters
func (c *DetectionConsumer) Stats() ConsumerStats {
	return ConsumerStats{
		Received:  c.received.Load(),
		Rejected:  c.rejected.Load(),
		Submitted: c.submitted.Load(),
		Batches:   c.batches.Load(),
	}
}

// Run polls until ctx is cancelled, then flushes the pending batch and
// closes the consumer
func (c *DetectionConsumer) Run(ctx context.Context) {
	ctx = logging.EnsureLogger(ctx)
	defer func() {
		if r := recover(); r != nil {
			stack, _ := prefaberrors.ParseStack(debug.Stack())
			logging.Errorw(ctx, "Kafka consumer: recovered from panic",
				"error", r, "error.stack_trace", stack.MinimalStack(3, 5))
		}
	}()
	defer func() {
		if err := c.reader.Close(); err != nil {
			logging.Errorw(ctx, "failed to close kafka consumer", "error", err)
		}
	}()

	logging.Infow(ctx, "kafka consumer started", "topic", c.topic)
	for {
		select {
		case <-ctx.Done():
			c.flush(context.WithoutCancel(ctx), c.batcher.Drain())
			logging.Infow(ctx, "kafka consumer stopped", "topic", c.topic, "received", c.received.Load())
			return
		default:
		}

		if err := c.poll(ctx); err != nil {
			logging.Errorw(ctx, "kafka read failed", "topic", c.topic, "error", err)
		}
		c.flush(ctx, c.batcher.Due(c.now()))
	}
}

// poll reads at most one message. Read timeouts are not errors.
func (c *DetectionConsumer) poll(ctx context.Context) error {
	msg, err := c.reader.ReadMessage(c.pollInterval)
	if err != nil {
		var kerr kafka.Error
		if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
			return nil
		}
		return err
	}
	c.received.Add(1)

	detection, err := ParseDetection(msg.Value)
	if err != nil {
		c.rejected.Add(1)
		logging.Errorw(ctx, "rejected detection message", "error", err)
		return nil
	}
	obs, err := detection.Observation()
	if err != nil {
		c.rejected.Add(1)
		logging.Errorw(ctx, "rejected detection message", "error", err)
		return nil
	}

	c.flush(ctx, c.batcher.Add(obs, c.now()))
	return nil
}

func (c *DetectionConsumer) flush(ctx context.Context, batch []grouping.Observation) {
	if len(batch) == 0 {
		return
	}
	if err := c.submitter.SubmitObservations(ctx, c.Source(), batch); err != nil {
		logging.Errorw(ctx, "failed to submit detection batch", "count", len(batch), "error", err)
		return
	}
	c.batches.Add(1)
	c.submitted.Add(int64(len(batch)))
}
