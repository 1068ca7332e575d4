// Package publish delivers anomaly events to Kafka after a detection pass.
// Publishing is strictly downstream of classification: events are emitted
// once a batch is fully classified and never feed back into detection.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/khellaf-bel/energy-sentinel/internal/detector"
	"github.com/khellaf-bel/energy-sentinel/internal/models"
	"github.com/khellaf-bel/energy-sentinel/internal/observability"
)

// Config encapsulates the runtime options for anomaly publishing.
type Config struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// Event is the payload published for one anomalous reading.
type Event struct {
	SensorID      string  `json:"sensor_id"`
	EquipmentType string  `json:"equipment_type"`
	Value         float64 `json:"value"`
	AnomalyKind   string  `json:"anomaly_kind"`
	Timestamp     string  `json:"timestamp,omitempty"`
}

type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type kafkaWriteCloser interface {
	Close() error
}

const publisherQueueSize = 256

var (
	errPublisherNilLogger  = errors.New("publisher requires a logger")
	errPublisherNotStarted = errors.New("anomaly publisher not started")
)

// Publisher asynchronously publishes anomaly events to the configured topic.
// A disabled publisher is a safe no-op so callers never branch on config.
type Publisher struct {
	cfg       Config
	log       *slog.Logger
	metrics   *observability.Metrics
	writer    kafkaMessageWriter
	closer    kafkaWriteCloser
	enabled   bool
	queue     chan kafka.Message
	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPublisher constructs a Publisher backed by a Kafka writer keyed by
// sensor ID with the hash balancer.
func NewPublisher(cfg Config, log *slog.Logger, metrics *observability.Metrics) (*Publisher, error) {
	if log == nil {
		return nil, errPublisherNilLogger
	}
	if !cfg.Enabled {
		log.Info("anomaly_publisher_disabled")
		return &Publisher{cfg: cfg, log: log, metrics: metrics}, nil
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("anomaly topic must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: false,
	}
	return newPublisherWithWriter(cfg, log, metrics, writer, writer), nil
}

// newPublisherWithWriter wires the provided writer into the publisher. It is
// used in tests.
func newPublisherWithWriter(cfg Config, log *slog.Logger, metrics *observability.Metrics, writer kafkaMessageWriter, closer kafkaWriteCloser) *Publisher {
	return &Publisher{
		cfg:     cfg,
		log:     log.With(slog.String("component", "anomaly_publisher")),
		metrics: metrics,
		writer:  writer,
		closer:  closer,
		enabled: cfg.Enabled,
		queue:   make(chan kafka.Message, publisherQueueSize),
	}
}

// Start launches the background delivery loop.
func (p *Publisher) Start(ctx context.Context) {
	if !p.enabled {
		return
	}
	p.startOnce.Do(func() {
		p.runCtx, p.cancel = context.WithCancel(ctx)
		p.wg.Add(1)
		go p.run()
		p.log.Info("anomaly_publisher_started", slog.String("topic", p.cfg.Topic))
	})
}

// Stop drains in-flight events and closes the writer.
func (p *Publisher) Stop(ctx context.Context) error {
	if !p.enabled {
		return nil
	}
	var stopErr error
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = ctx.Err()
		}
		if p.closer != nil {
			if err := p.closer.Close(); err != nil {
				p.log.Error("anomaly_publisher_close_err", slog.Any("err", err))
			}
		}
		p.log.Info("anomaly_publisher_stopped")
	})
	return stopErr
}

// PublishBatch enqueues one event per anomalous reading in the classified
// batch. Clean readings are skipped. Returns how many events were enqueued.
func (p *Publisher) PublishBatch(ctx context.Context, classified []detector.ClassifiedReading) (int, error) {
	if !p.enabled {
		return 0, nil
	}
	if p.runCtx == nil {
		return 0, errPublisherNotStarted
	}
	enqueued := 0
	for _, c := range classified {
		if !c.Result.IsAnomaly {
			continue
		}
		ev := Event{
			SensorID:      c.Reading.SensorID,
			EquipmentType: models.NormalizeType(c.Reading.EquipmentType),
			Value:         c.Reading.Value,
			AnomalyKind:   c.Result.Kind(),
			Timestamp:     c.Reading.Timestamp,
		}
		value, err := json.Marshal(ev)
		if err != nil {
			p.metrics.PublishResult("fail")
			return enqueued, fmt.Errorf("encode anomaly event: %w", err)
		}
		msg := kafka.Message{Key: []byte(ev.SensorID), Value: value}
		select {
		case p.queue <- msg:
			enqueued++
		case <-ctx.Done():
			p.metrics.PublishResult("fail")
			return enqueued, ctx.Err()
		case <-p.runCtx.Done():
			p.metrics.PublishResult("fail")
			return enqueued, errPublisherNotStarted
		}
	}
	return enqueued, nil
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.runCtx.Done():
			p.drain()
			return
		case msg := <-p.queue:
			p.deliver(msg)
		}
	}
}

func (p *Publisher) drain() {
	for {
		select {
		case msg := <-p.queue:
			p.deliver(msg)
		default:
			return
		}
	}
}

func (p *Publisher) deliver(msg kafka.Message) {
	// Delivery uses its own context so draining still works after Stop
	// cancels the run context.
	if err := p.writer.WriteMessages(context.Background(), msg); err != nil {
		p.metrics.PublishResult("fail")
		p.log.Error("anomaly_publish_err", slog.Any("err", err), slog.String("key", string(msg.Key)))
		return
	}
	p.metrics.PublishResult("ok")
	p.log.Info("anomaly_published", slog.String("key", string(msg.Key)))
}
