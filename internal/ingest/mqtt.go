// Package ingest receives readings pushed by field devices over MQTT and
// feeds them into the reading store.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/khellaf-bel/energy-sentinel/internal/models"
	"github.com/khellaf-bel/energy-sentinel/internal/observability"
)

// Config encapsulates the MQTT ingestion options.
type Config struct {
	Enabled  bool
	Broker   string
	Topic    string
	ClientID string
}

// ReadingSink persists decoded readings. The file store implements it.
type ReadingSink interface {
	AppendBatch(batch []models.Reading) error
}

// MQTTIngestor subscribes to the readings topic and appends every decoded
// reading to the sink. A disabled ingestor is a safe no-op.
type MQTTIngestor struct {
	cfg     Config
	log     *slog.Logger
	metrics *observability.Metrics
	sink    ReadingSink
	client  mqtt.Client
}

func NewMQTT(cfg Config, log *slog.Logger, metrics *observability.Metrics, sink ReadingSink) (*MQTTIngestor, error) {
	if log == nil {
		return nil, errors.New("mqtt ingestor requires a logger")
	}
	if !cfg.Enabled {
		log.Info("mqtt_ingest_disabled")
		return &MQTTIngestor{cfg: cfg, log: log}, nil
	}
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, fmt.Errorf("mqtt broker must not be empty")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("mqtt readings topic must not be empty")
	}
	if sink == nil {
		return nil, errors.New("mqtt ingestor requires a sink")
	}
	return &MQTTIngestor{
		cfg:     cfg,
		log:     log.With(slog.String("component", "mqtt_ingest")),
		metrics: metrics,
		sink:    sink,
	}, nil
}

// Start connects to the broker and subscribes to the readings topic.
func (i *MQTTIngestor) Start() error {
	if !i.cfg.Enabled {
		return nil
	}
	opts := mqtt.NewClientOptions().
		AddBroker(i.cfg.Broker).
		SetClientID(i.cfg.ClientID).
		SetAutoReconnect(true)
	i.client = mqtt.NewClient(opts)
	if token := i.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	if token := i.client.Subscribe(i.cfg.Topic, 0, i.handle); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt subscribe %q: %w", i.cfg.Topic, token.Error())
	}
	i.log.Info("mqtt_ingest_started", slog.String("topic", i.cfg.Topic))
	return nil
}

// Stop unsubscribes and disconnects.
func (i *MQTTIngestor) Stop() {
	if !i.cfg.Enabled || i.client == nil {
		return
	}
	if token := i.client.Unsubscribe(i.cfg.Topic); token.Wait() && token.Error() != nil {
		i.log.Warn("mqtt_unsubscribe_err", slog.Any("err", token.Error()))
	}
	i.client.Disconnect(250)
	i.log.Info("mqtt_ingest_stopped")
}

func (i *MQTTIngestor) handle(_ mqtt.Client, msg mqtt.Message) {
	batch, err := decodeReadings(msg.Payload())
	if err != nil {
		i.log.Warn("mqtt_decode_err", slog.Any("err", err))
		return
	}
	if len(batch) == 0 {
		return
	}
	if err := i.sink.AppendBatch(batch); err != nil {
		i.log.Error("mqtt_persist_err", slog.Any("err", err))
		return
	}
	i.metrics.ReadingsIngested(len(batch))
	i.log.Info("mqtt_readings_ingested", slog.Int("count", len(batch)))
}

// decodeReadings accepts either a JSON array of readings or a single
// reading object, the two shapes devices publish.
func decodeReadings(payload []byte) ([]models.Reading, error) {
	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "[") {
		var batch []models.Reading
		if err := json.Unmarshal(payload, &batch); err != nil {
			return nil, err
		}
		return batch, nil
	}
	var one models.Reading
	if err := json.Unmarshal(payload, &one); err != nil {
		return nil, err
	}
	return []models.Reading{one}, nil
}
