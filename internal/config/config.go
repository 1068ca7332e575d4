// Package config reads runtime settings from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config carries runtime settings (mostly via env).
type Config struct {
	ListenAddress   string
	DataFile        string
	LogLevel        string
	SigmaMultiplier float64
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaTopic      string
	MQTTEnabled     bool
	MQTTBroker      string
	MQTTTopic       string
	MQTTClientID    string
}

// Load reads env vars and applies defaults.
func Load() Config {
	return Config{
		ListenAddress:   envStr("SENTINEL_LISTEN_ADDR", ":8087"),
		DataFile:        envStr("SENTINEL_DATA_FILE", "./data/readings.jsonl"),
		LogLevel:        envStr("LOG_LEVEL", "INFO"),
		SigmaMultiplier: envFloat("SENTINEL_SIGMA_MULTIPLIER", 2.0),
		KafkaEnabled:    envBool("KAFKA_ENABLED", false),
		KafkaBrokers:    envList("KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:      envStr("KAFKA_ANOMALY_TOPIC", "sentinel.anomalies"),
		MQTTEnabled:     envBool("MQTT_ENABLED", false),
		MQTTBroker:      envStr("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTTopic:       envStr("MQTT_READINGS_TOPIC", "sentinel/readings"),
		MQTTClientID:    envStr("MQTT_CLIENT_ID", "energy-sentinel"),
	}
}

// NewLogger builds the process-wide JSON logger at the configured level.
func NewLogger(cfg Config) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(strings.TrimSpace(cfg.LogLevel)) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func envStr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envList(k, def string) []string {
	raw := envStr(k, def)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
