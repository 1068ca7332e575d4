package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ListenAddress != ":8087" {
		t.Fatalf("default listen address mismatch: %q", cfg.ListenAddress)
	}
	if cfg.SigmaMultiplier != 2.0 {
		t.Fatalf("default sigma multiplier mismatch: %v", cfg.SigmaMultiplier)
	}
	if cfg.KafkaEnabled {
		t.Fatal("kafka must default to disabled")
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "localhost:9092" {
		t.Fatalf("default brokers mismatch: %v", cfg.KafkaBrokers)
	}
	if cfg.MQTTEnabled {
		t.Fatal("mqtt must default to disabled")
	}
	if cfg.MQTTBroker != "tcp://localhost:1883" {
		t.Fatalf("default mqtt broker mismatch: %q", cfg.MQTTBroker)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SENTINEL_LISTEN_ADDR", ":9999")
	t.Setenv("SENTINEL_SIGMA_MULTIPLIER", "3.5")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	cfg := Load()
	if cfg.ListenAddress != ":9999" {
		t.Fatalf("listen address override mismatch: %q", cfg.ListenAddress)
	}
	if cfg.SigmaMultiplier != 3.5 {
		t.Fatalf("sigma override mismatch: %v", cfg.SigmaMultiplier)
	}
	if !cfg.KafkaEnabled {
		t.Fatal("kafka override mismatch")
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("broker list mismatch: %v", cfg.KafkaBrokers)
	}
}

func TestLoadBadValuesFallBack(t *testing.T) {
	t.Setenv("SENTINEL_SIGMA_MULTIPLIER", "not-a-number")
	t.Setenv("KAFKA_ENABLED", "sometimes")
	cfg := Load()
	if cfg.SigmaMultiplier != 2.0 {
		t.Fatalf("bad float must fall back to default: %v", cfg.SigmaMultiplier)
	}
	if cfg.KafkaEnabled {
		t.Fatal("bad bool must fall back to default")
	}
}
