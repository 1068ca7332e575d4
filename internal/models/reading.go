// Package models holds the reading record exchanged between the sensor
// fleet, the store and the detection engine.
package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// Closed set of equipment classes. Readings carrying anything else (or
// nothing) fall into the Unknown bucket.
const (
	ClassPump        = "pump"
	ClassCompressor  = "compressor"
	ClassLighting    = "lighting"
	ClassVentilation = "ventilation"

	// Unknown is the sentinel bucket for readings without an equipment type.
	Unknown = "unknown"
)

// KnownClasses lists the configured equipment classes in a stable order.
var KnownClasses = []string{ClassPump, ClassCompressor, ClassLighting, ClassVentilation}

// IsKnownClass reports whether t is one of the configured equipment classes.
func IsKnownClass(t string) bool {
	for _, c := range KnownClasses {
		if c == t {
			return true
		}
	}
	return false
}

// NormalizeType maps a blank equipment type to the Unknown bucket.
func NormalizeType(t string) string {
	if t == "" {
		return Unknown
	}
	return t
}

// Reading is one energy-consumption measurement. Value is in kW. Unit and
// Timestamp are optional; Timestamp stays a string so records round-trip
// byte-for-byte regardless of the producer's time format. Extra carries any
// fields this service does not interpret.
type Reading struct {
	SensorID      string
	EquipmentType string
	Value         float64
	Unit          string
	Timestamp     string
	Extra         map[string]json.RawMessage
}

// readingWire mirrors the JSON shape of a reading for the known fields.
type readingWire struct {
	SensorID      string   `json:"sensor_id,omitempty"`
	EquipmentType string   `json:"equipment_type,omitempty"`
	Value         *float64 `json:"value"`
	Unit          string   `json:"unit,omitempty"`
	Timestamp     string   `json:"timestamp,omitempty"`
}

var knownReadingKeys = map[string]bool{
	"sensor_id":      true,
	"equipment_type": true,
	"value":          true,
	"unit":           true,
	"timestamp":      true,
}

// UnmarshalJSON decodes the known fields and stashes everything else in
// Extra so unrecognized producer fields survive a round trip.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var wire readingWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Value == nil {
		return fmt.Errorf("reading %q: missing value", wire.SensorID)
	}
	if math.IsNaN(*wire.Value) || math.IsInf(*wire.Value, 0) {
		return fmt.Errorf("reading %q: value is not finite", wire.SensorID)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var extra map[string]json.RawMessage
	for k, v := range raw {
		if knownReadingKeys[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	*r = Reading{
		SensorID:      wire.SensorID,
		EquipmentType: wire.EquipmentType,
		Value:         *wire.Value,
		Unit:          wire.Unit,
		Timestamp:     wire.Timestamp,
		Extra:         extra,
	}
	return nil
}

// MarshalJSON emits the known fields plus any pass-through extras.
func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.wireMap())
}

// wireMap builds the JSON object for a reading, shared with the classified
// record marshaller so both emit identical base fields.
func (r Reading) wireMap() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(r.Extra)+5)
	for k, v := range r.Extra {
		out[k] = v
	}
	put := func(key string, v any) {
		b, err := json.Marshal(v)
		if err != nil {
			return
		}
		out[key] = b
	}
	if r.SensorID != "" {
		put("sensor_id", r.SensorID)
	}
	if r.EquipmentType != "" {
		put("equipment_type", r.EquipmentType)
	}
	put("value", r.Value)
	if r.Unit != "" {
		put("unit", r.Unit)
	}
	if r.Timestamp != "" {
		put("timestamp", r.Timestamp)
	}
	return out
}

// WireMap exposes the JSON object form for composing augmented records.
func (r Reading) WireMap() map[string]json.RawMessage {
	return r.wireMap()
}
