package models

import (
	"encoding/json"
	"testing"
)

func TestReadingRoundTripKeepsExtras(t *testing.T) {
	raw := `{"sensor_id":"PUMP_01","equipment_type":"pump","value":2.5,"unit":"kW","timestamp":"2026-08-23T10:00:00Z","location":"intake basin","firmware":3}`
	var r Reading
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.SensorID != "PUMP_01" || r.EquipmentType != "pump" || r.Value != 2.5 {
		t.Fatalf("known fields mismatch: %+v", r)
	}
	if len(r.Extra) != 2 {
		t.Fatalf("expected 2 pass-through fields, got %v", r.Extra)
	}

	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if got["location"] != "intake basin" || got["firmware"] != 3.0 {
		t.Fatalf("extras lost on round trip: %v", got)
	}
	if got["timestamp"] != "2026-08-23T10:00:00Z" {
		t.Fatalf("timestamp altered: %v", got["timestamp"])
	}
}

func TestReadingRequiresValue(t *testing.T) {
	var r Reading
	if err := json.Unmarshal([]byte(`{"sensor_id":"X"}`), &r); err == nil {
		t.Fatal("expected error for missing value")
	}
}

func TestReadingOptionalFieldsOmitted(t *testing.T) {
	out, err := json.Marshal(Reading{SensorID: "A", Value: 1.0})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := got["unit"]; ok {
		t.Fatalf("empty unit must be omitted: %v", got)
	}
	if _, ok := got["equipment_type"]; ok {
		t.Fatalf("empty equipment type must be omitted: %v", got)
	}
}

func TestNormalizeType(t *testing.T) {
	if NormalizeType("") != Unknown {
		t.Fatal("blank type must normalize to unknown")
	}
	if NormalizeType("pump") != "pump" {
		t.Fatal("known type must pass through")
	}
	if !IsKnownClass(ClassVentilation) || IsKnownClass("crusher") {
		t.Fatal("class membership mismatch")
	}
}
