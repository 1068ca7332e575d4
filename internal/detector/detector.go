// Package detector classifies batches of energy readings as normal or
// anomalous using two independent criteria per equipment class: a fixed
// safety threshold and a statistical band computed from the batch itself.
package detector

import (
	"encoding/json"

	"github.com/khellaf-bel/energy-sentinel/internal/models"
)

// DefaultSigmaMultiplier is the band half-width in standard deviations.
const DefaultSigmaMultiplier = 2.0

// Config carries the fixed thresholds and the band multiplier. It is passed
// in explicitly so tests and deployments can substitute their own table
// without touching shared state.
type Config struct {
	// Thresholds maps an equipment class to its hard ceiling in kW.
	// Classes absent from the map skip the fixed-threshold criterion.
	Thresholds map[string]float64
	// SigmaMultiplier scales the statistical band: mean ± k·stdev.
	SigmaMultiplier float64
}

// DefaultConfig returns the fixed per-class ceilings, each set just above
// the equipment's realistic operating range.
func DefaultConfig() Config {
	return Config{
		Thresholds: map[string]float64{
			models.ClassPump:        3.2,
			models.ClassCompressor:  8.0,
			models.ClassLighting:    1.7,
			models.ClassVentilation: 2.2,
		},
		SigmaMultiplier: DefaultSigmaMultiplier,
	}
}

// ClassifiedReading is a reading augmented with its classification. The
// embedded reading is never mutated; the engine builds new records.
type ClassifiedReading struct {
	Reading models.Reading
	Result  Result
}

// MarshalJSON emits the original reading fields (extras included) plus
// is_anomaly and anomaly_kind.
func (c ClassifiedReading) MarshalJSON() ([]byte, error) {
	out := c.Reading.WireMap()
	flag, err := json.Marshal(c.Result.IsAnomaly)
	if err != nil {
		return nil, err
	}
	kind, err := json.Marshal(c.Result.Kind())
	if err != nil {
		return nil, err
	}
	out["is_anomaly"] = flag
	out["anomaly_kind"] = kind
	return json.Marshal(out)
}

// Engine runs the full batch pipeline: group by equipment type, compute
// per-group statistics, classify every reading against its own group.
type Engine struct {
	cfg Config
}

// NewEngine builds an engine around the provided configuration. A zero or
// negative multiplier falls back to the default.
func NewEngine(cfg Config) *Engine {
	if cfg.SigmaMultiplier <= 0 {
		cfg.SigmaMultiplier = DefaultSigmaMultiplier
	}
	return &Engine{cfg: cfg}
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// GroupByType partitions readings by equipment type, preserving each
// reading's relative order within its group. Blank types land in the
// unknown bucket. No reading is dropped or duplicated.
func GroupByType(readings []models.Reading) map[string][]models.Reading {
	groups := make(map[string][]models.Reading)
	for _, r := range readings {
		t := models.NormalizeType(r.EquipmentType)
		groups[t] = append(groups[t], r)
	}
	return groups
}

// Detect classifies the batch, preserving input order and every original
// field. An empty batch returns an empty slice. Statistics are computed
// once per group; a reading's classification never depends on readings
// outside its own equipment-type group.
func (e *Engine) Detect(readings []models.Reading) []ClassifiedReading {
	if len(readings) == 0 {
		return []ClassifiedReading{}
	}

	groups := GroupByType(readings)
	statsByType := make(map[string]GroupStats, len(groups))
	for t, group := range groups {
		values := make([]float64, len(group))
		for i, r := range group {
			values[i] = r.Value
		}
		// Groups are non-empty by construction, so this cannot fail.
		st, err := ComputeStats(t, values)
		if err != nil {
			continue
		}
		statsByType[t] = st
	}

	out := make([]ClassifiedReading, 0, len(readings))
	for _, r := range readings {
		t := models.NormalizeType(r.EquipmentType)
		var stats *GroupStats
		if st, ok := statsByType[t]; ok {
			stats = &st
		}
		res := Classify(r.Value, t, stats, e.cfg)
		out = append(out, ClassifiedReading{Reading: r, Result: res})
	}
	return out
}
