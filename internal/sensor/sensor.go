// Package sensor simulates the energy meters of an industrial treatment
// unit. It is a collaborator of the detection engine: it only produces
// readings, it never classifies them.
package sensor

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/khellaf-bel/energy-sentinel/internal/models"
)

// Range is the realistic operating interval of one equipment class, in kW.
type Range struct {
	Min float64
	Max float64
}

// OperatingRanges holds the realistic consumption interval per equipment
// class. The fixed detection thresholds sit just above each Max.
var OperatingRanges = map[string]Range{
	models.ClassPump:        {Min: 0.5, Max: 3.0},
	models.ClassCompressor:  {Min: 2.0, Max: 7.5},
	models.ClassLighting:    {Min: 0.2, Max: 1.5},
	models.ClassVentilation: {Min: 0.3, Max: 2.0},
}

// Sensor is one simulated energy meter attached to a piece of equipment.
type Sensor struct {
	ID            string
	EquipmentType string
	Location      string
	Active        bool

	rng *rand.Rand
	now func() time.Time
}

// New builds a sensor for a known equipment class. Unknown classes are
// rejected so a misconfigured fleet fails at startup instead of producing
// unclassifiable data.
func New(id, equipmentType, location string) (*Sensor, error) {
	if _, ok := OperatingRanges[equipmentType]; !ok {
		return nil, fmt.Errorf("sensor %q: invalid equipment type %q", id, equipmentType)
	}
	return &Sensor{
		ID:            id,
		EquipmentType: equipmentType,
		Location:      location,
		Active:        true,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		now:           time.Now,
	}, nil
}

// Read produces one reading inside the equipment's realistic range, or
// exactly zero when the sensor is inactive.
func (s *Sensor) Read() models.Reading {
	var value float64
	if s.Active {
		r := OperatingRanges[s.EquipmentType]
		value = r.Min + s.rng.Float64()*(r.Max-r.Min)
	}
	return models.Reading{
		SensorID:      s.ID,
		EquipmentType: s.EquipmentType,
		Value:         math.Round(value*100) / 100,
		Unit:          "kW",
		Timestamp:     s.now().UTC().Format(time.RFC3339),
	}
}
