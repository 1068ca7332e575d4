package sensor

import (
	"fmt"

	"github.com/khellaf-bel/energy-sentinel/internal/models"
)

// Fleet manages the sensors of one site and reads them as a batch.
// Read order follows registration order so simulated batches are stable.
type Fleet struct {
	sensors map[string]*Sensor
	order   []string
}

// NewFleet returns an empty fleet.
func NewFleet() *Fleet {
	return &Fleet{sensors: make(map[string]*Sensor)}
}

// Add registers a sensor. Duplicate IDs are rejected.
func (f *Fleet) Add(s *Sensor) error {
	if s == nil {
		return fmt.Errorf("sensor must not be nil")
	}
	if _, exists := f.sensors[s.ID]; exists {
		return fmt.Errorf("sensor %q already registered", s.ID)
	}
	f.sensors[s.ID] = s
	f.order = append(f.order, s.ID)
	return nil
}

// Remove unregisters a sensor by ID.
func (f *Fleet) Remove(id string) error {
	if _, exists := f.sensors[id]; !exists {
		return fmt.Errorf("sensor %q not found", id)
	}
	delete(f.sensors, id)
	for i, known := range f.order {
		if known == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a registered sensor.
func (f *Fleet) Get(id string) (*Sensor, error) {
	s, exists := f.sensors[id]
	if !exists {
		return nil, fmt.Errorf("sensor %q not found", id)
	}
	return s, nil
}

// Len returns the number of registered sensors.
func (f *Fleet) Len() int { return len(f.sensors) }

// ReadAll reads every sensor once, in registration order.
func (f *Fleet) ReadAll() []models.Reading {
	out := make([]models.Reading, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.sensors[id].Read())
	}
	return out
}

// ReadOne reads a single sensor by ID.
func (f *Fleet) ReadOne(id string) (models.Reading, error) {
	s, err := f.Get(id)
	if err != nil {
		return models.Reading{}, err
	}
	return s.Read(), nil
}
