// Package store persists reading batches in an append-only JSON-lines file.
// It is a thin collaborator of the detection engine: records go in and come
// back out as plain readings, with no classification state of their own.
package store

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/khellaf-bel/energy-sentinel/internal/models"
)

// FileStore keeps every reading in memory and mirrors appends to a
// JSON-lines file, one reading per line. Safe for concurrent use.
type FileStore struct {
	mu       sync.RWMutex
	path     string
	log      *slog.Logger
	file     *os.File
	writer   *bufio.Writer
	readings []models.Reading
}

// Open loads (or creates) the store file and replays its contents.
func Open(path string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	fs := &FileStore{path: path, log: log, file: f, writer: bufio.NewWriter(f)}
	if err := fs.load(); err != nil {
		f.Close()
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) load() error {
	fs.log.Info("store_loading", slog.String("path", fs.path))
	if _, err := fs.file.Seek(0, 0); err != nil {
		return err
	}
	fs.readings = nil
	scanner := bufio.NewScanner(fs.file)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var r models.Reading
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		fs.readings = append(fs.readings, r)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	fs.log.Info("store_loaded", slog.Int("readings", len(fs.readings)))
	return nil
}

// Close flushes pending writes and closes the backing file.
func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.writer.Flush(); err != nil {
		return err
	}
	return fs.file.Close()
}

// Append persists one reading.
func (fs *FileStore) Append(r models.Reading) error {
	return fs.AppendBatch([]models.Reading{r})
}

// AppendBatch persists a batch of readings in order, flushing once.
func (fs *FileStore) AppendBatch(batch []models.Reading) error {
	if len(batch) == 0 {
		return nil
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, r := range batch {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode reading %q: %w", r.SensorID, err)
		}
		if _, err := fs.writer.Write(payload); err != nil {
			return err
		}
		if err := fs.writer.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := fs.writer.Flush(); err != nil {
		return err
	}
	if err := fs.file.Sync(); err != nil {
		return err
	}
	fs.readings = append(fs.readings, batch...)
	fs.log.Info("store_appended", slog.Int("batch", len(batch)), slog.Int("total", len(fs.readings)))
	return nil
}

// All returns a copy of every stored reading in insertion order.
func (fs *FileStore) All() []models.Reading {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	out := make([]models.Reading, len(fs.readings))
	copy(out, fs.readings)
	return out
}

// BySensor returns the readings of one sensor in insertion order.
func (fs *FileStore) BySensor(sensorID string) []models.Reading {
	return fs.filter(func(r models.Reading) bool { return r.SensorID == sensorID })
}

// ByType returns the readings of one equipment type in insertion order.
// Blank stored types match the unknown sentinel.
func (fs *FileStore) ByType(equipmentType string) []models.Reading {
	return fs.filter(func(r models.Reading) bool {
		return models.NormalizeType(r.EquipmentType) == models.NormalizeType(equipmentType)
	})
}

// Last returns the n most recent readings (all of them when fewer exist).
func (fs *FileStore) Last(n int) []models.Reading {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if n <= 0 {
		return []models.Reading{}
	}
	start := len(fs.readings) - n
	if start < 0 {
		start = 0
	}
	out := make([]models.Reading, len(fs.readings)-start)
	copy(out, fs.readings[start:])
	return out
}

// Range returns readings whose timestamp falls within [from, to]. Both
// bounds are ISO-8601 strings; the comparison is lexicographic, which is
// correct for same-format timestamps. Readings without a timestamp never
// match.
func (fs *FileStore) Range(from, to string) []models.Reading {
	return fs.filter(func(r models.Reading) bool {
		return r.Timestamp != "" && from <= r.Timestamp && r.Timestamp <= to
	})
}

// Count returns the number of stored readings.
func (fs *FileStore) Count() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.readings)
}

// Clear removes every stored reading and truncates the file.
func (fs *FileStore) Clear() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.rewrite(nil)
}

// DeleteBySensor removes every reading of one sensor and returns how many
// were dropped.
func (fs *FileStore) DeleteBySensor(sensorID string) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	kept := make([]models.Reading, 0, len(fs.readings))
	for _, r := range fs.readings {
		if r.SensorID != sensorID {
			kept = append(kept, r)
		}
	}
	removed := len(fs.readings) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := fs.rewrite(kept); err != nil {
		return 0, err
	}
	fs.log.Info("store_deleted", slog.String("sensorId", sensorID), slog.Int("removed", removed))
	return removed, nil
}

// rewrite replaces the file contents with the given readings. Callers hold
// the write lock.
func (fs *FileStore) rewrite(readings []models.Reading) error {
	if err := fs.writer.Flush(); err != nil {
		return err
	}
	if err := fs.file.Truncate(0); err != nil {
		return err
	}
	if _, err := fs.file.Seek(0, 0); err != nil {
		return err
	}
	fs.writer = bufio.NewWriter(fs.file)
	for _, r := range readings {
		payload, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := fs.writer.Write(payload); err != nil {
			return err
		}
		if err := fs.writer.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := fs.writer.Flush(); err != nil {
		return err
	}
	if err := fs.file.Sync(); err != nil {
		return err
	}
	fs.readings = readings
	return nil
}

// Summary is the store-side descriptive view of the persisted values.
// Unlike the detection path it uses the population (n divisor) standard
// deviation.
type Summary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Stdev float64 `json:"stdev"`
}

// Stats summarizes the stored values, optionally restricted to one sensor.
// An empty selection returns a Count==0 summary; the strict empty-input
// contract belongs to the detector's statistics calculator, not here.
func (fs *FileStore) Stats(sensorID string) Summary {
	var values []float64
	var source []models.Reading
	if sensorID != "" {
		source = fs.BySensor(sensorID)
	} else {
		source = fs.All()
	}
	for _, r := range source {
		values = append(values, r.Value)
	}
	if len(values) == 0 {
		return Summary{}
	}
	minV, maxV := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	stdev := math.Sqrt(sq / float64(len(values)))
	return Summary{
		Count: len(values),
		Min:   minV,
		Max:   maxV,
		Mean:  math.Round(mean*100) / 100,
		Stdev: math.Round(stdev*100) / 100,
	}
}

// ExportCSV writes the stored readings to a CSV file with a fixed header.
func (fs *FileStore) ExportCSV(path string) error {
	readings := fs.All()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write([]string{"sensor_id", "equipment_type", "value", "unit", "timestamp"}); err != nil {
		return err
	}
	for _, r := range readings {
		record := []string{
			r.SensorID,
			r.EquipmentType,
			strconv.FormatFloat(r.Value, 'f', -1, 64),
			r.Unit,
			r.Timestamp,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (fs *FileStore) filter(keep func(models.Reading) bool) []models.Reading {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	out := make([]models.Reading, 0)
	for _, r := range fs.readings {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
