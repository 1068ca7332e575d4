package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/khellaf-bel/energy-sentinel/internal/detector"
	"github.com/khellaf-bel/energy-sentinel/internal/models"
	"github.com/khellaf-bel/energy-sentinel/internal/store"
)

type fakeSink struct {
	batches [][]detector.ClassifiedReading
}

func (f *fakeSink) PublishBatch(_ context.Context, classified []detector.ClassifiedReading) (int, error) {
	f.batches = append(f.batches, classified)
	n := 0
	for _, c := range classified {
		if c.Result.IsAnomaly {
			n++
		}
	}
	return n, nil
}

func newTestRouter(t *testing.T) (http.Handler, *store.FileStore, *fakeSink) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(filepath.Join(t.TempDir(), "readings.jsonl"), log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	sink := &fakeSink{}
	h := NewHandlers(log, st, detector.NewEngine(detector.DefaultConfig()), sink, nil)
	return NewRouter(h), st, sink
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestDetectEndpoint(t *testing.T) {
	router, _, sink := newTestRouter(t)
	batch := []models.Reading{
		{SensorID: "PUMP_01", EquipmentType: "pump", Value: 2.0},
		{SensorID: "PUMP_01", EquipmentType: "pump", Value: 2.1},
		{SensorID: "PUMP_01", EquipmentType: "pump", Value: 2.0},
		{SensorID: "PUMP_01", EquipmentType: "pump", Value: 3.5},
	}
	rec := doJSON(t, router, http.MethodPost, "/v1/detect", batch)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Readings []struct {
			Value       float64 `json:"value"`
			IsAnomaly   bool    `json:"is_anomaly"`
			AnomalyKind string  `json:"anomaly_kind"`
		} `json:"readings"`
		Report detector.Report `json:"report"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Readings) != 4 {
		t.Fatalf("expected 4 classified readings, got %d", len(resp.Readings))
	}
	if resp.Readings[3].Value != 3.5 || !resp.Readings[3].IsAnomaly || resp.Readings[3].AnomalyKind != "threshold_exceeded" {
		t.Fatalf("expected the 3.5 reading flagged as threshold_exceeded: %+v", resp.Readings[3])
	}
	for _, cr := range resp.Readings[:3] {
		if cr.IsAnomaly {
			t.Fatalf("normal reading flagged: %+v", cr)
		}
	}
	if resp.Report.TotalCount != 4 || resp.Report.AnomalyCount != 1 || resp.Report.Percentage != 25.0 {
		t.Fatalf("report mismatch: %+v", resp.Report)
	}
	if len(sink.batches) != 1 {
		t.Fatalf("anomalous batch must reach the sink, got %d batches", len(sink.batches))
	}
}

func TestDetectRejectsBadBody(t *testing.T) {
	router, _, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/detect", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIngestAndQueryReadings(t *testing.T) {
	router, st, _ := newTestRouter(t)
	batch := []models.Reading{
		{SensorID: "PUMP_01", EquipmentType: "pump", Value: 2.0},
		{SensorID: "COMP_01", EquipmentType: "compressor", Value: 5.5},
		{SensorID: "PUMP_01", EquipmentType: "pump", Value: 2.2},
	}
	rec := doJSON(t, router, http.MethodPost, "/v1/readings", batch)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if st.Count() != 3 {
		t.Fatalf("store must hold 3 readings, has %d", st.Count())
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/readings?sensorId=PUMP_01", nil)
	var bySensor []models.Reading
	if err := json.Unmarshal(rec.Body.Bytes(), &bySensor); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(bySensor) != 2 {
		t.Fatalf("expected 2 pump readings, got %d", len(bySensor))
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/readings?equipmentType=compressor", nil)
	var byType []models.Reading
	if err := json.Unmarshal(rec.Body.Bytes(), &byType); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(byType) != 1 || byType[0].SensorID != "COMP_01" {
		t.Fatalf("type filter mismatch: %+v", byType)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/readings?last=1", nil)
	var last []models.Reading
	if err := json.Unmarshal(rec.Body.Bytes(), &last); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(last) != 1 || last[0].Value != 2.2 {
		t.Fatalf("last filter mismatch: %+v", last)
	}
}

func TestReadingsRejectsBadLast(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/v1/readings?last=minus-two", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestReadingStatsEndpoint(t *testing.T) {
	router, st, _ := newTestRouter(t)
	if err := st.AppendBatch([]models.Reading{
		{SensorID: "PUMP_01", EquipmentType: "pump", Value: 2.0},
		{SensorID: "PUMP_01", EquipmentType: "pump", Value: 4.0},
	}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	rec := doJSON(t, router, http.MethodGet, "/v1/readings/stats?sensorId=PUMP_01", nil)
	var sum store.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.Count != 2 || sum.Mean != 3.0 {
		t.Fatalf("summary mismatch: %+v", sum)
	}
}

func TestReportEndpoint(t *testing.T) {
	router, st, _ := newTestRouter(t)
	if err := st.AppendBatch([]models.Reading{
		{SensorID: "PUMP_01", EquipmentType: "pump", Value: 2.0},
		{SensorID: "PUMP_01", EquipmentType: "pump", Value: 9.9},
	}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	rec := doJSON(t, router, http.MethodGet, "/v1/report", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var report detector.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.TotalCount != 2 || report.AnomalyCount != 1 {
		t.Fatalf("report mismatch: %+v", report)
	}
	if report.BySensor["PUMP_01"] != 1 {
		t.Fatalf("by_sensor mismatch: %+v", report.BySensor)
	}
}

func TestClearReadings(t *testing.T) {
	router, st, _ := newTestRouter(t)
	if err := st.Append(models.Reading{SensorID: "PUMP_01", EquipmentType: "pump", Value: 2.0}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	rec := doJSON(t, router, http.MethodDelete, "/v1/readings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if st.Count() != 0 {
		t.Fatalf("store must be empty after delete, has %d", st.Count())
	}
}

func TestDeleteBySensor(t *testing.T) {
	router, st, _ := newTestRouter(t)
	if err := st.AppendBatch([]models.Reading{
		{SensorID: "PUMP_01", EquipmentType: "pump", Value: 2.0},
		{SensorID: "PUMP_01", EquipmentType: "pump", Value: 2.1},
		{SensorID: "VENT_01", EquipmentType: "ventilation", Value: 1.0},
	}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	rec := doJSON(t, router, http.MethodDelete, "/v1/readings?sensorId=PUMP_01", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["removed"] != 2.0 || body["total"] != 1.0 {
		t.Fatalf("delete response mismatch: %v", body)
	}
	if st.Count() != 1 {
		t.Fatalf("only the named sensor's readings must go, have %d", st.Count())
	}
}
