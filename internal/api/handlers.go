package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/khellaf-bel/energy-sentinel/internal/detector"
	"github.com/khellaf-bel/energy-sentinel/internal/models"
	"github.com/khellaf-bel/energy-sentinel/internal/observability"
	"github.com/khellaf-bel/energy-sentinel/internal/store"
)

// AnomalySink receives classified batches after detection. The Kafka
// publisher implements it; tests plug in fakes.
type AnomalySink interface {
	PublishBatch(ctx context.Context, classified []detector.ClassifiedReading) (int, error)
}

// Handlers binds the detection engine and its collaborators to HTTP.
type Handlers struct {
	Log     *slog.Logger
	Store   *store.FileStore
	Engine  *detector.Engine
	Sink    AnomalySink
	Metrics *observability.Metrics
	start   time.Time
}

func NewHandlers(log *slog.Logger, st *store.FileStore, eng *detector.Engine, sink AnomalySink, m *observability.Metrics) *Handlers {
	return &Handlers{Log: log, Store: st, Engine: eng, Sink: sink, Metrics: m, start: time.Now()}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Error("response_encode_err", slog.Any("err", err))
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]any{"error": msg})
}

// GET /health
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"uptime_s": int(time.Since(h.start).Seconds()),
		"readings": h.Store.Count(),
	})
}

// POST /v1/detect classifies the batch in the request body without touching
// the store.
func (h *Handlers) Detect(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}
	classified, report := h.runDetection(r.Context(), batch)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"readings": classified,
		"report":   report,
	})
}

// GET /v1/report runs detection over the whole store and returns the
// summary only.
func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) {
	_, report := h.runDetection(r.Context(), h.Store.All())
	h.writeJSON(w, http.StatusOK, report)
}

// POST /v1/readings appends a batch to the store.
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}
	if err := h.Store.AppendBatch(batch); err != nil {
		h.Log.Error("store_append_err", slog.Any("err", err))
		h.writeError(w, http.StatusInternalServerError, "failed to persist readings")
		return
	}
	h.Metrics.ReadingsIngested(len(batch))
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"stored": len(batch),
		"total":  h.Store.Count(),
	})
}

// GET /v1/readings?sensorId=&equipmentType=&last=
func (h *Handlers) Readings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var out []models.Reading
	switch {
	case strings.TrimSpace(q.Get("sensorId")) != "":
		out = h.Store.BySensor(q.Get("sensorId"))
	case strings.TrimSpace(q.Get("equipmentType")) != "":
		out = h.Store.ByType(q.Get("equipmentType"))
	case strings.TrimSpace(q.Get("last")) != "":
		n, err := strconv.Atoi(q.Get("last"))
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "bad 'last' (positive integer)")
			return
		}
		out = h.Store.Last(n)
	default:
		out = h.Store.All()
	}
	h.writeJSON(w, http.StatusOK, out)
}

// GET /v1/readings/stats?sensorId=
func (h *Handlers) ReadingStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Store.Stats(r.URL.Query().Get("sensorId")))
}

// DELETE /v1/readings?sensorId= removes one sensor's readings, or clears
// the whole store when no sensor is given.
func (h *Handlers) ClearReadings(w http.ResponseWriter, r *http.Request) {
	if sensorID := strings.TrimSpace(r.URL.Query().Get("sensorId")); sensorID != "" {
		removed, err := h.Store.DeleteBySensor(sensorID)
		if err != nil {
			h.Log.Error("store_delete_err", slog.Any("err", err))
			h.writeError(w, http.StatusInternalServerError, "failed to delete readings")
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]any{
			"removed": removed,
			"total":   h.Store.Count(),
		})
		return
	}
	before := h.Store.Count()
	if err := h.Store.Clear(); err != nil {
		h.Log.Error("store_clear_err", slog.Any("err", err))
		h.writeError(w, http.StatusInternalServerError, "failed to clear readings")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"removed": before, "total": 0})
}

func (h *Handlers) decodeBatch(w http.ResponseWriter, r *http.Request) ([]models.Reading, bool) {
	var batch []models.Reading
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad request body: "+err.Error())
		return nil, false
	}
	return batch, true
}

// runDetection is the single entry point for engine passes: it classifies,
// records metrics and forwards anomalies to the sink.
func (h *Handlers) runDetection(ctx context.Context, batch []models.Reading) ([]detector.ClassifiedReading, detector.Report) {
	passID := uuid.NewString()
	begin := time.Now()
	classified := h.Engine.Detect(batch)
	report := detector.BuildReport(classified)
	h.Metrics.DetectionPass(time.Since(begin), report.ByKind)
	h.Log.Info("detection_pass",
		slog.String("pass_id", passID),
		slog.Int("total", report.TotalCount),
		slog.Int("anomalies", report.AnomalyCount))

	if h.Sink != nil && report.AnomalyCount > 0 {
		if n, err := h.Sink.PublishBatch(ctx, classified); err != nil {
			h.Log.Error("anomaly_sink_err",
				slog.String("pass_id", passID),
				slog.Any("err", err),
				slog.Int("enqueued", n))
		}
	}
	return classified, report
}
