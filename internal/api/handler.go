package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/spacesedan/reviewscope/internal/models"
	"github.com/spacesedan/reviewscope/internal/reporting"
)

const (
	HEADER_ANALYSIS_ID = models.HEADER_ANALYSIS_ID

	recordTimeout = 5 * time.Second
)

// Analyzer scores a review batch.
type Analyzer interface {
	Analyze(ctx context.Context, reviews []models.Review, withDetails bool) (*models.Analysis, error)
	Info() models.ModelInfo
}

type Options struct {
	MaxBodyBytes int64 // 0 disables the cap
	MaxBatchSize int   // 0 disables the cap
	Recorder     reporting.Recorder
}

// Handler implements all HTTP endpoints.
type Handler struct {
	analyzer Analyzer
	recorder reporting.Recorder // nil when recording is disabled
	maxBody  int64
	maxBatch int
}

func New(analyzer Analyzer, opts Options) *Handler {
	return &Handler{
		analyzer: analyzer,
		recorder: opts.Recorder,
		maxBody:  opts.MaxBodyBytes,
		maxBatch: opts.MaxBatchSize,
	}
}

// Register mounts routes on the given router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/model", h.modelInfo).Methods(http.MethodGet)
	r.HandleFunc("/analyze", h.analyze).Methods(http.MethodPost)
}

// Router returns the full HTTP handler: routes, JSON fallbacks and CORS.
func (h *Handler) Router(allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	h.Register(r)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return WithCORS(r, allowedOrigins)
}

// ---------- endpoints ----------

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) modelInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.analyzer.Info())
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	defer r.Body.Close()

	reviews, err := DecodeRequest(r.Body)
	if err != nil {
		status, msg := errorStatus(err)
		slog.Info("[API] Rejected analyze request",
			slog.Int("status", status),
			slog.String("error", err.Error()))
		writeErr(w, status, msg)
		return
	}

	if h.maxBatch > 0 && len(reviews) > h.maxBatch {
		slog.Info("[API] Rejected oversized batch",
			slog.Int("reviews", len(reviews)),
			slog.Int("max", h.maxBatch))
		writeErr(w, http.StatusRequestEntityTooLarge, MSG_BATCH_TOO_LARGE)
		return
	}

	withDetails, _ := strconv.ParseBool(r.URL.Query().Get("details"))

	analysis, err := h.analyzer.Analyze(r.Context(), reviews, withDetails)
	if err != nil {
		slog.Error("[API] Analysis failed",
			slog.Int("reviews", len(reviews)),
			slog.String("error", err.Error()))
		writeErr(w, http.StatusInternalServerError, MSG_ANALYSIS_FAILED)
		return
	}

	id := uuid.NewString()
	if h.recorder != nil {
		h.record(r.Context(), id, analysis)
	}

	slog.Info("[API] Analyzed reviews",
		slog.String("analysis_id", id),
		slog.Int("total", analysis.TotalReviews),
		slog.Int("fake", analysis.FakeReviews),
		slog.String("status", analysis.ProductStatus),
		slog.Duration("elapsed", time.Since(start)))

	w.Header().Set(HEADER_ANALYSIS_ID, id)
	writeJSON(w, http.StatusOK, analysis)
}

// record hands the analysis to the recorders. Failures are logged only; the
// client response does not depend on them.
func (h *Handler) record(parent context.Context, id string, analysis *models.Analysis) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), recordTimeout)
	defer cancel()

	rec := reporting.NewRecord(id, reporting.SOURCE_HTTP, h.analyzer.Info().ModelKind, analysis)
	if err := h.recorder.Record(ctx, rec); err != nil {
		slog.Warn("[API] Failed to record analysis",
			slog.String("analysis_id", id),
			slog.String("error", err.Error()))
	}
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
