// Package reporting records finished analyses to the configured audit sinks.
// Records are write-only: nothing here is read back to serve a request.
package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/reviewscope/internal/models"
)

const (
	SOURCE_HTTP = "http"
	SOURCE_CLI  = "cli"
)

// Recorder persists or publishes one analysis record.
type Recorder interface {
	Name() string
	Record(ctx context.Context, rec models.AnalysisRecord) error
	Close() error
}

func NewRecord(id, source, modelKind string, analysis *models.Analysis) models.AnalysisRecord {
	return models.AnalysisRecord{
		AnalysisID:  id,
		CreatedAt:   time.Now().UTC(),
		Source:      source,
		ModelKind:   modelKind,
		Summary:     analysis.Summary,
		Predictions: analysis.Predictions,
	}
}

// EncodeRecord is the JSON payload the streaming sinks publish.
func EncodeRecord(rec models.AnalysisRecord) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis record: %w", err)
	}
	return string(data), nil
}

// Multi fans a record out to every recorder. A failing recorder does not
// stop the others.
type Multi struct {
	recorders []Recorder
}

func NewMulti(recorders ...Recorder) *Multi {
	return &Multi{recorders: recorders}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Len() int { return len(m.recorders) }

func (m *Multi) Add(r Recorder) {
	m.recorders = append(m.recorders, r)
}

func (m *Multi) Record(ctx context.Context, rec models.AnalysisRecord) error {
	var errs []error
	for _, r := range m.recorders {
		start := time.Now()
		if err := r.Record(ctx, rec); err != nil {
			slog.Warn("[Reporting] Recorder failed",
				slog.String("recorder", r.Name()),
				slog.String("analysis_id", rec.AnalysisID),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
			continue
		}
		slog.Debug("[Reporting] Recorded analysis",
			slog.String("recorder", r.Name()),
			slog.String("analysis_id", rec.AnalysisID),
			slog.Duration("elapsed", time.Since(start)))
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, r := range m.recorders {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
		}
	}
	return errors.Join(errs...)
}
