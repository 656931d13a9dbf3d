package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spacesedan/reviewscope/internal/models"
)

// SQLiteRecorder keeps analyses in a local SQLite file so the CLI can list
// them later.
type SQLiteRecorder struct {
	conn *sql.DB
}

func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between concurrent requests
	conn.SetMaxOpenConns(1)

	s := &SQLiteRecorder{conn: conn}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteRecorder) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		analysis_id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		source TEXT NOT NULL,
		model_kind TEXT NOT NULL,
		total_reviews INTEGER NOT NULL,
		fake_reviews INTEGER NOT NULL,
		fake_percentage REAL NOT NULL,
		product_status TEXT NOT NULL,
		predictions TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
	`
	_, err := s.conn.Exec(schema)
	return err
}

func (s *SQLiteRecorder) Name() string { return "sqlite" }

func (s *SQLiteRecorder) Close() error {
	return s.conn.Close()
}

func (s *SQLiteRecorder) Record(ctx context.Context, rec models.AnalysisRecord) error {
	predictions := rec.Predictions
	if predictions == nil {
		predictions = []int{}
	}
	encoded, err := json.Marshal(predictions)
	if err != nil {
		return fmt.Errorf("marshal predictions: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO analyses (analysis_id, created_at, source, model_kind,
			total_reviews, fake_reviews, fake_percentage, product_status, predictions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.AnalysisID, rec.CreatedAt.UnixNano(), rec.Source, rec.ModelKind,
		rec.TotalReviews, rec.FakeReviews, rec.FakePercentage, rec.ProductStatus, string(encoded))
	if err != nil {
		return fmt.Errorf("insert analysis %s: %w", rec.AnalysisID, err)
	}
	return nil
}

// Recent returns up to limit analyses, newest first.
func (s *SQLiteRecorder) Recent(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT analysis_id, created_at, source, model_kind,
			total_reviews, fake_reviews, fake_percentage, product_status, predictions
		FROM analyses
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	var out []models.AnalysisRecord
	for rows.Next() {
		var (
			rec         models.AnalysisRecord
			createdAt   int64
			predictions string
		)
		if err := rows.Scan(&rec.AnalysisID, &createdAt, &rec.Source, &rec.ModelKind,
			&rec.TotalReviews, &rec.FakeReviews, &rec.FakePercentage, &rec.ProductStatus, &predictions); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		rec.CreatedAt = time.Unix(0, createdAt).UTC()
		if err := json.Unmarshal([]byte(predictions), &rec.Predictions); err != nil {
			return nil, fmt.Errorf("decode predictions of %s: %w", rec.AnalysisID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
