// Package detector labels review batches as fake or genuine and aggregates
// the labels into a product verdict.
package detector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/reviewscope/internal/classifier"
	"github.com/spacesedan/reviewscope/internal/models"
	"github.com/spacesedan/reviewscope/internal/sentiment"
	"github.com/spacesedan/reviewscope/internal/vectorizer"
)

var ErrEmptyBatch = errors.New("empty review batch")

// Detector pairs a vectorizer with the model fitted on its features. It holds
// no mutable state and is safe for concurrent use.
type Detector struct {
	vectorizer *vectorizer.Vectorizer
	model      classifier.Predictor
}

func New(v *vectorizer.Vectorizer, m classifier.Predictor) (*Detector, error) {
	if v == nil || m == nil {
		return nil, errors.New("detector needs both a vectorizer and a model")
	}
	if m.Features() != v.Features() {
		return nil, fmt.Errorf("%w: model expects %d features, vectorizer produces %d",
			classifier.ErrDimension, m.Features(), v.Features())
	}
	classes := m.Classes()
	if len(classes) != 2 || !hasLabels(classes) {
		return nil, fmt.Errorf("%w: model classes %v are not {0, 1}", classifier.ErrInvalid, classes)
	}
	return &Detector{vectorizer: v, model: m}, nil
}

func hasLabels(classes []int) bool {
	seen := map[int]bool{}
	for _, c := range classes {
		seen[c] = true
	}
	return seen[models.LABEL_FAKE] && seen[models.LABEL_GENUINE]
}

func (d *Detector) Info() models.ModelInfo {
	return models.ModelInfo{
		VectorizerKind: d.vectorizer.Kind(),
		ModelKind:      d.model.Kind(),
		Features:       d.vectorizer.Features(),
		Classes:        d.model.Classes(),
	}
}

// Classify returns one label per review, aligned with the input order.
func (d *Detector) Classify(ctx context.Context, reviews []models.Review) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	texts := make([]string, len(reviews))
	for i, r := range reviews {
		texts[i] = r.ReviewText
	}

	predictions, err := d.model.Predict(d.vectorizer.Transform(texts))
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if len(predictions) != len(reviews) {
		return nil, fmt.Errorf("model returned %d predictions for %d reviews", len(predictions), len(reviews))
	}
	return predictions, nil
}

// Analyze classifies reviews and summarizes the result. With withDetails set
// every review also gets its label and sentiment breakdown.
func (d *Detector) Analyze(ctx context.Context, reviews []models.Review, withDetails bool) (*models.Analysis, error) {
	start := time.Now()

	predictions, err := d.Classify(ctx, reviews)
	if err != nil {
		return nil, err
	}
	summary, err := Summarize(predictions)
	if err != nil {
		return nil, err
	}

	analysis := &models.Analysis{Summary: summary, Predictions: predictions}
	if withDetails {
		analysis.Reviews = Details(reviews, predictions)
	}

	slog.Debug("[Detector] Analyzed batch",
		slog.Int("total", summary.TotalReviews),
		slog.Int("fake", summary.FakeReviews),
		slog.String("status", summary.ProductStatus),
		slog.Duration("elapsed", time.Since(start)))
	return analysis, nil
}

// Summarize counts fake labels and derives the product verdict. A product is
// Fake when at least half of its reviews are.
func Summarize(predictions []int) (models.Summary, error) {
	if len(predictions) == 0 {
		return models.Summary{}, ErrEmptyBatch
	}

	fake := 0
	for _, p := range predictions {
		if p == models.LABEL_FAKE {
			fake++
		}
	}
	total := len(predictions)
	percentage := float64(fake) / float64(total) * 100

	status := models.STATUS_GENUINE
	if percentage >= models.FAKE_THRESHOLD {
		status = models.STATUS_FAKE
	}

	return models.Summary{
		TotalReviews:   total,
		FakeReviews:    fake,
		FakePercentage: percentage,
		ProductStatus:  status,
	}, nil
}

// Details pairs each prediction with the review's sentiment.
func Details(reviews []models.Review, predictions []int) []models.ReviewDetail {
	out := make([]models.ReviewDetail, len(reviews))
	for i, r := range reviews {
		score, label := sentiment.AnalyzeWithVADER(r.ReviewText)
		rating, hasRating := r.NumericRating()
		out[i] = models.ReviewDetail{
			Index:          i,
			Prediction:     predictions[i],
			Label:          models.LabelName(predictions[i]),
			Rating:         r.Rating,
			SentimentScore: score,
			SentimentLabel: label,
			RatingMismatch: hasRating && sentiment.RatingMismatch(rating, label),
		}
	}
	return out
}
