package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const (
	LABEL_FAKE    = 0
	LABEL_GENUINE = 1

	STATUS_FAKE    = "Fake"
	STATUS_GENUINE = "Genuine"

	// FAKE_THRESHOLD is the fake percentage at and above which a product is
	// reported as Fake.
	FAKE_THRESHOLD = 50.0

	// HEADER_ANALYSIS_ID carries the ID assigned to each analysis.
	HEADER_ANALYSIS_ID = "X-Analysis-ID"
)

// Review is one input unit. Rating is kept as whatever JSON value the
// caller sent; only its presence is required.
type Review struct {
	ReviewText string `json:"Review_Text"`
	Rating     any    `json:"Rating"`
}

// NumericRating returns the rating as a number when it is a JSON number or
// a numeric string.
func (r Review) NumericRating() (float64, bool) {
	switch v := r.Rating.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

type AnalyzeRequest struct {
	Reviews []Review `json:"reviews"`
}

type Summary struct {
	TotalReviews   int     `json:"total_reviews" dynamodbav:"total_reviews"`
	FakeReviews    int     `json:"fake_reviews" dynamodbav:"fake_reviews"`
	FakePercentage float64 `json:"fake_percentage" dynamodbav:"fake_percentage"`
	ProductStatus  string  `json:"product_status" dynamodbav:"product_status"`
}

type ReviewDetail struct {
	Index          int     `json:"index"`
	Prediction     int     `json:"prediction"`
	Label          string  `json:"label"`
	Rating         any     `json:"rating"`
	SentimentScore float64 `json:"sentiment_score"`
	SentimentLabel string  `json:"sentiment_label"`
	RatingMismatch bool    `json:"rating_mismatch"`
}

// Analysis is the response body of a successful analysis.
type Analysis struct {
	Summary
	Reviews     []ReviewDetail `json:"reviews,omitempty"`
	Predictions []int          `json:"-"`
}

type ModelInfo struct {
	VectorizerKind string `json:"vectorizer_kind"`
	ModelKind      string `json:"model_kind"`
	Features       int    `json:"features"`
	Classes        []int  `json:"classes"`
}

// AnalysisRecord is the audit entry written by the recorders.
type AnalysisRecord struct {
	AnalysisID string    `json:"analysis_id" dynamodbav:"analysis_id"`
	CreatedAt  time.Time `json:"created_at" dynamodbav:"created_at"`
	Source     string    `json:"source" dynamodbav:"source"`
	ModelKind  string    `json:"model_kind" dynamodbav:"model_kind"`
	Summary
	Predictions []int `json:"predictions" dynamodbav:"-"`
}

func LabelName(prediction int) string {
	if prediction == LABEL_FAKE {
		return "fake"
	}
	return "genuine"
}
