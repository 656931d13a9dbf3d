package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/reviewscope/internal/models"
)

func newTestClient(url string) *AnalyzerClient {
	c := NewAnalyzerClient(url+"/", time.Second)
	c.retries = 3
	c.backoff = time.Millisecond
	return c
}

var testReviews = []models.Review{
	{ReviewText: "Great fit", Rating: 5.0},
	{ReviewText: "Must buy", Rating: "5"},
}

func TestAnalyzeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("details"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req models.AnalyzeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Reviews, 2)
		assert.Equal(t, "Great fit", req.Reviews[0].ReviewText)

		w.Header().Set(models.HEADER_ANALYSIS_ID, "abc")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total_reviews":2,"fake_reviews":1,"fake_percentage":50,"product_status":"Fake",
			"reviews":[{"index":0,"prediction":1,"label":"genuine"},{"index":1,"prediction":0,"label":"fake"}]}`))
	}))
	defer srv.Close()

	analysis, id, err := newTestClient(srv.URL).Analyze(context.Background(), testReviews, true)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "abc", id)
	assert.Equal(t, models.Summary{
		TotalReviews:   2,
		FakeReviews:    1,
		FakePercentage: 50,
		ProductStatus:  models.STATUS_FAKE,
	}, analysis.Summary)
	assert.Len(t, analysis.Reviews, 2)
}

func TestAnalyzeDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Invalid JSON format or missing 'reviews' key"}`))
	}))
	defer srv.Close()

	_, _, err := newTestClient(srv.URL).Analyze(context.Background(), testReviews, false)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Invalid JSON format or missing 'reviews' key", apiErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAnalyzeGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to analyze reviews"}`))
	}))
	defer srv.Close()

	_, _, err := newTestClient(srv.URL).Analyze(context.Background(), testReviews, false)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "failed to analyze reviews", apiErr.Message)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAnalyzeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, _, err := newTestClient(url).Analyze(context.Background(), testReviews, false)
	assert.ErrorContains(t, err, "request failed")
}

func TestAnalyzeRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, _, err := newTestClient(srv.URL).Analyze(context.Background(), testReviews, false)
	assert.ErrorContains(t, err, "failed to unmarshal response")
}
