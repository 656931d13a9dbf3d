package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/reviewscope/internal/artifacts"
	"github.com/spacesedan/reviewscope/internal/clients"
	"github.com/spacesedan/reviewscope/internal/detector"
	"github.com/spacesedan/reviewscope/internal/models"
)

const (
	fakeReview    = `{"Review_Text": "Amazing! Best product ever, must buy", "Rating": 5}`
	genuineReview = `{"Review_Text": "Good quality, the fit is true to size even after weeks of washing", "Rating": 4}`
)

func newDetector(t *testing.T) *detector.Detector {
	t.Helper()
	b, err := artifacts.LoadAll(context.Background(),
		"../artifacts/testdata/vectorizer.json", "../artifacts/testdata/model.json")
	require.NoError(t, err)
	d, err := detector.New(b.Vectorizer, b.Model)
	require.NoError(t, err)
	return d
}

type captureRecorder struct {
	mu      sync.Mutex
	records []models.AnalysisRecord
	err     error
}

func (c *captureRecorder) Name() string { return "capture" }

func (c *captureRecorder) Record(_ context.Context, rec models.AnalysisRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return c.err
}

func (c *captureRecorder) Close() error { return nil }

type failingAnalyzer struct{}

func (failingAnalyzer) Analyze(context.Context, []models.Review, bool) (*models.Analysis, error) {
	return nil, errors.New("model exploded")
}

func (failingAnalyzer) Info() models.ModelInfo { return models.ModelInfo{} }

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAnalyzeSummary(t *testing.T) {
	h := New(newDetector(t), Options{}).Router([]string{"*"})

	body := `{"reviews": [` + fakeReview + `,` + genuineReview + `,` + fakeReview + `]}`
	rec := do(t, h, http.MethodPost, "/analyze", body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	_, err := uuid.Parse(rec.Header().Get(HEADER_ANALYSIS_ID))
	assert.NoError(t, err)

	got := decodeBody[map[string]any](t, rec)
	require.Len(t, got, 4)
	assert.Equal(t, float64(3), got["total_reviews"])
	assert.Equal(t, float64(2), got["fake_reviews"])
	assert.InDelta(t, 66.6667, got["fake_percentage"], 1e-3)
	assert.Equal(t, "Fake", got["product_status"])
}

func TestAnalyzeGenuineProduct(t *testing.T) {
	h := New(newDetector(t), Options{}).Router([]string{"*"})

	body := `{"reviews": [` + genuineReview + `,` + genuineReview + `,` + fakeReview + `]}`
	rec := do(t, h, http.MethodPost, "/analyze", body)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[models.Summary](t, rec)
	assert.Equal(t, 3, got.TotalReviews)
	assert.Equal(t, 1, got.FakeReviews)
	assert.Equal(t, models.STATUS_GENUINE, got.ProductStatus)
}

func TestAnalyzeAcceptsAnyRatingValue(t *testing.T) {
	h := New(newDetector(t), Options{}).Router([]string{"*"})

	body := `{"reviews": [
		{"Review_Text": "quality fit", "Rating": null},
		{"Review_Text": "must buy", "Rating": "five stars"},
		{"Review_Text": "", "Rating": 3, "Extra": true}
	]}`
	rec := do(t, h, http.MethodPost, "/analyze", body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decodeBody[models.Summary](t, rec).TotalReviews)
}

func TestAnalyzeValidation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"empty body", ``, 400, MSG_MISSING_REVIEWS},
		{"invalid json", `{"reviews": [`, 400, MSG_MISSING_REVIEWS},
		{"null body", `null`, 400, MSG_MISSING_REVIEWS},
		{"array body", `[` + fakeReview + `]`, 400, MSG_MISSING_REVIEWS},
		{"missing reviews key", `{"items": []}`, 400, MSG_MISSING_REVIEWS},
		{"reviews not a list", `{"reviews": {"Review_Text": "x", "Rating": 1}}`, 400, MSG_INVALID_REVIEW},
		{"reviews null", `{"reviews": null}`, 400, MSG_INVALID_REVIEW},
		{"missing rating", `{"reviews": [{"Review_Text": "x"}]}`, 400, MSG_INVALID_REVIEW},
		{"missing text", `{"reviews": [` + fakeReview + `, {"Rating": 2}]}`, 400, MSG_INVALID_REVIEW},
		{"item not an object", `{"reviews": ["great"]}`, 400, MSG_INVALID_REVIEW},
		{"null item", `{"reviews": [null]}`, 400, MSG_INVALID_REVIEW},
		{"numeric text", `{"reviews": [{"Review_Text": 42, "Rating": 2}]}`, 400, MSG_REVIEW_TEXT},
		{"null text", `{"reviews": [{"Review_Text": null, "Rating": 2}]}`, 400, MSG_REVIEW_TEXT},
		{"empty list", `{"reviews": []}`, 400, MSG_NO_REVIEWS},
		{"trailing data", `{"reviews": [` + fakeReview + `]} not json at all`, 400, MSG_MISSING_REVIEWS},
		{"second json value", `{"reviews": [` + fakeReview + `]} {}`, 400, MSG_MISSING_REVIEWS},
		{"missing key wins over text type", `{"reviews": [{"Review_Text": 42, "Rating": 1}, {"Rating": 2}]}`, 400, MSG_INVALID_REVIEW},
		{"non object wins over text type", `{"reviews": [{"Review_Text": null, "Rating": 1}, 7]}`, 400, MSG_INVALID_REVIEW},
	}

	h := New(newDetector(t), Options{}).Router([]string{"*"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/analyze", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, map[string]string{"error": tt.msg}, decodeBody[map[string]string](t, rec))
			assert.Empty(t, rec.Header().Get(HEADER_ANALYSIS_ID))
		})
	}
}

func TestAnalyzeAcceptsTrailingWhitespace(t *testing.T) {
	h := New(newDetector(t), Options{}).Router([]string{"*"})

	rec := do(t, h, http.MethodPost, "/analyze", `{"reviews": [`+genuineReview+`]}`+"\n\t ")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[models.Summary](t, rec).TotalReviews)
}

func TestAnalyzeLimits(t *testing.T) {
	h := New(newDetector(t), Options{MaxBodyBytes: 200, MaxBatchSize: 2}).Router([]string{"*"})

	big := `{"reviews": [{"Review_Text": "` + strings.Repeat("a", 300) + `", "Rating": 1}]}`
	rec := do(t, h, http.MethodPost, "/analyze", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, MSG_BODY_TOO_LARGE, decodeBody[map[string]string](t, rec)["error"])

	many := `{"reviews": [{"Review_Text":"a","Rating":1},{"Review_Text":"b","Rating":1},{"Review_Text":"c","Rating":1}]}`
	rec = do(t, h, http.MethodPost, "/analyze", many)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, MSG_BATCH_TOO_LARGE, decodeBody[map[string]string](t, rec)["error"])
}

func TestAnalyzeFailureIsServerError(t *testing.T) {
	h := New(failingAnalyzer{}, Options{}).Router([]string{"*"})

	rec := do(t, h, http.MethodPost, "/analyze", `{"reviews": [`+fakeReview+`]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, MSG_ANALYSIS_FAILED, decodeBody[map[string]string](t, rec)["error"])
}

func TestAnalyzeDetails(t *testing.T) {
	h := New(newDetector(t), Options{}).Router([]string{"*"})

	body := `{"reviews": [` + fakeReview + `,` + genuineReview + `]}`
	rec := do(t, h, http.MethodPost, "/analyze?details=true", body)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[models.Analysis](t, rec)
	assert.Equal(t, 2, got.TotalReviews)
	require.Len(t, got.Reviews, 2)
	assert.Equal(t, "fake", got.Reviews[0].Label)
	assert.Equal(t, 0, got.Reviews[0].Prediction)
	assert.Equal(t, "genuine", got.Reviews[1].Label)
	assert.Equal(t, 1, got.Reviews[1].Index)
	assert.Equal(t, float64(4), got.Reviews[1].Rating)
}

func TestAnalyzeRecordsResult(t *testing.T) {
	recorder := &captureRecorder{}
	h := New(newDetector(t), Options{Recorder: recorder}).Router([]string{"*"})

	rec := do(t, h, http.MethodPost, "/analyze", `{"reviews": [`+fakeReview+`,`+genuineReview+`]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, recorder.records, 1)
	got := recorder.records[0]
	assert.Equal(t, rec.Header().Get(HEADER_ANALYSIS_ID), got.AnalysisID)
	assert.Equal(t, "http", got.Source)
	assert.Equal(t, "linear", got.ModelKind)
	assert.Equal(t, []int{0, 1}, got.Predictions)
	assert.Equal(t, 50.0, got.FakePercentage)
}

func TestAnalyzeIgnoresRecorderErrors(t *testing.T) {
	recorder := &captureRecorder{err: errors.New("table missing")}
	h := New(newDetector(t), Options{Recorder: recorder}).Router([]string{"*"})

	rec := do(t, h, http.MethodPost, "/analyze", `{"reviews": [`+genuineReview+`]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, recorder.records, 1)
}

func TestHealthAndModel(t *testing.T) {
	h := New(newDetector(t), Options{}).Router([]string{"*"})

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/model", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ModelInfo{
		VectorizerKind: "tfidf",
		ModelKind:      "linear",
		Features:       12,
		Classes:        []int{0, 1},
	}, decodeBody[models.ModelInfo](t, rec))
}

func TestRoutingFallbacks(t *testing.T) {
	h := New(newDetector(t), Options{}).Router([]string{"*"})

	rec := do(t, h, http.MethodGet, "/analyze", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := New(newDetector(t), Options{}).Router([]string{"http://localhost:3000"})

	req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"reviews": [`+genuineReview+`]}`))
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestDecodeReviewFile(t *testing.T) {
	reviews, err := DecodeReviewFile([]byte("  [" + fakeReview + "," + genuineReview + "]\n"))
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, "Amazing! Best product ever, must buy", reviews[0].ReviewText)
	assert.Equal(t, float64(5), reviews[0].Rating)

	reviews, err = DecodeReviewFile([]byte(`{"reviews": [` + genuineReview + `]}`))
	require.NoError(t, err)
	assert.Len(t, reviews, 1)

	_, err = DecodeReviewFile([]byte(`[{"Rating": 1}]`))
	assert.ErrorIs(t, err, ErrInvalidReview)
}

func TestAnalyzerClientReadsServerAnalysisID(t *testing.T) {
	recorder := &captureRecorder{}
	srv := httptest.NewServer(New(newDetector(t), Options{Recorder: recorder}).Router([]string{"*"}))
	defer srv.Close()

	reviews := []models.Review{{ReviewText: "Amazing! Best product ever, must buy", Rating: 5.0}}
	_, id, err := clients.NewAnalyzerClient(srv.URL, time.Second).Analyze(context.Background(), reviews, false)
	require.NoError(t, err)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.records, 1)
	assert.NotEmpty(t, id)
	assert.Equal(t, recorder.records[0].AnalysisID, id)
}
