package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spacesedan/reviewscope/internal/models"
)

// APIError is a non-retryable error response from the analyzer service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("analyzer returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("analyzer returned status %d: %s", e.StatusCode, e.Message)
}

// AnalyzerClient talks to a running reviewscope server.
type AnalyzerClient struct {
	Client  *http.Client
	BaseURL string

	retries int
	backoff time.Duration
}

func NewAnalyzerClient(baseURL string, timeout time.Duration) *AnalyzerClient {
	if timeout <= 0 {
		timeout = DEFAULT_CLIENT_TIMEOUT
	}
	slog.Debug("[AnalyzerClient] Initializing Client",
		slog.String("base_url", baseURL),
		slog.Duration("timeout", timeout))
	return &AnalyzerClient{
		Client:  &http.Client{Timeout: timeout},
		BaseURL: strings.TrimRight(baseURL, "/"),
		retries: MAX_RETRIES,
		backoff: INITIAL_BACKOFF,
	}
}

// Analyze posts reviews to /analyze and returns the analysis with the ID the
// server assigned to it.
func (a *AnalyzerClient) Analyze(ctx context.Context, reviews []models.Review, details bool) (*models.Analysis, string, error) {
	body, err := json.Marshal(models.AnalyzeRequest{Reviews: reviews})
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal input: %w", err)
	}

	endpoint := a.BaseURL + "/analyze"
	if details {
		endpoint += "?" + url.Values{"details": {"true"}}.Encode()
	}

	start := time.Now()
	resp, err := a.DoWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", USER_AGENT)
		return req, nil
	})
	if err != nil {
		slog.Error("[AnalyzerClient] Failed request after retries",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()))
		return nil, "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	var analysis models.Analysis
	if err := json.Unmarshal(respBody, &analysis); err != nil {
		slog.Error("[AnalyzerClient] Failed to unmarshal response",
			slog.String("error", err.Error()),
			getPreview(respBody),
			slog.Int("raw_response_length", len(respBody)))
		return nil, "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	slog.Debug("[AnalyzerClient] Analyze request successful",
		slog.Int("reviews", len(reviews)),
		slog.Duration("elapsed", time.Since(start)))
	return &analysis, resp.Header.Get(models.HEADER_ANALYSIS_ID), nil
}

// DoWithRetry sends the request built by newReq, retrying transport errors
// and 5xx responses with exponential backoff. Any other response is returned
// as is. After the last failed attempt a 5xx is reported as an APIError.
func (a *AnalyzerClient) DoWithRetry(ctx context.Context, newReq func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	backoff := a.backoff

	for attempt := 0; attempt < a.retries; attempt++ {
		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		resp, err := a.Client.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
		}

		slog.Warn("[AnalyzerClient] Request failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", lastErr.Error()))

		if attempt == a.retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, MAX_BACKOFF)
	}

	return nil, lastErr
}

// errorMessage extracts the "error" field of a JSON error body.
func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(getPreview(body).Value.String())
}

func getPreview(respBody []byte) slog.Attr {
	raw := string(respBody)
	if len(raw) > 50 {
		raw = raw[:50]
	}
	return slog.String("raw_response", raw)
}
