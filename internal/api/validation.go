package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/spacesedan/reviewscope/internal/models"
)

var (
	ErrMissingReviews = errors.New("missing reviews key")
	ErrInvalidReview  = errors.New("review without Review_Text or Rating")
	ErrReviewText     = errors.New("review text is not a string")
	ErrNoReviews      = errors.New("no reviews")
)

// Messages returned to clients. They are static so clients can match them.
const (
	MSG_MISSING_REVIEWS = "Invalid JSON format or missing 'reviews' key"
	MSG_INVALID_REVIEW  = "Each review must contain 'Review_Text' and 'Rating'"
	MSG_REVIEW_TEXT     = "'Review_Text' must be a string"
	MSG_NO_REVIEWS      = "'reviews' must contain at least one review"
	MSG_BODY_TOO_LARGE  = "request body too large"
	MSG_BATCH_TOO_LARGE = "too many reviews in one request"
	MSG_ANALYSIS_FAILED = "failed to analyze reviews"
)

const (
	KEY_REVIEWS     = "reviews"
	KEY_REVIEW_TEXT = "Review_Text"
	KEY_RATING      = "Rating"
)

// DecodeRequest reads an analyze request body of the form
// {"reviews": [{"Review_Text": ..., "Rating": ...}, ...]}.
func DecodeRequest(r io.Reader) ([]models.Review, error) {
	dec := json.NewDecoder(r)

	var body map[string]json.RawMessage
	if err := dec.Decode(&body); err != nil {
		return nil, decodeError(err)
	}
	// the body must hold exactly one JSON value
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("trailing JSON value")
		}
		return nil, decodeError(err)
	}

	raw, ok := body[KEY_REVIEWS]
	if !ok {
		return nil, ErrMissingReviews
	}
	return DecodeReviewList(raw)
}

func decodeError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrMissingReviews, err)
}

// DecodeReviewList validates a JSON array of review objects. Every item must
// carry both keys; Review_Text must be a string while Rating may hold any
// JSON value.
func DecodeReviewList(raw json.RawMessage) ([]models.Review, error) {
	if isNull(raw) {
		return nil, fmt.Errorf("%w: reviews is null", ErrInvalidReview)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: reviews is not a list", ErrInvalidReview)
	}
	if len(items) == 0 {
		return nil, ErrNoReviews
	}

	// every item needs both keys before any value is looked at
	objects := make([]map[string]json.RawMessage, len(items))
	for i, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			return nil, fmt.Errorf("%w: review %d is not an object", ErrInvalidReview, i)
		}
		_, hasText := fields[KEY_REVIEW_TEXT]
		_, hasRating := fields[KEY_RATING]
		if !hasText || !hasRating {
			return nil, fmt.Errorf("%w: review %d", ErrInvalidReview, i)
		}
		objects[i] = fields
	}

	reviews := make([]models.Review, len(objects))
	for i, fields := range objects {
		text := fields[KEY_REVIEW_TEXT]
		if isNull(text) {
			return nil, fmt.Errorf("%w: review %d", ErrReviewText, i)
		}
		if err := json.Unmarshal(text, &reviews[i].ReviewText); err != nil {
			return nil, fmt.Errorf("%w: review %d", ErrReviewText, i)
		}
		if err := json.Unmarshal(fields[KEY_RATING], &reviews[i].Rating); err != nil {
			return nil, fmt.Errorf("%w: review %d rating: %v", ErrInvalidReview, i, err)
		}
	}
	return reviews, nil
}

// DecodeReviewFile accepts either a bare JSON array of reviews, as exported
// by the upload front-end, or a full analyze request body.
func DecodeReviewFile(data []byte) ([]models.Review, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return DecodeReviewList(trimmed)
	}
	return DecodeRequest(bytes.NewReader(trimmed))
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// errorStatus maps a decode error to its HTTP status and client message.
func errorStatus(err error) (int, string) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, MSG_BODY_TOO_LARGE
	case errors.Is(err, ErrMissingReviews):
		return http.StatusBadRequest, MSG_MISSING_REVIEWS
	case errors.Is(err, ErrReviewText):
		return http.StatusBadRequest, MSG_REVIEW_TEXT
	case errors.Is(err, ErrNoReviews):
		return http.StatusBadRequest, MSG_NO_REVIEWS
	case errors.Is(err, ErrInvalidReview):
		return http.StatusBadRequest, MSG_INVALID_REVIEW
	default:
		return http.StatusInternalServerError, MSG_ANALYSIS_FAILED
	}
}
