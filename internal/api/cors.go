package api

import (
	"net/http"

	"github.com/rs/cors"
)

// WithCORS lets browser front-ends on the allowed origins call the API.
// A "*" entry allows every origin.
func WithCORS(h http.Handler, allowedOrigins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{HEADER_ANALYSIS_ID},
	}).Handler(h)
}
