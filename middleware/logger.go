package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"music-search-api-go/logcolors"
	"music-search-api-go/stats"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const requestIDKey contextKey = "requestID"

// ResponseRecorder captures the status code and body size written by a handler.
type ResponseRecorder struct {
	http.ResponseWriter
	StatusCode int
	BodySize   int
}

func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (rec *ResponseRecorder) WriteHeader(code int) {
	rec.StatusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *ResponseRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.BodySize += n
	return n, err
}

func getStatusColor(code int) string {
	switch {
	case code >= 500:
		return logcolors.Red
	case code >= 400:
		return logcolors.Yellow
	case code >= 300:
		return logcolors.Cyan
	case code >= 200:
		return logcolors.Green
	default:
		return logcolors.Reset
	}
}

// routePattern matches a mux variable with an inline pattern, e.g. {id:[0-9]+}.
var routePattern = regexp.MustCompile(`\{([^{}:]+):[^{}]*\}`)

// routeTemplate returns the matched mux path template with inline patterns
// dropped ("/songs/{id}"), or the raw path when the request was not routed
// by mux.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return routePattern.ReplaceAllString(tpl, "{$1}")
		}
	}
	return r.URL.Path
}

// RequestID returns the ID assigned to the request by LoggingMiddleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// LoggingMiddleware tags each request with an X-Request-ID, logs it with its
// status and latency, and feeds the global stats. Register it with
// mux.Router.Use so stats are bucketed by route template.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)

		rec := NewResponseRecorder(w)
		next.ServeHTTP(rec, r.WithContext(ctx))
		elapsed := time.Since(start)

		endpoint := routeTemplate(r)
		s := stats.Get()
		s.RecordRequest(endpoint)
		s.RecordStatusCode(rec.StatusCode)
		s.RecordResponseTime(elapsed, endpoint)

		log.WithFields(log.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.StatusCode,
			"bytes":      rec.BodySize,
			"duration":   elapsed.String(),
		}).Infof("%s %s%d%s %s %s", logcolors.LogHTTP, getStatusColor(rec.StatusCode), rec.StatusCode, logcolors.Reset, r.Method, r.URL.RequestURI())
	})
}
