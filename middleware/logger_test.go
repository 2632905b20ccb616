package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"music-search-api-go/logcolors"
	"music-search-api-go/stats"

	"github.com/gorilla/mux"
)

func TestGetStatusColor(t *testing.T) {
	tests := []struct {
		statusCode int
		expected   string
	}{
		{http.StatusContinue, logcolors.Reset},
		{http.StatusNoContent, logcolors.Green},
		{http.StatusNotModified, logcolors.Cyan},
		{http.StatusTooManyRequests, logcolors.Yellow},
		{http.StatusServiceUnavailable, logcolors.Red},
	}

	for _, tt := range tests {
		if got := getStatusColor(tt.statusCode); got != tt.expected {
			t.Errorf("getStatusColor(%d) = %q, want %q", tt.statusCode, got, tt.expected)
		}
	}
}

func TestResponseRecorder(t *testing.T) {
	tests := []struct {
		name       string
		status     int // 0 means WriteHeader is never called
		writes     []string
		wantStatus int
		wantSize   int
	}{
		{"defaults to 200", 0, nil, http.StatusOK, 0},
		{"implicit 200 on write", 0, []string{"test"}, http.StatusOK, 4},
		{"explicit status", http.StatusTooManyRequests, nil, http.StatusTooManyRequests, 0},
		{"several writes add up", http.StatusCreated, []string{`{"results":`, `[]`, `}`}, http.StatusCreated, 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			rec := NewResponseRecorder(w)
			if tt.status != 0 {
				rec.WriteHeader(tt.status)
			}
			for _, chunk := range tt.writes {
				if _, err := rec.Write([]byte(chunk)); err != nil {
					t.Fatalf("Write() error = %v", err)
				}
			}

			if rec.StatusCode != tt.wantStatus || w.Code != tt.wantStatus {
				t.Errorf("status = %d (underlying %d), want %d", rec.StatusCode, w.Code, tt.wantStatus)
			}
			if rec.BodySize != tt.wantSize {
				t.Errorf("BodySize = %d, want %d", rec.BodySize, tt.wantSize)
			}
		})
	}
}

func TestLoggingMiddlewarePassesResponseThrough(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("queued"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/search/cancel", nil))

	if rec.Code != http.StatusAccepted || rec.Body.String() != "queued" {
		t.Errorf("got %d %q, want 202 \"queued\"", rec.Code, rec.Body.String())
	}
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	var seen string
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/search", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen == "" {
		t.Fatal("Expected a generated request ID in the context")
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Errorf("X-Request-ID header = %q, want %q", rec.Header().Get("X-Request-ID"), seen)
	}

	req = httptest.NewRequest("GET", "/search", nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen != "client-supplied" {
		t.Errorf("Expected incoming X-Request-ID to be kept, got %q", seen)
	}
}

func TestRouteTemplate(t *testing.T) {
	req := httptest.NewRequest("GET", "/songs/42", nil)
	if got := routeTemplate(req); got != "/songs/42" {
		t.Errorf("unrouted request: routeTemplate() = %q, want raw path", got)
	}

	router := mux.NewRouter()
	var got string
	router.HandleFunc("/songs/{id}", func(w http.ResponseWriter, r *http.Request) {
		got = routeTemplate(r)
	})
	router.ServeHTTP(httptest.NewRecorder(), req)
	if got != "/songs/{id}" {
		t.Errorf("routed request: routeTemplate() = %q, want /songs/{id}", got)
	}
}

func TestRouteTemplateDropsInlinePatterns(t *testing.T) {
	router := mux.NewRouter()
	var got string
	router.HandleFunc("/songs/{id:[0-9]+}/similar", func(w http.ResponseWriter, r *http.Request) {
		got = routeTemplate(r)
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/songs/7/similar", nil))
	if got != "/songs/{id}/similar" {
		t.Errorf("routeTemplate() = %q, want /songs/{id}/similar", got)
	}
}

func TestLoggingMiddleware_StatsByRoute(t *testing.T) {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware)
	ok := func(w http.ResponseWriter, r *http.Request) {}
	router.HandleFunc("/search", ok)
	router.HandleFunc("/songs/{id:[0-9]+}", ok)
	router.HandleFunc("/history/{term}", ok)
	router.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	s := stats.Get()
	tests := []struct {
		path    string
		counter *atomic.Int64
	}{
		{"/search?q=rain", &s.SearchRequests},
		{"/songs/42", &s.SongRequests},
		{"/songs/43", &s.SongRequests},
		{"/history/queen", &s.HistoryRequests},
		{"/missing", &s.OtherRequests},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			before := tt.counter.Load()
			totalBefore := s.TotalRequests.Load()

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", tt.path, nil))

			if got := tt.counter.Load() - before; got != 1 {
				t.Errorf("bucket counter moved by %d, want 1", got)
			}
			if got := s.TotalRequests.Load() - totalBefore; got != 1 {
				t.Errorf("TotalRequests moved by %d, want 1", got)
			}
		})
	}
}
