package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"

	"github.com/sakif/storyline/internal/auth"
)

func TestLogger(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		userID    string
		wantLevel string
	}{
		{"ok anonymous", http.StatusOK, "", "level=INFO"},
		{"client error with user", http.StatusNotFound, "user-1", "level=WARN"},
		{"server error", http.StatusInternalServerError, "", "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("body"))
			})

			var h http.Handler = RecordUser(inner)
			if tt.userID != "" {
				next := h
				h = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), tt.userID)))
				})
			}
			h = chimiddleware.RequestID(Logger(logger)(h))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/abc", nil))

			line := buf.String()
			assert.Contains(t, line, tt.wantLevel)
			assert.Contains(t, line, "path=/api/posts/abc")
			assert.Contains(t, line, "bytes=4")
			assert.Contains(t, line, "requestID=")
			if tt.userID != "" {
				assert.Contains(t, line, "userID="+tt.userID)
			} else {
				assert.NotContains(t, line, "userID=")
			}
		})
	}
}

func TestLogger_DefaultsToOK(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Contains(t, buf.String(), "status=200")
}
