package adapthttp

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"markme/internal/domain"
)

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	s := &Server{log: slog.New(slog.NewTextHandler(&buf, nil))}
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("OK"))
	})

	handler := s.loggingMiddleware(nextHandler)

	req := httptest.NewRequest("GET", "/test-path", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status %d, got %d", http.StatusTeapot, w.Code)
	}

	logOutput := buf.String()
	if !strings.Contains(logOutput, "GET") || !strings.Contains(logOutput, "/test-path") || !strings.Contains(logOutput, "418") {
		t.Errorf("Log output missing expected fields. Got: %s", logOutput)
	}
	if id := w.Header().Get("X-Request-ID"); id == "" || !strings.Contains(logOutput, id) {
		t.Errorf("expected request id %q in log: %s", id, logOutput)
	}
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    int
		message string
	}{
		{"no active session", domain.ErrNoActiveSession, http.StatusBadRequest, domain.ErrNoActiveSession.Error()},
		{"invalid input", fmt.Errorf("%w: bad", domain.ErrInvalidInput), http.StatusBadRequest, "invalid input: bad"},
		{"invalid interval", domain.ErrInvalidInterval, http.StatusBadRequest, domain.ErrInvalidInterval.Error()},
		{"not found", fmt.Errorf("session 9: %w", domain.ErrNotFound), http.StatusNotFound, "session 9: " + domain.ErrNotFound.Error()},
		{"already closed", fmt.Errorf("sign out: %w", domain.ErrAlreadyClosed), http.StatusConflict, "sign out: " + domain.ErrAlreadyClosed.Error()},
		{"persistence", fmt.Errorf("%w: close session: connection reset", domain.ErrPersistence), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			s := &Server{log: slog.New(slog.NewTextHandler(&buf, nil))}
			w := httptest.NewRecorder()
			s.writeServiceError(w, httptest.NewRequest("POST", "/attendance/signout", nil), tt.err)

			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.message) {
				t.Errorf("expected body to contain %q, got %s", tt.message, w.Body.String())
			}
			if tt.want == http.StatusInternalServerError && !strings.Contains(buf.String(), "connection reset") {
				t.Errorf("expected full error logged, got %q", buf.String())
			}
		})
	}
}

func TestRequestedTimezone(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		url     string
		headers map[string]string
		want    string
	}{
		{"body wins", "Asia/Karachi", "/x?tz=UTC", map[string]string{"X-User-TZ": "Europe/Paris"}, "Asia/Karachi"},
		{"query", "", "/x?tz=UTC", map[string]string{"X-User-TZ": "Europe/Paris"}, "UTC"},
		{"timezone query", "", "/x?timezone=Asia/Tokyo", nil, "Asia/Tokyo"},
		{"user tz header", "", "/x", map[string]string{"X-User-TZ": "Europe/Paris", "X-Timezone": "UTC"}, "Europe/Paris"},
		{"timezone header", "", "/x", map[string]string{"X-Timezone": "America/New_York"}, "America/New_York"},
		{"none", "  ", "/x", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", tt.url, nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := requestedTimezone(r, tt.body); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSessionToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer abc")
	r.AddCookie(&http.Cookie{Name: "session", Value: "cookie"})
	if got := sessionToken(r); got != "abc" {
		t.Errorf("expected bearer token first, got %q", got)
	}

	r = httptest.NewRequest("GET", "/", nil)
	r.AddCookie(&http.Cookie{Name: "session", Value: "cookie"})
	if got := sessionToken(r); got != "cookie" {
		t.Errorf("expected cookie token, got %q", got)
	}
}
