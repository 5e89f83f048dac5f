package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"markme/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// writeServiceError maps domain errors to HTTP statuses. Anything unknown is
// logged and reported as a generic 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNoActiveSession),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidInterval),
		errors.Is(err, domain.ErrInvalidTimezone):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrAlreadyClosed):
		writeError(w, http.StatusConflict, err)
	default:
		attrs := []any{"method", r.Method, "path", r.URL.Path, "error", err}
		if u := userFromContext(r.Context()); u != nil {
			attrs = append(attrs, "user_id", u.ID)
		}
		s.log.Error("request failed", attrs...)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func parseJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid json: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

// parseOptionalJSON is parseJSON that accepts an empty body.
func parseOptionalJSON(r *http.Request, dst any) error {
	err := parseJSON(r, dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func intQuery(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad id %q", domain.ErrInvalidInput, r.PathValue("id"))
	}
	return id, nil
}

// requestedTimezone picks the client-reported zone: body first, then the
// query string, then headers.
func requestedTimezone(r *http.Request, fromBody string) string {
	for _, v := range []string{
		fromBody,
		r.URL.Query().Get("tz"),
		r.URL.Query().Get("timezone"),
		r.Header.Get("X-User-TZ"),
		r.Header.Get("X-Timezone"),
	} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseInstant accepts RFC 3339 timestamps. An empty string yields nil.
func parseInstant(v string) (*time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp must be RFC 3339, got %q", domain.ErrInvalidInput, v)
	}
	return &t, nil
}

func withNoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
