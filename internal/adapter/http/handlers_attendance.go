package adapthttp

import (
	"net/http"

	"markme/internal/domain"
)

// sessionView adds display strings in the session's own timezone.
type sessionView struct {
	domain.AttendanceSession
	Status         string `json:"status"`
	SignedInLocal  string `json:"signedInLocal,omitempty"`
	SignedOutLocal string `json:"signedOutLocal,omitempty"`
}

func (s *Server) viewSession(sess domain.AttendanceSession) sessionView {
	v := sessionView{AttendanceSession: sess}
	switch {
	case sess.Absent():
		v.Status = "absent"
	case sess.Open():
		v.Status = "open"
	default:
		v.Status = "closed"
	}
	if sess.SignedInAt != nil {
		v.SignedInLocal, _ = s.resolver.Format(sess.Timezone, *sess.SignedInAt)
	}
	if sess.SignedOutAt != nil {
		v.SignedOutLocal, _ = s.resolver.Format(sess.Timezone, *sess.SignedOutAt)
	}
	return v
}

func (s *Server) viewSessions(items []domain.AttendanceSession) []sessionView {
	out := make([]sessionView, 0, len(items))
	for _, sess := range items {
		out = append(out, s.viewSession(sess))
	}
	return out
}

type timezoneBody struct {
	Timezone string `json:"timezone"`
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body timezoneBody
	if err := parseOptionalJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	u := userFromContext(r.Context())
	sess, err := s.attendance.SignIn(r.Context(), u.ID, requestedTimezone(r, body.Timezone))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Signed in", "session": s.viewSession(*sess)})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	var body timezoneBody
	if err := parseOptionalJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	u := userFromContext(r.Context())
	sess, err := s.attendance.SignOut(r.Context(), u.ID, requestedTimezone(r, body.Timezone))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Signed out", "session": s.viewSession(*sess)})
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())
	items, today, err := s.attendance.Today(r.Context(), u.ID, requestedTimezone(r, ""))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"today": today, "items": s.viewSessions(items)})
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())
	items, from, err := s.attendance.Week(r.Context(), u.ID, requestedTimezone(r, ""))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"weekStart": from, "items": s.viewSessions(items)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())
	items, err := s.attendance.History(r.Context(), u.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.viewSessions(items)})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())
	days := intQuery(r, "days", 7)
	points, err := s.summary.Daily(r.Context(), u.ID, requestedTimezone(r, ""), days)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": len(points), "points": points})
}
