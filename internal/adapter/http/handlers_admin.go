package adapthttp

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"markme/internal/app"
	"markme/internal/domain"
)

var errSelfDelete = errors.New("cannot delete your own account")

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.admin.ListUsers(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": users})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body app.CreateUserInput
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	u, err := s.admin.CreateUser(r.Context(), body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": u})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var body app.UpdateUserInput
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	u, err := s.admin.UpdateUser(r.Context(), id, body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if me := userFromContext(r.Context()); me != nil && me.ID == id {
		writeError(w, http.StatusBadRequest, errSelfDelete)
		return
	}
	if err := s.admin.DeleteUser(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleListAttendance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := app.AttendanceQuery{
		Name:  q.Get("name"),
		Date:  q.Get("date"),
		Range: q.Get("range"),
	}
	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: bad user_id %q", domain.ErrInvalidInput, v))
			return
		}
		query.UserID = id
	}
	s.writeAttendance(w, r, query)
}

// handleUserAttendance lists one user's sessions; the list filters still apply.
func (s *Server) handleUserAttendance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q := r.URL.Query()
	s.writeAttendance(w, r, app.AttendanceQuery{UserID: id, Date: q.Get("date"), Range: q.Get("range")})
}

func (s *Server) writeAttendance(w http.ResponseWriter, r *http.Request, query app.AttendanceQuery) {
	records, err := s.admin.ListAttendance(r.Context(), query)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	type recordView struct {
		sessionView
		UserName  string `json:"userName"`
		UserEmail string `json:"userEmail"`
	}
	out := make([]recordView, 0, len(records))
	for _, rec := range records {
		out = append(out, recordView{
			sessionView: s.viewSession(rec.AttendanceSession),
			UserName:    rec.UserName,
			UserEmail:   rec.UserEmail,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) handleEditSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var body struct {
		SignedInAt  string `json:"signedInAt"`
		SignedOutAt string `json:"signedOutAt"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	in, err := parseInstant(body.SignedInAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := parseInstant(body.SignedOutAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sess, err := s.admin.EditSession(r.Context(), id, in, out)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": s.viewSession(*sess)})
}

func (s *Server) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID int64          `json:"userId"`
		At     string         `json:"at"`
		Action app.MarkAction `json:"action"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	at, err := parseInstant(body.At)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.UserID <= 0 || at == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: userId and at are required", domain.ErrInvalidInput))
		return
	}

	sess, err := s.admin.MarkAttendance(r.Context(), body.UserID, *at, body.Action)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": s.viewSession(*sess)})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.admin.DeleteSession(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleSweep runs the absence sweep for the day that just ended. The sweep
// is idempotent so repeated calls are harmless.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	report, err := s.sweeper.SweepCompletedDay(r.Context(), s.resolver.Now())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}
