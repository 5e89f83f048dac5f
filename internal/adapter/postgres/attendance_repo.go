package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"markme/internal/domain"

	"github.com/lib/pq"
)

const sessionColumns = "id, user_id, local_date::text, timezone, signed_in_at, signed_out_at, worked_hours, created_at"

const newestFirst = " ORDER BY local_date DESC, signed_in_at DESC NULLS LAST, id DESC"

func scanSession(row interface{ Scan(...any) error }) (*domain.AttendanceSession, error) {
	var s domain.AttendanceSession
	var in, out sql.NullTime
	if err := row.Scan(&s.ID, &s.UserID, &s.LocalDate, &s.Timezone, &in, &out, &s.WorkedHours, &s.CreatedAt); err != nil {
		return nil, err
	}
	if in.Valid {
		t := in.Time.UTC()
		s.SignedInAt = &t
	}
	if out.Valid {
		t := out.Time.UTC()
		s.SignedOutAt = &t
	}
	return &s, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// CreateSession inserts a new open session.
func (d *DB) CreateSession(ctx context.Context, userID int64, localDate, tz string, signedInAt time.Time) (*domain.AttendanceSession, error) {
	s, err := scanSession(d.sql.QueryRowContext(ctx,
		"INSERT INTO attendance_sessions (user_id, local_date, timezone, signed_in_at, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING "+sessionColumns,
		userID, localDate, tz, signedInAt.UTC(), time.Now().UTC(),
	))
	if err != nil {
		return nil, persistErr("create session", err)
	}
	return s, nil
}

// FindLatestOpenSession returns the most recently signed-in open session for
// the user's local day, or nil.
func (d *DB) FindLatestOpenSession(ctx context.Context, userID int64, localDate string) (*domain.AttendanceSession, error) {
	s, err := scanSession(d.sql.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM attendance_sessions WHERE user_id = $1 AND local_date = $2 AND signed_in_at IS NOT NULL AND signed_out_at IS NULL ORDER BY signed_in_at DESC, id DESC LIMIT 1",
		userID, localDate,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("find open session", err)
	}
	return s, nil
}

// CloseSession sets the sign-out instant only if it is still unset, in a
// single conditional UPDATE. When no row is updated the current row is read
// to tell not-found, already-closed and bad-interval apart.
func (d *DB) CloseSession(ctx context.Context, id int64, signedOutAt time.Time) (*domain.AttendanceSession, error) {
	out := signedOutAt.UTC()
	s, err := scanSession(d.sql.QueryRowContext(ctx,
		`UPDATE attendance_sessions
		 SET signed_out_at = $2,
		     worked_hours = CASE WHEN signed_in_at IS NULL THEN 0
		                         ELSE EXTRACT(EPOCH FROM ($2::timestamptz - signed_in_at))::double precision / 3600 END
		 WHERE id = $1 AND signed_out_at IS NULL AND (signed_in_at IS NULL OR signed_in_at <= $2)
		 RETURNING `+sessionColumns,
		id, out,
	))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, persistErr("close session", err)
	}

	current, err := d.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.SignedOutAt != nil {
		return nil, fmt.Errorf("session %d: %w", id, domain.ErrAlreadyClosed)
	}
	return nil, fmt.Errorf("session %d: %w", id, domain.ErrInvalidInterval)
}

// HasAnySignedInSession reports whether any session has a sign-in in [dayStart, dayEnd).
func (d *DB) HasAnySignedInSession(ctx context.Context, userID int64, dayStart, dayEnd time.Time) (bool, error) {
	var exists bool
	err := d.sql.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM attendance_sessions WHERE user_id = $1 AND signed_in_at >= $2 AND signed_in_at < $3)",
		userID, dayStart.UTC(), dayEnd.UTC(),
	).Scan(&exists)
	if err != nil {
		return false, persistErr("check signed-in session", err)
	}
	return exists, nil
}

// CreateAbsencePlaceholder inserts a placeholder unless the partial unique
// index already holds one for the user and day.
func (d *DB) CreateAbsencePlaceholder(ctx context.Context, userID int64, localDate, tz string) (*domain.AttendanceSession, bool, error) {
	s, err := scanSession(d.sql.QueryRowContext(ctx,
		`INSERT INTO attendance_sessions (user_id, local_date, timezone, worked_hours, created_at)
		 VALUES ($1, $2, $3, 0, $4)
		 ON CONFLICT (user_id, local_date) WHERE signed_in_at IS NULL AND signed_out_at IS NULL DO NOTHING
		 RETURNING `+sessionColumns,
		userID, localDate, tz, time.Now().UTC(),
	))
	if err == nil {
		return s, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, persistErr("create absence placeholder", err)
	}

	s, err = scanSession(d.sql.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM attendance_sessions WHERE user_id = $1 AND local_date = $2 AND signed_in_at IS NULL AND signed_out_at IS NULL",
		userID, localDate,
	))
	if err != nil {
		return nil, false, persistErr("read absence placeholder", err)
	}
	return s, false, nil
}

// ListSessions returns a user's sessions with local_date in [fromDay, toDay], newest first.
func (d *DB) ListSessions(ctx context.Context, userID int64, fromDay, toDay string) ([]domain.AttendanceSession, error) {
	return d.ListAll(ctx, domain.AttendanceFilter{UserIDs: []int64{userID}, FromDay: fromDay, ToDay: toDay})
}

// GetSession retrieves a session by ID.
func (d *DB) GetSession(ctx context.Context, id int64) (*domain.AttendanceSession, error) {
	s, err := scanSession(d.sql.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM attendance_sessions WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, persistErr("get session", err)
	}
	return s, nil
}

// ListAll returns sessions matching f, newest first.
func (d *DB) ListAll(ctx context.Context, f domain.AttendanceFilter) ([]domain.AttendanceSession, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if f.UserIDs != nil {
		args = append(args, pq.Array(f.UserIDs))
		where = append(where, fmt.Sprintf("user_id = ANY($%d)", len(args)))
	}
	if f.FromDay != "" {
		args = append(args, f.FromDay)
		where = append(where, fmt.Sprintf("local_date >= $%d", len(args)))
	}
	if f.ToDay != "" {
		args = append(args, f.ToDay)
		where = append(where, fmt.Sprintf("local_date <= $%d", len(args)))
	}

	q := "SELECT " + sessionColumns + " FROM attendance_sessions"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += newestFirst

	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, persistErr("list sessions", err)
	}
	defer rows.Close() //nolint:errcheck

	out := make([]domain.AttendanceSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, persistErr("scan session", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list sessions", err)
	}
	return out, nil
}

// OverrideSession replaces the sign-in/out instants of a session.
func (d *DB) OverrideSession(ctx context.Context, id int64, signedInAt, signedOutAt *time.Time, workedHours float64) (*domain.AttendanceSession, error) {
	s, err := scanSession(d.sql.QueryRowContext(ctx,
		"UPDATE attendance_sessions SET signed_in_at = $2, signed_out_at = $3, worked_hours = $4 WHERE id = $1 RETURNING "+sessionColumns,
		id, nullTime(signedInAt), nullTime(signedOutAt), workedHours,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d: %w", id, domain.ErrNotFound)
	}
	if uniqueViolation(err) {
		return nil, fmt.Errorf("%w: user is already marked absent for that day", domain.ErrInvalidInput)
	}
	if err != nil {
		return nil, persistErr("override session", err)
	}
	return s, nil
}

// DeleteSession removes a session by ID.
func (d *DB) DeleteSession(ctx context.Context, id int64) error {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM attendance_sessions WHERE id = $1", id)
	if err != nil {
		return persistErr("delete session", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
