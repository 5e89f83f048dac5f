// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"markme/internal/domain"
)

// DB implements an in-memory database storage.
type DB struct {
	mu           sync.Mutex
	users        []*domain.User
	attendance   []*domain.AttendanceSession
	authSessions map[string]*domain.AuthSession

	userIDCounter       int64
	attendanceIDCounter int64

	now func() time.Time
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		authSessions: make(map[string]*domain.AuthSession),
		now:          time.Now,
	}
}

// Ensure interfaces are met.
var _ domain.AttendanceRepository = (*DB)(nil)
var _ domain.UserRepository = (*DB)(nil)
var _ domain.AuthSessionRepository = (*AuthSessionRepo)(nil)

func copySession(s *domain.AttendanceSession) *domain.AttendanceSession {
	c := *s
	if s.SignedInAt != nil {
		t := *s.SignedInAt
		c.SignedInAt = &t
	}
	if s.SignedOutAt != nil {
		t := *s.SignedOutAt
		c.SignedOutAt = &t
	}
	return &c
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// newestFirst orders by local date, then sign-in time, then id, all descending.
// Placeholders sort after signed-in sessions of the same day.
func newestFirst(out []domain.AttendanceSession) {
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.LocalDate != b.LocalDate {
			return a.LocalDate > b.LocalDate
		}
		switch {
		case a.SignedInAt != nil && b.SignedInAt != nil:
			if !a.SignedInAt.Equal(*b.SignedInAt) {
				return a.SignedInAt.After(*b.SignedInAt)
			}
		case a.SignedInAt != nil:
			return true
		case b.SignedInAt != nil:
			return false
		}
		return a.ID > b.ID
	})
}

// --- AttendanceRepository ---

// CreateSession inserts a new open session.
func (db *DB) CreateSession(ctx context.Context, userID int64, localDate, tz string, signedInAt time.Time) (*domain.AttendanceSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.attendanceIDCounter++
	in := signedInAt.UTC()
	s := &domain.AttendanceSession{
		ID:         db.attendanceIDCounter,
		UserID:     userID,
		LocalDate:  localDate,
		Timezone:   tz,
		SignedInAt: &in,
		CreatedAt:  db.now().UTC(),
	}
	db.attendance = append(db.attendance, s)
	return copySession(s), nil
}

// FindLatestOpenSession returns the most recently signed-in open session for
// the user's local day, or nil.
func (db *DB) FindLatestOpenSession(ctx context.Context, userID int64, localDate string) (*domain.AttendanceSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var latest *domain.AttendanceSession
	for _, s := range db.attendance {
		if s.UserID != userID || s.LocalDate != localDate || !s.Open() {
			continue
		}
		if latest == nil || s.SignedInAt.After(*latest.SignedInAt) ||
			(s.SignedInAt.Equal(*latest.SignedInAt) && s.ID > latest.ID) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	return copySession(latest), nil
}

// CloseSession sets the sign-out instant if the session is still open.
// The check and the write happen under one lock.
func (db *DB) CloseSession(ctx context.Context, id int64, signedOutAt time.Time) (*domain.AttendanceSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s := db.findSession(id)
	if s == nil {
		return nil, fmt.Errorf("session %d: %w", id, domain.ErrNotFound)
	}
	if s.SignedOutAt != nil {
		return nil, fmt.Errorf("session %d: %w", id, domain.ErrAlreadyClosed)
	}
	out := signedOutAt.UTC()
	if s.SignedInAt != nil {
		if out.Before(*s.SignedInAt) {
			return nil, fmt.Errorf("session %d: %w", id, domain.ErrInvalidInterval)
		}
		s.WorkedHours = domain.WorkedHours(*s.SignedInAt, out)
	}
	s.SignedOutAt = &out
	return copySession(s), nil
}

// HasAnySignedInSession reports whether any session has a sign-in in [dayStart, dayEnd).
func (db *DB) HasAnySignedInSession(ctx context.Context, userID int64, dayStart, dayEnd time.Time) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, s := range db.attendance {
		if s.UserID != userID || s.SignedInAt == nil {
			continue
		}
		if !s.SignedInAt.Before(dayStart) && s.SignedInAt.Before(dayEnd) {
			return true, nil
		}
	}
	return false, nil
}

// CreateAbsencePlaceholder inserts a placeholder unless one exists for the day.
func (db *DB) CreateAbsencePlaceholder(ctx context.Context, userID int64, localDate, tz string) (*domain.AttendanceSession, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, s := range db.attendance {
		if s.UserID == userID && s.LocalDate == localDate && s.Absent() {
			return copySession(s), false, nil
		}
	}

	db.attendanceIDCounter++
	s := &domain.AttendanceSession{
		ID:        db.attendanceIDCounter,
		UserID:    userID,
		LocalDate: localDate,
		Timezone:  tz,
		CreatedAt: db.now().UTC(),
	}
	db.attendance = append(db.attendance, s)
	return copySession(s), true, nil
}

// ListSessions returns a user's sessions with LocalDate in [fromDay, toDay], newest first.
func (db *DB) ListSessions(ctx context.Context, userID int64, fromDay, toDay string) ([]domain.AttendanceSession, error) {
	return db.ListAll(ctx, domain.AttendanceFilter{UserIDs: []int64{userID}, FromDay: fromDay, ToDay: toDay})
}

// GetSession retrieves a session by ID.
func (db *DB) GetSession(ctx context.Context, id int64) (*domain.AttendanceSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s := db.findSession(id)
	if s == nil {
		return nil, fmt.Errorf("session %d: %w", id, domain.ErrNotFound)
	}
	return copySession(s), nil
}

// ListAll returns sessions matching f, newest first.
func (db *DB) ListAll(ctx context.Context, f domain.AttendanceFilter) ([]domain.AttendanceSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var ids map[int64]bool
	if f.UserIDs != nil {
		ids = make(map[int64]bool, len(f.UserIDs))
		for _, id := range f.UserIDs {
			ids[id] = true
		}
	}

	out := make([]domain.AttendanceSession, 0)
	for _, s := range db.attendance {
		if ids != nil && !ids[s.UserID] {
			continue
		}
		if f.FromDay != "" && s.LocalDate < f.FromDay {
			continue
		}
		if f.ToDay != "" && s.LocalDate > f.ToDay {
			continue
		}
		out = append(out, *copySession(s))
	}
	newestFirst(out)
	return out, nil
}

// OverrideSession replaces the sign-in/out instants of a session.
func (db *DB) OverrideSession(ctx context.Context, id int64, signedInAt, signedOutAt *time.Time, workedHours float64) (*domain.AttendanceSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s := db.findSession(id)
	if s == nil {
		return nil, fmt.Errorf("session %d: %w", id, domain.ErrNotFound)
	}
	if signedInAt == nil && signedOutAt == nil {
		for _, other := range db.attendance {
			if other.ID != id && other.UserID == s.UserID && other.LocalDate == s.LocalDate && other.Absent() {
				return nil, fmt.Errorf("%w: user is already marked absent for that day", domain.ErrInvalidInput)
			}
		}
	}
	s.SignedInAt = utcPtr(signedInAt)
	s.SignedOutAt = utcPtr(signedOutAt)
	s.WorkedHours = workedHours
	return copySession(s), nil
}

// DeleteSession removes a session by ID.
func (db *DB) DeleteSession(ctx context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i, s := range db.attendance {
		if s.ID == id {
			db.attendance = append(db.attendance[:i], db.attendance[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("session %d: %w", id, domain.ErrNotFound)
}

func (db *DB) findSession(id int64) *domain.AttendanceSession {
	for _, s := range db.attendance {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// --- UserRepository ---

// GetByEmail retrieves a user by email, case-insensitively.
func (db *DB) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if u := db.findUser(id); u != nil {
		c := *u
		return &c, nil
	}
	return nil, nil
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if strings.EqualFold(u.Email, nu.Email) {
			return nil, fmt.Errorf("%w: email %q already registered", domain.ErrInvalidInput, nu.Email)
		}
	}

	db.userIDCounter++
	u := &domain.User{
		ID:           db.userIDCounter,
		Name:         nu.Name,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		Role:         nu.Role,
		Timezone:     nu.Timezone,
		WorkingHours: nu.WorkingHours,
		CreatedAt:    db.now().UTC(),
	}
	db.users = append(db.users, u)
	c := *u
	return &c, nil
}

// Update applies non-nil fields of upd.
func (db *DB) Update(ctx context.Context, id int64, upd domain.UserUpdate) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	u := db.findUser(id)
	if u == nil {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	if upd.Email != nil {
		for _, other := range db.users {
			if other.ID != id && strings.EqualFold(other.Email, *upd.Email) {
				return nil, fmt.Errorf("%w: email %q already registered", domain.ErrInvalidInput, *upd.Email)
			}
		}
		u.Email = *upd.Email
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	if upd.WorkingHours != nil {
		u.WorkingHours = *upd.WorkingHours
	}
	c := *u
	return &c, nil
}

// Delete removes a user and their attendance.
func (db *DB) Delete(ctx context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	idx := -1
	for i, u := range db.users {
		if u.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	db.users = append(db.users[:idx], db.users[idx+1:]...)

	kept := db.attendance[:0]
	for _, s := range db.attendance {
		if s.UserID != id {
			kept = append(kept, s)
		}
	}
	db.attendance = kept
	return nil
}

// List returns all users ordered by ID.
func (db *DB) List(ctx context.Context) ([]domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.User, 0, len(db.users))
	for _, u := range db.users {
		out = append(out, *u)
	}
	return out, nil
}

// Count returns the total number of users.
func (db *DB) Count(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users), nil
}

// UpdateTimezone stores the user's last known timezone.
func (db *DB) UpdateTimezone(ctx context.Context, id int64, tz string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	u := db.findUser(id)
	if u == nil {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	u.Timezone = tz
	return nil
}

func (db *DB) findUser(id int64) *domain.User {
	for _, u := range db.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// --- AuthSessionRepository ---

// AuthSessionRepo implements login session persistence.
type AuthSessionRepo struct {
	db *DB
}

// NewAuthSessionRepo creates a new login session repository.
func (db *DB) NewAuthSessionRepo() *AuthSessionRepo {
	return &AuthSessionRepo{db: db}
}

// Create creates a new login session.
func (r *AuthSessionRepo) Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.authSessions[token] = &domain.AuthSession{
		Token:     token,
		UserID:    userID,
		UserAgent: userAgent,
		IP:        ip,
		ExpiresAt: expiresAt,
		CreatedAt: r.db.now().UTC(),
	}
	return nil
}

// GetByToken retrieves a login session by token.
func (r *AuthSessionRepo) GetByToken(ctx context.Context, token string) (*domain.AuthSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.authSessions[token]
	if !ok {
		return nil, fmt.Errorf("auth session: %w", domain.ErrNotFound)
	}
	if r.db.now().After(s.ExpiresAt) {
		delete(r.db.authSessions, token)
		return nil, fmt.Errorf("auth session: %w", domain.ErrNotFound)
	}
	c := *s
	return &c, nil
}

// Delete deletes a login session.
func (r *AuthSessionRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.authSessions, token)
	return nil
}

// DeleteExpired deletes all expired login sessions.
func (r *AuthSessionRepo) DeleteExpired(ctx context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := r.db.now()
	for k, v := range r.db.authSessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.authSessions, k)
		}
	}
	return nil
}
