package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"markme/internal/clock"
	"markme/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted for new credentials.
const MinPasswordLength = 6

// AdminService backs the admin API: user management and attendance edits.
type AdminService struct {
	users     domain.UserRepository
	repo      domain.AttendanceRepository
	resolver  *clock.Resolver
	defaultTZ string
	log       *slog.Logger
}

// NewAdminService creates an AdminService. Range filters are evaluated in defaultTZ.
func NewAdminService(users domain.UserRepository, repo domain.AttendanceRepository, resolver *clock.Resolver, defaultTZ string, log *slog.Logger) *AdminService {
	return &AdminService{users: users, repo: repo, resolver: resolver, defaultTZ: defaultTZ, log: loggerOrDefault(log)}
}

// CreateUserInput is the admin form for a new user.
type CreateUserInput struct {
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Password     string      `json:"password"`
	Role         domain.Role `json:"role"`
	WorkingHours string      `json:"workingHours"`
	Timezone     string      `json:"timezone"`
}

// UpdateUserInput is the admin form for editing a user. Nil fields are unchanged.
type UpdateUserInput struct {
	Name         *string      `json:"name"`
	Email        *string      `json:"email"`
	Password     *string      `json:"password"`
	Role         *domain.Role `json:"role"`
	WorkingHours *string      `json:"workingHours"`
}

// AttendanceQuery filters the admin attendance listing.
type AttendanceQuery struct {
	UserID int64
	Name   string
	Date   string
	Range  string
}

// MarkAction is the half of a session an admin records with MarkAttendance.
type MarkAction string

const (
	MarkSignIn  MarkAction = "signin"
	MarkSignOut MarkAction = "signout"
)

// AttendanceRecord is a session joined with its owner.
type AttendanceRecord struct {
	domain.AttendanceSession
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

// normalizeWorkingHours accepts "H", "H:M" or "HH:MM" and returns "HH:MM".
func normalizeWorkingHours(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "09:00", nil
	}
	hStr, mStr, _ := strings.Cut(v, ":")
	if mStr == "" {
		mStr = "0"
	}
	h, err1 := strconv.Atoi(hStr)
	m, err2 := strconv.Atoi(mStr)
	if err1 != nil || err2 != nil || h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m > 0) {
		return "", fmt.Errorf("%w: working hours must be HH:MM, got %q", domain.ErrInvalidInput, v)
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

func validateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: invalid email %q", domain.ErrInvalidInput, email)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ListUsers returns every user.
func (s *AdminService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

// CreateUser validates the input and stores a user with a bcrypt hash.
func (s *AdminService) CreateUser(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = domain.RoleStaff
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, in.Role)
	}
	if in.Timezone != "" && !clock.Valid(in.Timezone) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTimezone, in.Timezone)
	}
	wh, err := normalizeWorkingHours(in.WorkingHours)
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u, err := s.users.Create(ctx, domain.NewUser{
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Timezone:     in.Timezone,
		WorkingHours: wh,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user created", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// UpdateUser applies an admin edit. A blank password leaves it unchanged.
func (s *AdminService) UpdateUser(ctx context.Context, id int64, in UpdateUserInput) (*domain.User, error) {
	var upd domain.UserUpdate
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		upd.Name = &name
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		upd.Email = &email
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, *in.Role)
		}
		upd.Role = in.Role
	}
	if in.WorkingHours != nil {
		wh, err := normalizeWorkingHours(*in.WorkingHours)
		if err != nil {
			return nil, err
		}
		upd.WorkingHours = &wh
	}
	if in.Password != nil && strings.TrimSpace(*in.Password) != "" {
		hash, err := hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		upd.PasswordHash = &hash
	}
	return s.users.Update(ctx, id, upd)
}

// DeleteUser removes a user and their attendance.
func (s *AdminService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("user deleted", "user_id", id)
	return nil
}

// ListAttendance returns sessions matching q, newest first. Date takes
// precedence over Range. Range is one of "today", "week" (last 7 days) or
// "month" (last 30 days).
func (s *AdminService) ListAttendance(ctx context.Context, q AttendanceQuery) ([]AttendanceRecord, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*domain.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	var f domain.AttendanceFilter
	if q.UserID != 0 {
		if byID[q.UserID] == nil {
			return nil, fmt.Errorf("user %d: %w", q.UserID, domain.ErrNotFound)
		}
		f.UserIDs = []int64{q.UserID}
	}
	if name := strings.TrimSpace(q.Name); name != "" {
		candidates := users
		if q.UserID != 0 {
			candidates = []domain.User{*byID[q.UserID]}
		}
		f.UserIDs = []int64{}
		for _, u := range candidates {
			if strings.Contains(strings.ToLower(u.Name), strings.ToLower(name)) {
				f.UserIDs = append(f.UserIDs, u.ID)
			}
		}
		if len(f.UserIDs) == 0 {
			return []AttendanceRecord{}, nil
		}
	}

	switch {
	case q.Date != "":
		if _, err := time.Parse(domain.DayLayout, q.Date); err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrInvalidInput)
		}
		f.FromDay, f.ToDay = q.Date, q.Date
	case q.Range != "":
		today, err := s.resolver.LocalDate(s.defaultTZ, s.resolver.Now())
		if err != nil {
			return nil, err
		}
		back := map[string]int{"today": 0, "week": 7, "month": 30}
		n, ok := back[q.Range]
		if !ok {
			return nil, fmt.Errorf("%w: unknown range %q", domain.ErrInvalidInput, q.Range)
		}
		from, err := clock.AddDays(today, -n)
		if err != nil {
			return nil, err
		}
		f.FromDay, f.ToDay = from, today
	}

	sessions, err := s.repo.ListAll(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]AttendanceRecord, 0, len(sessions))
	for _, sess := range sessions {
		rec := AttendanceRecord{AttendanceSession: sess}
		if u := byID[sess.UserID]; u != nil {
			rec.UserName, rec.UserEmail = u.Name, u.Email
		}
		out = append(out, rec)
	}
	return out, nil
}

// EditSession overrides a session's instants and recomputes worked hours.
// The local date never changes, so a new sign-in must fall on it.
func (s *AdminService) EditSession(ctx context.Context, id int64, signedInAt, signedOutAt *time.Time) (*domain.AttendanceSession, error) {
	current, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if signedInAt == nil && signedOutAt != nil {
		return nil, fmt.Errorf("%w: sign-out requires a sign-in", domain.ErrInvalidInput)
	}
	var worked float64
	if signedInAt != nil {
		day, err := s.resolver.LocalDate(current.Timezone, *signedInAt)
		if err != nil {
			return nil, err
		}
		if day != current.LocalDate {
			return nil, fmt.Errorf("%w: sign-in falls on %s, session belongs to %s", domain.ErrInvalidInput, day, current.LocalDate)
		}
		if signedOutAt != nil {
			if signedOutAt.Before(*signedInAt) {
				return nil, domain.ErrInvalidInterval
			}
			worked = domain.WorkedHours(*signedInAt, *signedOutAt)
		}
	}

	updated, err := s.repo.OverrideSession(ctx, id, signedInAt, signedOutAt, worked)
	if err != nil {
		return nil, err
	}
	s.log.Info("session overridden", "session_id", id, "user_id", updated.UserID)
	return updated, nil
}

// MarkAttendance records a sign-in or sign-out for a user at instant at, on
// the local day at falls on in the user's zone.
//
// A sign-in fills that day's absence placeholder if there is one and
// otherwise opens a new session. A sign-out closes the day's latest open
// session; a day with nothing open yields ErrNoActiveSession.
func (s *AdminService) MarkAttendance(ctx context.Context, userID int64, at time.Time, action MarkAction) (*domain.AttendanceSession, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	tz := effectiveTimezone(s.log, userID, "", u.Timezone, s.defaultTZ)
	day, err := s.resolver.LocalDate(tz, at)
	if err != nil {
		return nil, err
	}

	var sess *domain.AttendanceSession
	switch action {
	case MarkSignIn:
		sess, err = s.markSignIn(ctx, userID, day, tz, at)
	case MarkSignOut:
		open, ferr := s.repo.FindLatestOpenSession(ctx, userID, day)
		if ferr != nil {
			return nil, ferr
		}
		if open == nil {
			return nil, fmt.Errorf("%s: %w", day, domain.ErrNoActiveSession)
		}
		sess, err = s.repo.CloseSession(ctx, open.ID, at)
	default:
		return nil, fmt.Errorf("%w: action must be %q or %q, got %q", domain.ErrInvalidInput, MarkSignIn, MarkSignOut, action)
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("attendance marked", "user_id", userID, "session_id", sess.ID, "action", action, "local_date", day)
	return sess, nil
}

func (s *AdminService) markSignIn(ctx context.Context, userID int64, day, tz string, at time.Time) (*domain.AttendanceSession, error) {
	sessions, err := s.repo.ListSessions(ctx, userID, day, day)
	if err != nil {
		return nil, err
	}
	for _, existing := range sessions {
		if existing.Absent() {
			return s.repo.OverrideSession(ctx, existing.ID, &at, nil, 0)
		}
	}
	return s.repo.CreateSession(ctx, userID, day, tz, at)
}

// DeleteSession removes a session.
func (s *AdminService) DeleteSession(ctx context.Context, id int64) error {
	return s.repo.DeleteSession(ctx, id)
}
