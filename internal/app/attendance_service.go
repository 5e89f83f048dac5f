package app

import (
	"context"
	"fmt"
	"log/slog"

	"markme/internal/clock"
	"markme/internal/domain"
)

// AttendanceService implements sign-in, sign-out and the per-user queries.
type AttendanceService struct {
	repo      domain.AttendanceRepository
	users     domain.UserRepository
	resolver  *clock.Resolver
	defaultTZ string
	log       *slog.Logger
}

// NewAttendanceService creates an AttendanceService. defaultTZ must be a
// valid IANA zone; it is used when neither the request nor the user has one.
func NewAttendanceService(repo domain.AttendanceRepository, users domain.UserRepository, resolver *clock.Resolver, defaultTZ string, log *slog.Logger) *AttendanceService {
	return &AttendanceService{
		repo:      repo,
		users:     users,
		resolver:  resolver,
		defaultTZ: defaultTZ,
		log:       loggerOrDefault(log),
	}
}

func (s *AttendanceService) user(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	return u, nil
}

// Timezone returns the zone a request for userID would use.
func (s *AttendanceService) Timezone(ctx context.Context, userID int64, requested string) (string, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return "", err
	}
	return effectiveTimezone(s.log, userID, requested, u.Timezone, s.defaultTZ), nil
}

// SignIn always opens a new session for the user's current local day, even
// when another session is still open.
func (s *AttendanceService) SignIn(ctx context.Context, userID int64, requestedTZ string) (*domain.AttendanceSession, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	tz := effectiveTimezone(s.log, userID, requestedTZ, u.Timezone, s.defaultTZ)

	now, err := s.resolver.NowInZone(tz)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	localDate, err := s.resolver.LocalDate(tz, now)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}

	if u.Timezone != tz {
		if err := s.users.UpdateTimezone(ctx, userID, tz); err != nil {
			s.log.Warn("could not persist user timezone", "user_id", userID, "timezone", tz, "error", err)
		}
	}

	session, err := s.repo.CreateSession(ctx, userID, localDate, tz, now)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	s.log.Info("signed in", "user_id", userID, "session_id", session.ID, "local_date", localDate, "timezone", tz)
	return session, nil
}

// SignOut closes the most recently opened session of the user's current
// local day.
func (s *AttendanceService) SignOut(ctx context.Context, userID int64, requestedTZ string) (*domain.AttendanceSession, error) {
	tz, err := s.Timezone(ctx, userID, requestedTZ)
	if err != nil {
		return nil, fmt.Errorf("sign out: %w", err)
	}

	now, err := s.resolver.NowInZone(tz)
	if err != nil {
		return nil, fmt.Errorf("sign out: %w", err)
	}
	localDate, err := s.resolver.LocalDate(tz, now)
	if err != nil {
		return nil, fmt.Errorf("sign out: %w", err)
	}

	open, err := s.repo.FindLatestOpenSession(ctx, userID, localDate)
	if err != nil {
		return nil, fmt.Errorf("sign out: %w", err)
	}
	if open == nil {
		return nil, domain.ErrNoActiveSession
	}

	closed, err := s.repo.CloseSession(ctx, open.ID, now)
	if err != nil {
		return nil, fmt.Errorf("sign out: %w", err)
	}
	s.log.Info("signed out", "user_id", userID, "session_id", closed.ID, "worked_hours", closed.WorkedHours)
	return closed, nil
}

// Today lists the user's sessions for the current local day, newest first.
func (s *AttendanceService) Today(ctx context.Context, userID int64, requestedTZ string) ([]domain.AttendanceSession, string, error) {
	tz, err := s.Timezone(ctx, userID, requestedTZ)
	if err != nil {
		return nil, "", err
	}
	today, err := s.resolver.LocalDate(tz, s.resolver.Now())
	if err != nil {
		return nil, "", err
	}
	items, err := s.repo.ListSessions(ctx, userID, today, today)
	return items, today, err
}

// Week lists the user's sessions from Monday of the current local week
// through today, newest first.
func (s *AttendanceService) Week(ctx context.Context, userID int64, requestedTZ string) ([]domain.AttendanceSession, string, error) {
	tz, err := s.Timezone(ctx, userID, requestedTZ)
	if err != nil {
		return nil, "", err
	}
	now := s.resolver.Now()
	monday, err := s.resolver.WeekStart(tz, now)
	if err != nil {
		return nil, "", err
	}
	today, err := s.resolver.LocalDate(tz, now)
	if err != nil {
		return nil, "", err
	}
	from := monday.Format(domain.DayLayout)
	items, err := s.repo.ListSessions(ctx, userID, from, today)
	return items, from, err
}

// History lists every session of the user, newest first.
func (s *AttendanceService) History(ctx context.Context, userID int64) ([]domain.AttendanceSession, error) {
	return s.repo.ListSessions(ctx, userID, "", "")
}
