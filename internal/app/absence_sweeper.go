package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"markme/internal/clock"
	"markme/internal/domain"
)

// SweepReport summarises one absence sweep.
type SweepReport struct {
	Checked       int `json:"checked"`
	Marked        int `json:"marked"`
	AlreadyMarked int `json:"alreadyMarked"`
	Present       int `json:"present"`
	Skipped       int `json:"skipped"`
	Failed        int `json:"failed"`
}

// AbsenceSweeper creates absence placeholders for users who never signed in
// on a local day.
type AbsenceSweeper struct {
	users      domain.UserRepository
	repo       domain.AttendanceRepository
	resolver   *clock.Resolver
	fallbackTZ string
	log        *slog.Logger
}

// NewAbsenceSweeper creates an AbsenceSweeper. Users without a stored
// timezone are skipped unless fallbackTZ is non-empty.
func NewAbsenceSweeper(users domain.UserRepository, repo domain.AttendanceRepository, resolver *clock.Resolver, fallbackTZ string, log *slog.Logger) *AbsenceSweeper {
	return &AbsenceSweeper{
		users:      users,
		repo:       repo,
		resolver:   resolver,
		fallbackTZ: fallbackTZ,
		log:        loggerOrDefault(log),
	}
}

type dayPicker func(tz string, ref time.Time) (time.Time, time.Time, error)

// Sweep checks, for every user, the local day containing ref.
func (s *AbsenceSweeper) Sweep(ctx context.Context, ref time.Time) (SweepReport, error) {
	return s.run(ctx, ref, s.resolver.LocalDayBounds)
}

// SweepCompletedDay checks, for every user, the local day that most recently
// ended before now. This is what the daily schedule runs.
func (s *AbsenceSweeper) SweepCompletedDay(ctx context.Context, now time.Time) (SweepReport, error) {
	return s.run(ctx, now, s.resolver.PreviousDayBounds)
}

func (s *AbsenceSweeper) run(ctx context.Context, ref time.Time, pick dayPicker) (SweepReport, error) {
	var report SweepReport

	users, err := s.users.List(ctx)
	if err != nil {
		return report, fmt.Errorf("absence sweep: list users: %w", err)
	}

	for i := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		u := &users[i]
		report.Checked++

		tz := u.Timezone
		if tz == "" {
			tz = s.fallbackTZ
		}
		if tz == "" {
			report.Skipped++
			s.log.Info("skipping absence check, no timezone set", "user_id", u.ID, "name", u.Name)
			continue
		}

		marked, created, err := s.sweepUser(ctx, u, tz, ref, pick)
		switch {
		case err != nil:
			report.Failed++
			s.log.Error("absence check failed", "user_id", u.ID, "timezone", tz, "error", err)
		case !marked:
			report.Present++
		case created:
			report.Marked++
		default:
			report.AlreadyMarked++
		}
	}

	s.log.Info("absence sweep completed",
		"checked", report.Checked,
		"marked", report.Marked,
		"already_marked", report.AlreadyMarked,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

// sweepUser reports whether the user is absent for the picked day and
// whether a new placeholder was written.
func (s *AbsenceSweeper) sweepUser(ctx context.Context, u *domain.User, tz string, ref time.Time, pick dayPicker) (bool, bool, error) {
	start, end, err := pick(tz, ref)
	if err != nil {
		return false, false, err
	}
	present, err := s.repo.HasAnySignedInSession(ctx, u.ID, start, end)
	if err != nil {
		return false, false, err
	}
	if present {
		return false, false, nil
	}

	localDate := start.Format(domain.DayLayout)
	_, created, err := s.repo.CreateAbsencePlaceholder(ctx, u.ID, localDate, tz)
	if err != nil {
		return false, false, err
	}
	if created {
		s.log.Info("marked absent", "user_id", u.ID, "name", u.Name, "local_date", localDate, "timezone", tz)
	}
	return true, created, nil
}
