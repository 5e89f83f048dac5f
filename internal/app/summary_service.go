package app

import (
	"context"
	"fmt"
	"time"

	"markme/internal/clock"
	"markme/internal/domain"
)

// SummaryService aggregates sessions into per-day worked totals.
type SummaryService struct {
	attendance *AttendanceService
	repo       domain.AttendanceRepository
	resolver   *clock.Resolver
}

// NewSummaryService creates a SummaryService. Timezone resolution follows the
// same rules as sign-in.
func NewSummaryService(attendance *AttendanceService, repo domain.AttendanceRepository, resolver *clock.Resolver) *SummaryService {
	return &SummaryService{attendance: attendance, repo: repo, resolver: resolver}
}

// DayPoint is a single day returned by Daily.
type DayPoint struct {
	Day         string  `json:"day"`
	WorkedHours float64 `json:"workedHours"`
	Sessions    int     `json:"sessions"`
	Open        bool    `json:"open"`
	Absent      bool    `json:"absent"`
}

// Daily returns one point per local day for the last days days, oldest first.
func (s *SummaryService) Daily(ctx context.Context, userID int64, requestedTZ string, days int) ([]DayPoint, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be > 0", domain.ErrInvalidInput)
	}
	if days > 366 {
		days = 366
	}

	tz, err := s.attendance.Timezone(ctx, userID, requestedTZ)
	if err != nil {
		return nil, err
	}
	today, err := s.resolver.LocalDate(tz, s.resolver.Now())
	if err != nil {
		return nil, err
	}
	from, err := clock.AddDays(today, -(days - 1))
	if err != nil {
		return nil, err
	}

	sessions, err := s.repo.ListSessions(ctx, userID, from, today)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string][]domain.AttendanceSession, days)
	for _, sess := range sessions {
		byDay[sess.LocalDate] = append(byDay[sess.LocalDate], sess)
	}

	start, _ := time.Parse(domain.DayLayout, from)
	points := make([]DayPoint, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i).Format(domain.DayLayout)
		p := DayPoint{Day: day}
		for _, sess := range byDay[day] {
			switch {
			case sess.Absent():
				p.Absent = true
			case sess.Open():
				p.Open = true
				p.Sessions++
			default:
				p.Sessions++
				p.WorkedHours += sess.WorkedHours
			}
		}
		// An admin override can leave a placeholder next to real sessions.
		if p.Sessions > 0 {
			p.Absent = false
		}
		points = append(points, p)
	}
	return points, nil
}
