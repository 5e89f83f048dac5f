package domain

import (
	"context"
	"time"
)

// DayLayout is the format of AttendanceSession.LocalDate.
const DayLayout = "2006-01-02"

// AttendanceSession is one sign-in/sign-out pair, or an absence placeholder
// when SignedInAt is nil.
type AttendanceSession struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"userId"`
	LocalDate   string     `json:"localDate"`
	Timezone    string     `json:"timezone"`
	SignedInAt  *time.Time `json:"signedInAt"`
	SignedOutAt *time.Time `json:"signedOutAt"`
	WorkedHours float64    `json:"workedHours"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Open reports whether the session has a sign-in but no sign-out yet.
func (s *AttendanceSession) Open() bool {
	return s.SignedInAt != nil && s.SignedOutAt == nil
}

// Absent reports whether the session is a sweeper-generated placeholder.
func (s *AttendanceSession) Absent() bool {
	return s.SignedInAt == nil && s.SignedOutAt == nil
}

// WorkedHours returns the elapsed time between in and out as fractional hours.
func WorkedHours(in, out time.Time) float64 {
	return out.Sub(in).Hours()
}

// AttendanceFilter narrows an admin listing. Zero values match everything.
type AttendanceFilter struct {
	UserIDs []int64
	FromDay string
	ToDay   string
}

// AttendanceRepository is the port for attendance session persistence.
type AttendanceRepository interface {
	CreateSession(ctx context.Context, userID int64, localDate, tz string, signedInAt time.Time) (*AttendanceSession, error)
	FindLatestOpenSession(ctx context.Context, userID int64, localDate string) (*AttendanceSession, error)
	// CloseSession sets SignedOutAt only if it is still unset.
	CloseSession(ctx context.Context, id int64, signedOutAt time.Time) (*AttendanceSession, error)
	HasAnySignedInSession(ctx context.Context, userID int64, dayStart, dayEnd time.Time) (bool, error)
	// CreateAbsencePlaceholder reports created=false and returns the existing
	// placeholder when the user is already marked absent for localDate.
	CreateAbsencePlaceholder(ctx context.Context, userID int64, localDate, tz string) (*AttendanceSession, bool, error)
	ListSessions(ctx context.Context, userID int64, fromDay, toDay string) ([]AttendanceSession, error)

	GetSession(ctx context.Context, id int64) (*AttendanceSession, error)
	ListAll(ctx context.Context, f AttendanceFilter) ([]AttendanceSession, error)
	OverrideSession(ctx context.Context, id int64, signedInAt, signedOutAt *time.Time, workedHours float64) (*AttendanceSession, error)
	DeleteSession(ctx context.Context, id int64) error
}
