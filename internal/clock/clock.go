// Package clock resolves user-local calendar days from IANA timezone names.
package clock

import (
	"fmt"
	"strings"
	"time"

	"markme/internal/domain"
)

// DisplayLayout is the format used when showing instants to users.
const DisplayLayout = "2006-01-02 15:04:05"

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.T }

// Resolver computes local day boundaries. It is stateless apart from the
// injected Clock and never substitutes a default for a bad zone name.
type Resolver struct {
	clock Clock
}

// NewResolver creates a Resolver. A nil clock means the system clock.
func NewResolver(c Clock) *Resolver {
	if c == nil {
		c = SystemClock{}
	}
	return &Resolver{clock: c}
}

// Now returns the current instant in UTC.
func (r *Resolver) Now() time.Time {
	return r.clock.Now().UTC()
}

// LoadZone loads an IANA location, failing with domain.ErrInvalidTimezone.
func (r *Resolver) LoadZone(tz string) (*time.Location, error) {
	return LoadZone(tz)
}

// LoadZone loads an IANA location, failing with domain.ErrInvalidTimezone.
// "Local" is rejected because it depends on the server.
func LoadZone(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" || tz == "Local" {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTimezone, tz)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTimezone, tz)
	}
	return loc, nil
}

// Valid reports whether tz names a loadable zone.
func Valid(tz string) bool {
	_, err := LoadZone(tz)
	return err == nil
}

// NowInZone returns the current instant expressed in tz.
func (r *Resolver) NowInZone(tz string) (time.Time, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return time.Time{}, err
	}
	return r.clock.Now().In(loc), nil
}

// LocalDayBounds returns [start, end) of the calendar day containing instant
// as measured in tz. end is the next local midnight, so DST days are 23 or
// 25 hours long.
func (r *Resolver) LocalDayBounds(tz string, instant time.Time) (time.Time, time.Time, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, end := dayBounds(instant.In(loc))
	return start, end, nil
}

// PreviousDayBounds returns [start, end) of the local day before the one
// containing instant.
func (r *Resolver) PreviousDayBounds(tz string, instant time.Time) (time.Time, time.Time, error) {
	start, _, err := r.LocalDayBounds(tz, instant)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return r.LocalDayBounds(tz, start.Add(-time.Nanosecond))
}

// LocalDate returns the YYYY-MM-DD date of instant in tz.
func (r *Resolver) LocalDate(tz string, instant time.Time) (string, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return "", err
	}
	return instant.In(loc).Format(domain.DayLayout), nil
}

// WeekStart returns local midnight of the Monday on or before instant in tz.
func (r *Resolver) WeekStart(tz string, instant time.Time) (time.Time, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return time.Time{}, err
	}
	local := instant.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	start, _ := dayBounds(local)
	return time.Date(start.Year(), start.Month(), start.Day()-offset, 0, 0, 0, 0, loc), nil
}

// Format renders instant in tz using DisplayLayout.
func (r *Resolver) Format(tz string, instant time.Time) (string, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return "", err
	}
	return instant.In(loc).Format(DisplayLayout), nil
}

// AddDays shifts a YYYY-MM-DD date by n calendar days.
func AddDays(day string, n int) (string, error) {
	d, err := time.Parse(domain.DayLayout, day)
	if err != nil {
		return "", fmt.Errorf("%w: bad date %q", domain.ErrInvalidInput, day)
	}
	return d.AddDate(0, 0, n).Format(domain.DayLayout), nil
}

func dayBounds(local time.Time) (time.Time, time.Time) {
	loc := local.Location()
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc), time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}
