package domain_test

import (
	"math"
	"testing"
	"time"

	"markme/internal/domain"
)

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestWorkedHours(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   time.Time
		out  time.Time
		want float64
	}{
		{"full day", base, base.Add(8*time.Hour + 30*time.Minute), 8.5},
		{"zero length", base, base, 0},
		{"one minute", base, base.Add(time.Minute), 1.0 / 60},
		{"across midnight", base.Add(14 * time.Hour), base.Add(26 * time.Hour), 12},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := domain.WorkedHours(tc.in, tc.out)
			if !almostEqual(got, tc.want, 1e-9) {
				t.Errorf("WorkedHours(%v, %v) = %v; want %v", tc.in, tc.out, got, tc.want)
			}
		})
	}
}

func TestWorkedHours_ExactHalfHour(t *testing.T) {
	in := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	out := time.Date(2024, 3, 1, 17, 30, 0, 0, time.UTC)
	if got := domain.WorkedHours(in, out); got != 8.5 {
		t.Fatalf("expected exactly 8.5, got %v", got)
	}
}

func TestSessionStates(t *testing.T) {
	now := time.Now()
	open := domain.AttendanceSession{SignedInAt: &now}
	if !open.Open() || open.Absent() {
		t.Errorf("expected open session, got open=%v absent=%v", open.Open(), open.Absent())
	}
	closed := domain.AttendanceSession{SignedInAt: &now, SignedOutAt: &now}
	if closed.Open() || closed.Absent() {
		t.Errorf("expected closed session, got open=%v absent=%v", closed.Open(), closed.Absent())
	}
	absent := domain.AttendanceSession{}
	if absent.Open() || !absent.Absent() {
		t.Errorf("expected placeholder, got open=%v absent=%v", absent.Open(), absent.Absent())
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []domain.Role{domain.RoleAdmin, domain.RoleStaff} {
		if !r.Valid() {
			t.Errorf("%q should be valid", r)
		}
	}
	if domain.Role("owner").Valid() {
		t.Error("unknown role should be invalid")
	}
}
