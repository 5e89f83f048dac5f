package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"markme/internal/adapter/memory"
	"markme/internal/app"
	"markme/internal/clock"
	"markme/internal/domain"
)

func TestDaily_Aggregates(t *testing.T) {
	db := memory.New()
	ctx := context.Background()
	u, _ := db.Create(ctx, domain.NewUser{Email: "s@example.com", Role: domain.RoleStaff, Timezone: "UTC"})

	in := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	a, _ := db.CreateSession(ctx, u.ID, "2024-03-04", "UTC", in)
	_, _ = db.CloseSession(ctx, a.ID, in.Add(3*time.Hour))
	b, _ := db.CreateSession(ctx, u.ID, "2024-03-04", "UTC", in.Add(4*time.Hour))
	_, _ = db.CloseSession(ctx, b.ID, in.Add(8*time.Hour+30*time.Minute))
	_, _, _ = db.CreateAbsencePlaceholder(ctx, u.ID, "2024-03-05", "UTC")
	_, _ = db.CreateSession(ctx, u.ID, "2024-03-06", "UTC", time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC))

	resolver := clock.NewResolver(clock.FixedClock{T: time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)})
	attendance := app.NewAttendanceService(db, db, resolver, "UTC", nil)
	svc := app.NewSummaryService(attendance, db, resolver)

	points, err := svc.Daily(ctx, u.ID, "", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 4 {
		t.Fatalf("expected 4 points, got %d", len(points))
	}
	if points[0].Day != "2024-03-03" || points[3].Day != "2024-03-06" {
		t.Errorf("expected 2024-03-03..2024-03-06, got %s..%s", points[0].Day, points[3].Day)
	}
	if points[0].Sessions != 0 || points[0].Absent {
		t.Errorf("expected empty day, got %+v", points[0])
	}
	if points[1].WorkedHours != 7.5 || points[1].Sessions != 2 {
		t.Errorf("expected 7.5 hours over 2 sessions, got %+v", points[1])
	}
	if !points[2].Absent {
		t.Errorf("expected absent day, got %+v", points[2])
	}
	if !points[3].Open || points[3].WorkedHours != 0 {
		t.Errorf("expected open day, got %+v", points[3])
	}
}

func TestDaily_ClampsTo366(t *testing.T) {
	db := memory.New()
	ctx := context.Background()
	u, _ := db.Create(ctx, domain.NewUser{Email: "s@example.com", Role: domain.RoleStaff, Timezone: "UTC"})
	resolver := clock.NewResolver(nil)
	svc := app.NewSummaryService(app.NewAttendanceService(db, db, resolver, "UTC", nil), db, resolver)

	points, err := svc.Daily(ctx, u.ID, "", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 366 {
		t.Errorf("expected 366 points, got %d", len(points))
	}
	if _, err := svc.Daily(ctx, u.ID, "", 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for zero days, got %v", err)
	}
}
