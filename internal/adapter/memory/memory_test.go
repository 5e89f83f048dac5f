package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"markme/internal/domain"
)

func TestAttendanceRepository(t *testing.T) {
	db := New()
	ctx := context.Background()
	userID := int64(1)

	in := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s, err := db.CreateSession(ctx, userID, "2024-03-01", "UTC", in)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if s.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if !s.Open() {
		t.Error("expected new session to be open")
	}

	open, err := db.FindLatestOpenSession(ctx, userID, "2024-03-01")
	if err != nil {
		t.Fatalf("FindLatestOpenSession: %v", err)
	}
	if open == nil || open.ID != s.ID {
		t.Fatalf("expected open session %d, got %+v", s.ID, open)
	}

	// Other user and other day see nothing.
	if other, _ := db.FindLatestOpenSession(ctx, 999, "2024-03-01"); other != nil {
		t.Error("expected no open session for other user")
	}
	if other, _ := db.FindLatestOpenSession(ctx, userID, "2024-03-02"); other != nil {
		t.Error("expected no open session for other day")
	}

	closed, err := db.CloseSession(ctx, s.ID, time.Date(2024, 3, 1, 17, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if closed.WorkedHours != 8.5 {
		t.Errorf("expected 8.5 hours, got %v", closed.WorkedHours)
	}

	if _, err := db.CloseSession(ctx, s.ID, time.Now()); !errors.Is(err, domain.ErrAlreadyClosed) {
		t.Errorf("expected ErrAlreadyClosed, got %v", err)
	}
	if _, err := db.CloseSession(ctx, 12345, time.Now()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if open, _ := db.FindLatestOpenSession(ctx, userID, "2024-03-01"); open != nil {
		t.Error("expected no open session after close")
	}
}

func TestCloseSession_RejectsNegativeInterval(t *testing.T) {
	db := New()
	ctx := context.Background()
	in := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s, _ := db.CreateSession(ctx, 1, "2024-03-01", "UTC", in)

	if _, err := db.CloseSession(ctx, s.ID, in.Add(-time.Minute)); !errors.Is(err, domain.ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
	got, _ := db.GetSession(ctx, s.ID)
	if !got.Open() {
		t.Error("session should remain open after a rejected close")
	}
}

func TestFindLatestOpenSession_PicksMostRecent(t *testing.T) {
	db := New()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	first, _ := db.CreateSession(ctx, 1, "2024-03-01", "UTC", base)
	second, _ := db.CreateSession(ctx, 1, "2024-03-01", "UTC", base.Add(time.Hour))

	open, err := db.FindLatestOpenSession(ctx, 1, "2024-03-01")
	if err != nil {
		t.Fatalf("FindLatestOpenSession: %v", err)
	}
	if open.ID != second.ID {
		t.Errorf("expected latest session %d, got %d", second.ID, open.ID)
	}

	_, _ = db.CloseSession(ctx, second.ID, base.Add(2*time.Hour))
	open, _ = db.FindLatestOpenSession(ctx, 1, "2024-03-01")
	if open == nil || open.ID != first.ID {
		t.Errorf("expected first session to remain open, got %+v", open)
	}
}

func TestCloseSession_Concurrent(t *testing.T) {
	db := New()
	ctx := context.Background()
	s, _ := db.CreateSession(ctx, 1, "2024-03-01", "UTC", time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := db.CloseSession(ctx, s.ID, time.Date(2024, 3, 1, 17, i, 0, 0, time.UTC))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrAlreadyClosed):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != n-1 {
		t.Errorf("expected 1 success and %d conflicts, got %d and %d", n-1, ok, conflicts)
	}
}

func TestAbsencePlaceholder(t *testing.T) {
	db := New()
	ctx := context.Background()

	p, created, err := db.CreateAbsencePlaceholder(ctx, 1, "2024-03-01", "UTC")
	if err != nil {
		t.Fatalf("CreateAbsencePlaceholder: %v", err)
	}
	if !created || !p.Absent() || p.WorkedHours != 0 {
		t.Errorf("unexpected placeholder: created=%v %+v", created, p)
	}

	again, created, err := db.CreateAbsencePlaceholder(ctx, 1, "2024-03-01", "UTC")
	if err != nil {
		t.Fatalf("CreateAbsencePlaceholder: %v", err)
	}
	if created || again.ID != p.ID {
		t.Errorf("expected existing placeholder %d, got created=%v id=%d", p.ID, created, again.ID)
	}

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	has, _ := db.HasAnySignedInSession(ctx, 1, start, start.Add(24*time.Hour))
	if has {
		t.Error("placeholder must not count as signed in")
	}
}

func TestHasAnySignedInSession_Range(t *testing.T) {
	db := New()
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	_, _ = db.CreateSession(ctx, 1, "2024-03-02", "UTC", end)
	has, _ := db.HasAnySignedInSession(ctx, 1, start, end)
	if has {
		t.Error("end bound must be exclusive")
	}

	_, _ = db.CreateSession(ctx, 1, "2024-03-01", "UTC", start)
	has, _ = db.HasAnySignedInSession(ctx, 1, start, end)
	if !has {
		t.Error("start bound must be inclusive")
	}
}

func TestListSessions_NewestFirst(t *testing.T) {
	db := New()
	ctx := context.Background()
	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	_, _ = db.CreateSession(ctx, 1, "2024-03-04", "UTC", base)
	_, _ = db.CreateSession(ctx, 1, "2024-03-05", "UTC", base.Add(24*time.Hour))
	_, _ = db.CreateSession(ctx, 1, "2024-03-05", "UTC", base.Add(26*time.Hour))
	_, _, _ = db.CreateAbsencePlaceholder(ctx, 1, "2024-03-03", "UTC")
	_, _ = db.CreateSession(ctx, 2, "2024-03-05", "UTC", base)

	items, err := db.ListSessions(ctx, 1, "2024-03-04", "2024-03-05")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(items))
	}
	if !items[0].SignedInAt.Equal(base.Add(26 * time.Hour)) {
		t.Errorf("expected newest first, got %v", items[0].SignedInAt)
	}
	if items[2].LocalDate != "2024-03-04" {
		t.Errorf("expected oldest last, got %s", items[2].LocalDate)
	}

	all, _ := db.ListAll(ctx, domain.AttendanceFilter{})
	if len(all) != 5 {
		t.Errorf("expected 5 sessions overall, got %d", len(all))
	}
}

func TestOverrideAndDeleteSession(t *testing.T) {
	db := New()
	ctx := context.Background()
	s, _, _ := db.CreateAbsencePlaceholder(ctx, 1, "2024-03-01", "UTC")

	in := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	out := in.Add(4 * time.Hour)
	got, err := db.OverrideSession(ctx, s.ID, &in, &out, 4)
	if err != nil {
		t.Fatalf("OverrideSession: %v", err)
	}
	if got.Absent() || got.WorkedHours != 4 {
		t.Errorf("unexpected override result: %+v", got)
	}

	if err := db.DeleteSession(ctx, s.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := db.GetSession(ctx, s.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := db.DeleteSession(ctx, s.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestOverrideSession_SingleAbsencePerDay(t *testing.T) {
	db := New()
	ctx := context.Background()
	if _, _, err := db.CreateAbsencePlaceholder(ctx, 1, "2024-03-01", "UTC"); err != nil {
		t.Fatalf("CreateAbsencePlaceholder: %v", err)
	}
	s, err := db.CreateSession(ctx, 1, "2024-03-01", "UTC", time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := db.OverrideSession(ctx, s.ID, nil, nil, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for a second absence, got %v", err)
	}
	got, _ := db.GetSession(ctx, s.ID)
	if got.SignedInAt == nil {
		t.Error("rejected override must leave the session unchanged")
	}

	// Another user's day is unaffected.
	other, _ := db.CreateSession(ctx, 2, "2024-03-01", "UTC", time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	if _, err := db.OverrideSession(ctx, other.ID, nil, nil, 0); err != nil {
		t.Errorf("OverrideSession for another user: %v", err)
	}
}

func TestUserRepository(t *testing.T) {
	db := New()
	ctx := context.Background()

	u, err := db.Create(ctx, domain.NewUser{Name: "Ayesha", Email: "ayesha@example.com", Role: domain.RoleStaff})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := db.Create(ctx, domain.NewUser{Email: "AYESHA@example.com"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected duplicate email to fail, got %v", err)
	}

	got, _ := db.GetByEmail(ctx, "Ayesha@Example.com")
	if got == nil || got.ID != u.ID {
		t.Fatalf("GetByEmail: got %+v", got)
	}

	if err := db.UpdateTimezone(ctx, u.ID, "Asia/Karachi"); err != nil {
		t.Fatalf("UpdateTimezone: %v", err)
	}
	got, _ = db.GetByID(ctx, u.ID)
	if got.Timezone != "Asia/Karachi" {
		t.Errorf("expected timezone to persist, got %q", got.Timezone)
	}

	name := "Ayesha K"
	updated, err := db.Update(ctx, u.ID, domain.UserUpdate{Name: &name})
	if err != nil || updated.Name != name {
		t.Errorf("Update: %+v %v", updated, err)
	}

	_, _ = db.CreateSession(ctx, u.ID, "2024-03-01", "UTC", time.Now())
	if err := db.Delete(ctx, u.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n, _ := db.Count(ctx); n != 0 {
		t.Errorf("expected 0 users, got %d", n)
	}
	if all, _ := db.ListAll(ctx, domain.AttendanceFilter{}); len(all) != 0 {
		t.Errorf("expected attendance to be removed with user, got %d", len(all))
	}
}

func TestAuthSessionRepository(t *testing.T) {
	db := New()
	repo := db.NewAuthSessionRepo()
	ctx := context.Background()

	if err := repo.Create(ctx, 1, "tok", "ua", "127.0.0.1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	s, err := repo.GetByToken(ctx, "tok")
	if err != nil || s.UserID != 1 {
		t.Fatalf("GetByToken: %+v %v", s, err)
	}

	_ = repo.Create(ctx, 1, "old", "ua", "127.0.0.1", time.Now().Add(-time.Hour))
	if _, err := repo.GetByToken(ctx, "old"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected expired token to be not found, got %v", err)
	}

	_ = repo.Delete(ctx, "tok")
	if _, err := repo.GetByToken(ctx, "tok"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected deleted token to be not found, got %v", err)
	}
}
