package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/michaelbrown/dailyrun/internal/storage"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening memory db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetLaunch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	l := &storage.Launch{
		ID:      "abc12345-0000-0000-0000-000000000000",
		App:     "scheduled_analytics",
		Trigger: storage.TriggerManual,
		Status:  storage.StatusRunning,
	}
	if err := s.CreateLaunch(ctx, l); err != nil {
		t.Fatalf("CreateLaunch: %v", err)
	}

	got, err := s.GetLaunch(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetLaunch: %v", err)
	}
	if got.App != "scheduled_analytics" {
		t.Errorf("app = %q", got.App)
	}
	if got.Trigger != storage.TriggerManual {
		t.Errorf("trigger = %q", got.Trigger)
	}
	if got.Status != storage.StatusRunning {
		t.Errorf("status = %q", got.Status)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at should not be zero")
	}
	if !got.ExpiresAt.IsZero() {
		t.Errorf("expires_at = %s, want zero", got.ExpiresAt)
	}
}

func TestGetLaunchByPrefix(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	l := &storage.Launch{ID: "abc12345-0000-0000-0000-000000000000", Trigger: storage.TriggerManual, Status: storage.StatusRunning}
	if err := s.CreateLaunch(ctx, l); err != nil {
		t.Fatalf("CreateLaunch: %v", err)
	}

	got, err := s.GetLaunch(ctx, "abc12345")
	if err != nil {
		t.Fatalf("GetLaunch by prefix: %v", err)
	}
	if got.ID != l.ID {
		t.Errorf("got ID %q, want %q", got.ID, l.ID)
	}
}

func TestGetLaunchAmbiguousPrefix(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, id := range []string{"abc00000", "abc11111"} {
		if err := s.CreateLaunch(ctx, &storage.Launch{ID: id, Trigger: storage.TriggerManual, Status: storage.StatusRunning}); err != nil {
			t.Fatalf("CreateLaunch: %v", err)
		}
	}

	if _, err := s.GetLaunch(ctx, "abc"); err == nil {
		t.Fatal("expected error for ambiguous prefix")
	}
	if _, err := s.GetLaunch(ctx, "zzz"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetLaunch(zzz) error = %v, want ErrNotFound", err)
	}
}

func TestListLaunchesNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, id := range []string{"first", "second", "third"} {
		if err := s.CreateLaunch(ctx, &storage.Launch{ID: id, Trigger: storage.TriggerSchedule, Status: storage.StatusStarted}); err != nil {
			t.Fatalf("CreateLaunch: %v", err)
		}
	}

	launches, err := s.ListLaunches(ctx, storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListLaunches: %v", err)
	}
	if len(launches) != 3 {
		t.Fatalf("got %d launches, want 3", len(launches))
	}
	if launches[0].ID != "third" || launches[2].ID != "first" {
		t.Errorf("order = %s, %s, %s", launches[0].ID, launches[1].ID, launches[2].ID)
	}
}

func TestListLaunchesFilterAndLimit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.CreateLaunch(ctx, &storage.Launch{ID: "a1", Trigger: storage.TriggerManual, Status: storage.StatusStarted})
	s.CreateLaunch(ctx, &storage.Launch{ID: "a2", Trigger: storage.TriggerManual, Status: storage.StatusFailed})
	s.CreateLaunch(ctx, &storage.Launch{ID: "a3", Trigger: storage.TriggerManual, Status: storage.StatusStarted})

	started, err := s.ListLaunches(ctx, storage.ListOptions{Status: storage.StatusStarted})
	if err != nil {
		t.Fatalf("ListLaunches: %v", err)
	}
	if len(started) != 2 {
		t.Errorf("got %d started launches, want 2", len(started))
	}

	limited, err := s.ListLaunches(ctx, storage.ListOptions{Limit: 1})
	if err != nil {
		t.Fatalf("ListLaunches: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("got %d launches, want 1", len(limited))
	}
}

func TestUpdateLaunch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	l := &storage.Launch{ID: "upd1", Trigger: storage.TriggerManual, Status: storage.StatusRunning}
	s.CreateLaunch(ctx, l)

	expires := time.Date(2026, 10, 20, 22, 0, 0, 0, time.UTC)
	l.Status = storage.StatusStarted
	l.SandboxID = "c0ffee"
	l.Image = "dailyrun/scheduled_analytics:abc"
	l.ExpiresAt = expires
	if err := s.UpdateLaunch(ctx, l); err != nil {
		t.Fatalf("UpdateLaunch: %v", err)
	}

	got, err := s.GetLaunch(ctx, "upd1")
	if err != nil {
		t.Fatalf("GetLaunch: %v", err)
	}
	if got.Status != storage.StatusStarted {
		t.Errorf("status = %q", got.Status)
	}
	if got.SandboxID != "c0ffee" {
		t.Errorf("sandbox_id = %q", got.SandboxID)
	}
	if !got.ExpiresAt.Equal(expires) {
		t.Errorf("expires_at = %s, want %s", got.ExpiresAt, expires)
	}
}

func TestUpdateMissingLaunch(t *testing.T) {
	s := testStore(t)
	err := s.UpdateLaunch(context.Background(), &storage.Launch{ID: "ghost", Trigger: storage.TriggerManual, Status: storage.StatusFailed})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("UpdateLaunch error = %v, want ErrNotFound", err)
	}
}

func TestInvalidStatusRejected(t *testing.T) {
	s := testStore(t)
	err := s.CreateLaunch(context.Background(), &storage.Launch{ID: "bad", Trigger: storage.TriggerManual, Status: "exploded"})
	if err == nil {
		t.Fatal("expected CHECK constraint violation")
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dailyrun.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.CreateLaunch(ctx, &storage.Launch{ID: "keep", Trigger: storage.TriggerSchedule, Status: storage.StatusStarted}); err != nil {
		t.Fatalf("CreateLaunch: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer s.Close()

	if _, err := s.GetLaunch(ctx, "keep"); err != nil {
		t.Fatalf("GetLaunch after reopen: %v", err)
	}
}
