package maintenance

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"astro-rag/internal/cache"
)

// never fires, so tests drive Sweep themselves.
const never = "0 0 31 2 *"

type countingCleaner struct{ calls int }

func (c *countingCleaner) CleanupExpired() int {
	c.calls++
	return 3
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	t.Parallel()

	if _, err := Start("every five minutes", &countingCleaner{}, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected an invalid schedule to be rejected")
	}
}

func TestStart_DefaultSchedule(t *testing.T) {
	t.Parallel()

	s, err := Start("", &countingCleaner{}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("default schedule must parse: %v", err)
	}
	s.Stop()
}

func TestSweep_CountsRemovals(t *testing.T) {
	t.Parallel()

	c := &countingCleaner{}
	s, err := Start(never, c, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	s.Sweep()
	s.Sweep()
	if c.calls != 2 {
		t.Fatalf("expected 2 cleanups, got %d", c.calls)
	}
	if s.Runs() != 2 || s.Removed() != 6 {
		t.Fatalf("expected 2 runs and 6 removals, got %d and %d", s.Runs(), s.Removed())
	}
}

func TestSweep_DropsExpiredManagerEntries(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	mgr := cache.NewManager(cache.NewMemoryStore(cache.MemoryConfig{Now: clock}), cache.ManagerConfig{Now: clock}, zaptest.NewLogger(t))
	ctx := context.Background()
	if err := mgr.Set(ctx, "short", 1, time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := mgr.Set(ctx, "long", 1, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	s, err := Start(never, mgr, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	now = now.Add(time.Minute)
	if removed := s.Sweep(); removed != 1 {
		t.Fatalf("expected 1 expired entry removed, got %d", removed)
	}
	if !mgr.Exists(ctx, "long") {
		t.Fatalf("live entries must survive the sweep")
	}
}
