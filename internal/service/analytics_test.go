package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/repository"
)

func row(status model.Status, registered time.Time, role, tier string) model.RegistrationRow {
	return model.RegistrationRow{
		Registration: model.Registration{Status: status, RegisteredAt: registered},
		User:         model.User{Role: role, Tier: tier},
	}
}

func TestAggregateArithmetic(t *testing.T) {
	day1 := time.Date(2026, 5, 1, 23, 30, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Hour)

	var rows []model.RegistrationRow
	for i := 0; i < 6; i++ {
		rows = append(rows, row(model.StatusConfirmed, day1, "student", "PRO"))
	}
	rows = append(rows,
		row(model.StatusWaitlisted, day2, "", ""),
		row(model.StatusWaitlisted, day2, "mentor", ""),
		row(model.StatusCancelled, day2, "student", "PRO"),
		row(model.StatusAttended, day2, "student", "PRO"),
	)

	now := time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC)
	snap := Aggregate(model.Event{ID: "ev", Capacity: intPtr(10)}, rows, now)

	s := snap.Summary
	if s.TotalRegistrations != 10 || s.Confirmed != 6 || s.Waitlisted != 2 || s.Cancelled != 1 || s.Attended != 1 {
		t.Fatalf("counts = %+v", s)
	}
	if s.CapacityUtilization == nil || *s.CapacityUtilization != 70 {
		t.Errorf("capacityUtilization = %v, want 70", s.CapacityUtilization)
	}
	if s.AttendanceRate != 14 {
		t.Errorf("attendanceRate = %d, want 14", s.AttendanceRate)
	}
	if s.DropOffRate != 10 {
		t.Errorf("dropOffRate = %d, want 10", s.DropOffRate)
	}

	if snap.ByRole["student"] != 8 || snap.ByRole["Unknown"] != 1 || snap.ByRole["mentor"] != 1 {
		t.Errorf("byRole = %v", snap.ByRole)
	}
	if snap.ByTier["PRO"] != 8 || snap.ByTier["FREE"] != 2 {
		t.Errorf("byTier = %v", snap.ByTier)
	}
	if snap.TimeTrends["2026-05-01"] != 6 || snap.TimeTrends["2026-05-02"] != 4 {
		t.Errorf("timeTrends = %v", snap.TimeTrends)
	}
	if !snap.GeneratedAt.Equal(now) {
		t.Errorf("generatedAt = %v, want %v", snap.GeneratedAt, now)
	}
}

func TestAggregateWithoutCapacityOrRegistrations(t *testing.T) {
	snap := Aggregate(model.Event{ID: "ev"}, nil, time.Now())
	if snap.Summary.CapacityUtilization != nil {
		t.Errorf("capacityUtilization = %v, want nil", *snap.Summary.CapacityUtilization)
	}
	if snap.Summary.AttendanceRate != 0 || snap.Summary.DropOffRate != 0 {
		t.Errorf("rates = %+v, want zeros", snap.Summary)
	}
	if snap.WaitlistMetrics.AveragePromotionTime != nil || snap.WaitlistMetrics.PromotionRate != 0 {
		t.Errorf("waitlistMetrics = %+v, want empty", snap.WaitlistMetrics)
	}
}

func TestAggregateWaitlistMetrics(t *testing.T) {
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	promotedAfter := func(d time.Duration) model.RegistrationRow {
		r := row(model.StatusConfirmed, base, "", "")
		at := base.Add(d)
		r.PromotedFromWaitlistAt = &at
		return r
	}
	rows := []model.RegistrationRow{
		promotedAfter(2 * time.Hour),
		promotedAfter(3*time.Hour + 20*time.Minute),
		row(model.StatusWaitlisted, base, "", ""),
		row(model.StatusConfirmed, base, "", ""),
	}

	snap := Aggregate(model.Event{ID: "ev", Capacity: intPtr(3)}, rows, base)
	avg := snap.WaitlistMetrics.AveragePromotionTime
	if avg == nil || *avg != 2.67 {
		t.Errorf("averagePromotionTime = %v, want 2.67", avg)
	}
	if snap.WaitlistMetrics.PromotionRate != 67 {
		t.Errorf("promotionRate = %d, want 67", snap.WaitlistMetrics.PromotionRate)
	}
}

func TestPercentRoundsHalfUp(t *testing.T) {
	tests := []struct{ num, den, want int }{
		{1, 8, 13}, // 12.5
		{1, 3, 33},
		{2, 3, 67},
		{0, 0, 0},
		{5, 0, 0},
		{3, 3, 100},
	}
	for _, tt := range tests {
		if got := percent(tt.num, tt.den); got != tt.want {
			t.Errorf("percent(%d, %d) = %d, want %d", tt.num, tt.den, got, tt.want)
		}
	}
}

type mapCache struct {
	snaps       map[string]*model.EventAnalytics
	gens        map[string]int64
	invalidated []string
}

func newMapCache() *mapCache {
	return &mapCache{snaps: map[string]*model.EventAnalytics{}, gens: map[string]int64{}}
}

func (c *mapCache) Get(_ context.Context, id string) (*model.EventAnalytics, error) {
	return c.snaps[id], nil
}

func (c *mapCache) Generation(_ context.Context, id string) (int64, error) {
	return c.gens[id], nil
}

func (c *mapCache) Set(_ context.Context, snap *model.EventAnalytics, gen int64) error {
	if c.gens[snap.EventID] == gen {
		c.snaps[snap.EventID] = snap
	}
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, id string) error {
	delete(c.snaps, id)
	c.gens[id]++
	c.invalidated = append(c.invalidated, id)
	return nil
}

// lateCommitStore runs afterList once, right after the first roster read
// has been taken.
type lateCommitStore struct {
	repository.RegistrationStore
	afterList func()
}

func (s *lateCommitStore) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	regs, err := s.RegistrationStore.ListByEvent(ctx, eventID)
	if s.afterList != nil {
		hook := s.afterList
		s.afterList = nil
		hook()
	}
	return regs, err
}

func TestEventAnalyticsUsesCacheAndInvalidation(t *testing.T) {
	store := repository.NewMemory()
	cache := newMapCache()
	regs := NewRegistrationService(store.Registrations(), WithCache(cache))
	analytics := NewAnalyticsService(store.Events(), store.Registrations(), store.Users(), cache)
	ctx := context.Background()

	e := &model.Event{Title: "Meetup", Capacity: intPtr(4)}
	if err := store.Events().Create(ctx, e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	store.PutUser(model.User{ID: "u0", Role: "speaker", Tier: "PRO"})
	for i := 0; i < 2; i++ {
		if _, err := regs.Register(ctx, e.ID, fmt.Sprintf("u%d", i)); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}

	first, err := analytics.EventAnalytics(ctx, e.ID)
	if err != nil {
		t.Fatalf("EventAnalytics() error = %v", err)
	}
	if first.Summary.Confirmed != 2 || *first.Summary.CapacityUtilization != 50 {
		t.Fatalf("summary = %+v", first.Summary)
	}
	if first.ByRole["speaker"] != 1 || first.ByRole["Unknown"] != 1 {
		t.Errorf("byRole = %v", first.ByRole)
	}
	if again, _ := analytics.EventAnalytics(ctx, e.ID); again != first {
		t.Errorf("second call did not return cached snapshot")
	}

	if _, err := regs.Register(ctx, e.ID, "u9"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	fresh, err := analytics.EventAnalytics(ctx, e.ID)
	if err != nil {
		t.Fatalf("EventAnalytics() error = %v", err)
	}
	if fresh.Summary.Confirmed != 3 {
		t.Errorf("confirmed after invalidation = %d, want 3", fresh.Summary.Confirmed)
	}
}

func TestEventAnalyticsNotCachedAcrossConcurrentCommit(t *testing.T) {
	store := repository.NewMemory()
	cache := newMapCache()
	regs := NewRegistrationService(store.Registrations(), WithCache(cache))
	ctx := context.Background()

	e := &model.Event{Title: "Meetup", Capacity: intPtr(4)}
	if err := store.Events().Create(ctx, e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	racing := &lateCommitStore{RegistrationStore: store.Registrations()}
	racing.afterList = func() {
		if _, err := regs.Register(ctx, e.ID, "late"); err != nil {
			t.Errorf("Register() error = %v", err)
		}
	}
	analytics := NewAnalyticsService(store.Events(), racing, store.Users(), cache)

	first, err := analytics.EventAnalytics(ctx, e.ID)
	if err != nil {
		t.Fatalf("EventAnalytics() error = %v", err)
	}
	if first.Summary.TotalRegistrations != 0 {
		t.Fatalf("first total = %d, want 0 from the earlier read", first.Summary.TotalRegistrations)
	}
	if cache.snaps[e.ID] != nil {
		t.Fatal("snapshot computed before the commit was cached")
	}

	second, err := analytics.EventAnalytics(ctx, e.ID)
	if err != nil {
		t.Fatalf("EventAnalytics() error = %v", err)
	}
	if second.Summary.TotalRegistrations != 1 {
		t.Errorf("total after committed registration = %d, want 1", second.Summary.TotalRegistrations)
	}
	if cache.snaps[e.ID] != second {
		t.Error("current snapshot was not cached")
	}
}

func TestEventAnalyticsUnknownEvent(t *testing.T) {
	store := repository.NewMemory()
	analytics := NewAnalyticsService(store.Events(), store.Registrations(), store.Users(), nil)
	if _, err := analytics.EventAnalytics(context.Background(), "missing"); err != repository.ErrNotFound {
		t.Fatalf("EventAnalytics() error = %v, want ErrNotFound", err)
	}
}
