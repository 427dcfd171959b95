package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/repository"
)

const (
	defaultRole = "Unknown"
	defaultTier = "FREE"
	dayLayout   = "2006-01-02"
)

// AnalyticsService serves per-event analytics snapshots, consulting the
// snapshot cache before recomputing.
type AnalyticsService struct {
	events        repository.EventStore
	registrations repository.RegistrationStore
	users         repository.UserDirectory
	cache         SnapshotCache
	now           func() time.Time
	log           *slog.Logger
}

// NewAnalyticsService constructs an AnalyticsService. A nil cache disables
// caching.
func NewAnalyticsService(
	events repository.EventStore,
	registrations repository.RegistrationStore,
	users repository.UserDirectory,
	cache SnapshotCache,
) *AnalyticsService {
	if cache == nil {
		cache = nopCache{}
	}
	return &AnalyticsService{
		events:        events,
		registrations: registrations,
		users:         users,
		cache:         cache,
		now:           func() time.Time { return time.Now().UTC() },
		log:           slog.Default(),
	}
}

// EventAnalytics returns the analytics snapshot for eventID.
func (s *AnalyticsService) EventAnalytics(ctx context.Context, eventID string) (*model.EventAnalytics, error) {
	if eventID == "" {
		return nil, fmt.Errorf("%w: event id is required", ErrValidation)
	}
	if snap, err := s.cache.Get(ctx, eventID); err != nil {
		s.log.Warn("analytics cache read failed", "event_id", eventID, "error", err)
	} else if snap != nil {
		return snap, nil
	}

	// The generation is read before the roster so that a commit landing in
	// between makes the Set below a no-op.
	gen, genErr := s.cache.Generation(ctx, eventID)
	if genErr != nil {
		s.log.Warn("analytics cache generation read failed", "event_id", eventID, "error", genErr)
	}

	event, rows, err := loadRoster(ctx, s.events, s.registrations, s.users, eventID)
	if err != nil {
		return nil, err
	}
	snap := Aggregate(*event, rows, s.now())
	if genErr == nil {
		if err := s.cache.Set(ctx, snap, gen); err != nil {
			s.log.Warn("analytics cache write failed", "event_id", eventID, "error", err)
		}
	}
	return snap, nil
}

// Aggregate reduces the full registration set of one event to an analytics
// snapshot. Percentages are rounded half-up to whole numbers.
func Aggregate(event model.Event, rows []model.RegistrationRow, now time.Time) *model.EventAnalytics {
	snap := &model.EventAnalytics{
		EventID:     event.ID,
		Capacity:    event.Capacity,
		ByRole:      make(map[string]int),
		ByTier:      make(map[string]int),
		TimeTrends:  make(map[string]int),
		GeneratedAt: now,
	}

	var (
		promoted      int
		everWaitlist  int
		promotionTime time.Duration
	)
	sum := &snap.Summary
	for _, row := range rows {
		sum.TotalRegistrations++
		switch row.Status {
		case model.StatusConfirmed:
			sum.Confirmed++
		case model.StatusWaitlisted:
			sum.Waitlisted++
		case model.StatusCancelled:
			sum.Cancelled++
		case model.StatusAttended:
			sum.Attended++
		}

		snap.ByRole[orDefault(row.User.Role, defaultRole)]++
		snap.ByTier[orDefault(row.User.Tier, defaultTier)]++
		snap.TimeTrends[row.RegisteredAt.UTC().Format(dayLayout)]++

		if row.PromotedFromWaitlistAt != nil {
			promoted++
			promotionTime += row.PromotedFromWaitlistAt.Sub(row.RegisteredAt)
		}
		if row.Status == model.StatusWaitlisted || row.PromotedFromWaitlistAt != nil {
			everWaitlist++
		}
	}

	active := sum.Confirmed + sum.Attended
	if event.Capacity != nil {
		u := percent(active, *event.Capacity)
		sum.CapacityUtilization = &u
	}
	sum.AttendanceRate = percent(sum.Attended, active)
	sum.DropOffRate = percent(sum.Cancelled, sum.TotalRegistrations)

	if promoted > 0 {
		hours := promotionTime.Hours() / float64(promoted)
		avg := math.Floor(hours*100+0.5) / 100
		snap.WaitlistMetrics.AveragePromotionTime = &avg
	}
	snap.WaitlistMetrics.PromotionRate = percent(promoted, everWaitlist)
	return snap
}

// percent returns round-half-up(num/den*100), or 0 when den is 0.
func percent(num, den int) int {
	if den <= 0 {
		return 0
	}
	return int(math.Floor(float64(num)*100/float64(den) + 0.5))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
