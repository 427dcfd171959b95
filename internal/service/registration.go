package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/repository"
)

// Notifier receives a notice for every committed transition.
type Notifier interface {
	Notify(ctx context.Context, n model.Notice) error
}

// SnapshotCache stores derived analytics per event. Get returns (nil, nil)
// on a miss.
//
// Every Invalidate advances the event's generation. Set stores snap only if
// the generation still equals gen, so a snapshot computed from a roster read
// before a commit is never written back after that commit's Invalidate.
type SnapshotCache interface {
	Get(ctx context.Context, eventID string) (*model.EventAnalytics, error)
	Generation(ctx context.Context, eventID string) (int64, error)
	Set(ctx context.Context, snap *model.EventAnalytics, gen int64) error
	Invalidate(ctx context.Context, eventID string) error
}

// Policy holds operator decisions that change registration rules.
type Policy struct {
	// AllowAdminOverbook lets an admin promote a waitlisted registration
	// when the event has no free slot. The overrun is logged as a warning.
	AllowAdminOverbook bool
}

const afterCommitTimeout = 5 * time.Second

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, model.Notice) error { return nil }

type nopCache struct{}

func (nopCache) Get(context.Context, string) (*model.EventAnalytics, error) { return nil, nil }
func (nopCache) Generation(context.Context, string) (int64, error)          { return 0, nil }
func (nopCache) Set(context.Context, *model.EventAnalytics, int64) error    { return nil }
func (nopCache) Invalidate(context.Context, string) error                   { return nil }

// RegistrationService drives the registration state machine:
//
//	(none)     --register--> confirmed | waitlisted | ErrEventFull
//	confirmed  --cancel-->   cancelled   (auto-promotes the waitlist head)
//	waitlisted --cancel-->   cancelled
//	confirmed  --attend-->   attended
//	waitlisted --promote-->  confirmed
//	confirmed  --demote-->   waitlisted  (appended to the waitlist)
//
// Every transition, including the waitlist renumbering it causes, runs in a
// single event-scoped unit of work from the store.
type RegistrationService struct {
	registrations repository.RegistrationStore
	policy        Policy
	notifier      Notifier
	cache         SnapshotCache
	now           func() time.Time
	log           *slog.Logger
}

// Option configures a RegistrationService.
type Option func(*RegistrationService)

// WithPolicy sets the registration policy.
func WithPolicy(p Policy) Option { return func(s *RegistrationService) { s.policy = p } }

// WithNotifier sets the notice sink.
func WithNotifier(n Notifier) Option { return func(s *RegistrationService) { s.notifier = n } }

// WithCache sets the analytics cache invalidated after each commit.
func WithCache(c SnapshotCache) Option { return func(s *RegistrationService) { s.cache = c } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *RegistrationService) { s.now = now } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *RegistrationService) { s.log = l } }

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(registrations repository.RegistrationStore, opts ...Option) *RegistrationService {
	s := &RegistrationService{
		registrations: registrations,
		notifier:      nopNotifier{},
		cache:         nopCache{},
		now:           func() time.Time { return time.Now().UTC() },
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a registration for userID, confirmed if the event has a
// free slot and waitlisted if it is full but keeps a waitlist.
func (s *RegistrationService) Register(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	if eventID == "" {
		return nil, fmt.Errorf("%w: event id is required", ErrValidation)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	var created model.Registration
	err := s.registrations.WithEventLock(ctx, eventID, func(tx repository.EventTx) error {
		regs, err := tx.Registrations(ctx)
		if err != nil {
			return err
		}
		for _, r := range regs {
			if r.UserID == userID && r.Status != model.StatusCancelled {
				return ErrAlreadyRegistered
			}
		}

		now := s.now()
		reg := model.Registration{
			EventID:      eventID,
			UserID:       userID,
			RegisteredAt: now,
			UpdatedAt:    now,
		}
		switch Decide(tx.Event(), countActive(regs)) {
		case DecisionConfirmed:
			reg.Status = model.StatusConfirmed
			reg.ConfirmedAt = &now
		case DecisionWaitlisted:
			pos := len(waitlistOf(regs)) + 1
			reg.Status = model.StatusWaitlisted
			reg.WaitlistPosition = &pos
		default:
			return ErrEventFull
		}

		if err := tx.Insert(ctx, &reg); err != nil {
			if errors.Is(err, repository.ErrDuplicateActive) {
				return ErrAlreadyRegistered
			}
			return err
		}
		created = reg
		return nil
	})
	if err != nil {
		return nil, err
	}

	kind := model.NoticeRegistered
	if created.Status == model.StatusWaitlisted {
		kind = model.NoticeWaitlisted
	}
	s.log.Info("registration created",
		"registration_id", created.ID, "event_id", eventID, "user_id", userID, "status", created.Status)
	s.afterCommit(ctx, eventID, noticeFor(kind, created))
	return &created, nil
}

// Cancel cancels a confirmed or waitlisted registration. The actor must own
// it unless privileged. Cancelling a confirmed registration on an event with
// a waitlist promotes the lowest-positioned waitlisted registrations into
// the freed capacity; the remaining waitlist is renumbered from 1.
func (s *RegistrationService) Cancel(ctx context.Context, actor model.Actor, registrationID string, reason *string) (*model.Registration, error) {
	reg, err := s.registrations.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) && !actor.Privileged {
			return nil, ErrNotOwner
		}
		return nil, err
	}
	if !actor.Privileged && reg.UserID != actor.UserID {
		return nil, ErrNotOwner
	}

	var cancelled model.Registration
	var promoted []model.Registration
	err = s.registrations.WithEventLock(ctx, reg.EventID, func(tx repository.EventTx) error {
		regs, err := tx.Registrations(ctx)
		if err != nil {
			return err
		}
		cur := find(regs, registrationID)
		if cur == nil {
			return repository.ErrNotFound
		}
		if cur.Status != model.StatusConfirmed && cur.Status != model.StatusWaitlisted {
			return invalidTransition("cancel", cur.Status)
		}

		wasConfirmed := cur.Status == model.StatusConfirmed
		now := s.now()
		cur.Status = model.StatusCancelled
		cur.CancelledAt = &now
		cur.CancellationReason = normalizeReason(reason)
		cur.WaitlistPosition = nil
		cur.UpdatedAt = now
		if err := tx.Update(ctx, cur); err != nil {
			return err
		}
		cancelled = *cur

		event := tx.Event()
		promoted, err = settleWaitlist(ctx, tx, event, regs, now, wasConfirmed && event.HasWaitlist)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("registration cancelled",
		"registration_id", cancelled.ID, "event_id", cancelled.EventID, "promoted", len(promoted))
	notices := []model.Notice{noticeFor(model.NoticeCancelled, cancelled)}
	for _, p := range promoted {
		notices = append(notices, noticeFor(model.NoticePromoted, p))
	}
	s.afterCommit(ctx, cancelled.EventID, notices...)
	return &cancelled, nil
}

// AdminPromote promotes a specific waitlisted registration regardless of its
// position. It fails with ErrOverCapacity when the event is full unless the
// policy allows admin overbooking.
func (s *RegistrationService) AdminPromote(ctx context.Context, registrationID string) (*model.PromotionResult, error) {
	reg, err := s.registrations.GetByID(ctx, registrationID)
	if err != nil {
		return nil, err
	}

	var promoted model.Registration
	var over bool
	err = s.registrations.WithEventLock(ctx, reg.EventID, func(tx repository.EventTx) error {
		regs, err := tx.Registrations(ctx)
		if err != nil {
			return err
		}
		cur := find(regs, registrationID)
		if cur == nil {
			return repository.ErrNotFound
		}
		if cur.Status != model.StatusWaitlisted {
			return invalidTransition("promote", cur.Status)
		}

		event := tx.Event()
		over = !hasFreeSlot(event, countActive(regs))
		if over && !s.policy.AllowAdminOverbook {
			return fmt.Errorf("%w: capacity %d reached", ErrOverCapacity, *event.Capacity)
		}

		now := s.now()
		promote(cur, now)
		if err := tx.Update(ctx, cur); err != nil {
			return err
		}
		promoted = *cur
		_, err = settleWaitlist(ctx, tx, event, regs, now, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	if over {
		s.log.Warn("admin promotion exceeds event capacity",
			"registration_id", promoted.ID, "event_id", promoted.EventID)
	} else {
		s.log.Info("registration promoted", "registration_id", promoted.ID, "event_id", promoted.EventID)
	}
	s.afterCommit(ctx, promoted.EventID, noticeFor(model.NoticePromoted, promoted))
	return &model.PromotionResult{Registration: &promoted, OverCapacity: over}, nil
}

// AdminDemote moves a confirmed registration to the end of the waitlist.
func (s *RegistrationService) AdminDemote(ctx context.Context, registrationID string) (*model.Registration, error) {
	reg, err := s.registrations.GetByID(ctx, registrationID)
	if err != nil {
		return nil, err
	}

	var demoted model.Registration
	err = s.registrations.WithEventLock(ctx, reg.EventID, func(tx repository.EventTx) error {
		regs, err := tx.Registrations(ctx)
		if err != nil {
			return err
		}
		cur := find(regs, registrationID)
		if cur == nil {
			return repository.ErrNotFound
		}
		if cur.Status != model.StatusConfirmed {
			return invalidTransition("demote", cur.Status)
		}
		event := tx.Event()
		if !event.HasWaitlist {
			return ErrWaitlistDisabled
		}

		now := s.now()
		pos := len(waitlistOf(regs)) + 1
		cur.Status = model.StatusWaitlisted
		cur.WaitlistPosition = &pos
		cur.ConfirmedAt = nil
		cur.UpdatedAt = now
		if err := tx.Update(ctx, cur); err != nil {
			return err
		}
		demoted = *cur
		_, err = settleWaitlist(ctx, tx, event, regs, now, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("registration demoted",
		"registration_id", demoted.ID, "event_id", demoted.EventID, "position", *demoted.WaitlistPosition)
	s.afterCommit(ctx, demoted.EventID, noticeFor(model.NoticeDemoted, demoted))
	return &demoted, nil
}

// MarkAttendance records attendance for a confirmed registration.
func (s *RegistrationService) MarkAttendance(ctx context.Context, registrationID string) (*model.Registration, error) {
	reg, err := s.registrations.GetByID(ctx, registrationID)
	if err != nil {
		return nil, err
	}

	var attended model.Registration
	err = s.registrations.WithEventLock(ctx, reg.EventID, func(tx repository.EventTx) error {
		regs, err := tx.Registrations(ctx)
		if err != nil {
			return err
		}
		cur := find(regs, registrationID)
		if cur == nil {
			return repository.ErrNotFound
		}
		if cur.Status != model.StatusConfirmed {
			return invalidTransition("mark attendance for", cur.Status)
		}
		now := s.now()
		cur.Status = model.StatusAttended
		cur.AttendedAt = &now
		cur.UpdatedAt = now
		if err := tx.Update(ctx, cur); err != nil {
			return err
		}
		attended = *cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, attended.EventID)
	return &attended, nil
}

// BulkMarkAttendance marks each id independently. Unknown ids and invalid
// transitions are collected in the result; any other error aborts the batch.
func (s *RegistrationService) BulkMarkAttendance(ctx context.Context, req model.BulkAttendanceRequest) (*model.BulkResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	result := &model.BulkResult{Success: true, Failed: []model.BulkFailure{}}
	for _, id := range req.RegistrationIDs {
		if _, err := s.MarkAttendance(ctx, id); err != nil {
			if !itemError(err) {
				return nil, fmt.Errorf("bulk attendance aborted at %s: %w", id, err)
			}
			result.Failed = append(result.Failed, model.BulkFailure{RegistrationID: id, Error: err.Error()})
			continue
		}
		result.Updated++
	}

	s.log.Info("bulk attendance processed",
		"requested", len(req.RegistrationIDs), "updated", result.Updated, "failed", len(result.Failed))
	return result, nil
}

// MyRegistration returns the user's non-cancelled registration for the
// event, or nil if there is none.
func (s *RegistrationService) MyRegistration(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	reg, err := s.registrations.FindActive(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return reg, nil
}

// afterCommit runs the side effects of a committed transition. They are
// detached from the caller's cancellation: the change is already durable
// even if the client has gone away.
func (s *RegistrationService) afterCommit(ctx context.Context, eventID string, notices ...model.Notice) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), afterCommitTimeout)
	defer cancel()

	if err := s.cache.Invalidate(ctx, eventID); err != nil {
		s.log.Warn("analytics cache invalidation failed", "event_id", eventID, "error", err)
	}
	for _, n := range notices {
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.log.Error("notification enqueue failed",
				"kind", n.Kind, "registration_id", n.RegistrationID, "error", err)
		}
	}
}

// settleWaitlist optionally promotes waitlisted registrations into free
// capacity, lowest position first, then renumbers the remaining waitlist
// 1..N. regs must already reflect every change made in this unit of work.
func settleWaitlist(
	ctx context.Context,
	tx repository.EventTx,
	event model.Event,
	regs []model.Registration,
	now time.Time,
	autoPromote bool,
) ([]model.Registration, error) {
	waitlist := waitlistOf(regs)
	active := countActive(regs)

	var promoted []model.Registration
	if autoPromote {
		for len(waitlist) > 0 && hasFreeSlot(event, active) {
			head := waitlist[0]
			waitlist = waitlist[1:]
			promote(head, now)
			if err := tx.Update(ctx, head); err != nil {
				return nil, err
			}
			promoted = append(promoted, *head)
			active++
		}
	}

	for i, r := range waitlist {
		want := i + 1
		if r.WaitlistPosition != nil && *r.WaitlistPosition == want {
			continue
		}
		r.WaitlistPosition = &want
		r.UpdatedAt = now
		if err := tx.Update(ctx, r); err != nil {
			return nil, err
		}
	}
	return promoted, nil
}

func promote(r *model.Registration, now time.Time) {
	r.Status = model.StatusConfirmed
	r.ConfirmedAt = &now
	r.PromotedFromWaitlistAt = &now
	r.WaitlistPosition = nil
	r.UpdatedAt = now
}

// waitlistOf returns pointers into regs for the waitlisted entries ordered
// by position, then registration time.
func waitlistOf(regs []model.Registration) []*model.Registration {
	var out []*model.Registration
	for i := range regs {
		if regs[i].Status == model.StatusWaitlisted {
			out = append(out, &regs[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := positionOf(out[i]), positionOf(out[j])
		if pi != pj {
			return pi < pj
		}
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return out
}

func positionOf(r *model.Registration) int {
	if r.WaitlistPosition == nil {
		return int(^uint(0) >> 1)
	}
	return *r.WaitlistPosition
}

func countActive(regs []model.Registration) int {
	n := 0
	for _, r := range regs {
		if r.Status.Active() {
			n++
		}
	}
	return n
}

func find(regs []model.Registration, id string) *model.Registration {
	for i := range regs {
		if regs[i].ID == id {
			return &regs[i]
		}
	}
	return nil
}

func invalidTransition(action string, from model.Status) error {
	return fmt.Errorf("%w: cannot %s a %s registration", ErrInvalidTransition, action, from)
}

func normalizeReason(reason *string) *string {
	if reason == nil {
		return nil
	}
	r := strings.TrimSpace(*reason)
	if r == "" {
		return nil
	}
	return &r
}

// itemError reports whether err concerns only the one registration it was
// returned for.
func itemError(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || errors.Is(err, ErrInvalidTransition)
}

func noticeFor(kind model.NoticeKind, r model.Registration) model.Notice {
	return model.Notice{
		Kind:             kind,
		RegistrationID:   r.ID,
		EventID:          r.EventID,
		UserID:           r.UserID,
		WaitlistPosition: r.WaitlistPosition,
	}
}
