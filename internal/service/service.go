// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/repository"
)

// EventService orchestrates event-related operations and builds the joined
// registration roster used by listings and exports.
type EventService struct {
	events        repository.EventStore
	registrations repository.RegistrationStore
	users         repository.UserDirectory
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(
	events repository.EventStore,
	registrations repository.RegistrationStore,
	users repository.UserDirectory,
) *EventService {
	return &EventService{events: events, registrations: registrations, users: users}
}

// CreateEvent validates the request and delegates to the repository.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.StartsAt != nil && req.EndsAt != nil && req.EndsAt.Before(*req.StartsAt) {
		return nil, fmt.Errorf("%w: ends_at must not be before starts_at", ErrValidation)
	}

	event := &model.Event{
		Title:       req.Title,
		Description: req.Description,
		Capacity:    req.Capacity,
		HasWaitlist: req.HasWaitlist,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

// ListEvents returns all events.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.events.List(ctx)
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: event id is required", ErrValidation)
	}
	return s.events.GetByID(ctx, id)
}

// Roster returns the event and all of its registrations joined with the
// user directory, oldest registration first.
func (s *EventService) Roster(ctx context.Context, eventID string) (*model.Event, []model.RegistrationRow, error) {
	return loadRoster(ctx, s.events, s.registrations, s.users, eventID)
}

func loadRoster(
	ctx context.Context,
	events repository.EventStore,
	registrations repository.RegistrationStore,
	users repository.UserDirectory,
	eventID string,
) (*model.Event, []model.RegistrationRow, error) {
	event, err := events.GetByID(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	regs, err := registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("list registrations: %w", err)
	}

	ids := make([]string, 0, len(regs))
	seen := make(map[string]bool, len(regs))
	for _, r := range regs {
		if !seen[r.UserID] {
			seen[r.UserID] = true
			ids = append(ids, r.UserID)
		}
	}
	directory, err := users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load users: %w", err)
	}

	rows := make([]model.RegistrationRow, 0, len(regs))
	for _, r := range regs {
		u, ok := directory[r.UserID]
		if !ok {
			u = model.User{ID: r.UserID}
		}
		rows = append(rows, model.RegistrationRow{Registration: r, User: u})
	}
	return event, rows, nil
}
