package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/model"
	"github.com/google/uuid"
)

// Memory is an in-process store used for local development and tests. It
// offers the same per-event serialisation and all-or-nothing commit as the
// Postgres repositories.
type Memory struct {
	mu            sync.RWMutex
	events        map[string]model.Event
	users         map[string]model.User
	registrations map[string]memRecord
	seq           int

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

type memRecord struct {
	reg model.Registration
	seq int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		events:        make(map[string]model.Event),
		users:         make(map[string]model.User),
		registrations: make(map[string]memRecord),
		locks:         make(map[string]*sync.Mutex),
	}
}

// Events returns the EventStore view of m.
func (m *Memory) Events() EventStore { return memEvents{m} }

// Users returns the UserDirectory view of m.
func (m *Memory) Users() UserDirectory { return memUsers{m} }

// Registrations returns the RegistrationStore view of m.
func (m *Memory) Registrations() RegistrationStore { return memRegistrations{m} }

// PutUser adds or replaces a directory entry.
func (m *Memory) PutUser(u model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *Memory) eventLock(eventID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[eventID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[eventID] = l
	}
	return l
}

// sortedLocked returns the event's registrations in insertion order.
// Caller holds m.mu.
func (m *Memory) sortedLocked(eventID string) []memRecord {
	var recs []memRecord
	for _, rec := range m.registrations {
		if rec.reg.EventID == eventID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	return recs
}

type memEvents struct{ m *Memory }

func (s memEvents) Create(_ context.Context, event *model.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.events[event.ID] = *event
	return nil
}

func (s memEvents) List(_ context.Context) ([]model.Event, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	events := make([]model.Event, 0, len(s.m.events))
	for _, e := range s.m.events {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.After(events[j].CreatedAt) })
	return events, nil
}

func (s memEvents) GetByID(_ context.Context, id string) (*model.Event, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	e, ok := s.m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

type memUsers struct{ m *Memory }

func (s memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s memUsers) ListByIDs(_ context.Context, ids []string) (map[string]model.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make(map[string]model.User, len(ids))
	for _, id := range ids {
		if u, ok := s.m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type memRegistrations struct{ m *Memory }

func (s memRegistrations) GetByID(_ context.Context, id string) (*model.Registration, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	rec, ok := s.m.registrations[id]
	if !ok {
		return nil, ErrNotFound
	}
	reg := rec.reg
	return &reg, nil
}

func (s memRegistrations) ListByEvent(_ context.Context, eventID string) ([]model.Registration, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	recs := s.m.sortedLocked(eventID)
	regs := make([]model.Registration, 0, len(recs))
	for _, rec := range recs {
		regs = append(regs, rec.reg)
	}
	return regs, nil
}

func (s memRegistrations) FindActive(_ context.Context, eventID, userID string) (*model.Registration, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, rec := range s.m.registrations {
		if rec.reg.EventID == eventID && rec.reg.UserID == userID && rec.reg.Status != model.StatusCancelled {
			reg := rec.reg
			return &reg, nil
		}
	}
	return nil, ErrNotFound
}

func (s memRegistrations) WithEventLock(ctx context.Context, eventID string, fn func(tx EventTx) error) error {
	lock := s.m.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.m.mu.RLock()
	event, ok := s.m.events[eventID]
	var recs []memRecord
	if ok {
		recs = s.m.sortedLocked(eventID)
	}
	s.m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	tx := &memTx{event: event, staged: make(map[string]memRecord, len(recs))}
	for _, rec := range recs {
		tx.staged[rec.reg.ID] = rec
		tx.order = append(tx.order, rec.reg.ID)
	}

	if err := fn(tx); err != nil {
		return err
	}

	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, id := range tx.dirty {
		rec := tx.staged[id]
		if rec.seq == 0 {
			s.m.seq++
			rec.seq = s.m.seq
		}
		s.m.registrations[id] = rec
	}
	return nil
}

type memTx struct {
	event  model.Event
	staged map[string]memRecord
	order  []string
	dirty  []string
}

func (t *memTx) Event() model.Event { return t.event }

func (t *memTx) Registrations(_ context.Context) ([]model.Registration, error) {
	regs := make([]model.Registration, 0, len(t.order))
	for _, id := range t.order {
		regs = append(regs, t.staged[id].reg)
	}
	return regs, nil
}

func (t *memTx) Insert(_ context.Context, reg *model.Registration) error {
	if reg.ID == "" {
		reg.ID = uuid.New().String()
	}
	if reg.Status != model.StatusCancelled {
		for _, rec := range t.staged {
			if rec.reg.UserID == reg.UserID && rec.reg.Status != model.StatusCancelled {
				return ErrDuplicateActive
			}
		}
	}
	t.staged[reg.ID] = memRecord{reg: *reg}
	t.order = append(t.order, reg.ID)
	t.markDirty(reg.ID)
	return nil
}

func (t *memTx) Update(_ context.Context, reg *model.Registration) error {
	rec, ok := t.staged[reg.ID]
	if !ok {
		return ErrNotFound
	}
	rec.reg = *reg
	t.staged[reg.ID] = rec
	t.markDirty(reg.ID)
	return nil
}

func (t *memTx) markDirty(id string) {
	for _, d := range t.dirty {
		if d == id {
			return
		}
	}
	t.dirty = append(t.dirty, id)
}
