package billing

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemorySubscriptionStore implements SubscriptionStore in process memory.
// Intended for tests and local development; production deployments use the
// PostgreSQL store.
type MemorySubscriptionStore struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]Subscription
}

// NewMemorySubscriptionStore creates an empty in-memory subscription store.
func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{subs: make(map[uuid.UUID]Subscription)}
}

func (s *MemorySubscriptionStore) Get(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[userID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (s *MemorySubscriptionStore) GetByCustomerRef(ctx context.Context, ref string) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs {
		if sub.ProviderCustomerRef == ref {
			out := sub
			return &out, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (s *MemorySubscriptionStore) Save(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Session version is owned by BumpSessionVersion; Save never moves it
	// backwards even when the caller holds a stale copy.
	if existing, ok := s.subs[sub.UserID]; ok && existing.SessionVersion > sub.SessionVersion {
		sub.SessionVersion = existing.SessionVersion
	}
	s.subs[sub.UserID] = *sub
	return nil
}

func (s *MemorySubscriptionStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*Subscription
	for _, sub := range s.subs {
		if sub.Plan == PlanFree || sub.CurrentPeriodEnd == nil {
			continue
		}
		if sub.CurrentPeriodEnd.After(now) {
			continue
		}
		out := sub
		due = append(due, &out)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].CurrentPeriodEnd.Before(*due[j].CurrentPeriodEnd)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *MemorySubscriptionStore) BumpSessionVersion(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[userID]
	if !ok {
		return ErrSubscriptionNotFound
	}
	sub.SessionVersion++
	s.subs[userID] = sub
	return nil
}

type eventKey struct {
	eventID  string
	provider Provider
}

// MemoryEventStore implements EventStore in process memory for tests.
type MemoryEventStore struct {
	mu     sync.Mutex
	events map[eventKey]WebhookEvent
}

// NewMemoryEventStore creates an empty in-memory event store.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{events: make(map[eventKey]WebhookEvent)}
}

func (s *MemoryEventStore) Admit(ctx context.Context, eventID string, provider Provider, eventType string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := eventKey{eventID: eventID, provider: provider}
	if _, exists := s.events[key]; exists {
		return false, nil
	}

	s.events[key] = WebhookEvent{
		EventID:     eventID,
		Provider:    provider,
		EventType:   eventType,
		ProcessedAt: at,
	}
	return true, nil
}

func (s *MemoryEventStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, ev := range s.events {
		if ev.ProcessedAt.Before(cutoff) {
			delete(s.events, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of admission records currently held.
func (s *MemoryEventStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.events)
}

// MemoryStorage implements Storage in process memory. RunAtomic serializes
// units of work under one lock and restores both stores from a snapshot when
// fn fails, mirroring the rollback the PostgreSQL storage gets from its
// transaction.
type MemoryStorage struct {
	*MemorySubscriptionStore
	*MemoryEventStore

	atomicMu sync.Mutex
}

// NewMemoryStorage creates empty in-memory billing storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		MemorySubscriptionStore: NewMemorySubscriptionStore(),
		MemoryEventStore:        NewMemoryEventStore(),
	}
}

func (s *MemoryStorage) RunAtomic(ctx context.Context, fn func(subs SubscriptionStore, events EventStore) error) error {
	s.atomicMu.Lock()
	defer s.atomicMu.Unlock()

	subsSnap := s.MemorySubscriptionStore.snapshot()
	eventsSnap := s.MemoryEventStore.snapshot()

	if err := fn(s.MemorySubscriptionStore, s.MemoryEventStore); err != nil {
		s.MemorySubscriptionStore.restore(subsSnap)
		s.MemoryEventStore.restore(eventsSnap)
		return err
	}
	return nil
}

func (s *MemorySubscriptionStore) snapshot() map[uuid.UUID]Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.subs)
}

func (s *MemorySubscriptionStore) restore(snap map[uuid.UUID]Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs = snap
}

func (s *MemoryEventStore) snapshot() map[eventKey]WebhookEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	return maps.Clone(s.events)
}

func (s *MemoryEventStore) restore(snap map[eventKey]WebhookEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = snap
}
