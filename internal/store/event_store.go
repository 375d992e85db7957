// Package store holds the single most recent AccessEvent.
//
// There is exactly one slot: Write replaces it, Read returns it or nil when nothing was
// written yet. Backends differ only in who can see the slot: the memory store is process
// local, the file and Redis stores are shared across processes.
package store

import (
	"context"
	"sync/atomic"
	"time"

	"hik-access-bridge/internal/models"
)

// EventStore single-slot register for the latest event.
type EventStore interface {
	Write(ctx context.Context, event models.AccessEvent) error
	// Read returns nil, nil when the slot is empty.
	Read(ctx context.Context) (*models.EventRecord, error)
}

// MemoryEventStore process-local slot.
type MemoryEventStore struct {
	slot atomic.Pointer[models.EventRecord]
	now  func() time.Time
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{now: time.Now}
}

func (s *MemoryEventStore) Write(_ context.Context, event models.AccessEvent) error {
	s.slot.Store(&models.EventRecord{Event: event, ReceivedAt: s.now()})
	return nil
}

func (s *MemoryEventStore) Read(_ context.Context) (*models.EventRecord, error) {
	rec := s.slot.Load()
	if rec == nil {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}
