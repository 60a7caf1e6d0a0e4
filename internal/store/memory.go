package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process SessionStore for development and tests.
type Memory struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// WithClock overrides the time source. Only intended for test use.
func (m *Memory) WithClock(fn func() time.Time) *Memory {
	if fn != nil {
		m.now = fn
	}
	return m
}

func (m *Memory) Save(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.SID] = *rec
	return nil
}

func (m *Memory) Find(ctx context.Context, sid string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sid]
	if !ok {
		return nil, ErrNotFound
	}
	if !rec.ExpiresAt.IsZero() && m.now().After(rec.ExpiresAt) {
		delete(m.records, sid)
		return nil, ErrNotFound
	}
	out := rec
	return &out, nil
}

func (m *Memory) Delete(ctx context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, sid)
	return nil
}
