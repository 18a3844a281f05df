package notify

import (
	"context"
	"sync"

	"github.com/Rachid0903/PFE-Project/internal/domain"
)

// fakeLogs records audit writes for assertions.
type fakeLogs struct {
	mu      sync.Mutex
	entries map[string]*domain.DeliveryLogEntry
}

func newFakeLogs() *fakeLogs {
	return &fakeLogs{entries: map[string]*domain.DeliveryLogEntry{}}
}

func (f *fakeLogs) Append(ctx context.Context, e *domain.DeliveryLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.entries[e.ID] = &cp
	return nil
}

func (f *fakeLogs) SetStatus(ctx context.Context, id string, status domain.DeliveryStatus, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e := f.entries[id]; e != nil {
		e.Status = status
		e.Detail = detail
	}
	return nil
}

func (f *fakeLogs) single() *domain.DeliveryLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		return e
	}
	return nil
}

func (f *fakeLogs) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}
