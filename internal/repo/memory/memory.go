package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Rachid0903/PFE-Project/internal/domain"
	"github.com/Rachid0903/PFE-Project/internal/repo"
)

type Store struct {
	mu       sync.RWMutex
	policy   *domain.AlertPolicy
	twilio   *domain.TwilioConfig
	whatsapp *domain.WhatsAppConfig
	alerts   map[domain.AlertID]*domain.Alert
	order    []domain.AlertID // creation order
	logs     map[string]*domain.DeliveryLogEntry
	readings map[string]*domain.Reading
}

func New() *Store {
	return &Store{
		alerts:   make(map[domain.AlertID]*domain.Alert),
		logs:     make(map[string]*domain.DeliveryLogEntry),
		readings: make(map[string]*domain.Reading),
	}
}

// ---- PolicyStore ----

func (m *Store) Get(ctx context.Context) (domain.AlertPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.policy == nil {
		p := domain.DefaultPolicy()
		m.policy = &p
	}
	return clonePolicy(*m.policy), nil
}

func (m *Store) Put(ctx context.Context, p domain.AlertPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := clonePolicy(p)
	m.policy = &cp
	return nil
}

func (m *Store) Patch(ctx context.Context, pp domain.PolicyPatch) (domain.AlertPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	base := domain.DefaultPolicy()
	if m.policy != nil {
		base = clonePolicy(*m.policy)
	}
	merged := pp.Apply(base)
	m.policy = &merged
	return clonePolicy(merged), nil
}

// ---- ChannelConfigStore ----

func (m *Store) GetTwilio(ctx context.Context) (domain.TwilioConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.twilio == nil {
		c := domain.DefaultTwilioConfig()
		m.twilio = &c
	}
	return *m.twilio, nil
}

func (m *Store) PutTwilio(ctx context.Context, c domain.TwilioConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.twilio = &c
	return nil
}

func (m *Store) GetWhatsApp(ctx context.Context) (domain.WhatsAppConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.whatsapp == nil {
		c := domain.DefaultWhatsAppConfig()
		m.whatsapp = &c
	}
	return *m.whatsapp, nil
}

func (m *Store) PutWhatsApp(ctx context.Context, c domain.WhatsAppConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.whatsapp = &c
	return nil
}

// ---- AlertStore ----

func (m *Store) Create(ctx context.Context, a *domain.Alert) (domain.AlertID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	// never overwrite an existing id: bump by a nanosecond until free
	ts := a.CreatedAt.UTC()
	id := domain.AlertID(ts.Format("20060102T150405.000000000"))
	for m.alerts[id] != nil {
		ts = ts.Add(time.Nanosecond)
		id = domain.AlertID(ts.Format("20060102T150405.000000000"))
	}
	a.ID = id
	a.Sent = false
	cp := *a
	m.alerts[id] = &cp
	m.order = append(m.order, id)
	return id, nil
}

func (m *Store) ListUnsent(ctx context.Context) ([]domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Alert
	for _, id := range m.order {
		if a := m.alerts[id]; a != nil && !a.Sent {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *Store) ListAlerts(ctx context.Context) ([]domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *Store) MarkSent(ctx context.Context, id domain.AlertID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.alerts[id]
	if a == nil {
		return fmt.Errorf("mark sent %s: %w", id, repo.ErrNotFound)
	}
	a.Sent = true
	return nil
}

// ---- DeliveryLogStore ----

func (m *Store) Append(ctx context.Context, e *domain.DeliveryLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	cp := *e
	m.logs[e.ID] = &cp
	return nil
}

func (m *Store) SetStatus(ctx context.Context, id string, status domain.DeliveryStatus, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.logs[id]
	if e == nil {
		return fmt.Errorf("delivery log %s: %w", id, repo.ErrNotFound)
	}
	e.Status = status
	e.Detail = detail
	return nil
}

// ---- ReadingStore ----

func (m *Store) UpsertReading(ctx context.Context, r *domain.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	cp := *r
	m.readings[r.SensorID] = &cp
	return nil
}

func (m *Store) ListReadings(ctx context.Context) ([]domain.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Reading, 0, len(m.readings))
	for _, r := range m.readings {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out, nil
}

func clonePolicy(p domain.AlertPolicy) domain.AlertPolicy {
	if p.Thresholds != nil {
		m := make(map[domain.Metric]domain.ThresholdRange, len(p.Thresholds))
		for k, v := range p.Thresholds {
			m[k] = v
		}
		p.Thresholds = m
	}
	return p
}
