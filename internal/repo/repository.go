package repo

import (
	"context"
	"errors"

	"github.com/Rachid0903/PFE-Project/internal/domain"
)

// ErrNotFound is returned for point lookups that miss.
var ErrNotFound = errors.New("not found")

// Ports (interfaces) — swap in any DB adapter later.

// PolicyStore owns the singleton alert policy document.
type PolicyStore interface {
	// Get returns the current policy. If none was ever persisted it writes
	// and returns the built-in default. On storage failure it degrades to
	// the in-memory default instead of failing the caller.
	Get(ctx context.Context) (domain.AlertPolicy, error)
	// Put replaces the whole policy (last writer wins).
	Put(ctx context.Context, p domain.AlertPolicy) error
	// Patch overlays the set fields at the top level only.
	Patch(ctx context.Context, pp domain.PolicyPatch) (domain.AlertPolicy, error)
}

// ChannelConfigStore holds provider credentials, with the same
// default-on-first-access behavior as PolicyStore.
type ChannelConfigStore interface {
	GetTwilio(ctx context.Context) (domain.TwilioConfig, error)
	PutTwilio(ctx context.Context, c domain.TwilioConfig) error
	GetWhatsApp(ctx context.Context) (domain.WhatsAppConfig, error)
	PutWhatsApp(ctx context.Context, c domain.WhatsAppConfig) error
}

type AlertStore interface {
	// Create assigns a unique id, persists with Sent=false and returns the id.
	// An id passed in by the caller is ignored.
	Create(ctx context.Context, a *domain.Alert) (domain.AlertID, error)
	// ListUnsent returns alerts with Sent=false, order unspecified.
	ListUnsent(ctx context.Context) ([]domain.Alert, error)
	// ListAlerts returns every alert, newest first (UI history).
	ListAlerts(ctx context.Context) ([]domain.Alert, error)
	// MarkSent flips Sent to true. Idempotent: already-sent is a no-op,
	// unknown id is ErrNotFound.
	MarkSent(ctx context.Context, id domain.AlertID) error
}

// DeliveryLogStore is the write-only audit trail of delivery attempts.
type DeliveryLogStore interface {
	Append(ctx context.Context, e *domain.DeliveryLogEntry) error
	SetStatus(ctx context.Context, id string, status domain.DeliveryStatus, detail string) error
}

// ReadingStore keeps the latest document per sensor.
type ReadingStore interface {
	UpsertReading(ctx context.Context, r *domain.Reading) error
	ListReadings(ctx context.Context) ([]domain.Reading, error)
}
