// Package notify implements the delivery channels (email, SMS, WhatsApp).
// Every channel reports a boolean outcome and never lets an error escape:
// the dispatcher depends on that to keep one channel's failure from
// blocking the others.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rachid0903/PFE-Project/internal/domain"
	"github.com/Rachid0903/PFE-Project/internal/repo"
)

// Channel delivers one message to one destination. The boolean means
// "attempted and accepted", not end-to-end receipt.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, destination, message string) bool
}

const httpTimeout = 10 * time.Second

// auditor writes the per-attempt audit trail: a pending entry before the
// send, flipped to sent/failed after. Audit failures are logged and
// swallowed; they must never fail a delivery.
type auditor struct {
	logs repo.DeliveryLogStore
	log  *zap.Logger
}

func (a auditor) begin(ctx context.Context, channel, destination, message string) string {
	id := uuid.NewString()
	err := a.logs.Append(ctx, &domain.DeliveryLogEntry{
		ID:          id,
		Channel:     channel,
		Destination: destination,
		Message:     message,
		Timestamp:   time.Now().UTC(),
		Status:      domain.DeliveryPending,
	})
	if err != nil {
		a.log.Warn("delivery_log_append_failed",
			zap.String("channel", channel), zap.Error(err))
	}
	return id
}

func (a auditor) finish(ctx context.Context, id string, ok bool, detail string) {
	status := domain.DeliverySent
	if !ok {
		status = domain.DeliveryFailed
	}
	if err := a.logs.SetStatus(ctx, id, status, detail); err != nil {
		a.log.Warn("delivery_log_update_failed",
			zap.String("id", id), zap.Error(err))
	}
}
