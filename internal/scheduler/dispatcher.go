package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Rachid0903/PFE-Project/internal/domain"
	"github.com/Rachid0903/PFE-Project/internal/metrics"
	"github.com/Rachid0903/PFE-Project/internal/notify"
	"github.com/Rachid0903/PFE-Project/internal/repo"
)

type DispatcherConfig struct {
	PollInterval    time.Duration
	DeliveryTimeout time.Duration
	Concurrency     int
	Email           notify.EmailConfig
}

// Channels is the per-cycle channel set, built from configs loaded once at
// the start of the cycle.
type Channels struct {
	Email    notify.Channel
	SMS      notify.Channel
	WhatsApp notify.Channel
}

// Dispatcher periodically scans unsent alerts and fans delivery out across
// the configured channels. An alert is marked sent as soon as any one
// channel accepts it; total failure leaves it unsent for the next cycle.
type Dispatcher struct {
	log      *zap.Logger
	policies repo.PolicyStore
	configs  repo.ChannelConfigStore
	alerts   repo.AlertStore
	logs     repo.DeliveryLogStore
	cfg      DispatcherConfig

	// replaceable in tests
	newChannels func(tw domain.TwilioConfig, wa domain.WhatsAppConfig) Channels
}

func NewDispatcher(
	log *zap.Logger,
	policies repo.PolicyStore,
	configs repo.ChannelConfigStore,
	alerts repo.AlertStore,
	logs repo.DeliveryLogStore,
	cfg DispatcherConfig,
) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 60 * time.Second
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	d := &Dispatcher{
		log:      log,
		policies: policies,
		configs:  configs,
		alerts:   alerts,
		logs:     logs,
		cfg:      cfg,
	}
	d.newChannels = func(tw domain.TwilioConfig, wa domain.WhatsAppConfig) Channels {
		return Channels{
			Email:    notify.NewEmail(cfg.Email, logs, log),
			SMS:      notify.NewSMS(tw, logs, log),
			WhatsApp: notify.NewWhatsApp(wa, logs, log),
		}
	}
	return d
}

// Run does an immediate pass, then one per tick. Stops when ctx is
// cancelled; an in-flight cycle finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	t := time.NewTicker(d.cfg.PollInterval)
	defer t.Stop()

	d.dispatchOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			d.log.Info("dispatcher_stopped")
			return
		case <-t.C:
			d.dispatchOnce(ctx)
		}
	}
}

// attempt pairs a channel with the recipient the policy configures for it.
type attempt struct {
	channel     notify.Channel
	destination string
}

func (d *Dispatcher) dispatchOnce(ctx context.Context) {
	start := time.Now()

	policy, err := d.policies.Get(ctx)
	if err != nil {
		d.log.Warn("dispatch_policy_error", zap.Error(err))
		return
	}
	if !policy.Enabled {
		return
	}

	// config reads amortized over the cycle, not per alert
	tw, err := d.configs.GetTwilio(ctx)
	if err != nil {
		d.log.Warn("dispatch_twilio_config_error", zap.Error(err))
		tw = domain.DefaultTwilioConfig()
	}
	wa, err := d.configs.GetWhatsApp(ctx)
	if err != nil {
		d.log.Warn("dispatch_whatsapp_config_error", zap.Error(err))
		wa = domain.DefaultWhatsAppConfig()
	}

	unsent, err := d.alerts.ListUnsent(ctx)
	if err != nil {
		// storage down: abort this cycle, retry on the next tick
		d.log.Warn("dispatch_list_error", zap.Error(err))
		return
	}
	metrics.UnsentAlerts.Set(float64(len(unsent)))
	if len(unsent) == 0 {
		metrics.DispatchCyclesTotal.Inc()
		metrics.DispatchCycleDuration.Observe(time.Since(start).Seconds())
		return
	}

	chans := d.newChannels(tw, wa)
	attempts := planAttempts(policy, chans)
	if len(attempts) == 0 {
		d.log.Warn("dispatch_no_destinations", zap.Int("unsent", len(unsent)))
		metrics.DispatchCyclesTotal.Inc()
		metrics.DispatchCycleDuration.Observe(time.Since(start).Seconds())
		return
	}

	sem := make(chan struct{}, d.cfg.Concurrency)
	var wg sync.WaitGroup

	for _, al := range unsent {
		a := al
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			d.dispatchAlert(ctx, a, attempts)
		}()
	}
	wg.Wait()

	metrics.DispatchCyclesTotal.Inc()
	metrics.DispatchCycleDuration.Observe(time.Since(start).Seconds())
	d.log.Info("dispatch_cycle_done",
		zap.Int("alerts", len(unsent)),
		zap.Duration("took", time.Since(start)),
	)
}

// planAttempts maps the policy's configured destinations onto channels.
func planAttempts(policy domain.AlertPolicy, chans Channels) []attempt {
	var out []attempt
	if policy.Destinations.Email != "" {
		out = append(out, attempt{chans.Email, policy.Destinations.Email})
	}
	if policy.Destinations.Phone != "" {
		out = append(out, attempt{chans.SMS, policy.Destinations.Phone})
	}
	if policy.Destinations.WhatsApp != "" {
		out = append(out, attempt{chans.WhatsApp, policy.Destinations.WhatsApp})
	}
	return out
}

// dispatchAlert tries every attempt concurrently and marks the alert sent
// if any of them succeeded.
func (d *Dispatcher) dispatchAlert(ctx context.Context, a domain.Alert, attempts []attempt) {
	message := alertMessage(a)

	results := make([]bool, len(attempts))
	var wg sync.WaitGroup
	for i, at := range attempts {
		i, at := i, at
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, d.cfg.DeliveryTimeout)
			defer cancel()
			ok := d.safeDeliver(cctx, at.channel, at.destination, message)
			metrics.RecordDelivery(at.channel.Name(), ok)
			results[i] = ok
		}()
	}
	wg.Wait()

	anyOK := false
	for _, ok := range results {
		anyOK = anyOK || ok
	}
	if !anyOK {
		d.log.Warn("alert_delivery_failed_all_channels",
			zap.String("id", string(a.ID)),
			zap.Int("channels", len(attempts)),
		)
		return
	}

	if err := d.alerts.MarkSent(ctx, a.ID); err != nil {
		// stays unsent; worst case it is delivered again next cycle
		d.log.Warn("alert_mark_sent_failed",
			zap.String("id", string(a.ID)), zap.Error(err))
		return
	}
	d.log.Info("alert_sent", zap.String("id", string(a.ID)))
}

// safeDeliver confines a panicking channel implementation to its own
// attempt, so the other channels and alerts keep going.
func (d *Dispatcher) safeDeliver(ctx context.Context, ch notify.Channel, destination, message string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("channel_panic",
				zap.String("channel", ch.Name()),
				zap.Any("panic", r),
			)
			ok = false
		}
	}()
	return ch.Deliver(ctx, destination, message)
}

func alertMessage(a domain.Alert) string {
	if a.Message != "" {
		return "Sensor " + a.SensorID + ": " + a.Message
	}
	return "Sensor " + a.SensorID + ": alert triggered"
}
