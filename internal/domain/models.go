package domain

import (
	"fmt"
	"strings"
)

type Metric string

const (
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
	MetricPressure    Metric = "pressure"
)

func (m Metric) Valid() bool {
	switch m {
	case MetricTemperature, MetricHumidity, MetricPressure:
		return true
	}
	return false
}

type ThresholdRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r ThresholdRange) Validate() error {
	if r.Min > r.Max {
		return fmt.Errorf("threshold range: min %v > max %v", r.Min, r.Max)
	}
	return nil
}

// DestinationKind is fixed when the policy is written, so the dispatcher
// never has to sniff "is this an email or a phone number" at send time.
type DestinationKind string

const (
	DestEmail    DestinationKind = "email"
	DestPhone    DestinationKind = "phone"
	DestWhatsApp DestinationKind = "whatsapp"
)

type Destination struct {
	Kind DestinationKind `json:"kind"`
	Addr string          `json:"addr"`
}

// Destinations holds at most one recipient per channel.
type Destinations struct {
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	WhatsApp string `json:"whatsapp,omitempty"`
}

// AlertPolicy is the process-wide alerting configuration, stored as a
// singleton document. Mutations go through PolicyStore.Put/Patch only.
type AlertPolicy struct {
	Enabled         bool                      `json:"enabled"`
	Destinations    Destinations              `json:"destinations"`
	CooldownMinutes int                       `json:"cooldown_minutes"`
	Thresholds      map[Metric]ThresholdRange `json:"thresholds"`
}

func (p AlertPolicy) Validate() error {
	if p.CooldownMinutes < 0 {
		return fmt.Errorf("cooldown_minutes must be >= 0, got %d", p.CooldownMinutes)
	}
	for m, r := range p.Thresholds {
		if !m.Valid() {
			return fmt.Errorf("unknown metric %q", m)
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("metric %s: %w", m, err)
		}
	}
	if e := p.Destinations.Email; e != "" && !strings.Contains(e, "@") {
		return fmt.Errorf("email destination %q has no @", e)
	}
	return nil
}

// PrimaryDestination returns the first configured recipient, preferring
// email, for stamping onto alert records.
func (p AlertPolicy) PrimaryDestination() (Destination, bool) {
	switch {
	case p.Destinations.Email != "":
		return Destination{Kind: DestEmail, Addr: p.Destinations.Email}, true
	case p.Destinations.Phone != "":
		return Destination{Kind: DestPhone, Addr: p.Destinations.Phone}, true
	case p.Destinations.WhatsApp != "":
		return Destination{Kind: DestWhatsApp, Addr: p.Destinations.WhatsApp}, true
	}
	return Destination{}, false
}

// DefaultPolicy mirrors the ranges sensors ship with: 10-35 °C, 20-80 %RH,
// 980-1030 hPa. Alerting starts disabled until someone configures recipients.
func DefaultPolicy() AlertPolicy {
	return AlertPolicy{
		Enabled:         false,
		CooldownMinutes: 30,
		Thresholds: map[Metric]ThresholdRange{
			MetricTemperature: {Min: 10, Max: 35},
			MetricHumidity:    {Min: 20, Max: 80},
			MetricPressure:    {Min: 980, Max: 1030},
		},
	}
}

// PolicyPatch is a shallow top-level merge applied by PolicyStore.Patch.
// Nested threshold ranges are replaced wholesale, never deep-merged.
type PolicyPatch struct {
	Enabled         *bool                     `json:"enabled,omitempty"`
	Destinations    *Destinations             `json:"destinations,omitempty"`
	CooldownMinutes *int                      `json:"cooldown_minutes,omitempty"`
	Thresholds      map[Metric]ThresholdRange `json:"thresholds,omitempty"`
}

// Apply returns a copy of p with the patch's set fields overlaid.
func (pp PolicyPatch) Apply(p AlertPolicy) AlertPolicy {
	if pp.Enabled != nil {
		p.Enabled = *pp.Enabled
	}
	if pp.Destinations != nil {
		p.Destinations = *pp.Destinations
	}
	if pp.CooldownMinutes != nil {
		p.CooldownMinutes = *pp.CooldownMinutes
	}
	if pp.Thresholds != nil {
		m := make(map[Metric]ThresholdRange, len(pp.Thresholds))
		for k, v := range pp.Thresholds {
			m[k] = v
		}
		p.Thresholds = m
	}
	return p
}
