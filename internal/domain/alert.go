package domain

import "time"

type AlertID string

type Alert struct {
	ID          AlertID     `json:"id"`
	SensorID    string      `json:"sensor_id"`
	Metric      Metric      `json:"metric"`
	Value       float64     `json:"value"`
	Threshold   float64     `json:"threshold"` // the min or max that was crossed
	Message     string      `json:"message"`
	CreatedAt   time.Time   `json:"created_at"`
	Sent        bool        `json:"sent"`
	Destination Destination `json:"destination,omitempty"`
}

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// DeliveryLogEntry is one attempted delivery on one channel. Append-only
// audit trail; nothing in the pipeline reads it back.
type DeliveryLogEntry struct {
	ID          string         `json:"id"`
	Channel     string         `json:"channel"`
	Destination string         `json:"destination"`
	Message     string         `json:"message"`
	Timestamp   time.Time      `json:"timestamp"`
	Status      DeliveryStatus `json:"status"`
	Detail      string         `json:"detail,omitempty"` // provider response on failure
}

// TwilioConfig carries SMS provider credentials. The demo values below are
// what the store hands out when nothing was ever configured; channels treat
// them as "simulate, don't call the API".
type TwilioConfig struct {
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"auth_token"`
	FromNumber string `json:"from_number"`
}

func DefaultTwilioConfig() TwilioConfig {
	return TwilioConfig{
		AccountSID: "AC_DEMO_ACCOUNT_SID",
		AuthToken:  "DEMO_AUTH_TOKEN",
		FromNumber: "+15555555555",
	}
}

func (c TwilioConfig) IsDemo() bool {
	return c.AccountSID == "" || c.AccountSID == "AC_DEMO_ACCOUNT_SID" ||
		c.AuthToken == "" || c.AuthToken == "DEMO_AUTH_TOKEN"
}

type WhatsAppConfig struct {
	APIKey     string `json:"api_key"`
	APIURL     string `json:"api_url"`
	FromNumber string `json:"from_number"`
	Enabled    bool   `json:"enabled"`
}

func DefaultWhatsAppConfig() WhatsAppConfig {
	return WhatsAppConfig{Enabled: false}
}

// Reading is one device document as pushed by a LoRa node.
type Reading struct {
	SensorID    string    `json:"sensor_id"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	Pressure    *float64  `json:"pressure,omitempty"`
	RSSI        *float64  `json:"rssi,omitempty"`
	UptimeSec   int64     `json:"uptime,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Metrics returns the threshold-checked values present on the reading.
func (r Reading) Metrics() map[Metric]float64 {
	out := make(map[Metric]float64, 3)
	if r.Temperature != nil {
		out[MetricTemperature] = *r.Temperature
	}
	if r.Humidity != nil {
		out[MetricHumidity] = *r.Humidity
	}
	if r.Pressure != nil {
		out[MetricPressure] = *r.Pressure
	}
	return out
}
