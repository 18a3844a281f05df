package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Rachid0903/PFE-Project/internal/domain"
	"github.com/Rachid0903/PFE-Project/internal/notify"
)

// ---- policy ----

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := s.Policies.Get(r.Context())
	if err != nil {
		http.Error(w, "policy error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutPolicy(w http.ResponseWriter, r *http.Request) {
	var p domain.AlertPolicy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	if err := p.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Policies.Put(r.Context(), p); err != nil {
		http.Error(w, "could not save", http.StatusInternalServerError)
		return
	}
	s.Logger.Info("policy_replaced", zap.Bool("enabled", p.Enabled))
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePatchPolicy(w http.ResponseWriter, r *http.Request) {
	var pp domain.PolicyPatch
	if err := json.NewDecoder(r.Body).Decode(&pp); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	// validate the merged result, not the patch
	cur, err := s.Policies.Get(r.Context())
	if err != nil {
		http.Error(w, "policy error", http.StatusInternalServerError)
		return
	}
	if err := pp.Apply(cur).Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	merged, err := s.Policies.Patch(r.Context(), pp)
	if err != nil {
		http.Error(w, "could not save", http.StatusInternalServerError)
		return
	}
	s.Logger.Info("policy_patched", zap.Bool("enabled", merged.Enabled))
	writeJSON(w, http.StatusOK, merged)
}

// ---- channel configs ----

func (s *Server) handleGetTwilio(w http.ResponseWriter, r *http.Request) {
	c, err := s.Configs.GetTwilio(r.Context())
	if err != nil {
		http.Error(w, "config error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handlePutTwilio(w http.ResponseWriter, r *http.Request) {
	var c domain.TwilioConfig
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	if err := s.Configs.PutTwilio(r.Context(), c); err != nil {
		http.Error(w, "could not save", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleGetWhatsApp(w http.ResponseWriter, r *http.Request) {
	c, err := s.Configs.GetWhatsApp(r.Context())
	if err != nil {
		http.Error(w, "config error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handlePutWhatsApp(w http.ResponseWriter, r *http.Request) {
	var c domain.WhatsAppConfig
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	if err := s.Configs.PutWhatsApp(r.Context(), c); err != nil {
		http.Error(w, "could not save", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ---- alerts ----

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.Alerts.ListAlerts(r.Context())
	if err != nil {
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// ---- readings ----

type ingestPayload struct {
	SensorID    string   `json:"sensor_id"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Pressure    *float64 `json:"pressure"`
	RSSI        *float64 `json:"rssi"`
	UptimeSec   int64    `json:"uptime"`
}

func (s *Server) handleIngestReading(w http.ResponseWriter, r *http.Request) {
	var p ingestPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.SensorID == "" {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	reading := domain.Reading{
		SensorID:    p.SensorID,
		Temperature: p.Temperature,
		Humidity:    p.Humidity,
		Pressure:    p.Pressure,
		RSSI:        p.RSSI,
		UptimeSec:   p.UptimeSec,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.Readings.UpsertReading(r.Context(), &reading); err != nil {
		http.Error(w, "could not store reading", http.StatusInternalServerError)
		return
	}

	created := s.Evaluator.EvaluateReading(r.Context(), reading)
	if created == nil {
		created = []domain.Alert{}
	}

	s.Logger.Info("reading_ingested",
		zap.String("sensor_id", p.SensorID),
		zap.Int("alerts", len(created)),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"reading": reading,
		"alerts":  created,
	})
}

func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	rs, err := s.Readings.ListReadings(r.Context())
	if err != nil {
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	if rs == nil {
		rs = []domain.Reading{}
	}
	writeJSON(w, http.StatusOK, rs)
}

// ---- test delivery ----

type testDeliveryPayload struct {
	Channel     string `json:"channel"`
	Destination string `json:"destination"`
}

// handleTestDelivery lets an operator exercise one channel end to end with
// the stored credentials, without waiting for a real violation.
func (s *Server) handleTestDelivery(w http.ResponseWriter, r *http.Request) {
	var p testDeliveryPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Destination == "" {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	ch, err := s.channelByName(r.Context(), p.Channel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	delivered := ch.Deliver(ctx, p.Destination, "Test notification from LoRa Sensor View")

	s.Logger.Info("test_delivery",
		zap.String("channel", p.Channel),
		zap.Bool("delivered", delivered),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"channel":     p.Channel,
		"destination": p.Destination,
		"delivered":   delivered,
	})
}

func (s *Server) channelByName(ctx context.Context, name string) (notify.Channel, error) {
	switch name {
	case "email":
		return notify.NewEmail(s.EmailCfg, s.Logs, s.Logger), nil
	case "sms":
		cfg, err := s.Configs.GetTwilio(ctx)
		if err != nil {
			cfg = domain.DefaultTwilioConfig()
		}
		return notify.NewSMS(cfg, s.Logs, s.Logger), nil
	case "whatsapp":
		cfg, err := s.Configs.GetWhatsApp(ctx)
		if err != nil {
			cfg = domain.DefaultWhatsAppConfig()
		}
		return notify.NewWhatsApp(cfg, s.Logs, s.Logger), nil
	}
	return nil, errUnknownChannel(name)
}

type errUnknownChannel string

func (e errUnknownChannel) Error() string { return "unknown channel: " + string(e) }
