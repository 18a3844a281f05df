package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Rachid0903/PFE-Project/internal/domain"
	"github.com/Rachid0903/PFE-Project/internal/repo"
)

// WhatsApp sends through a business-messaging HTTP endpoint. Disabled or
// unconfigured, it simulates. A non-2xx provider response counts as a
// failure and is logged with the response body.
type WhatsApp struct {
	cfg    domain.WhatsAppConfig
	audit  auditor
	log    *zap.Logger
	client *http.Client
}

func NewWhatsApp(cfg domain.WhatsAppConfig, logs repo.DeliveryLogStore, log *zap.Logger) *WhatsApp {
	return &WhatsApp{
		cfg:    cfg,
		audit:  auditor{logs: logs, log: log},
		log:    log,
		client: &http.Client{Timeout: httpTimeout},
	}
}

func (w *WhatsApp) Name() string { return "whatsapp" }

type whatsappPayload struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

func (w *WhatsApp) Deliver(ctx context.Context, destination, message string) bool {
	if len(strings.TrimSpace(destination)) < 10 {
		w.log.Warn("whatsapp_invalid_destination", zap.String("destination", destination))
		return false
	}

	logID := w.audit.begin(ctx, w.Name(), destination, message)

	if !w.cfg.Enabled || w.cfg.APIKey == "" || w.cfg.APIURL == "" {
		w.log.Info("whatsapp_simulated", zap.String("to", destination))
		w.audit.finish(ctx, logID, true, "simulated")
		return true
	}

	body, _ := json.Marshal(whatsappPayload{
		To:      destination,
		From:    w.cfg.FromNumber,
		Message: message,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		w.audit.finish(ctx, logID, false, err.Error())
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.cfg.APIKey)

	resp, err := w.client.Do(req)
	if err != nil {
		w.log.Warn("whatsapp_send_failed", zap.String("to", destination), zap.Error(err))
		w.audit.finish(ctx, logID, false, err.Error())
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		detail := responseDetail(resp.StatusCode, resp.Body)
		w.log.Warn("whatsapp_rejected", zap.String("to", destination), zap.Int("status", resp.StatusCode))
		w.audit.finish(ctx, logID, false, detail)
		return false
	}

	w.audit.finish(ctx, logID, true, "")
	return true
}
