package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Rachid0903/PFE-Project/internal/repo"
)

type EmailConfig struct {
	APIKey   string
	APIURL   string
	From     string
	FromName string
}

// Email sends through a generic JSON mail API (bearer auth). Without an API
// key and URL it runs in simulate mode: the attempt is logged and reported
// as accepted, which keeps the pipeline testable with no provider account.
type Email struct {
	cfg    EmailConfig
	audit  auditor
	log    *zap.Logger
	client *http.Client
}

func NewEmail(cfg EmailConfig, logs repo.DeliveryLogStore, log *zap.Logger) *Email {
	return &Email{
		cfg:    cfg,
		audit:  auditor{logs: logs, log: log},
		log:    log,
		client: &http.Client{Timeout: httpTimeout},
	}
}

func (e *Email) Name() string { return "email" }

type emailPayload struct {
	From    emailAddr   `json:"from"`
	To      []emailAddr `json:"to"`
	Subject string      `json:"subject"`
	Content []emailPart `json:"content"`
}

type emailAddr struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type emailPart struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (e *Email) Deliver(ctx context.Context, destination, message string) bool {
	if !strings.Contains(destination, "@") {
		e.log.Warn("email_invalid_destination", zap.String("destination", destination))
		return false
	}

	logID := e.audit.begin(ctx, e.Name(), destination, message)

	if e.cfg.APIKey == "" || e.cfg.APIURL == "" {
		e.log.Info("email_simulated", zap.String("to", destination))
		e.audit.finish(ctx, logID, true, "simulated")
		return true
	}

	body, _ := json.Marshal(emailPayload{
		From:    emailAddr{Email: e.cfg.From, Name: e.cfg.FromName},
		To:      []emailAddr{{Email: destination}},
		Subject: subjectFor(message),
		Content: []emailPart{{Type: "text/plain", Value: message}},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		e.audit.finish(ctx, logID, false, err.Error())
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		e.log.Warn("email_send_failed", zap.String("to", destination), zap.Error(err))
		e.audit.finish(ctx, logID, false, err.Error())
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		detail := responseDetail(resp.StatusCode, resp.Body)
		e.log.Warn("email_rejected", zap.String("to", destination), zap.Int("status", resp.StatusCode))
		e.audit.finish(ctx, logID, false, detail)
		return false
	}

	e.audit.finish(ctx, logID, true, "")
	return true
}

// subjectFor keeps the subject line short; the full text goes in the body.
func subjectFor(message string) string {
	s := message
	if i := strings.IndexByte(s, ':'); i > 0 {
		s = s[:i]
	}
	return "Sensor alert: " + s
}

func responseDetail(status int, body io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(body, 1024))
	return fmt.Sprintf("status %d: %s", status, strings.TrimSpace(string(b)))
}
