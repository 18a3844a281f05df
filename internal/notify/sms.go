package notify

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/Rachid0903/PFE-Project/internal/domain"
	"github.com/Rachid0903/PFE-Project/internal/repo"
)

const twilioBaseURL = "https://api.twilio.com"

// SMS sends through the Twilio messages API. Demo/placeholder credentials
// (the store's defaults) put the channel in simulate mode.
type SMS struct {
	cfg     domain.TwilioConfig
	baseURL string
	audit   auditor
	log     *zap.Logger
	client  *http.Client
}

func NewSMS(cfg domain.TwilioConfig, logs repo.DeliveryLogStore, log *zap.Logger) *SMS {
	return &SMS{
		cfg:     cfg,
		baseURL: twilioBaseURL,
		audit:   auditor{logs: logs, log: log},
		log:     log,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

func (s *SMS) Name() string { return "sms" }

func (s *SMS) Deliver(ctx context.Context, destination, message string) bool {
	// loose sanity check, not full E.164 validation
	if len(strings.TrimSpace(destination)) < 10 {
		s.log.Warn("sms_invalid_destination", zap.String("destination", destination))
		return false
	}

	logID := s.audit.begin(ctx, s.Name(), destination, message)

	if s.cfg.IsDemo() {
		s.log.Info("sms_simulated", zap.String("to", destination))
		s.audit.finish(ctx, logID, true, "simulated")
		return true
	}

	form := url.Values{
		"To":   {destination},
		"From": {s.cfg.FromNumber},
		"Body": {message},
	}
	endpoint := s.baseURL + "/2010-04-01/Accounts/" + s.cfg.AccountSID + "/Messages.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		s.audit.finish(ctx, logID, false, err.Error())
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("sms_send_failed", zap.String("to", destination), zap.Error(err))
		s.audit.finish(ctx, logID, false, err.Error())
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		detail := responseDetail(resp.StatusCode, resp.Body)
		s.log.Warn("sms_rejected", zap.String("to", destination), zap.Int("status", resp.StatusCode))
		s.audit.finish(ctx, logID, false, detail)
		return false
	}

	s.audit.finish(ctx, logID, true, "")
	return true
}
