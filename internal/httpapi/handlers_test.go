package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/Rachid0903/PFE-Project/internal/alert"
	"github.com/Rachid0903/PFE-Project/internal/domain"
	apimw "github.com/Rachid0903/PFE-Project/internal/httpapi/middleware"
	"github.com/Rachid0903/PFE-Project/internal/notify"
	"github.com/Rachid0903/PFE-Project/internal/repo/memory"
)

// ---- test helpers ----

func setup(t *testing.T) (*memory.Store, http.Handler) {
	t.Helper()
	log := zap.NewNop()
	store := memory.New()
	ev := alert.NewEvaluator(store, store, log)
	srv := NewServer(log, store, store, store, store, store, ev, notify.EmailConfig{})

	keys := apimw.Keys{
		Public: []string{"pub_test"},
		Admin:  []string{"adm_test"},
	}
	// very high rate limits to avoid flakiness in tests
	return store, srv.Router(keys, nil, 10_000, 10_000, 10_000, 10_000)
}

func do(t *testing.T, h http.Handler, method, path, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ---- tests ----

func TestPolicy_GetDefault_PutPatch(t *testing.T) {
	_, h := setup(t)

	// default on first read
	rec := do(t, h, http.MethodGet, "/api/alerts/config", "pub_test", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET config: %d", rec.Code)
	}
	var p domain.AlertPolicy
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Enabled || p.CooldownMinutes != 30 {
		t.Fatalf("unexpected default policy: %+v", p)
	}

	// PUT requires admin
	p.Enabled = true
	p.Destinations.Email = "ops@example.com"
	if rec := do(t, h, http.MethodPut, "/api/alerts/config", "pub_test", p); rec.Code != http.StatusForbidden {
		t.Fatalf("public key on PUT should be 403, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/api/alerts/config", "adm_test", p); rec.Code != http.StatusOK {
		t.Fatalf("PUT: %d %s", rec.Code, rec.Body.String())
	}

	// PATCH merges shallowly
	patch := map[string]any{"cooldown_minutes": 5}
	rec = do(t, h, http.MethodPatch, "/api/alerts/config", "adm_test", patch)
	if rec.Code != http.StatusOK {
		t.Fatalf("PATCH: %d %s", rec.Code, rec.Body.String())
	}
	var merged domain.AlertPolicy
	_ = json.NewDecoder(rec.Body).Decode(&merged)
	if merged.CooldownMinutes != 5 || !merged.Enabled || merged.Destinations.Email != "ops@example.com" {
		t.Fatalf("merge wrong: %+v", merged)
	}
}

func TestPolicy_PutRejectsInvalid(t *testing.T) {
	_, h := setup(t)
	p := domain.DefaultPolicy()
	p.Thresholds[domain.MetricTemperature] = domain.ThresholdRange{Min: 50, Max: 10}
	if rec := do(t, h, http.MethodPut, "/api/alerts/config", "adm_test", p); rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted range should be 400, got %d", rec.Code)
	}
}

func TestIngestReading_CreatesAlerts(t *testing.T) {
	_, h := setup(t)

	// enable alerting first
	p := domain.DefaultPolicy()
	p.Enabled = true
	p.Destinations.Email = "ops@example.com"
	if rec := do(t, h, http.MethodPut, "/api/alerts/config", "adm_test", p); rec.Code != http.StatusOK {
		t.Fatalf("PUT policy: %d", rec.Code)
	}

	body := map[string]any{
		"sensor_id":   "01",
		"temperature": 42.0,
		"humidity":    50.0,
		"rssi":        -72.0,
	}
	rec := do(t, h, http.MethodPost, "/api/readings", "adm_test", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST reading: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Alerts []domain.Alert `json:"alerts"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Alerts) != 1 || resp.Alerts[0].Metric != domain.MetricTemperature {
		t.Fatalf("want one temperature alert, got %+v", resp.Alerts)
	}

	// reading stored, alert visible in history
	recR := do(t, h, http.MethodGet, "/api/readings", "pub_test", nil)
	var readings []domain.Reading
	_ = json.NewDecoder(recR.Body).Decode(&readings)
	if len(readings) != 1 || readings[0].SensorID != "01" {
		t.Fatalf("readings: %+v", readings)
	}

	recA := do(t, h, http.MethodGet, "/api/alerts", "pub_test", nil)
	var alerts []domain.Alert
	_ = json.NewDecoder(recA.Body).Decode(&alerts)
	if len(alerts) != 1 || alerts[0].Sent {
		t.Fatalf("alerts: %+v", alerts)
	}
}

func TestIngestReading_BadPayload(t *testing.T) {
	_, h := setup(t)
	if rec := do(t, h, http.MethodPost, "/api/readings", "adm_test", map[string]any{"temperature": 20}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing sensor_id should be 400, got %d", rec.Code)
	}
}

func TestChannelConfig_RoundTrip(t *testing.T) {
	_, h := setup(t)

	rec := do(t, h, http.MethodGet, "/api/config/twilio", "adm_test", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET twilio: %d", rec.Code)
	}
	var tw domain.TwilioConfig
	_ = json.NewDecoder(rec.Body).Decode(&tw)
	if !tw.IsDemo() {
		t.Fatalf("expected demo defaults: %+v", tw)
	}

	tw.AccountSID, tw.AuthToken, tw.FromNumber = "AC1", "tok", "+1555"
	if rec := do(t, h, http.MethodPut, "/api/config/twilio", "adm_test", tw); rec.Code != http.StatusOK {
		t.Fatalf("PUT twilio: %d", rec.Code)
	}

	wa := domain.WhatsAppConfig{Enabled: true, APIKey: "k", APIURL: "https://wa.example", FromNumber: "+1555"}
	if rec := do(t, h, http.MethodPut, "/api/config/whatsapp", "adm_test", wa); rec.Code != http.StatusOK {
		t.Fatalf("PUT whatsapp: %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/api/config/whatsapp", "adm_test", nil)
	var got domain.WhatsAppConfig
	_ = json.NewDecoder(rec.Body).Decode(&got)
	if !got.Enabled || got.APIKey != "k" {
		t.Fatalf("whatsapp round trip: %+v", got)
	}
}

func TestTestDelivery_SimulatedEmail(t *testing.T) {
	_, h := setup(t)

	body := map[string]string{"channel": "email", "destination": "ops@example.com"}
	rec := do(t, h, http.MethodPost, "/api/notify/test", "adm_test", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("test delivery: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Delivered bool `json:"delivered"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if !resp.Delivered {
		t.Fatal("simulated email should deliver")
	}
}

func TestTestDelivery_UnknownChannel(t *testing.T) {
	_, h := setup(t)
	body := map[string]string{"channel": "pigeon", "destination": "x"}
	if rec := do(t, h, http.MethodPost, "/api/notify/test", "adm_test", body); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown channel should be 400, got %d", rec.Code)
	}
}

func TestAuth_MissingKey(t *testing.T) {
	_, h := setup(t)
	if rec := do(t, h, http.MethodGet, "/api/alerts", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key should be 401, got %d", rec.Code)
	}
}

func TestHealthz_Open(t *testing.T) {
	_, h := setup(t)
	if rec := do(t, h, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
}
