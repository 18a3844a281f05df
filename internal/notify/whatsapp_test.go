package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/Rachid0903/PFE-Project/internal/domain"
)

func TestWhatsApp_DisabledSimulates(t *testing.T) {
	logs := newFakeLogs()
	w := NewWhatsApp(domain.WhatsAppConfig{Enabled: false}, logs, zap.NewNop())

	if !w.Deliver(context.Background(), "+33612345678", "hi") {
		t.Fatal("disabled channel should simulate success")
	}
	if logs.single().Detail != "simulated" {
		t.Fatalf("entry: %+v", logs.single())
	}
}

func TestWhatsApp_EnabledWithoutCredsSimulates(t *testing.T) {
	logs := newFakeLogs()
	w := NewWhatsApp(domain.WhatsAppConfig{Enabled: true}, logs, zap.NewNop())

	if !w.Deliver(context.Background(), "+33612345678", "hi") {
		t.Fatal("missing creds should simulate, not fail")
	}
}

func TestWhatsApp_ShortNumberRejected(t *testing.T) {
	logs := newFakeLogs()
	w := NewWhatsApp(domain.WhatsAppConfig{Enabled: false}, logs, zap.NewNop())
	if w.Deliver(context.Background(), "123", "hi") {
		t.Fatal("short number must be rejected")
	}
	if logs.count() != 0 {
		t.Fatal("rejected destination should not log an attempt")
	}
}

func TestWhatsApp_RealSend(t *testing.T) {
	var got whatsappPayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(200)
	}))
	defer ts.Close()

	logs := newFakeLogs()
	w := NewWhatsApp(domain.WhatsAppConfig{
		Enabled: true, APIKey: "k", APIURL: ts.URL, FromNumber: "+15550001111",
	}, logs, zap.NewNop())

	if !w.Deliver(context.Background(), "+33612345678", "temperature too high: 42") {
		t.Fatal("expected success")
	}
	if got.To != "+33612345678" || got.From != "+15550001111" {
		t.Fatalf("payload: %+v", got)
	}
	if logs.single().Status != domain.DeliverySent {
		t.Fatalf("entry: %+v", logs.single())
	}
}

// A provider rejection must surface as a failed delivery, never as "sent".
func TestWhatsApp_Non2xxIsFailureWithDetail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid recipient", 422)
	}))
	defer ts.Close()

	logs := newFakeLogs()
	w := NewWhatsApp(domain.WhatsAppConfig{
		Enabled: true, APIKey: "k", APIURL: ts.URL, FromNumber: "+1555",
	}, logs, zap.NewNop())

	if w.Deliver(context.Background(), "+33612345678", "msg") {
		t.Fatal("non-2xx must fail")
	}
	e := logs.single()
	if e.Status != domain.DeliveryFailed {
		t.Fatalf("status: %+v", e)
	}
	if !strings.Contains(e.Detail, "422") || !strings.Contains(e.Detail, "invalid recipient") {
		t.Fatalf("detail should carry the response: %q", e.Detail)
	}
}
