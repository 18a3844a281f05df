package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Rachid0903/PFE-Project/internal/alert"
	apimw "github.com/Rachid0903/PFE-Project/internal/httpapi/middleware"
	"github.com/Rachid0903/PFE-Project/internal/notify"
	"github.com/Rachid0903/PFE-Project/internal/repo"
)

// Server is the UI-facing surface: policy and channel configuration, alert
// history, reading ingestion and ad hoc test sends.
type Server struct {
	Logger    *zap.Logger
	Policies  repo.PolicyStore
	Configs   repo.ChannelConfigStore
	Alerts    repo.AlertStore
	Logs      repo.DeliveryLogStore
	Readings  repo.ReadingStore
	Evaluator *alert.Evaluator
	EmailCfg  notify.EmailConfig
}

func NewServer(
	l *zap.Logger,
	policies repo.PolicyStore,
	configs repo.ChannelConfigStore,
	alerts repo.AlertStore,
	logs repo.DeliveryLogStore,
	readings repo.ReadingStore,
	ev *alert.Evaluator,
	emailCfg notify.EmailConfig,
) *Server {
	return &Server{
		Logger:    l,
		Policies:  policies,
		Configs:   configs,
		Alerts:    alerts,
		Logs:      logs,
		Readings:  readings,
		Evaluator: ev,
		EmailCfg:  emailCfg,
	}
}

func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, readRPM, readBurst, writeRPM, writeBurst int) http.Handler {
	r := chi.NewRouter()

	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "X-API-Key", "Content-Type"},
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// read routes: any key
	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(readRPM, readBurst))
		r.Use(apimw.RequireAny(keys))

		r.Get("/api/alerts", s.handleListAlerts)
		r.Get("/api/alerts/config", s.handleGetPolicy)
		r.Get("/api/readings", s.handleListReadings)
	})

	// write routes: admin key
	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(writeRPM, writeBurst))
		r.Use(apimw.RequireAdmin(keys))

		r.Put("/api/alerts/config", s.handlePutPolicy)
		r.Patch("/api/alerts/config", s.handlePatchPolicy)
		r.Get("/api/config/twilio", s.handleGetTwilio)
		r.Put("/api/config/twilio", s.handlePutTwilio)
		r.Get("/api/config/whatsapp", s.handleGetWhatsApp)
		r.Put("/api/config/whatsapp", s.handlePutWhatsApp)
		r.Post("/api/readings", s.handleIngestReading)
		r.Post("/api/notify/test", s.handleTestDelivery)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
