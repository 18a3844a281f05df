package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Rachid0903/PFE-Project/internal/alert"
	"github.com/Rachid0903/PFE-Project/internal/config"
	"github.com/Rachid0903/PFE-Project/internal/httpapi"
	apimw "github.com/Rachid0903/PFE-Project/internal/httpapi/middleware"
	"github.com/Rachid0903/PFE-Project/internal/logging"
	"github.com/Rachid0903/PFE-Project/internal/notify"
	"github.com/Rachid0903/PFE-Project/internal/repo"
	"github.com/Rachid0903/PFE-Project/internal/repo/memory"
	"github.com/Rachid0903/PFE-Project/internal/repo/postgres"
	"github.com/Rachid0903/PFE-Project/internal/scheduler"
)

// stores groups the five persistence ports so memory and postgres can be
// swapped behind one variable.
type stores struct {
	policies repo.PolicyStore
	configs  repo.ChannelConfigStore
	alerts   repo.AlertStore
	logs     repo.DeliveryLogStore
	readings repo.ReadingStore
}

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st stores
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("postgres_connect_failed", zap.Error(err))
		}
		defer pg.Close()
		st = stores{pg, pg, pg, pg, pg}
		logger.Info("store_postgres")
	} else {
		m := memory.New()
		st = stores{m, m, m, m, m}
		logger.Info("store_memory")
	}

	emailCfg := notify.EmailConfig{
		APIKey:   cfg.EmailAPIKey,
		APIURL:   cfg.EmailAPIURL,
		From:     cfg.EmailFrom,
		FromName: cfg.EmailFromName,
	}

	ev := alert.NewEvaluator(st.policies, st.alerts, logger)

	dispatcher := scheduler.NewDispatcher(logger, st.policies, st.configs, st.alerts, st.logs,
		scheduler.DispatcherConfig{
			PollInterval:    cfg.PollInterval,
			DeliveryTimeout: cfg.DeliveryTimeout,
			Concurrency:     cfg.DispatchWorkers,
			Email:           emailCfg,
		})
	go dispatcher.Run(ctx)

	api := httpapi.NewServer(logger, st.policies, st.configs, st.alerts, st.logs, st.readings, ev, emailCfg)
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	router := api.Router(keys, cfg.AllowedOrigins, 120, 30, 60, 10)

	srv := &http.Server{Addr: cfg.Addr, Handler: router}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	logger.Info("api_listen", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
