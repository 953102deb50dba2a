package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobinfo/wabot/core/admin"
	"github.com/jobinfo/wabot/core/bootstrap"
	"github.com/jobinfo/wabot/core/codec/otp"
	coreconfig "github.com/jobinfo/wabot/core/config"
	"github.com/jobinfo/wabot/core/conversation"
	coredatabase "github.com/jobinfo/wabot/core/database"
	"github.com/jobinfo/wabot/core/dispatch"
	"github.com/jobinfo/wabot/core/flow"
	"github.com/jobinfo/wabot/core/logger"
	"github.com/jobinfo/wabot/core/media"
	"github.com/jobinfo/wabot/core/storage"
	"github.com/jobinfo/wabot/core/whatsapp"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("wabot: %v", err)
	}
}

func run() error {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := coreconfig.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dbCfg, err := coredatabase.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load database config: %w", err)
	}

	boot, err := bootstrap.Run(bootstrap.Options{Config: cfg, Database: dbCfg})
	if err != nil {
		return err
	}
	defer boot.DB.Close()

	states := conversation.NewPostgresStore(boot.DB)
	repo := storage.NewPostgresRepository(boot.DB)
	client := whatsapp.NewClient(cfg.WhatsApp)

	svc := flow.Services{
		Repo:        repo,
		OTP:         otp.NewService(otp.NewPostgresStore(boot.DB), cfg.OTP),
		CV:          media.NewStore(client, cfg.Media),
		AdminNumber: cfg.WhatsApp.AdminNumber,
	}

	reaper := conversation.NewReaper(states, cfg.Abandonment.Threshold())
	if err := reaper.StartSweep(cfg.Abandonment.SweepSchedule); err != nil {
		return fmt.Errorf("start sweep: %w", err)
	}
	defer reaper.Stop()

	dispatcher := dispatch.New(states, reaper, svc)

	router := mux.NewRouter()
	whatsapp.NewWebhookHandler(cfg.WhatsApp.VerifyToken, cfg.WhatsApp.AppSecret, dispatcher, client).Register(router)
	admin.New(cfg.Admin, states, repo, client).Register(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.L.With("component", "app").Info("listening",
			slog.String("event", "ready"),
			slog.String("addr", srv.Addr),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.L.With("component", "app").Info("shutting down...",
			slog.String("event", "shutdown"),
		)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
	}
	return nil
}
