package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	httpadapter "proofengine/internal/adapters/http"
	pg "proofengine/internal/adapters/postgres"
	"proofengine/internal/adapters/vault"
	"proofengine/internal/config"
	"proofengine/internal/notify"
	"proofengine/internal/services/onboarding"
	"proofengine/internal/workers/reportrunner"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("warning: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required for Postgres adapters")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer db.Close()

	store := vault.New(cfg.VaultAPIURL, cfg.VaultAPIKey, time.Duration(cfg.VaultTimeout)*time.Second)
	notifier := notify.New(notify.Config{
		DiscordToken:   cfg.DiscordToken,
		DiscordChannel: cfg.DiscordChan,
		SMTPAddr:       cfg.SMTPAddr,
		SMTPFrom:       cfg.SMTPFrom,
		SupportEmail:   cfg.SupportEmail,
	})

	svc := onboarding.New(onboarding.Repos{
		Sessions:    db,
		Founders:    db,
		Ventures:    db,
		Team:        db,
		Uploads:     db,
		Evaluations: db,
		Leaderboard: db,
		Folders:     db,
		ReportJobs:  db,
	}, store, notifier, onboarding.Options{
		UploadDir:   cfg.UploadDir,
		MaxUploadMB: cfg.MaxUploadMB,
	})

	srv := httpadapter.New(svc)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	// Optional background report workers
	if cfg.ReportWorkers > 0 {
		processor := reportrunner.StubProcessor{BaseURL: "reports"}
		go reportrunner.Run(ctx, db, processor, cfg.ReportWorkers, 500*time.Millisecond)
		log.Printf("report workers started: %d", cfg.ReportWorkers)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- http.ListenAndServe(cfg.ListenAddr, r) }()
	log.Printf("listening on %s", cfg.ListenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Printf("shutting down on %s", sig)
		cancel()
		time.Sleep(300 * time.Millisecond)
	case err := <-errCh:
		log.Fatal(fmt.Errorf("server error: %w", err))
	}
}
