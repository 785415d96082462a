package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Movenanter/Rescue/internal/analysis"
	"github.com/Movenanter/Rescue/internal/config"
	"github.com/Movenanter/Rescue/internal/httpserver"
	"github.com/Movenanter/Rescue/internal/infra/storage"
	"github.com/Movenanter/Rescue/internal/intent"
	"github.com/Movenanter/Rescue/internal/journal"
	"github.com/Movenanter/Rescue/internal/session"
)

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()
	settings := config.LoadSettings(cfg.ProfilePath)

	// SIGHUP re-reads the device profile; QA can also POST /profile/reload.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if err := settings.Reload(); err != nil {
				log.Printf("device profile reload failed: %v", err)
				continue
			}
			log.Printf("device profile reloaded from %s", cfg.ProfilePath)
		}
	}()

	local, err := storage.NewLocal(cfg.PhotosDir)
	if err != nil {
		log.Fatalf("photo directory: %v", err)
	}
	var store storage.PhotoStore = local
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		sb, err := storage.NewSupabase(storage.SupabaseConfig{
			URL:            cfg.SupabaseURL,
			ServiceRoleKey: cfg.SupabaseKey,
			Bucket:         cfg.SupabaseBucket,
		})
		if err != nil {
			log.Fatalf("supabase storage: %v", err)
		}
		store = sb
	}

	jnl, err := journal.Open(cfg.JournalDir)
	if err != nil {
		log.Fatalf("journal: %v", err)
	}
	defer func() { _ = jnl.Close() }()

	var strategies []intent.Strategy
	if remote := intent.NewRemote(cfg.ClassifierAPIKey, cfg.ClassifierBaseURL, cfg.ClassifierModelID, intent.DefaultRemoteTimeout); remote != nil {
		strategies = append(strategies, remote)
	}
	strategies = append(strategies, intent.Rules{})

	e := httpserver.New(httpserver.Deps{
		Config:     cfg,
		Settings:   settings,
		Registry:   session.NewRegistry(),
		Classifier: intent.NewTiered(strategies...),
		Analyzer:   analysis.NewClient(cfg.AnalysisBaseURL),
		Store:      store,
		Local:      local,
		Journal:    jnl,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddress)
		serverErrors <- server.ListenAndServe()
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = server.Close()
	}
}
