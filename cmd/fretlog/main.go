package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meltforce/fretlog/internal/config"
	"github.com/meltforce/fretlog/internal/export"
	"github.com/meltforce/fretlog/internal/logging"
	"github.com/meltforce/fretlog/internal/metronome"
	"github.com/meltforce/fretlog/internal/models"
	"github.com/meltforce/fretlog/internal/practice"
	"github.com/meltforce/fretlog/internal/server"
	"github.com/meltforce/fretlog/internal/session"
	"github.com/meltforce/fretlog/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// checkpointInterval bounds how much session time a crash can lose.
const checkpointInterval = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, logCloser := logging.New(cfg.Logging)
	defer logCloser.Close()
	log.Info("FretLog starting", "version", Version)

	// Run migrations
	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Connect database
	ctx := context.Background()
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	defaults := models.DefaultSettings()
	defaults.InactivityDays = cfg.Practice.InactivityDays
	lib, err := practice.New(ctx, db, defaults, log, practice.WithLocation(cfg.Practice.Location()))
	if err != nil {
		log.Error("failed to load library", "error", err)
		os.Exit(1)
	}

	// Metronome beats fan out to websocket clients
	hub := server.NewHub(log)
	metro, err := metronome.New(hub, cfg.Practice.MetronomeBPM, cfg.Practice.MetronomeVolume, log)
	if err != nil {
		log.Error("invalid metronome settings", "error", err)
		os.Exit(1)
	}

	// Session recorder with crash journal
	stateDB, err := session.OpenStateDB(cfg.Session.StateDir)
	if err != nil {
		log.Error("failed to open session journal", "error", err)
		os.Exit(1)
	}
	defer stateDB.Close()

	rec := session.NewRecorder(lib, log, session.WithJournal(stateDB), session.WithMetronome(metro))
	if ok, err := rec.Recover(ctx); err != nil {
		log.Warn("session recovery failed", "error", err)
	} else if ok {
		log.Info("interrupted session restored as paused")
	}

	checkpointCtx, stopCheckpoints := context.WithCancel(ctx)
	go runCheckpoints(checkpointCtx, rec)

	// Scheduled markdown export
	var sched *export.Scheduler
	if cfg.Export.Schedule != "" {
		sched, err = export.NewScheduler(lib, cfg.Export.Path, cfg.Export.Schedule, log)
		if err != nil {
			log.Error("invalid export schedule", "error", err)
			os.Exit(1)
		}
		sched.Start()
		log.Info("scheduled export enabled", "schedule", cfg.Export.Schedule, "path", cfg.Export.Path)
	}

	srv := server.New(lib, rec, metro, hub, cfg.Auth.APIKey, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("listen failed", "addr", addr, "error", err)
		os.Exit(1)
	}
	log.Info("server starting", "addr", addr, "auth", cfg.Auth.APIKey != "")

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}

	stopCheckpoints()
	rec.Checkpoint(shutdownCtx)
	metro.Stop()
	hub.Close()
	if sched != nil {
		sched.Stop()
	}
	log.Info("server stopped")
}

func runCheckpoints(ctx context.Context, rec *session.Recorder) {
	ticker := time.NewTicker(checkpointInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rec.Checkpoint(ctx)
		}
	}
}
