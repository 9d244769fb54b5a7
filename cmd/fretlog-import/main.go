package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/meltforce/fretlog/internal/config"
	"github.com/meltforce/fretlog/internal/importer"
	"github.com/meltforce/fretlog/internal/logging"
	"github.com/meltforce/fretlog/internal/models"
	"github.com/meltforce/fretlog/internal/practice"
	"github.com/meltforce/fretlog/internal/storage"
)

// watchDebounce collapses the burst of events an editor or sync tool emits
// for one save.
const watchDebounce = 500 * time.Millisecond

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dataPath := flag.String("path", "", "directory holding the legacy data files (required)")
	dryRun := flag.Bool("dry-run", false, "report counts without writing to the database")
	watch := flag.Bool("watch", false, "re-import whenever a legacy file changes")
	flag.Parse()

	if *dataPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: fretlog-import -config config.yaml -path /path/to/data [-dry-run] [-watch]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, logCloser := logging.New(cfg.Logging)
	defer logCloser.Close()

	// Verify data directory exists
	info, err := os.Stat(*dataPath)
	if err != nil || !info.IsDir() {
		log.Error("data path does not exist or is not a directory", "path", *dataPath)
		os.Exit(1)
	}

	dsn := cfg.Database.DSN()

	// Run migrations
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect database
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	var store practice.Store = db
	if *dryRun {
		log.Info("DRY RUN mode: no data will be written to the database")
		store = practice.DryRun(db)
	}

	defaults := models.DefaultSettings()
	defaults.InactivityDays = cfg.Practice.InactivityDays
	lib, err := practice.New(ctx, store, defaults, log, practice.WithLocation(cfg.Practice.Location()))
	if err != nil {
		log.Error("failed to load library", "error", err)
		os.Exit(1)
	}

	stats, err := importer.New(lib, log, lib.Location()).Import(ctx, *dataPath)
	printStats(log, stats)
	if err != nil {
		log.Error("import failed", "error", err)
		os.Exit(1)
	}
	log.Info("import complete")

	if !*watch {
		return
	}
	if err := watchDir(ctx, lib, *dataPath, stats, log); err != nil {
		log.Error("watch failed", "error", err)
		os.Exit(1)
	}
}

// watchDir re-imports dir after each change to one of the legacy files until
// ctx is cancelled. total accumulates every pass.
func watchDir(ctx context.Context, lib *practice.Library, dir string, total *importer.Stats, log *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	log.Info("watching for changes", "path", dir)

	watched := map[string]bool{
		importer.HistoryFile:   true,
		importer.StructureFile: true,
		importer.SettingsFile:  true,
	}

	debounce := time.NewTimer(watchDebounce)
	debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("watch stopped")
			printStats(log, total)
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Base(ev.Name)] {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.Debug("legacy file changed", "file", ev.Name, "op", ev.Op.String())
			debounce.Reset(watchDebounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "error", err)

		case <-debounce.C:
			stats, err := importer.New(lib, log, lib.Location()).Import(ctx, dir)
			total.Add(*stats)
			printStats(log, stats)
			if err != nil {
				log.Error("re-import failed", "error", err)
			}
		}
	}
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"files_processed", stats.FilesProcessed,
		"files_skipped", stats.FilesSkipped,
		"files_errored", stats.FilesErrored,
		"folders_created", stats.FoldersCreated,
		"exercises_created", stats.ExercisesCreated,
		"exercises_updated", stats.ExercisesUpdated,
		"entries_inserted", stats.EntriesInserted,
		"entries_duplicated", stats.EntriesDuplicated,
		"rows_rejected", stats.RowsRejected,
		"settings_applied", stats.SettingsApplied,
	)
}
