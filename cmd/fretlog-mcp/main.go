package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/meltforce/fretlog/internal/config"
	"github.com/meltforce/fretlog/internal/logging"
	fretmcp "github.com/meltforce/fretlog/internal/mcp"
	"github.com/meltforce/fretlog/internal/models"
	"github.com/meltforce/fretlog/internal/practice"
	"github.com/meltforce/fretlog/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	remote := flag.String("remote", "", "base URL of a running fretlog server; reads through its REST API instead of the database")
	apiKey := flag.String("api-key", "", "API key for -remote (defaults to auth.api_key from the config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the protocol
	log, logCloser := logging.NewTo(os.Stderr, cfg.Logging)
	defer logCloser.Close()

	var ds fretmcp.DataSource
	if *remote != "" {
		key := *apiKey
		if key == "" {
			key = cfg.Auth.APIKey
		}
		ds = fretmcp.NewHTTPClient(*remote, key)
		log.Info("MCP reading from remote server", "url", *remote)
	} else {
		db, err := storage.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		defaults := models.DefaultSettings()
		defaults.InactivityDays = cfg.Practice.InactivityDays
		ds = fretmcp.NewStoreSource(db, defaults, log, practice.WithLocation(cfg.Practice.Location()))
		log.Info("MCP reading from database")
	}

	s := fretmcp.New(ds, Version, log)
	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
