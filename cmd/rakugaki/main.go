// rakugaki server - multiplayer paint walls with programmable brushes
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/rakugaki/rakugaki/api"
	"github.com/rakugaki/rakugaki/config"
	"github.com/rakugaki/rakugaki/login"
	"github.com/rakugaki/rakugaki/wall"
)

var log = commonlog.GetLogger("rakugaki")

func main() {
	configPath := flag.String("config", "", "Path to a TOML configuration file")
	listenAddr := flag.String("listen", "", "Listen address (overrides the config file)")
	databasePath := flag.String("db", "", "Database directory (overrides the config file)")
	verbosity := flag.Int("v", 0, "Log verbosity (0 = notice, 1 = info, 2 = debug)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rakugaki [options]\n\n")
		fmt.Fprintf(os.Stderr, "Runs the wall server.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  rakugaki                          # Defaults: localhost:8080, ./db\n")
		fmt.Fprintf(os.Stderr, "  rakugaki -config rakugaki.toml    # Run with a config file\n")
		fmt.Fprintf(os.Stderr, "  rakugaki -listen :80 -db /var/lib/rakugaki -v 1\n")
	}
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if *databasePath != "" {
		cfg.Server.DatabasePath = *databasePath
	}

	if err := run(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	usersDir := filepath.Join(cfg.Server.DatabasePath, "users")
	wallsDir := filepath.Join(cfg.Server.DatabasePath, "walls")
	if err := os.MkdirAll(wallsDir, 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}

	logins, err := login.NewStore(usersDir)
	if err != nil {
		return err
	}
	hub := wall.NewHub(wallsDir, cfg.Settings(), cfg.BrokerConfig())

	server := &api.Server{
		Config: cfg,
		Logins: logins,
		Hub:    hub,
	}
	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: server.Router(),
	}

	errs := make(chan error, 1)
	go func() {
		log.Noticef("listening on %s", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errs:
		hub.StopAll()
		return err
	case <-interrupt:
	}

	log.Notice("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
	// Walls stop last so every open connection is gone before the final
	// flush to disk.
	hub.StopAll()
	return nil
}
