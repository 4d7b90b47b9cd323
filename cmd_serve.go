package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ArturZurawski/ecoharmonogram/internal/config"
	"github.com/ArturZurawski/ecoharmonogram/internal/database"
	"github.com/ArturZurawski/ecoharmonogram/internal/ecoharmonogram"
	"github.com/ArturZurawski/ecoharmonogram/internal/schedule"
	"github.com/ArturZurawski/ecoharmonogram/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the schedule service",
	Long:  `Start the HTTP server and the daily refresh poller.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	log.Printf("Using %s database", db.DatabaseType())

	if err := seedFromConfig(db, cfg); err != nil {
		return err
	}

	tz, err := cfg.Refresh.Location()
	if err != nil {
		return err
	}

	client := ecoharmonogram.NewClient(cfg.API.BaseURL, cfg.Timeout())
	coord := schedule.NewCoordinator(db, client)

	// First boot has nothing to serve; fetch once before opening the
	// listener. A failure here is not fatal, the poller will try again.
	if coord.Current() == nil {
		ctx, cancel := context.WithTimeout(cmd.Context(), schedule.RefreshTimeout)
		if err := coord.Refresh(ctx); err != nil {
			log.Printf("Initial refresh failed: %v", err)
		}
		cancel()
	}

	poller := schedule.NewPoller(coord, cfg.Refresh.Hour, cfg.Refresh.Minute, tz)
	poller.Start()
	defer poller.Stop()

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(db, coord, tz).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-sigCh:
		log.Printf("Received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

// openStore picks the storage backend from the config.
func openStore(cfg *config.Config) (database.Store, error) {
	switch cfg.Database.Driver {
	case "sqlite", "":
		return database.New(cfg.Database.DSN)
	case "postgres":
		return database.NewPostgres(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// seedFromConfig copies the location block from the config file into the
// store on first boot. After that the store is authoritative: street and
// period ids evolve as schedule periods change, and those updates must
// not be clobbered on restart. Monitored types follow the config file
// whenever it lists any.
func seedFromConfig(db database.Store, cfg *config.Config) error {
	stored, err := db.Location()
	if err != nil {
		return fmt.Errorf("loading location: %w", err)
	}
	if stored == nil && cfg.Location != nil {
		if err := db.SaveLocation(cfg.Location); err != nil {
			return fmt.Errorf("saving location: %w", err)
		}
		log.Printf("Seeded location from config: %s, %s %s",
			cfg.Location.TownName, cfg.Location.StreetName, cfg.Location.Number)
	}
	if len(cfg.MonitoredTypes) > 0 {
		if err := db.SetMonitoredTypes(cfg.MonitoredTypes); err != nil {
			return fmt.Errorf("saving monitored types: %w", err)
		}
	}
	return nil
}
