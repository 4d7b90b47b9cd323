package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ArturZurawski/ecoharmonogram/internal/config"
	"github.com/ArturZurawski/ecoharmonogram/internal/ecoharmonogram"
	"github.com/ArturZurawski/ecoharmonogram/internal/schedule"
	"github.com/ArturZurawski/ecoharmonogram/internal/server"
	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the schedule once and print a summary",
	RunE:  runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := seedFromConfig(db, cfg); err != nil {
		return err
	}
	tz, err := cfg.Refresh.Location()
	if err != nil {
		return err
	}

	client := ecoharmonogram.NewClient(cfg.API.BaseURL, cfg.Timeout())
	coord := schedule.NewCoordinator(db, client)

	ctx, cancel := context.WithTimeout(cmd.Context(), schedule.RefreshTimeout)
	defer cancel()
	if err := coord.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	snap := coord.Current()
	monitored, _ := db.MonitoredTypes()
	facts := schedule.ComputeFacts(snap, time.Now().In(tz), monitored)

	names := make([]string, 0, len(snap.Types))
	for name := range snap.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("Refreshed %d waste types (retrieved %s)\n\n",
		len(snap.Types), snap.RetrievedAt.Format(time.RFC3339))
	for _, name := range names {
		tf := facts.Types[name]
		if tf.NextDate != nil {
			fmt.Printf("  %-30s next: %s (in %d days)\n",
				server.DisplayName(name), tf.NextDate.Format("2006-01-02"), *tf.DaysUntil)
		} else {
			fmt.Printf("  %-30s no upcoming collection\n", server.DisplayName(name))
		}
	}
	if nc := facts.NextCollection; nc != nil {
		fmt.Printf("\nNext monitored collection: %s (%v)\n",
			nc.Date.Format("2006-01-02"), nc.Types)
	}
	return nil
}
