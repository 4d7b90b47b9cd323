package main

import (
	"fmt"

	"github.com/ArturZurawski/ecoharmonogram/internal/config"
	"github.com/ArturZurawski/ecoharmonogram/internal/ecoharmonogram"
	"github.com/spf13/cobra"
)

// The resolve command family walks the remote resolution steps one at a
// time so an operator can assemble the location block for the config
// file: towns -> periods -> streets -> groups.

var (
	resolveCommunityID string
	resolveTownID      string
	resolvePeriodID    string
	resolveStreetIDs   string
	resolveStreetName  string
	resolveNumber      string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve location identifiers step by step",
	Long: `Walk the remote location resolution steps manually. Each subcommand
prints the identifiers needed by the next one; the final street id goes
into the config file's location block.`,
}

var resolveTownsCmd = &cobra.Command{
	Use:   "towns",
	Short: "List towns for a community",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := resolveClient()
		if err != nil {
			return err
		}
		towns, err := client.Towns(cmd.Context(), resolveCommunityID)
		if err != nil {
			return err
		}
		fmt.Printf("%-10s %s\n", "ID", "NAME")
		for _, t := range towns {
			fmt.Printf("%-10s %s\n", t.ID, t.Name)
		}
		return nil
	},
}

var resolvePeriodsCmd = &cobra.Command{
	Use:   "periods",
	Short: "List schedule periods for a community",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := resolveClient()
		if err != nil {
			return err
		}
		periods, err := client.SchedulePeriods(cmd.Context(), resolveCommunityID)
		if err != nil {
			return err
		}
		fmt.Printf("%-10s %-12s %-12s %s\n", "ID", "START", "END", "CHANGED")
		for _, p := range periods {
			fmt.Printf("%-10s %-12s %-12s %s\n", p.ID, p.StartDate, p.EndDate, p.ChangeDate)
		}
		return nil
	},
}

var resolveStreetsCmd = &cobra.Command{
	Use:   "streets",
	Short: "List streets for a town and period",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := resolveClient()
		if err != nil {
			return err
		}
		streets, err := client.StreetsForTown(cmd.Context(), resolveTownID, resolvePeriodID)
		if err != nil {
			return err
		}
		fmt.Printf("%-20s %s\n", "STREET IDS", "NAME")
		for _, s := range streets {
			fmt.Printf("%-20s %s\n", s.ChoosedStreetIDs, s.Name)
		}
		return nil
	},
}

var resolveGroupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Resolve building groups for a street and building number",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := resolveClient()
		if err != nil {
			return err
		}
		groups, err := client.BuildingGroups(cmd.Context(),
			resolveStreetIDs, resolveNumber, resolveTownID, resolveStreetName, resolvePeriodID)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Printf("No building groups: use the street ids %s directly as streetId\n", resolveStreetIDs)
			return nil
		}
		fmt.Printf("%-20s %s\n", "STREET IDS", "GROUP")
		for _, g := range groups {
			fmt.Printf("%-20s %s\n", g.ChoosedStreetIDs, g.Name)
		}
		return nil
	},
}

func resolveClient() (*ecoharmonogram.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return ecoharmonogram.NewClient(cfg.API.BaseURL, cfg.Timeout()), nil
}

func init() {
	resolveCmd.PersistentFlags().StringVar(&resolveCommunityID, "community", "108", "community id")

	resolveStreetsCmd.Flags().StringVar(&resolveTownID, "town", "", "town id (from 'resolve towns')")
	resolveStreetsCmd.Flags().StringVar(&resolvePeriodID, "period", "", "schedule period id (from 'resolve periods')")
	resolveStreetsCmd.MarkFlagRequired("town")
	resolveStreetsCmd.MarkFlagRequired("period")

	resolveGroupsCmd.Flags().StringVar(&resolveTownID, "town", "", "town id")
	resolveGroupsCmd.Flags().StringVar(&resolvePeriodID, "period", "", "schedule period id")
	resolveGroupsCmd.Flags().StringVar(&resolveStreetIDs, "street-ids", "", "choosed street ids (from 'resolve streets')")
	resolveGroupsCmd.Flags().StringVar(&resolveStreetName, "street", "", "street name")
	resolveGroupsCmd.Flags().StringVar(&resolveNumber, "number", "", "building number")
	resolveGroupsCmd.MarkFlagRequired("town")
	resolveGroupsCmd.MarkFlagRequired("period")
	resolveGroupsCmd.MarkFlagRequired("street-ids")
	resolveGroupsCmd.MarkFlagRequired("street")
	resolveGroupsCmd.MarkFlagRequired("number")

	resolveCmd.AddCommand(resolveTownsCmd, resolvePeriodsCmd, resolveStreetsCmd, resolveGroupsCmd)
	rootCmd.AddCommand(resolveCmd)
}
