package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ecoharmonogram",
	Short: "Waste collection schedule service for ecoharmonogram.pl",
	Long: `ecoharmonogram fetches a municipal waste-collection schedule from the
ecoharmonogram.pl plugin API, normalizes it into a per-waste-type calendar,
and serves derived facts (collection today/tomorrow, next dates) over HTTP.`,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
