package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cfgpkg "github.com/smartcity/traffic-analyzer/internal/config"
)

var (
	cfgFile string

	// Loaded configuration
	cfg *cfgpkg.Config
)

var rootCmd = &cobra.Command{
	Use:   "trafficctl",
	Short: "Offline tools for the traffic analyzer",
	Long:  `trafficctl runs the traffic anomaly pipeline on local CSV files and generates synthetic sensor datasets.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
}
