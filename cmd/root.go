/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/sarpras-lapor/apiserver/config"
	"github.com/sarpras-lapor/apiserver/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sarpras",
	Short: "Sarpras damage report API server",
	Long: `Backend for reporting damaged school facilities (sarpras). It serves
the report, asset and account API and ships the tooling around it.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the process logger shared by every
// subcommand.
func setup() (config.Config, *logrus.Logger, error) {
	cfg := config.LoadConfig()
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
