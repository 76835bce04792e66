package main

import (
	"os"
	"strings"

	"github.com/jrsteele09/epic-fhir-client/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// cfg is loaded once before any subcommand runs
var cfg config.Config

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile, logLevel string

	cmd := &cobra.Command{
		Use:           "fhirclient",
		Short:         "Epic FHIR client: SMART login, Patient read and bulk export",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				cfg = config.New()
			} else {
				cfg = config.FromViper(config.Load(envFile))
			}
			return setupLogging(cfg, logLevel)
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default .env in the working directory, when present)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(authorizeURLCmd())
	cmd.AddCommand(exchangeCmd())
	cmd.AddCommand(patientCmd())
	cmd.AddCommand(exportCmd())
	return cmd
}

func setupLogging(c config.Config, level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if c.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	log.Logger = logger
	return nil
}
