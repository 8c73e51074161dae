package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"apinode/internal/config"
	"apinode/internal/logger"
)

var portFlag string

// RootCmd serves HTTP when run without a sub-command.
var RootCmd = &cobra.Command{
	Use:           "api-node",
	Short:         "Request-tracking API service.",
	Long:          `Records every tracked request in public.request, reports the running count, and can federate a call to the Golang service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&portFlag, "port", "", "HTTP listen port (overrides PORT)")
}

// setup loads configuration and builds the logger shared by every command.
func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if portFlag != "" {
		cfg.Port = portFlag
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
