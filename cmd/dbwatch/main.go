package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	appconfig "github.com/nrep-ug/mysql-monitor/internal/config"
	"github.com/nrep-ug/mysql-monitor/internal/probe"
	"github.com/nrep-ug/mysql-monitor/pkg/config"
	"github.com/nrep-ug/mysql-monitor/pkg/logging"
	"github.com/nrep-ug/mysql-monitor/pkg/version"
	"github.com/spf13/cobra"
)

var errDatabaseDown = errors.New("database is DOWN")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newRootCmd returns the dbwatch command tree. Running it bare is the same as "serve".
func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	rootCmd := &cobra.Command{
		Use:           "dbwatch",
		Short:         "Database uptime monitor with alerting and remediation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func loadConfig(logger logging.Logger) (appconfig.Config, error) {
	config.LoadEnv(logger)
	cfg := appconfig.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newCheckCmd runs a single probe and reports the result through the exit code.
func newCheckCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe the database once and exit non-zero if it is DOWN",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLoggerWithService("dbwatch")
			logger.SetOutput(cmd.ErrOrStderr())
			cfg, err := loadConfig(logger)
			if err != nil {
				return err
			}
			dsn, err := cfg.DSN()
			if err != nil {
				return err
			}
			up := probe.New(cfg.DBDriver, dsn, logger, probe.WithTimeout(cfg.ProbeTimeout)).Check(cmd.Context())
			return printCheck(cmd, output, cfg, up)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: json|text")
	return cmd
}

func printCheck(cmd *cobra.Command, output string, cfg appconfig.Config, up bool) error {
	state := "DOWN"
	if up {
		state = "UP"
	}
	switch output {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		if err := enc.Encode(map[string]string{
			"driver": cfg.DBDriver,
			"host":   cfg.Database.Host,
			"status": state,
		}); err != nil {
			return err
		}
	case "text", "":
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s:%d %s\n", cfg.DBDriver, cfg.Database.Host, cfg.Database.Port, state)
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
	if !up {
		return errDatabaseDown
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.GetInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "dbwatch %s\n", info.Version)
			fmt.Fprintf(cmd.OutOrStdout(), " - git: %s\n", info.GitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), " - built: %s\n", info.BuildDate)
			return nil
		},
	}
}
