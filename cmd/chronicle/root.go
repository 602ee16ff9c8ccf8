package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/chronicle/internal/cli"
	"github.com/aretw0/chronicle/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chronicle",
	Short: "Chronicle records action executions and walks their lineage",
	Long: `Chronicle turns live actions into durable execution records, links child
executions to their parents and answers lineage queries over the result.

Settings come from CHRONICLE_* environment variables; flags override them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("backend", "", "Storage backend: memory, file, sqlite or redis")
	flags.String("catalog", "", "Definition catalog file or directory")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("file-dir", "", "Directory of the file backend")
	flags.String("sqlite-path", "", "Database path of the sqlite backend")
	flags.String("redis-addr", "", "Address of the redis backend")
}

// loadConfig reads the environment and applies flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if err := config.ParseEnv(&cfg); err != nil {
		return config.Config{}, err
	}

	overrides := map[string]*string{
		"backend":     &cfg.Backend,
		"catalog":     &cfg.Catalog,
		"log-level":   &cfg.LogLevel,
		"file-dir":    &cfg.FileDir,
		"sqlite-path": &cfg.SQLitePath,
		"redis-addr":  &cfg.RedisAddr,
	}
	for name, target := range overrides {
		if cmd.Flags().Changed(name) {
			*target, _ = cmd.Flags().GetString(name)
		}
	}
	return cfg, cfg.Validate()
}

// openRuntime builds the service for a command. Callers close the runtime.
func openRuntime(cmd *cobra.Command) (*cli.Runtime, config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, nil, err
	}
	logger, err := cli.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, cfg, nil, err
	}
	slog.SetDefault(logger)

	rt, err := cli.BuildRuntime(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, cfg, nil, err
	}
	return rt, cfg, logger, nil
}
