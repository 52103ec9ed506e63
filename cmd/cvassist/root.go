package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cv-assistant/internal/shared/config"
	"cv-assistant/internal/shared/telemetry"
)

const app = "cvassist"

var (
	cfgFile   string
	jsonLogs  bool
	debugLogs bool

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "cvassist serves the CV assistant API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (yaml, json or toml); environment variables override it")
	rootCmd.PersistentFlags().BoolVarP(&debugLogs, "debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&jsonLogs, "json", "j", false, "json format for logging")
}

// loadConfig reads configuration and installs the process logger. Flags
// only switch logging options on; LOG_JSON and LOG_DEBUG still apply.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	bindLogFlags(cmd, v)

	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}

	logger, err := telemetry.New(cfg.LogJSON, cfg.LogDebug)
	if err != nil {
		return config.Config{}, fmt.Errorf("logger: %w", err)
	}
	telemetry.SetLogger(logger)
	return cfg, nil
}

func bindLogFlags(cmd *cobra.Command, v *viper.Viper) {
	if f := cmd.Flags().Lookup("json"); f != nil && f.Changed {
		v.Set("LOG_JSON", jsonLogs)
	}
	if f := cmd.Flags().Lookup("debug"); f != nil && f.Changed {
		v.Set("LOG_DEBUG", debugLogs)
	}
}
