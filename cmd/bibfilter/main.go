// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the bibfilter CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/bibfilter/internal/logging"
	"github.com/pdiddy/bibfilter/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the bibfilter CLI.
var rootCmd = &cobra.Command{
	Use:   "bibfilter",
	Short: "Filter, merge and check BibTeX bibliographies",
	Long: `bibfilter keeps or drops BibTeX entries by type, merges bibliographies
as key sets, checks entries for missing required fields, and serves the same
filter as a small web page with a JSON API.

Imported entries can be kept in a local SQLite library with full-text search
and exported as BibTeX, YAML, JSON or CSL-YAML.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./bibfilter.yaml or ~/.config/bibfilter/bibfilter.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	setDefaults(viper.GetViper())
}

// setDefaults registers every configuration key so environment variables
// are picked up by Unmarshal even when no config file sets them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("http.timeout", 60*time.Second)
	v.SetDefault("http.user_agent", "bibfilter/"+version)
	v.SetDefault("http.max_retries", 5)

	v.SetDefault("filter.include", "")
	v.SetDefault("filter.exclude", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.rate_limit_per_min", 60)
	v.SetDefault("server.max_body_bytes", 4<<20)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("library.dir", "library")
	v.SetDefault("library.max_results", 20)
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("bibfilter")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "bibfilter"))
		}
	}

	viper.SetEnvPrefix("BIBFILTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig decodes and validates the merged flag, environment, file and
// default values.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger() (*slog.Logger, error) {
	level, err := logging.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		return nil, err
	}
	return logging.New(os.Stderr, level), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
