// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the citeguard CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citeguard/internal/secrets"
	"github.com/pdiddy/citeguard/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var verbose bool

// rootCmd is the base command for the citeguard CLI.
var rootCmd = &cobra.Command{
	Use:   "citeguard",
	Short: "Citation-integrity analysis for academic manuscripts",
	Long: `citeguard analyzes a manuscript's citations end to end: it parses the
bibliography and in-text citations, links them, resolves every reference
against OpenAlex, Crossref, PubMed, and arXiv, flags retracted works and
predatory venues, screens citation contexts against the cited works, and can
expand a multi-hop literature graph around the verified references.

Each stage is reachable on its own (match, resolve, graph, report) or as the
full pipeline (analyze).`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./citeguard.yaml or ~/.config/citeguard/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func initConfig() {
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("citeguard")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "citeguard"))
		}
	}

	viper.SetEnvPrefix("CITEGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig layers defaults, the YAML config file, environment overrides,
// and the secrets directory. The raw secrets map is returned as well so
// source clients can pick up contact emails and per-API keys.
func loadConfig() (types.Config, map[string]string, error) {
	cfg := types.DefaultConfig()

	if path := viper.ConfigFileUsed(); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if v := viper.GetString("ai.api_key"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := viper.GetString("ai.model"); v != "" {
		cfg.AI.Model = v
	}
	if v := viper.GetString("checks.retraction_csv"); v != "" {
		cfg.Checks.RetractionCSV = v
	}
	if v := viper.GetString("checks.predatory_csv"); v != "" {
		cfg.Checks.PredatoryCSV = v
	}
	if v := viper.GetString("checks.retraction_api_url"); v != "" {
		cfg.Checks.RetractionAPIURL = v
	}
	if v := viper.GetString("checks.predatory_api_url"); v != "" {
		cfg.Checks.PredatoryAPIURL = v
	}
	if v := viper.GetString("checks.nli_endpoint"); v != "" {
		cfg.Checks.NLIEndpoint = v
		cfg.Checks.EnableNLI = true
	}
	if v := viper.GetString("store.path"); v != "" {
		cfg.Store.Path = v
	}

	dir := cfg.SecretsDir
	if dir == "" {
		dir = ".secrets/"
	}
	loaded, err := secrets.Load(dir)
	if err != nil {
		return cfg, nil, err
	}
	secrets.Apply(&cfg, loaded)
	return cfg, loaded, nil
}

// newLogger builds the run logger; debug level with -v.
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
