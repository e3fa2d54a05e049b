// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citeguard/internal/ai"
	"github.com/pdiddy/citeguard/internal/input"
	"github.com/pdiddy/citeguard/internal/match"
	"github.com/pdiddy/citeguard/internal/progress"
	"github.com/pdiddy/citeguard/internal/resolve"
	"github.com/pdiddy/citeguard/internal/store"
)

var graphCmd = &cobra.Command{
	Use:   "graph <manuscript>",
	Short: "Run only the literature-graph stage on a manuscript",
	Long: `Graph parses, matches, and resolves the manuscript, then expands the
literature graph around the verified references and prints the deep-analysis
section alone. Resolution reuses the cross-run cache, so repeat runs on the
same manuscript skip the source lookups.`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().String("bibliography", "", "read the bibliography from this file instead of the manuscript")
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	cfg, loadedSecrets, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Graph.Enable = true

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx := cmd.Context()
	text, err := input.Load(args[0])
	if err != nil {
		return err
	}
	client := buildAIClient(cfg, log)
	prog := progress.NewReporter(os.Stderr)

	st, err := store.Open(cfg.Store)
	if err != nil {
		st = nil
	} else {
		defer st.Close()
	}

	refsOverride, err := loadBibliographyFlag(cmd)
	if err != nil {
		return err
	}
	_, references, citations, _ := parseManuscript(ctx, cfg, client, text, refsOverride)
	if len(references) == 0 {
		return fmt.Errorf("no bibliography entries found in %s", args[0])
	}
	matches := match.Match(citations, references)

	resolved, misses := cachedResolutions(st, references)
	if len(misses) > 0 {
		srcs, _ := buildSources(cfg, loadedSecrets)
		resolver := resolve.New(srcs, client, ai.NewBudget("resolve", cfg.Resolve.MaxLLMCalls),
			cfg.Resolve.Workers, cfg.Resolve.SearchRows, log)
		fresh, err := resolver.Resolve(ctx, misses, prog.Stage("resolve", 0.0, 0.4))
		if err != nil {
			return fmt.Errorf("resolving references: %w", err)
		}
		for id, work := range fresh {
			resolved[id] = work
		}
		persistResolutions(st, misses, fresh, log)
	}

	deep, err := runDeepStage(ctx, cfg, loadedSecrets, client, references, resolved, matches, text, prog, log)
	if err != nil {
		return err
	}
	return yaml.NewEncoder(os.Stdout).Encode(deep)
}
