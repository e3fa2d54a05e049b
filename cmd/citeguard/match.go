// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citeguard/internal/ai"
	"github.com/pdiddy/citeguard/internal/input"
	"github.com/pdiddy/citeguard/internal/match"
)

var matchCmd = &cobra.Command{
	Use:   "match <manuscript>",
	Short: "Parse the manuscript and link citations to bibliography entries",
	Long: `Match runs only the parsing and citation-linking stages and prints one line
per in-text citation. Useful for inspecting link quality before a full run.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().String("bibliography", "", "read the bibliography from this file instead of the manuscript")
	matchCmd.Flags().String("format", "table", "output format: table or json")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return fmt.Errorf("unsupported format %q (want table or json)", format)
	}

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

	refsOverride, err := loadBibliographyFlag(cmd)
	if err != nil {
		return err
	}
	_, references, citations, _ := parseManuscript(ctx, cfg, client, text, refsOverride)
	if len(references) == 0 {
		return fmt.Errorf("no bibliography entries found in %s", args[0])
	}

	matches := match.Match(citations, references)
	if client != nil && cfg.Match.MaxLLMCalls > 0 {
		budget := ai.NewBudget("match", cfg.Match.MaxLLMCalls)
		matches = match.Disambiguate(ctx, client, budget, matches, references, log)
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}

	fmt.Printf("%-10s  %-9s  %-8s  %-26s  %s\n", "STATUS", "REF", "CONF", "METHOD", "CITATION")
	for _, m := range matches {
		refID := "-"
		if m.Ref != nil {
			refID = m.Ref.RefID
		}
		fmt.Printf("%-10s  %-9s  %8.2f  %-26s  %s\n",
			m.Status, refID, m.Confidence, m.Method, clip(m.Citation.Raw, 60))
	}
	return nil
}
