// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citeguard/internal/ai"
	"github.com/pdiddy/citeguard/internal/input"
	"github.com/pdiddy/citeguard/internal/parse"
	"github.com/pdiddy/citeguard/internal/progress"
	"github.com/pdiddy/citeguard/internal/resolve"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <manuscript>",
	Short: "Parse the bibliography and resolve each entry, without checks",
	Long: `Resolve runs only the parsing and resolution stages, printing one line per
bibliography entry. Useful for debugging source coverage before a full run.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().String("bibliography", "", "read the bibliography from this file instead of the manuscript")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, loadedSecrets, err := loadConfig()
	if err != nil {
		return err
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

	refsText, err := loadBibliographyFlag(cmd)
	if err != nil {
		return err
	}
	if refsText == "" {
		_, refsText = parse.SplitReferences(text)
	}
	references := parse.ParseReferences(refsText)
	if len(references) == 0 {
		return fmt.Errorf("no bibliography entries found in %s", args[0])
	}

	srcs, _ := buildSources(cfg, loadedSecrets)
	resolver := resolve.New(srcs, client, ai.NewBudget("resolve", cfg.Resolve.MaxLLMCalls),
		cfg.Resolve.Workers, cfg.Resolve.SearchRows, log)

	prog := progress.NewReporter(os.Stderr)
	resolved, err := resolver.Resolve(ctx, references, prog.Stage("resolve", 0.0, 1.0))
	if err != nil {
		return err
	}

	for _, ref := range references {
		work := resolved[ref.RefID]
		if work == nil || work.Source == "" {
			fmt.Printf("%-8s UNRESOLVED  %s\n", ref.RefID, clip(ref.Raw, 90))
			continue
		}
		fmt.Printf("%-8s %-9s %.2f  %s (%s)\n", ref.RefID, work.Source, work.Confidence,
			clip(work.Title, 80), work.DOI)
	}
	return nil
}

// clip shortens s for table display, truncating on a rune boundary so
// multibyte titles are never split mid-character.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
