// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/citeguard/internal/ai"
	"github.com/pdiddy/citeguard/internal/checks"
	"github.com/pdiddy/citeguard/internal/datasets"
	"github.com/pdiddy/citeguard/internal/input"
	"github.com/pdiddy/citeguard/internal/litgraph"
	"github.com/pdiddy/citeguard/internal/match"
	"github.com/pdiddy/citeguard/internal/progress"
	"github.com/pdiddy/citeguard/internal/report"
	"github.com/pdiddy/citeguard/internal/resolve"
	"github.com/pdiddy/citeguard/internal/store"
	"github.com/pdiddy/citeguard/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <manuscript>",
	Short: "Run the full citation-integrity pipeline on a manuscript",
	Long: `Analyze parses the manuscript (PDF or plain text), links in-text citations
to bibliography entries, resolves each entry against the configured source
chain, runs the retraction, predatory-venue, and appropriateness checks, and
optionally expands the literature graph. The report is archived in the local
store and written to stdout or --output.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().Bool("deep", false, "enable the literature-graph stage for this run")
	analyzeCmd.Flags().String("bibliography", "", "read the bibliography from this file instead of the manuscript")
	analyzeCmd.Flags().Bool("store", true, "archive the report and reuse the resolution cache")
	analyzeCmd.Flags().String("format", "yaml", "output format: yaml or json")
	analyzeCmd.Flags().StringP("output", "o", "", "write the report to this file instead of stdout")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, loadedSecrets, err := loadConfig()
	if err != nil {
		return err
	}
	if deep, _ := cmd.Flags().GetBool("deep"); deep {
		cfg.Graph.Enable = true
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "yaml" && format != "json" {
		return fmt.Errorf("unsupported format %q (want yaml or json)", format)
	}
	outPath, _ := cmd.Flags().GetString("output")

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	// Flag signal sources are validated before any stage runs; a run with
	// no predatory source at all must fail here, not silently skip the
	// check.
	retractions, predatory, datasetNotes, err := loadFlagDatasets(cfg, log)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	inputPath := args[0]
	prog := progress.NewReporter(os.Stderr)

	var st *store.Store
	if useStore, _ := cmd.Flags().GetBool("store"); useStore {
		st, err = store.Open(cfg.Store)
		if err != nil {
			log.Warn("report store unavailable, continuing without it", zap.Error(err))
			st = nil
		} else {
			defer st.Close()
		}
	}

	// Parse.
	prog.Force("parse", "Reading manuscript", progress.Indeterminate)
	text, err := input.Load(inputPath)
	if err != nil {
		return err
	}
	client := buildAIClient(cfg, log)

	refsOverride, err := loadBibliographyFlag(cmd)
	if err != nil {
		return err
	}
	_, references, citations, limitations := parseManuscript(ctx, cfg, client, text, refsOverride)
	if len(references) == 0 {
		return fmt.Errorf("no bibliography entries found in %s", inputPath)
	}
	prog.Force("parse", fmt.Sprintf("Found %d references and %d citations", len(references), len(citations)), 1.0)

	// Match.
	matches := match.Match(citations, references)
	if client != nil && cfg.Match.MaxLLMCalls > 0 {
		budget := ai.NewBudget("match", cfg.Match.MaxLLMCalls)
		matches = match.Disambiguate(ctx, client, budget, matches, references, log)
	}
	issues, _ := checks.CheckBibliography(matches)

	// Resolve, with the cross-run cache taking what it can.
	resolved, misses := cachedResolutions(st, references)
	if len(misses) > 0 {
		srcs, _ := buildSources(cfg, loadedSecrets)
		resolver := resolve.New(srcs, client, ai.NewBudget("resolve", cfg.Resolve.MaxLLMCalls),
			cfg.Resolve.Workers, cfg.Resolve.SearchRows, log)
		fresh, err := resolver.Resolve(ctx, misses, prog.Stage("resolve", 0.0, 1.0))
		if err != nil {
			return fmt.Errorf("resolving references: %w", err)
		}
		for id, work := range fresh {
			resolved[id] = work
		}
		persistResolutions(st, misses, fresh, log)
	} else {
		prog.Force("resolve", "All references served from cache", 1.0)
	}

	// Flag checks.
	limitations = append(limitations, datasetNotes...)
	flagChecker := &checks.ReferenceFlagChecker{
		Retractions: retractions,
		Predatory:   predatory,
		Workers:     cfg.Checks.Workers,
		Log:         log,
	}
	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}
	if cfg.Checks.RetractionAPIURL != "" {
		flagChecker.RetractionAPI = checks.NewHTTPRetractionAPI(
			cfg.Checks.RetractionAPIURL, cfg.Checks.RetractionAPIToken, httpClient)
	}
	if cfg.Checks.PredatoryAPIURL != "" {
		flagChecker.PredatoryAPI = checks.NewHTTPPredatoryAPI(
			cfg.Checks.PredatoryAPIURL, cfg.Checks.PredatoryAPIToken, httpClient)
	}
	flagIssues, _, err := flagChecker.Check(ctx, references, resolved, prog.Stage("checks", 0.0, 0.5))
	if err != nil {
		return fmt.Errorf("running flag checks: %w", err)
	}
	issues = append(issues, flagIssues...)

	// Appropriateness.
	if client != nil && cfg.Checks.MaxLLMCalls > 0 {
		checker := &checks.AppropriatenessChecker{
			Client:  client,
			Budget:  ai.NewBudget("checks", cfg.Checks.MaxLLMCalls),
			Workers: cfg.Checks.Workers,
			Log:     log,
		}
		if cfg.Checks.EnableNLI && cfg.Checks.NLIEndpoint != "" {
			checker.NLI = checks.NewHTTPNLI(cfg.Checks.NLIEndpoint, nil)
		}
		appIssues, err := checker.Check(ctx, matches, resolved, prog.Stage("checks", 0.5, 1.0))
		if err != nil {
			return fmt.Errorf("running appropriateness checks: %w", err)
		}
		issues = append(issues, appIssues...)
	} else {
		limitations = append(limitations, "Appropriateness checks skipped: no AI client configured.")
	}

	// Literature graph.
	deep, err := runDeepStage(ctx, cfg, loadedSecrets, client, references, resolved, matches, text, prog, log)
	if err != nil {
		return err
	}

	rep := report.Build(references, matches, resolved, issues, limitations, deep)
	if st != nil {
		if err := st.SaveReport(rep, inputPath); err != nil {
			log.Warn("archiving report failed", zap.Error(err))
		}
	}

	if err := writeReport(rep, format, outPath); err != nil {
		return err
	}
	report.Summarize(os.Stderr, rep)
	return nil
}

// loadFlagDatasets loads the configured flag signal sources. A run with no
// predatory source at all (neither CSV nor lookup API) is a configuration
// error, as is a configured dataset that fails to load. A missing retraction
// dataset only downgrades to a limitation note because the resolver's source
// metadata still carries retraction flags.
func loadFlagDatasets(cfg types.Config, log *zap.Logger) (*datasets.RetractionData, *datasets.PredatoryData, []string, error) {
	if cfg.Checks.PredatoryCSV == "" && cfg.Checks.PredatoryAPIURL == "" {
		return nil, nil, nil, fmt.Errorf(
			"no predatory venue source configured (set checks.predatory_csv or checks.predatory_api_url)")
	}

	var notes []string

	var retractions *datasets.RetractionData
	if cfg.Checks.RetractionCSV != "" {
		var err error
		retractions, err = datasets.LoadRetractions(cfg.Checks.RetractionCSV)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading retraction dataset: %w", err)
		}
		log.Debug("retraction dataset loaded", zap.String("path", cfg.Checks.RetractionCSV))
	} else if cfg.Checks.RetractionAPIURL == "" {
		notes = append(notes, "No retraction dataset configured; retraction flags rely on source metadata only.")
	}

	var predatory *datasets.PredatoryData
	if cfg.Checks.PredatoryCSV != "" {
		var err error
		predatory, err = datasets.LoadPredatory(cfg.Checks.PredatoryCSV)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading predatory dataset: %w", err)
		}
		log.Debug("predatory dataset loaded", zap.String("path", cfg.Checks.PredatoryCSV))
	}
	return retractions, predatory, notes, nil
}

// runDeepStage wires and runs the literature-graph engine. When the stage is
// disabled the engine still returns a skipped report, which keeps the output
// shape stable.
func runDeepStage(
	ctx context.Context,
	cfg types.Config,
	loadedSecrets map[string]string,
	client ai.Client,
	references []types.ReferenceEntry,
	resolved map[string]*types.ResolvedWork,
	matches []types.CitationMatch,
	paperText string,
	prog *progress.Reporter,
	log *zap.Logger,
) (*types.DeepReport, error) {
	var excluded datasets.ExcludedSources
	if cfg.Graph.Enable && cfg.Graph.ExcludedSourcesFile != "" {
		var err error
		excluded, err = datasets.LoadExcludedSources(cfg.Graph.ExcludedSourcesFile)
		if err != nil {
			return nil, fmt.Errorf("loading excluded sources: %w", err)
		}
	}

	_, openalex := buildSources(cfg, loadedSecrets)

	engine := &litgraph.Engine{
		Source:   openalex,
		Client:   client,
		Budget:   ai.NewBudget("graph", cfg.Graph.MaxLLMCalls),
		Config:   cfg.Graph,
		Excluded: excluded,
		Log:      log,
	}
	deep, err := engine.Run(ctx, references, resolved, matches, paperText, prog.Stage("graph", 0.0, 1.0))
	if err != nil {
		return nil, fmt.Errorf("running deep analysis: %w", err)
	}
	return deep, nil
}

// writeReport serializes the report to the requested destination.
func writeReport(rep *types.Report, format, outPath string) error {
	w := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if format == "json" {
		return report.WriteJSON(w, rep)
	}
	return report.WriteYAML(w, rep)
}
