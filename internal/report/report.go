// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report assembles the engine's final output value and renders it.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citeguard/pkg/types"
)

// Build assembles the report for one run. The resolved-works list follows
// bibliography order; limitations from every stage are concatenated in
// pipeline order.
func Build(
	references []types.ReferenceEntry,
	matches []types.CitationMatch,
	resolved map[string]*types.ResolvedWork,
	issues []types.Issue,
	limitations []string,
	deep *types.DeepReport,
) *types.Report {
	rep := &types.Report{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Issues:      issues,
		Matches:     matches,
		Limitations: limitations,
		Deep:        deep,
	}

	rep.Summary.References = len(references)
	rep.Summary.Citations = len(matches)
	for _, m := range matches {
		switch m.Status {
		case types.MatchMatched:
			rep.Summary.Matched++
		case types.MatchAmbiguous:
			rep.Summary.Ambiguous++
		case types.MatchUnmatched:
			rep.Summary.Unmatched++
		}
	}
	for _, ref := range references {
		w := resolved[ref.RefID]
		if w == nil {
			continue
		}
		rep.References = append(rep.References, *w)
		if w.Source != "" {
			rep.Summary.Resolved++
		}
	}
	rep.Summary.Issues = len(issues)

	if deep != nil {
		rep.Limitations = append(rep.Limitations, deep.Limitations...)
	}
	return rep
}

// WriteYAML renders the report as YAML.
func WriteYAML(w io.Writer, rep *types.Report) error {
	data, err := yaml.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// WriteJSON renders the report as indented JSON.
func WriteJSON(w io.Writer, rep *types.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// Summarize prints the human-readable run summary the CLI shows after an
// analysis.
func Summarize(w io.Writer, rep *types.Report) {
	fmt.Fprintf(w, "Report %s\n", rep.ID)
	fmt.Fprintf(w, "  references: %d (%d resolved)\n", rep.Summary.References, rep.Summary.Resolved)
	fmt.Fprintf(w, "  citations:  %d (%d matched, %d ambiguous, %d unmatched)\n",
		rep.Summary.Citations, rep.Summary.Matched, rep.Summary.Ambiguous, rep.Summary.Unmatched)
	fmt.Fprintf(w, "  issues:     %d\n", rep.Summary.Issues)
	for _, issue := range rep.Issues {
		fmt.Fprintf(w, "    [%s] %s\n", issue.Severity, issue.Title)
	}
	if rep.Deep != nil {
		fmt.Fprintf(w, "  deep analysis: %s", rep.Deep.Stage)
		if rep.Deep.SkipReason != "" {
			fmt.Fprintf(w, " (%s)", rep.Deep.SkipReason)
		}
		fmt.Fprintln(w)
	}
	for _, note := range rep.Limitations {
		fmt.Fprintf(w, "  note: %s\n", note)
	}
}
