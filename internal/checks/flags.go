// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package checks turns matched and resolved references into report issues.
// Flag checks consult the retraction and predatory datasets; the
// appropriateness check compares what a citing sentence claims against the
// cited work's abstract.
package checks

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/citeguard/internal/datasets"
	"github.com/pdiddy/citeguard/pkg/types"
)

// minResolveConfidence is the resolution confidence below which a reference
// counts as unresolved.
const minResolveConfidence = 0.55

// FlagCounts summarizes what the flag checks found.
type FlagCounts struct {
	MissingBibliography   int
	AmbiguousBibliography int
	Unresolved            int
	Retracted             int
	Predatory             int
}

// CheckBibliography flags citations with no bibliography entry (high) and
// citations whose entry is ambiguous (medium).
func CheckBibliography(matches []types.CitationMatch) ([]types.Issue, FlagCounts) {
	var issues []types.Issue
	var counts FlagCounts

	for _, m := range matches {
		details := map[string]any{
			"citation":   m.Citation,
			"status":     string(m.Status),
			"confidence": m.Confidence,
			"method":     m.Method,
			"notes":      m.Notes,
			"candidates": m.Candidates,
		}
		switch {
		case m.Status == types.MatchUnmatched || m.Ref == nil:
			counts.MissingBibliography++
			issues = append(issues, types.Issue{
				Type:     types.IssueMissingBibliography,
				Title:    "In-text citation not found in bibliography: " + m.Citation.Raw,
				Severity: types.SeverityHigh,
				Details:  details,
			})
		case m.Status == types.MatchAmbiguous:
			counts.AmbiguousBibliography++
			issues = append(issues, types.Issue{
				Type:     types.IssueAmbiguousBibliography,
				Title:    "Ambiguous bibliography match for in-text citation: " + m.Citation.Raw,
				Severity: types.SeverityMedium,
				Details:  details,
			})
		}
	}

	return issues, counts
}

// ReferenceFlagChecker flags unresolved references, retracted works, and
// predatory venue matches. The local datasets and the dedicated lookup APIs
// are all optional signals; any combination may be nil.
type ReferenceFlagChecker struct {
	Retractions   *datasets.RetractionData
	Predatory     *datasets.PredatoryData
	RetractionAPI RetractionLookup
	PredatoryAPI  PredatoryLookup
	Workers       int
	Log           *zap.Logger
}

// Check runs the flag checks over all references. Retraction and predatory
// flags carry a two-tier confidence: "high" when a dedicated source
// confirms (or two independent signals agree), "review_needed" when only a
// single weaker signal exists. Issue order follows reference order even
// when checks run in parallel.
func (c *ReferenceFlagChecker) Check(
	ctx context.Context,
	references []types.ReferenceEntry,
	resolved map[string]*types.ResolvedWork,
	progress func(string, float64),
) ([]types.Issue, FlagCounts, error) {
	if progress != nil {
		progress("Checking retractions and predatory venues", 0.0)
	}
	workers := c.Workers
	if workers < 1 {
		workers = 1
	}
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}

	total := len(references)
	step := total / 10
	if step < 1 {
		step = 1
	}

	perRef := make([][]types.Issue, total)
	var mu sync.Mutex
	var done int

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range references {
		i := i
		g.Go(func() error {
			perRef[i] = c.checkOne(ctx, references[i], resolved[references[i].RefID], log)
			mu.Lock()
			done++
			n := done
			mu.Unlock()
			if progress != nil && (n == 1 || n%step == 0 || n == total) {
				progress(fmt.Sprintf("Checked %d/%d references", n, total), float64(n)/float64(total))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, FlagCounts{}, err
	}

	var issues []types.Issue
	var counts FlagCounts
	for _, refIssues := range perRef {
		for _, issue := range refIssues {
			switch issue.Type {
			case types.IssueUnresolvedReference:
				counts.Unresolved++
			case types.IssueRetractedReference:
				counts.Retracted++
			case types.IssuePredatoryVenue:
				counts.Predatory++
			}
			issues = append(issues, issue)
		}
	}
	return issues, counts, nil
}

func (c *ReferenceFlagChecker) checkOne(ctx context.Context, ref types.ReferenceEntry, work *types.ResolvedWork, log *zap.Logger) []types.Issue {
	if work == nil {
		return nil
	}

	var issues []types.Issue

	if work.Source == "" || work.Confidence < minResolveConfidence {
		issues = append(issues, types.Issue{
			Type:     types.IssueUnresolvedReference,
			Title:    "Bibliography item could not be confidently resolved: " + ref.RefID,
			Severity: types.SeverityMedium,
			Details: map[string]any{
				"ref_id":     ref.RefID,
				"raw":        ref.Raw,
				"resolution": work,
			},
		})
	}

	if issue, ok := c.retractionIssue(ctx, ref, work, log); ok {
		issues = append(issues, issue)
	}
	if issue, ok := c.predatoryIssue(ctx, ref, work, log); ok {
		issues = append(issues, issue)
	}
	return issues
}

// flagHit is one confirming signal for a retraction or predatory flag.
type flagHit struct {
	Source string `json:"source"`
	Detail any    `json:"detail,omitempty"`
}

func (c *ReferenceFlagChecker) retractionIssue(ctx context.Context, ref types.ReferenceEntry, work *types.ResolvedWork, log *zap.Logger) (types.Issue, bool) {
	var hits []flagHit

	if work.Retracted {
		source := work.Source
		if source == "" {
			source = "metadata"
		}
		hits = append(hits, flagHit{Source: source, Detail: work.RetractionDetail})
	}
	if work.DOI != "" {
		if c.RetractionAPI != nil {
			rec, err := c.RetractionAPI.LookupDOI(ctx, work.DOI)
			if err != nil {
				log.Warn("retraction API lookup failed", zap.String("doi", work.DOI), zap.Error(err))
			} else if rec != nil {
				hits = append(hits, flagHit{Source: "retraction_api", Detail: rec})
			}
		}
		if c.Retractions != nil {
			if rec, ok := c.Retractions.GetByDOI(work.DOI, true); ok {
				hits = append(hits, flagHit{Source: "retractionwatch_csv", Detail: rec})
			}
		}
	}
	if len(hits) == 0 {
		return types.Issue{}, false
	}

	// The CSV and the dedicated API are authoritative; a lone source flag
	// needs review.
	confidence := "review_needed"
	for _, h := range hits {
		if h.Source == "retractionwatch_csv" || h.Source == "retraction_api" {
			confidence = "high"
			break
		}
	}

	return types.Issue{
		Type:       types.IssueRetractedReference,
		Title:      "Retracted work cited: " + work.DOI,
		Severity:   types.SeverityHigh,
		Confidence: confidence,
		Details: map[string]any{
			"ref_id":     ref.RefID,
			"retraction": hits,
			"resolution": work,
		},
	}, true
}

func (c *ReferenceFlagChecker) predatoryIssue(ctx context.Context, ref types.ReferenceEntry, work *types.ResolvedWork, log *zap.Logger) (types.Issue, bool) {
	var hits []flagHit
	csvConfidence := 0.0

	if c.PredatoryAPI != nil {
		rec, err := c.PredatoryAPI.LookupVenue(ctx, work.Journal, work.Publisher, work.ISSN)
		if err != nil {
			log.Warn("predatory API lookup failed", zap.String("ref", ref.RefID), zap.Error(err))
		} else if rec != nil {
			hits = append(hits, flagHit{Source: "predatory_api", Detail: rec})
		}
	}
	if c.Predatory != nil {
		if match, ok := c.Predatory.Match(work.Journal, work.Publisher, work.ISSN); ok {
			hits = append(hits, flagHit{Source: "predatory_csv", Detail: match})
			csvConfidence = match.Confidence
		}
	}
	if len(hits) == 0 {
		return types.Issue{}, false
	}

	// High confidence needs either two independent signals or a strong
	// CSV match (ISSN-exact).
	confidence := "review_needed"
	if len(hits) >= 2 || csvConfidence >= 0.8 {
		confidence = "high"
	}

	return types.Issue{
		Type:       types.IssuePredatoryVenue,
		Title:      "Predatory venue match for " + ref.RefID,
		Severity:   types.SeverityHigh,
		Confidence: confidence,
		Details: map[string]any{
			"ref_id":     ref.RefID,
			"match":      hits,
			"resolution": work,
		},
	}, true
}
