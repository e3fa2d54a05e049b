// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/citeguard/internal/ai"
	"github.com/pdiddy/citeguard/internal/normalize"
	"github.com/pdiddy/citeguard/pkg/types"
)

// Appropriateness screening thresholds.
const (
	// overlapSkipScore clears a citation when enough of the sentence's
	// content tokens appear in the work's title and abstract.
	overlapSkipScore = 0.06

	// nliDecisiveConfidence is the NLI confidence needed to settle a
	// citation without a model call.
	nliDecisiveConfidence = 0.85

	// inappropriateConfidence is the model confidence needed to flag.
	inappropriateConfidence = 0.60

	// appropriatenessMinMatch gates which matches are checked at all.
	appropriatenessMinMatch = 0.75

	maxAbstractChars = 1500
)

const appropriateSystemPrompt = "You judge whether a sentence citing an academic work is supported by that work. " +
	"Compare only the claim in the sentence against the work's title and abstract. " +
	"Use 'uncertain' when the abstract does not settle it. Return ONLY valid JSON, no markdown."

// AppropriatenessChecker screens citation contexts against the cited work.
type AppropriatenessChecker struct {
	Client  ai.Client
	Budget  *ai.Budget
	NLI     NLIClassifier
	Workers int
	Log     *zap.Logger
}

// TokenOverlapScore is the share of the sentence's content tokens found in
// the evidence text.
func TokenOverlapScore(sentence, evidence string) float64 {
	ts := normalize.ContentTokens(sentence)
	te := normalize.ContentTokens(evidence)
	if len(ts) == 0 || len(te) == 0 {
		return 0.0
	}
	inter := 0
	for tok := range ts {
		if _, ok := te[tok]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(ts))
}

type appropriatenessTarget struct {
	cit  types.CitationInstance
	ref  *types.ReferenceEntry
	work *types.ResolvedWork
}

// Check screens every confidently matched citation whose sentence shares
// too little vocabulary with the cited work. An NLI verdict settles clear
// cases; the rest go to the model, one budget unit each. An exhausted budget
// aborts the run.
func (c *AppropriatenessChecker) Check(
	ctx context.Context,
	matches []types.CitationMatch,
	resolved map[string]*types.ResolvedWork,
	progress func(string, float64),
) ([]types.Issue, error) {
	if progress != nil {
		progress("Checking citation-context alignment", 0.0)
	}
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}

	var targets []appropriatenessTarget
	for i := range matches {
		m := &matches[i]
		if m.Ref == nil || m.Status != types.MatchMatched || m.Confidence < appropriatenessMinMatch {
			continue
		}
		work := resolved[m.Ref.RefID]
		if work == nil || work.Title == "" {
			continue
		}
		evidence := work.Title + "\n" + work.Abstract
		if TokenOverlapScore(m.Citation.Context, evidence) >= overlapSkipScore {
			continue
		}
		targets = append(targets, appropriatenessTarget{cit: m.Citation, ref: m.Ref, work: work})
	}
	if len(targets) == 0 {
		return nil, nil
	}

	total := len(targets)
	step := total / 10
	if step < 1 {
		step = 1
	}
	workers := c.Workers
	if workers < 1 {
		workers = 1
	}

	perTarget := make([][]types.Issue, total)
	var mu sync.Mutex
	var done int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range targets {
		i := i
		g.Go(func() error {
			issues, err := c.checkOne(gctx, targets[i], log)
			if err != nil {
				return err
			}
			perTarget[i] = issues
			mu.Lock()
			done++
			n := done
			mu.Unlock()
			if progress != nil && (n == 1 || n%step == 0 || n == total) {
				progress(fmt.Sprintf("Checked %d/%d citations", n, total), float64(n)/float64(total))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var issues []types.Issue
	for _, ti := range perTarget {
		issues = append(issues, ti...)
	}
	return issues, nil
}

func (c *AppropriatenessChecker) checkOne(ctx context.Context, t appropriatenessTarget, log *zap.Logger) ([]types.Issue, error) {
	if c.NLI != nil && t.work.Abstract != "" {
		verdict, err := c.NLI.Classify(ctx, t.work.Abstract, t.cit.Context)
		if err != nil {
			log.Warn("NLI classify failed; falling back to model check",
				zap.String("ref_id", t.ref.RefID), zap.Error(err))
		} else {
			if verdict.Label == "entailment" && verdict.Confidence >= nliDecisiveConfidence {
				return nil, nil
			}
			if verdict.Label == "contradiction" && verdict.Confidence >= nliDecisiveConfidence {
				return []types.Issue{{
					Type:     types.IssueInappropriateCitation,
					Title:    fmt.Sprintf("NLI contradiction against abstract (%.2f)", verdict.Confidence),
					Severity: types.SeverityHigh,
					Details: map[string]any{
						"citation":   t.cit,
						"ref_id":     t.ref.RefID,
						"resolution": t.work,
						"nli":        verdict,
					},
				}}, nil
			}
		}
	}

	if err := c.Budget.Take(); err != nil {
		return nil, fmt.Errorf("checking %q: %w; increase the checks call limit", t.ref.RefID, err)
	}

	raw, err := c.Client.ChatJSON(ctx, appropriateSystemPrompt, appropriatenessPrompt(t))
	if err != nil {
		return c.manualReviewIssue(t, err.Error()), nil
	}

	var verdict struct {
		Label      string   `json:"label"`
		Confidence *float64 `json:"confidence"`
		Rationale  string   `json:"rationale"`
	}
	if uerr := json.Unmarshal(raw, &verdict); uerr != nil {
		return c.manualReviewIssue(t, "invalid verdict payload: "+uerr.Error()), nil
	}
	label := strings.ToLower(strings.TrimSpace(verdict.Label))
	if label != "appropriate" && label != "inappropriate" && label != "uncertain" {
		return c.manualReviewIssue(t, "invalid verdict label: "+label), nil
	}
	if verdict.Confidence == nil || *verdict.Confidence < 0 || *verdict.Confidence > 1 {
		return c.manualReviewIssue(t, "invalid verdict confidence"), nil
	}
	conf := *verdict.Confidence

	if label == "inappropriate" && conf >= inappropriateConfidence {
		return []types.Issue{{
			Type:     types.IssueInappropriateCitation,
			Title:    fmt.Sprintf("Inappropriate citation (%.2f)", conf),
			Severity: types.SeverityMedium,
			Details: map[string]any{
				"citation":   t.cit,
				"ref_id":     t.ref.RefID,
				"resolution": t.work,
				"label":      label,
				"confidence": conf,
				"rationale":  verdict.Rationale,
			},
		}}, nil
	}

	if label == "uncertain" {
		return []types.Issue{{
			Type:     types.IssueManualReview,
			Title:    "Could not verify citation",
			Severity: types.SeverityLow,
			Details: map[string]any{
				"citation":   t.cit,
				"ref_id":     t.ref.RefID,
				"resolution": t.work,
				"label":      label,
				"confidence": conf,
				"rationale":  verdict.Rationale,
			},
		}}, nil
	}

	return nil, nil
}

func (c *AppropriatenessChecker) manualReviewIssue(t appropriatenessTarget, errMsg string) []types.Issue {
	if c.Log != nil {
		c.Log.Warn("appropriateness verdict invalid; marking for manual review",
			zap.String("ref_id", t.ref.RefID), zap.String("error", errMsg))
	}
	return []types.Issue{{
		Type:     types.IssueManualReview,
		Title:    "LLM appropriateness-check output invalid",
		Severity: types.SeverityLow,
		Details: map[string]any{
			"citation":   t.cit,
			"ref_id":     t.ref.RefID,
			"resolution": t.work,
			"error":      errMsg,
		},
	}}
}

func appropriatenessPrompt(t appropriatenessTarget) string {
	abstract := strings.TrimSpace(t.work.Abstract)
	if len(abstract) > maxAbstractChars {
		abstract = abstract[:maxAbstractChars] + "…"
	}
	var b strings.Builder
	b.WriteString("Does the cited work support the sentence that cites it?\n\n")
	b.WriteString("CITING SENTENCE:\n" + t.cit.Context + "\n\n")
	b.WriteString("BIBLIOGRAPHY ENTRY:\n" + t.ref.Raw + "\n\n")
	b.WriteString("CITED WORK:\n")
	writeField(&b, "title", t.work.Title)
	writeField(&b, "doi", t.work.DOI)
	if t.work.Year > 0 {
		writeField(&b, "year", fmt.Sprintf("%d", t.work.Year))
	}
	writeField(&b, "journal", t.work.Journal)
	writeField(&b, "abstract", abstract)
	b.WriteString("\nReturn JSON with keys:\n")
	b.WriteString("- label: 'appropriate', 'inappropriate', or 'uncertain'\n")
	b.WriteString("- confidence: number 0..1\n")
	b.WriteString("- rationale: string\n")
	return b.String()
}

func writeField(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	b.WriteString(name + ": " + value + "\n")
}
