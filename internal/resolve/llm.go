// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/citeguard/internal/sources"
	"github.com/pdiddy/citeguard/pkg/types"
)

const chooseSystemPromptFmt = "You match a bibliography entry to search results from %s. " +
	"Pick the single result that is the same work, or return null when none is. " +
	"You MUST NOT guess. Return ONLY valid JSON, no markdown."

type candidateSummary struct {
	ID          string `json:"id"`
	DOI         string `json:"doi,omitempty"`
	Title       string `json:"title,omitempty"`
	Year        int    `json:"publication_year,omitempty"`
	FirstAuthor string `json:"first_author,omitempty"`
	Venue       string `json:"venue,omitempty"`
}

type chooseDecision struct {
	BestID     *string  `json:"best_id"`
	Confidence *float64 `json:"confidence"`
	Rationale  string   `json:"rationale"`
}

// chooseCandidate asks the model to pick among mid-confidence search hits.
// The call consumes a budget unit; exhaustion is a hard error. Invalid model
// output degrades to no match.
func (r *Resolver) chooseCandidate(ctx context.Context, sourceName string, ref types.ReferenceEntry, doi string, candidates []sources.Record) (bestID string, confidence float64, rationale string, err error) {
	label := sourceLabels[sourceName]
	if label == "" {
		label = sourceName
	}

	packed := make([]candidateSummary, 0, len(candidates))
	for _, cand := range candidates {
		if cand.SourceID == "" {
			continue
		}
		packed = append(packed, candidateSummary{
			ID:          cand.SourceID,
			DOI:         cand.DOI,
			Title:       cand.Title,
			Year:        cand.Year,
			FirstAuthor: cand.FirstAuthorKey(),
			Venue:       cand.Venue,
		})
	}
	if len(packed) == 0 {
		return "", 0, "", nil
	}

	if err := r.Budget.Take(); err != nil {
		return "", 0, "", fmt.Errorf("resolving %q: %w; increase the resolve call limit", ref.RefID, err)
	}

	candJSON, err := json.MarshalIndent(packed, "", "  ")
	if err != nil {
		return "", 0, "", fmt.Errorf("marshaling candidates: %w", err)
	}

	user := "A bibliography entry needs to be matched to one of these search results.\n\n" +
		"REFERENCE: " + ref.Raw + "\n" +
		refField("FIRST_AUTHOR", ref.FirstAuthor) +
		refField("YEAR", yearString(ref.Year)) +
		refField("DOI", doi) +
		"\nCANDIDATES:\n" + string(candJSON) + "\n\n" +
		"Return JSON with keys:\n" +
		"- best_id: string|null (must be one of the candidate ids)\n" +
		"- confidence: number 0..1\n" +
		"- rationale: string\n"

	raw, err := r.Client.ChatJSON(ctx, fmt.Sprintf(chooseSystemPromptFmt, label), user)
	if err != nil {
		r.Log.Warn("resolve disambiguation failed; skipping",
			zap.String("ref_id", ref.RefID), zap.String("source", sourceName), zap.Error(err))
		return "", 0, "", nil
	}

	var decision chooseDecision
	if uerr := json.Unmarshal(raw, &decision); uerr != nil {
		r.Log.Warn("resolve disambiguation output invalid; skipping",
			zap.String("ref_id", ref.RefID), zap.String("source", sourceName), zap.Error(uerr))
		return "", 0, "", nil
	}
	if decision.Confidence == nil || *decision.Confidence < 0 || *decision.Confidence > 1 {
		r.Log.Warn("resolve disambiguation confidence invalid; skipping",
			zap.String("ref_id", ref.RefID), zap.String("source", sourceName))
		return "", 0, "", nil
	}
	if decision.BestID == nil {
		return "", *decision.Confidence, strings.TrimSpace(decision.Rationale), nil
	}

	allowed := false
	for _, cand := range packed {
		if cand.ID == *decision.BestID {
			allowed = true
			break
		}
	}
	if !allowed {
		r.Log.Warn("resolve disambiguation returned unknown candidate id; skipping",
			zap.String("ref_id", ref.RefID), zap.String("source", sourceName))
		return "", 0, "", nil
	}

	return *decision.BestID, *decision.Confidence, strings.TrimSpace(decision.Rationale), nil
}

func refField(name, value string) string {
	if value == "" {
		return ""
	}
	return name + ": " + value + "\n"
}

func yearString(year int) string {
	if year <= 0 {
		return ""
	}
	return fmt.Sprintf("%d", year)
}
