// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package match

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/citeguard/internal/ai"
	"github.com/pdiddy/citeguard/pkg/types"
)

const disambiguateSystemPrompt = "You resolve ambiguous links between an in-text citation and bibliography entries. " +
	"Pick the single best entry only when the evidence supports it; otherwise return null. " +
	"You MUST NOT invent entries. Return ONLY valid JSON, no markdown."

// disambiguateCandidate is one bibliography entry in the disambiguation
// prompt payload.
type disambiguateCandidate struct {
	ID          string   `json:"id"`
	Raw         string   `json:"raw"`
	FirstAuthor string   `json:"first_author,omitempty"`
	Year        int      `json:"year,omitempty"`
	DOI         string   `json:"doi,omitempty"`
	ScoreHint   float64  `json:"score_hint"`
	Reasons     []string `json:"reasons,omitempty"`
}

type disambiguateDecision struct {
	BestID     *string  `json:"best_id"`
	Confidence *float64 `json:"confidence"`
	Rationale  string   `json:"rationale"`
}

// Disambiguate asks the model to break ties for ambiguous matches with at
// least two candidates. Decisions are memoized by citation text, context
// snippet, and candidate set so repeated markers cost one call. Model
// failures keep the match ambiguous with an explanatory note; an exhausted
// budget skips the remaining matches the same way.
func Disambiguate(ctx context.Context, client ai.Client, budget *ai.Budget, matches []types.CitationMatch, references []types.ReferenceEntry, log *zap.Logger) []types.CitationMatch {
	if log == nil {
		log = zap.NewNop()
	}

	refByID := make(map[string]*types.ReferenceEntry, len(references))
	for i := range references {
		refByID[references[i].RefID] = &references[i]
	}

	memo := make(map[string]disambiguateDecision)
	out := make([]types.CitationMatch, 0, len(matches))

	for _, m := range matches {
		if m.Status != types.MatchAmbiguous || len(m.Candidates) < 2 {
			out = append(out, m)
			continue
		}

		key := memoKey(m)
		decision, cached := memo[key]
		if !cached {
			payload := candidatePayload(m.Candidates, refByID)
			if len(payload) < 2 {
				out = append(out, m)
				continue
			}

			if err := budget.Take(); err != nil {
				m.Notes = append(m.Notes, "LLM disambiguation skipped: match-call budget exhausted.")
				out = append(out, m)
				continue
			}

			var err error
			decision, err = askModel(ctx, client, m.Citation, payload)
			if err != nil {
				log.Warn("citation disambiguation failed; keeping ambiguous",
					zap.String("locator", m.Citation.Locator), zap.Error(err))
				m.Notes = append(m.Notes, "LLM disambiguation failed: "+truncateNote(err.Error()))
				out = append(out, m)
				continue
			}
			memo[key] = decision
		}

		conf := 0.0
		if decision.Confidence != nil {
			conf = *decision.Confidence
		}

		if decision.BestID == nil {
			if conf < m.Confidence {
				m.Confidence = conf
			}
			m.Method += "_llm"
			m.Notes = append(m.Notes, "LLM could not choose a single best bibliography match.")
			if decision.Rationale != "" {
				m.Notes = append(m.Notes, decision.Rationale)
			}
			out = append(out, m)
			continue
		}

		chosen, ok := refByID[*decision.BestID]
		if !ok {
			out = append(out, m)
			continue
		}

		m.Ref = chosen
		m.Confidence = conf
		m.Method += "_llm"
		if conf >= matchThreshold {
			m.Status = types.MatchMatched
		} else {
			m.Status = types.MatchAmbiguous
		}
		if decision.Rationale != "" {
			m.Notes = append(m.Notes, fmt.Sprintf("LLM disambiguation (%.2f): %s", conf, decision.Rationale))
		} else {
			m.Notes = append(m.Notes, fmt.Sprintf("LLM disambiguation (%.2f).", conf))
		}
		out = append(out, m)
	}

	return out
}

func memoKey(m types.CitationMatch) string {
	ids := make([]string, 0, len(m.Candidates))
	seen := make(map[string]struct{})
	for _, c := range m.Candidates {
		if c.RefID == "" {
			continue
		}
		if _, dup := seen[c.RefID]; dup {
			continue
		}
		seen[c.RefID] = struct{}{}
		ids = append(ids, c.RefID)
	}
	sort.Strings(ids)

	context := strings.Join(strings.Fields(m.Citation.Context), " ")
	if len(context) > 240 {
		context = context[:240]
	}
	return strings.TrimSpace(m.Citation.Raw) + "\x00" + context + "\x00" + strings.Join(ids, ",")
}

func candidatePayload(candidates []types.MatchCandidate, refByID map[string]*types.ReferenceEntry) []disambiguateCandidate {
	out := make([]disambiguateCandidate, 0, len(candidates))
	for _, cand := range candidates {
		ref, ok := refByID[cand.RefID]
		if !ok {
			continue
		}
		out = append(out, disambiguateCandidate{
			ID:          ref.RefID,
			Raw:         ref.Raw,
			FirstAuthor: ref.FirstAuthor,
			Year:        ref.Year,
			DOI:         ref.DOI,
			ScoreHint:   cand.Score,
			Reasons:     cand.Reasons,
		})
	}
	return out
}

func askModel(ctx context.Context, client ai.Client, cit types.CitationInstance, candidates []disambiguateCandidate) (disambiguateDecision, error) {
	candJSON, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return disambiguateDecision{}, fmt.Errorf("marshaling candidates: %w", err)
	}

	user := "An in-text citation matched several bibliography entries. Choose the best entry or return null.\n\n" +
		"CITATION: " + cit.Raw + "\n" +
		"LOCATOR: " + cit.Locator + "\n" +
		"CONTEXT: " + cit.Context + "\n\n" +
		"CANDIDATES:\n" + string(candJSON) + "\n\n" +
		"Return JSON with keys:\n" +
		"- best_id: string|null (must be one of the candidate ids)\n" +
		"- confidence: number 0..1\n" +
		"- rationale: string\n"

	raw, err := client.ChatJSON(ctx, disambiguateSystemPrompt, user)
	if err != nil {
		return disambiguateDecision{}, err
	}

	var decision disambiguateDecision
	if err := json.Unmarshal(raw, &decision); err != nil {
		return disambiguateDecision{}, fmt.Errorf("%w: disambiguation payload: %v", ai.ErrInvalidOutput, err)
	}
	if decision.Confidence == nil {
		return disambiguateDecision{}, fmt.Errorf("%w: confidence must be a number 0..1", ai.ErrInvalidOutput)
	}
	if *decision.Confidence < 0 || *decision.Confidence > 1 {
		return disambiguateDecision{}, fmt.Errorf("%w: confidence out of range", ai.ErrInvalidOutput)
	}
	if decision.BestID != nil {
		allowed := false
		for _, cand := range candidates {
			if cand.ID == *decision.BestID {
				allowed = true
				break
			}
		}
		if !allowed {
			return disambiguateDecision{}, fmt.Errorf("%w: best_id not in candidate set", ai.ErrInvalidOutput)
		}
	}
	decision.Rationale = strings.TrimSpace(decision.Rationale)
	return decision, nil
}

func truncateNote(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "Unknown error."
	}
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
