// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package match

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citeguard/internal/ai"
	"github.com/pdiddy/citeguard/pkg/types"
)

func numberedRefs() []types.ReferenceEntry {
	return []types.ReferenceEntry{
		{RefID: "1", Raw: "[1] Vaswani, A. Attention is all you need. 2017.", RefNumber: 1, Year: 2017},
		{RefID: "2", Raw: "[2] Smith, J. On transformers. 2020.", RefNumber: 2, Year: 2020, FirstAuthor: "smith"},
	}
}

func numericCitation(loc string) types.CitationInstance {
	return types.CitationInstance{Kind: types.CitationNumeric, Raw: "[" + loc + "]", Locator: loc, Context: "ctx"}
}

func authorYearCitation(raw, loc string) types.CitationInstance {
	return types.CitationInstance{Kind: types.CitationAuthorYear, Raw: raw, Locator: loc, Context: "ctx"}
}

func TestMatchNumericDirect(t *testing.T) {
	matches := Match([]types.CitationInstance{numericCitation("2")}, numberedRefs())
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, types.MatchMatched, m.Status)
	assert.Equal(t, 1.0, m.Confidence)
	assert.Equal(t, "number_direct", m.Method)
	require.NotNil(t, m.Ref)
	assert.Equal(t, "2", m.Ref.RefID)
}

func TestMatchNumericMissing(t *testing.T) {
	matches := Match([]types.CitationInstance{numericCitation("9")}, numberedRefs())
	require.Len(t, matches, 1)
	assert.Equal(t, types.MatchUnmatched, matches[0].Status)
	assert.Nil(t, matches[0].Ref)
	assert.Contains(t, matches[0].Notes[0], "No bibliography item")
}

func TestMatchNumericFromRawLabel(t *testing.T) {
	refs := []types.ReferenceEntry{{RefID: "ref-1", Raw: "[7] Doe, J. Something. 2018."}}
	matches := Match([]types.CitationInstance{numericCitation("7")}, refs)
	require.Len(t, matches, 1)
	assert.Equal(t, types.MatchMatched, matches[0].Status)
	assert.Equal(t, "ref-1", matches[0].Ref.RefID)
}

func TestMatchAuthorYearExact(t *testing.T) {
	refs := []types.ReferenceEntry{
		{RefID: "a", Raw: "Smith, J. (2020). On transformers.", Year: 2020, FirstAuthor: "smith"},
		{RefID: "b", Raw: "Jones, B. (2021). Other work.", Year: 2021, FirstAuthor: "jones"},
	}
	matches := Match([]types.CitationInstance{authorYearCitation("(Smith, 2020)", "smith-2020")}, refs)
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, types.MatchMatched, m.Status)
	assert.Equal(t, "author_year_exact", m.Method)
	assert.Equal(t, "a", m.Ref.RefID)
	assert.InDelta(t, 0.83, m.Confidence, 0.001)
}

func TestMatchAuthorYearSuffixIgnored(t *testing.T) {
	refs := []types.ReferenceEntry{
		{RefID: "a", Raw: "Smith, J. (2020). Only entry.", Year: 2020, FirstAuthor: "smith"},
	}
	matches := Match([]types.CitationInstance{authorYearCitation("Smith (2020b)", "smith-2020b")}, refs)
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, "author_year_suffix_ignored", m.Method)
	assert.Equal(t, types.MatchMatched, m.Status)
	assert.Equal(t, "a", m.Ref.RefID)
	assert.Contains(t, m.Notes[0], "suffix ignored")
}

func TestMatchAuthorYearSuffixedBibliography(t *testing.T) {
	refs := []types.ReferenceEntry{
		{RefID: "a", Raw: "Smith, J. (2020a). First.", Year: 2020, FirstAuthor: "smith"},
		{RefID: "b", Raw: "Smith, J. (2020b). Second.", Year: 2020, FirstAuthor: "smith"},
	}
	matches := Match([]types.CitationInstance{authorYearCitation("Smith (2020b)", "smith-2020b")}, refs)
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, types.MatchMatched, m.Status)
	assert.Equal(t, "b", m.Ref.RefID)
}

func TestMatchAuthorYearAmbiguousTie(t *testing.T) {
	refs := []types.ReferenceEntry{
		{RefID: "a", Raw: "Smith, J. (2020). First.", Year: 2020, FirstAuthor: "smith"},
		{RefID: "b", Raw: "Smith, K. (2020). Second.", Year: 2020, FirstAuthor: "smith"},
	}
	matches := Match([]types.CitationInstance{authorYearCitation("(Smith, 2020)", "smith-2020")}, refs)
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, types.MatchAmbiguous, m.Status)
	require.Len(t, m.Candidates, 2)
	assert.Equal(t, m.Candidates[0].Score, m.Candidates[1].Score)
}

func TestMatchAuthorYearNearby(t *testing.T) {
	refs := []types.ReferenceEntry{
		{RefID: "a", Raw: "Smith, J. (2019). Close enough.", Year: 2019, FirstAuthor: "smith"},
		{RefID: "b", Raw: "Smith, J. (2010). Far away.", Year: 2010, FirstAuthor: "smith"},
	}
	matches := Match([]types.CitationInstance{authorYearCitation("(Smith, 2020)", "smith-2020")}, refs)
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, "author_year_nearby", m.Method)
	assert.Equal(t, "a", m.Ref.RefID)
	assert.Contains(t, m.Notes[0], "year tolerance")
}

func TestMatchAuthorOnlyUnique(t *testing.T) {
	refs := []types.ReferenceEntry{
		{RefID: "a", Raw: "Smith, J. (2010). Only Smith entry.", Year: 2010, FirstAuthor: "smith"},
		{RefID: "b", Raw: "Jones, B. (2020). Other author.", Year: 2020, FirstAuthor: "jones"},
	}
	matches := Match([]types.CitationInstance{authorYearCitation("(Smith, 2020)", "smith-2020")}, refs)
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, "author_only_unique", m.Method)
	assert.Equal(t, "a", m.Ref.RefID)
	// Base + author only; year differs by 10.
	assert.Equal(t, types.MatchMatched, m.Status)
	assert.InDelta(t, 0.65, m.Confidence, 0.001)
}

func TestMatchAuthorYearUnmatched(t *testing.T) {
	matches := Match([]types.CitationInstance{authorYearCitation("(Nguyen, 2020)", "nguyen-2020")}, numberedRefs())
	require.Len(t, matches, 1)
	assert.Equal(t, types.MatchUnmatched, matches[0].Status)
}

func TestMatchCoauthorOverlapBreaksTie(t *testing.T) {
	refs := []types.ReferenceEntry{
		{RefID: "a", Raw: "Smith, J., Jones, B. (2020). With the coauthor.", Year: 2020, FirstAuthor: "smith"},
		{RefID: "b", Raw: "Smith, J., Lee, C. (2020). Different coauthor.", Year: 2020, FirstAuthor: "smith"},
	}
	cit := authorYearCitation("(Smith and Jones, 2020)", "smith-2020")
	matches := Match([]types.CitationInstance{cit}, refs)
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, "a", m.Ref.RefID)
	assert.Greater(t, m.Candidates[0].Score, m.Candidates[1].Score)
}

func TestBuildIndexDuplicateNumberKeepsFirst(t *testing.T) {
	refs := []types.ReferenceEntry{
		{RefID: "x", Raw: "[3] First entry. 2020.", RefNumber: 3},
		{RefID: "y", Raw: "[3] Duplicate label. 2021.", RefNumber: 3},
	}
	idx := BuildIndex(refs)
	assert.Equal(t, "x", idx.byNumber["3"].RefID)
}

// scriptedAI returns queued responses in order.
type scriptedAI struct {
	responses []string
	errs      []error
	calls     int
}

func (s *scriptedAI) ChatJSON(context.Context, string, string) (json.RawMessage, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.responses) {
		return json.RawMessage(s.responses[i]), nil
	}
	return nil, ai.ErrInvalidOutput
}

func ambiguousFixture() ([]types.CitationMatch, []types.ReferenceEntry) {
	refs := []types.ReferenceEntry{
		{RefID: "a", Raw: "Smith, J. (2020). First.", Year: 2020, FirstAuthor: "smith"},
		{RefID: "b", Raw: "Smith, K. (2020). Second.", Year: 2020, FirstAuthor: "smith"},
	}
	matches := Match([]types.CitationInstance{authorYearCitation("(Smith, 2020)", "smith-2020")}, refs)
	return matches, refs
}

func TestDisambiguateChoosesCandidate(t *testing.T) {
	matches, refs := ambiguousFixture()
	client := &scriptedAI{responses: []string{`{"best_id": "b", "confidence": 0.9, "rationale": "context names the second work"}`}}
	budget := ai.NewBudget("match", 5)

	out := Disambiguate(context.Background(), client, budget, matches, refs, nil)
	require.Len(t, out, 1)
	m := out[0]
	assert.Equal(t, types.MatchMatched, m.Status)
	assert.Equal(t, "b", m.Ref.RefID)
	assert.Equal(t, 0.9, m.Confidence)
	assert.Equal(t, "author_year_exact_llm", m.Method)
	assert.Contains(t, m.Notes[len(m.Notes)-1], "LLM disambiguation (0.90)")
	assert.Equal(t, 1, budget.Used())
}

func TestDisambiguateLowConfidenceStaysAmbiguous(t *testing.T) {
	matches, refs := ambiguousFixture()
	client := &scriptedAI{responses: []string{`{"best_id": "a", "confidence": 0.5, "rationale": "weak signal"}`}}

	out := Disambiguate(context.Background(), client, ai.NewBudget("match", 5), matches, refs, nil)
	require.Len(t, out, 1)
	assert.Equal(t, types.MatchAmbiguous, out[0].Status)
	assert.Equal(t, "a", out[0].Ref.RefID)
}

func TestDisambiguateNullKeepsAmbiguous(t *testing.T) {
	matches, refs := ambiguousFixture()
	client := &scriptedAI{responses: []string{`{"best_id": null, "confidence": 0.3, "rationale": "cannot tell"}`}}

	out := Disambiguate(context.Background(), client, ai.NewBudget("match", 5), matches, refs, nil)
	require.Len(t, out, 1)
	m := out[0]
	assert.Equal(t, types.MatchAmbiguous, m.Status)
	assert.Equal(t, 0.3, m.Confidence)
	assert.Equal(t, "author_year_exact_llm", m.Method)
	assert.Contains(t, m.Notes, "LLM could not choose a single best bibliography match.")
}

func TestDisambiguateInvalidOutputKeepsMatch(t *testing.T) {
	matches, refs := ambiguousFixture()
	client := &scriptedAI{responses: []string{`{"best_id": "zzz", "confidence": 0.9}`}}

	out := Disambiguate(context.Background(), client, ai.NewBudget("match", 5), matches, refs, nil)
	require.Len(t, out, 1)
	m := out[0]
	assert.Equal(t, types.MatchAmbiguous, m.Status)
	assert.Contains(t, m.Notes[len(m.Notes)-1], "LLM disambiguation failed")
}

func TestDisambiguateBudgetExhausted(t *testing.T) {
	matches, refs := ambiguousFixture()
	client := &scriptedAI{responses: []string{`{"best_id": "a", "confidence": 0.9}`}}

	out := Disambiguate(context.Background(), client, ai.NewBudget("match", 0), matches, refs, nil)
	require.Len(t, out, 1)
	assert.Equal(t, types.MatchAmbiguous, out[0].Status)
	assert.Contains(t, out[0].Notes[len(out[0].Notes)-1], "budget exhausted")
	assert.Equal(t, 0, client.calls)
}

func TestDisambiguateMemoizesRepeatedMarkers(t *testing.T) {
	refs := []types.ReferenceEntry{
		{RefID: "a", Raw: "Smith, J. (2020). First.", Year: 2020, FirstAuthor: "smith"},
		{RefID: "b", Raw: "Smith, K. (2020). Second.", Year: 2020, FirstAuthor: "smith"},
	}
	cit := authorYearCitation("(Smith, 2020)", "smith-2020")
	matches := Match([]types.CitationInstance{cit, cit}, refs)
	require.Len(t, matches, 2)

	client := &scriptedAI{responses: []string{`{"best_id": "a", "confidence": 0.9, "rationale": "r"}`}}
	budget := ai.NewBudget("match", 5)
	out := Disambiguate(context.Background(), client, budget, matches, refs, nil)

	require.Len(t, out, 2)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, 1, budget.Used())
	assert.Equal(t, "a", out[0].Ref.RefID)
	assert.Equal(t, "a", out[1].Ref.RefID)
}

func TestDisambiguateSkipsMatchedAndUnmatched(t *testing.T) {
	client := &scriptedAI{}
	matches := Match([]types.CitationInstance{numericCitation("1")}, numberedRefs())
	out := Disambiguate(context.Background(), client, ai.NewBudget("match", 5), matches, numberedRefs(), nil)
	require.Len(t, out, 1)
	assert.Equal(t, 0, client.calls)
}
