// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citeguard/internal/ai"
	"github.com/pdiddy/citeguard/pkg/types"
)

const sampleDoc = `Introduction

Transformers changed everything [1]. Earlier work disagreed [2,3].
Smith et al. (2020) proposed a refinement. Others followed (Jones, 2021; Lee and Park, 2019).

References

[1] Vaswani, A. et al. Attention is all you need. NeurIPS 2017. doi:10.48550/arXiv.1706.03762
[2] Smith, J. On transformers. Journal of Things, 2020.
[3] Jones, B. Against transformers. 2021.
`

func TestSplitReferences(t *testing.T) {
	body, refs := SplitReferences(sampleDoc)
	assert.Contains(t, body, "Transformers changed everything")
	assert.NotContains(t, body, "Vaswani")
	assert.True(t, strings.HasPrefix(refs, "[1] Vaswani"))
}

func TestSplitReferencesLastHeadingWins(t *testing.T) {
	doc := "We survey the references\nReferences\nnot the real section\nBibliography\n[1] Real, A. Entry. 2020.\n"
	body, refs := SplitReferences(doc)
	assert.Contains(t, body, "not the real section")
	assert.Equal(t, "[1] Real, A. Entry. 2020.", refs)
}

func TestSplitReferencesNoHeading(t *testing.T) {
	body, refs := SplitReferences("just prose with no bibliography section marker inline")
	assert.Equal(t, "just prose with no bibliography section marker inline", body)
	assert.Empty(t, refs)
}

func TestParseReferencesNumbered(t *testing.T) {
	_, refsText := SplitReferences(sampleDoc)
	refs := ParseReferences(refsText)
	require.Len(t, refs, 3)

	assert.Equal(t, "1", refs[0].RefID)
	assert.Equal(t, 1, refs[0].RefNumber)
	assert.Equal(t, "10.48550/arxiv.1706.03762", refs[0].DOI)
	assert.Equal(t, 2017, refs[0].Year)

	assert.Equal(t, "2", refs[1].RefID)
	assert.Equal(t, 2020, refs[1].Year)
	assert.Equal(t, "3", refs[2].RefID)
}

func TestParseReferencesAuthorLabelled(t *testing.T) {
	text := "Smith, J. (2020). On transformers. Journal of Things.\n\n" +
		"Jones, B. (2021). Against transformers. Other Journal.\n"
	refs := ParseReferences(text)
	require.Len(t, refs, 2)
	assert.Equal(t, "ref-1", refs[0].RefID)
	assert.Equal(t, 0, refs[0].RefNumber)
	assert.Equal(t, "smith", refs[0].FirstAuthor)
	assert.Equal(t, 2020, refs[0].Year)
	assert.Equal(t, "jones", refs[1].FirstAuthor)
}

func TestParseReferencesJoinsWrappedLines(t *testing.T) {
	text := "[1] Vaswani, A. Attention is\nall you need. 2017.\n[2] Smith, J. Short. 2020.\n"
	refs := ParseReferences(text)
	require.Len(t, refs, 2)
	assert.Equal(t, "[1] Vaswani, A. Attention is all you need. 2017.", refs[0].Raw)
}

func TestParseCitationsNumericRange(t *testing.T) {
	cits := ParseCitations("Prior work [1,3-5] showed this. Unrelated sentence.")
	require.Len(t, cits, 4)
	locators := []string{cits[0].Locator, cits[1].Locator, cits[2].Locator, cits[3].Locator}
	assert.Equal(t, []string{"1", "3", "4", "5"}, locators)
	for _, c := range cits {
		assert.Equal(t, types.CitationNumeric, c.Kind)
		assert.Equal(t, "[1,3-5]", c.Raw)
		assert.Equal(t, cits[0].Context, c.Context)
		assert.Contains(t, c.Context, "Prior work")
	}
	assert.NotContains(t, cits[0].Context, "Unrelated")
}

func TestExpandNumericBodyGuards(t *testing.T) {
	assert.Equal(t, []int{3, 4, 5}, ExpandNumericBody("5-3"))
	assert.Empty(t, ExpandNumericBody("3-500"))
	assert.Empty(t, ExpandNumericBody("0"))
	assert.Equal(t, []int{2, 7}, ExpandNumericBody(" 2 , 7 "))
}

func TestParseCitationsNarrative(t *testing.T) {
	cits := ParseCitations("Smith et al. (2020a) argued otherwise.")
	require.Len(t, cits, 1)
	assert.Equal(t, types.CitationAuthorYear, cits[0].Kind)
	assert.Equal(t, "smith-2020a", cits[0].Locator)
	assert.Equal(t, "Smith et al. (2020a)", cits[0].Raw)
}

func TestParseCitationsParenthetical(t *testing.T) {
	cits := ParseCitations("This view is contested (Smith, 2020; Jones, 2021).")
	require.Len(t, cits, 2)
	assert.Equal(t, "smith-2020", cits[0].Locator)
	assert.Equal(t, "jones-2021", cits[1].Locator)
	assert.Equal(t, "(Smith, 2020; Jones, 2021)", cits[0].Raw)
	assert.Equal(t, cits[0].Context, cits[1].Context)
}

func TestParseCitationsAmpersandPair(t *testing.T) {
	cits := ParseCitations("Earlier results agree (Lee & Park, 2019).")
	require.Len(t, cits, 1)
	assert.Equal(t, "lee-2019", cits[0].Locator)
}

func TestSentenceContextTruncates(t *testing.T) {
	long := strings.Repeat("x", 700) + " [1] " + strings.Repeat("y", 100)
	cits := ParseCitations(long)
	require.Len(t, cits, 1)
	assert.Len(t, []rune(cits[0].Context), 601)
	assert.True(t, strings.HasSuffix(cits[0].Context, "…"))
}

func TestSplitMultiCitationsNumeric(t *testing.T) {
	in := []types.CitationInstance{{
		Kind:    types.CitationNumeric,
		Raw:     "[1, 3-4]",
		Locator: "1",
		Context: "ctx",
	}}
	out := SplitMultiCitations(in)
	require.Len(t, out, 3)
	assert.Equal(t, "[1]", out[0].Raw)
	assert.Equal(t, "3", out[1].Locator)
	assert.Equal(t, "4", out[2].Locator)
	assert.Equal(t, "ctx", out[2].Context)
}

func TestSplitMultiCitationsAuthorYear(t *testing.T) {
	in := []types.CitationInstance{{
		Kind:    types.CitationAuthorYear,
		Raw:     "(see Smith, 2020; Jones, 2021)",
		Locator: "smith-2020",
		Context: "ctx",
	}}
	out := SplitMultiCitations(in)
	require.Len(t, out, 2)
	assert.Equal(t, "smith-2020", out[0].Locator)
	assert.Equal(t, "(see Smith, 2020)", out[0].Raw)
	assert.Equal(t, "jones-2021", out[1].Locator)
}

func TestSplitMultiCitationsSingleUntouched(t *testing.T) {
	in := []types.CitationInstance{{
		Kind:    types.CitationAuthorYear,
		Raw:     "(Smith, 2020)",
		Locator: "smith-2020",
		Context: "ctx",
	}}
	out := SplitMultiCitations(in)
	require.Len(t, out, 1)
	assert.Equal(t, in[0], out[0])
}

// fakeAI returns canned JSON for ChatJSON.
type fakeAI struct {
	payload string
	err     error
	lastSys string
}

func (f *fakeAI) ChatJSON(_ context.Context, system, _ string) (json.RawMessage, error) {
	f.lastSys = system
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.payload), nil
}

func TestParseReferencesAI(t *testing.T) {
	client := &fakeAI{payload: `{
		"references": [
			{"id": "a", "raw": "Smith, J. On transformers. 2020.", "ref_number": 2,
			 "doi": "HTTPS://DOI.ORG/10.1234/ABC", "year": 2020, "first_author": "Smith"},
			{"raw": "Jones, B. Against. 2021.",
			 "csl": {"DOI": "10.5555/xyz", "issued": {"date-parts": [[2021]]}, "author": [{"family": "Jones"}]}},
			{"raw": ""}
		],
		"notes": ["one entry had no raw text"]
	}`}

	refs, notes, err := ParseReferencesAI(context.Background(), client, "Smith...\nJones...", 1000, 10)
	require.NoError(t, err)
	require.Len(t, refs, 2)

	assert.Equal(t, "2", refs[0].RefID)
	assert.Equal(t, 2, refs[0].RefNumber)
	assert.Equal(t, "10.1234/abc", refs[0].DOI)
	assert.Equal(t, "smith", refs[0].FirstAuthor)

	assert.Equal(t, "ref-2", refs[1].RefID)
	assert.Equal(t, "10.5555/xyz", refs[1].DOI)
	assert.Equal(t, 2021, refs[1].Year)
	assert.Equal(t, "jones", refs[1].FirstAuthor)

	assert.Contains(t, notes, "one entry had no raw text")
}

func TestParseReferencesAITruncates(t *testing.T) {
	client := &fakeAI{payload: `{"references": []}`}
	_, notes, err := ParseReferencesAI(context.Background(), client, strings.Repeat("r", 2000), 1000, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0], "truncated from 2000 to 1000")
}

func TestParseReferencesAIMissingList(t *testing.T) {
	client := &fakeAI{payload: `{"nope": true}`}
	_, _, err := ParseReferencesAI(context.Background(), client, "text", 1000, 10)
	require.ErrorIs(t, err, ai.ErrInvalidOutput)
}

func TestParseCitationsAI(t *testing.T) {
	client := &fakeAI{payload: `{
		"citations": [
			{"kind": "numeric", "raw": "[3]", "locator": "3", "context": "as shown in [3]"},
			{"kind": "author_year", "raw": "(Smith, 2020)", "locator": "Smith-2020", "context": "per (Smith, 2020)"},
			{"kind": "weird", "raw": "[x]", "locator": "x", "context": "ctx"},
			{"kind": "numeric", "raw": "[4]", "locator": "", "context": "ctx"}
		]
	}`}

	cits, _, err := ParseCitationsAI(context.Background(), client, "some text")
	require.NoError(t, err)
	require.Len(t, cits, 2)
	assert.Equal(t, types.CitationNumeric, cits[0].Kind)
	assert.Equal(t, "smith-2020", cits[1].Locator)
}

func TestExtractReferencesSectionAI(t *testing.T) {
	client := &fakeAI{payload: `{"references_text": "[1] Smith. 2020.", "confidence": 0.9}`}
	text, _, err := ExtractReferencesSectionAI(context.Background(), client, "doc text", 1000)
	require.NoError(t, err)
	assert.Equal(t, "[1] Smith. 2020.", text)
}

func TestExtractReferencesSectionAINull(t *testing.T) {
	client := &fakeAI{payload: `{"references_text": null, "confidence": 0.2}`}
	text, _, err := ExtractReferencesSectionAI(context.Background(), client, "doc text", 1000)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtractReferencesSectionAIBadConfidence(t *testing.T) {
	client := &fakeAI{payload: `{"references_text": "x", "confidence": 7}`}
	_, _, err := ExtractReferencesSectionAI(context.Background(), client, "doc text", 1000)
	require.ErrorIs(t, err, ai.ErrInvalidOutput)
}
