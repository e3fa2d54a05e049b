// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citeguard/pkg/types"
)

func TestBuildSummaryCounts(t *testing.T) {
	refs := []types.ReferenceEntry{
		{RefID: "ref1", Raw: "[1] A."},
		{RefID: "ref2", Raw: "[2] B."},
		{RefID: "ref3", Raw: "[3] C."},
	}
	matches := []types.CitationMatch{
		{Status: types.MatchMatched, Ref: &refs[0]},
		{Status: types.MatchMatched, Ref: &refs[1]},
		{Status: types.MatchAmbiguous},
		{Status: types.MatchUnmatched},
	}
	resolved := map[string]*types.ResolvedWork{
		"ref1": {RefID: "ref1", Title: "A", Source: "openalex", Confidence: 0.9},
		"ref2": {RefID: "ref2", Title: "B"},
	}
	issues := []types.Issue{{Type: types.IssueUnresolvedReference, Title: "x", Severity: types.SeverityLow}}

	rep := Build(refs, matches, resolved, issues, []string{"note"}, nil)
	require.NotEmpty(t, rep.ID)
	assert.Equal(t, 3, rep.Summary.References)
	assert.Equal(t, 4, rep.Summary.Citations)
	assert.Equal(t, 2, rep.Summary.Matched)
	assert.Equal(t, 1, rep.Summary.Ambiguous)
	assert.Equal(t, 1, rep.Summary.Unmatched)
	assert.Equal(t, 1, rep.Summary.Resolved)
	assert.Equal(t, 1, rep.Summary.Issues)

	// Resolved works follow bibliography order; ref3 never resolved.
	require.Len(t, rep.References, 2)
	assert.Equal(t, "ref1", rep.References[0].RefID)
	assert.Equal(t, []string{"note"}, rep.Limitations)
}

func TestBuildLiftsDeepLimitations(t *testing.T) {
	deep := &types.DeepReport{
		Stage:       types.StageComplete,
		Limitations: []string{"deep note"},
	}
	rep := Build(nil, nil, nil, nil, []string{"run note"}, deep)
	assert.Equal(t, []string{"run note", "deep note"}, rep.Limitations)
	assert.Same(t, deep, rep.Deep)
}

func TestWriteJSONRoundTrips(t *testing.T) {
	rep := Build(nil, nil, nil, nil, nil, nil)
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, rep))

	var got types.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, rep.ID, got.ID)
}

func TestSummarizeOutput(t *testing.T) {
	rep := Build(nil, nil, nil, []types.Issue{
		{Type: types.IssueRetractedReference, Title: "Reference 3 cites retracted work", Severity: types.SeverityHigh},
	}, nil, &types.DeepReport{Stage: types.StageSkipped, SkipReason: "Deep analysis disabled."})

	var buf bytes.Buffer
	Summarize(&buf, rep)
	out := buf.String()
	assert.Contains(t, out, "issues:     1")
	assert.Contains(t, out, "[high] Reference 3 cites retracted work")
	assert.Contains(t, out, "deep analysis: skipped (Deep analysis disabled.)")
}
