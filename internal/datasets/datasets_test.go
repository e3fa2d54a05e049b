// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package datasets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citeguard/pkg/types"
)

const retractionHeader = "Record ID,Title,Journal,Publisher,URLS,RetractionDate,RetractionNature,Reason,OriginalPaperDOI,Paywalled,Notes\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRetractions(t *testing.T) {
	path := writeFile(t, "rw.csv", retractionHeader+
		`1,Bad Paper,Journal of Errors,Shady Press,http://x,2021-01-01,Retraction,Falsified data,10.1234/BAD,No,note`+"\n"+
		`2,No DOI row,J,P,u,2021,Retraction,r,,No,`+"\n")

	data, err := LoadRetractions(path)
	require.NoError(t, err)
	require.Len(t, data.ByDOI, 1)

	rec, ok := data.GetByDOI("https://doi.org/10.1234/bad", true)
	require.True(t, ok)
	assert.Equal(t, "Bad Paper", rec.Title)
	assert.Equal(t, "Retraction", rec.RetractionNature)
}

func TestLoadRetractionsDuplicatePrefersRetraction(t *testing.T) {
	path := writeFile(t, "rw.csv", retractionHeader+
		`1,First,J,P,u,2020,Expression of concern,r,10.1/dup,No,`+"\n"+
		`2,Second,J,P,u,2021,Retraction,r,10.1/dup,No,`+"\n")

	data, err := LoadRetractions(path)
	require.NoError(t, err)
	rec, ok := data.GetByDOI("10.1/dup", false)
	require.True(t, ok)
	assert.Equal(t, "Second", rec.Title)
}

func TestRetractionsOnlyFiltersConcerns(t *testing.T) {
	path := writeFile(t, "rw.csv", retractionHeader+
		`1,Concern,J,P,u,2020,Expression of concern,r,10.1/eoc,No,`+"\n")

	data, err := LoadRetractions(path)
	require.NoError(t, err)

	_, ok := data.GetByDOI("10.1/eoc", true)
	assert.False(t, ok)
	_, ok = data.GetByDOI("10.1/eoc", false)
	assert.True(t, ok)
}

func TestLoadRetractionsMissingColumns(t *testing.T) {
	path := writeFile(t, "rw.csv", "Record ID,Title\n1,x\n")
	_, err := LoadRetractions(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
}

func TestLoadRetractionsMissingFile(t *testing.T) {
	data, err := LoadRetractions(filepath.Join(t.TempDir(), "absent.csv"))
	require.NoError(t, err)
	assert.Empty(t, data.ByDOI)
}

func TestLoadPredatoryStandardLayout(t *testing.T) {
	path := writeFile(t, "pred.csv", "name,type,issn,source,notes\n"+
		"Journal of Bogus Science,journal,1234-5678,beall,listed 2019\n"+
		"Shady Press,publisher,,beall,\n")

	data, err := LoadPredatory(path)
	require.NoError(t, err)
	require.Len(t, data.Records, 2)

	m, ok := data.Match("", "", "12345678")
	require.True(t, ok)
	assert.Equal(t, "issn_exact", m.MatchType)
	assert.Equal(t, 1.0, m.Confidence)

	m, ok = data.Match("journal of bogus science!", "", "")
	require.True(t, ok)
	assert.Equal(t, "name_exact", m.MatchType)
	assert.Equal(t, 0.85, m.Confidence)

	m, ok = data.Match("", "SHADY press", "")
	require.True(t, ok)
	assert.Equal(t, "Shady Press", m.Record.Name)

	_, ok = data.Match("Legit Journal", "Legit Press", "9999-9999")
	assert.False(t, ok)
}

func TestLoadPredatoryJournalPublisherLayout(t *testing.T) {
	path := writeFile(t, "pred.csv", "journal,publisher,issn,source,notes\n"+
		"Fake Reviews Quarterly,Paper Mill Inc,0000-0001,list,\n")

	data, err := LoadPredatory(path)
	require.NoError(t, err)
	require.Len(t, data.Records, 2)

	m, ok := data.Match("Fake Reviews Quarterly", "", "")
	require.True(t, ok)
	assert.Equal(t, "journal", m.Record.VenueType)

	m, ok = data.Match("", "Paper Mill Inc", "")
	require.True(t, ok)
	assert.Equal(t, "publisher", m.Record.VenueType)
}

func TestLoadPredatoryBadHeader(t *testing.T) {
	path := writeFile(t, "pred.csv", "foo,bar\n1,2\n")
	_, err := LoadPredatory(path)
	require.Error(t, err)
}

func TestNormalizeVenueName(t *testing.T) {
	assert.Equal(t, "journal of things", NormalizeVenueName("  Journal of Things! "))
	assert.Equal(t, "", NormalizeVenueName("…"))
}

func TestExcludedSources(t *testing.T) {
	path := writeFile(t, "excluded.txt", "# comment\n\nResearchGate\nSciProfiles aggregator\n")
	excluded, err := LoadExcludedSources(path)
	require.NoError(t, err)
	require.Len(t, excluded, 2)

	assert.True(t, excluded.Matches("ResearchGate"))
	assert.True(t, excluded.Matches("researchgate.net"))
	assert.False(t, excluded.Matches("Nature"))
	assert.False(t, excluded.Matches(""))

	assert.True(t, excluded.WorkExcluded(&types.ResolvedWork{Journal: "ResearchGate"}))
	assert.False(t, excluded.WorkExcluded(&types.ResolvedWork{Journal: "Nature"}))
	assert.False(t, excluded.WorkExcluded(nil))
}

func TestExcludedSourcesMissingFile(t *testing.T) {
	excluded, err := LoadExcludedSources(filepath.Join(t.TempDir(), "absent.txt"))
	require.NoError(t, err)
	assert.Empty(t, excluded)
}
