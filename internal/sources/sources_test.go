// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citeguard/internal/httputil"
)

func init() {
	httputil.RetryBaseDelay = 1 * time.Millisecond
}

func swapBaseURL(t *testing.T, target *string, ts *httptest.Server) {
	t.Helper()
	old := *target
	*target = ts.URL
	t.Cleanup(func() { *target = old })
}

func TestOpenAlexGetByDOI(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/works/https:/")
		w.Write([]byte(`{
			"id": "https://openalex.org/W1234",
			"display_name": "Deep Citation Analysis",
			"doi": "https://doi.org/10.1234/abc",
			"publication_year": 2021,
			"authorships": [{"author": {"display_name": "Ada Smith"}}, {"author": {"display_name": "Bo Jones"}}],
			"abstract_inverted_index": {"analysis": [1], "Citation": [0]},
			"host_venue": {"display_name": "Journal of Tests", "publisher": "TestPub", "issn_l": "1234-5678"},
			"is_retracted": false,
			"cited_by_count": 42,
			"referenced_works": ["https://openalex.org/W1", "https://openalex.org/W2"],
			"ids": {"pmid": "https://pubmed.ncbi.nlm.nih.gov/555"}
		}`))
	}))
	defer ts.Close()
	swapBaseURL(t, &OpenAlexBaseURL, ts)

	src := &OpenAlex{Client: ts.Client()}
	rec, err := src.GetByIdentifier(context.Background(), "https://doi.org/10.1234/ABC")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "https://openalex.org/W1234", rec.SourceID)
	assert.Equal(t, "10.1234/abc", rec.DOI)
	assert.Equal(t, "Deep Citation Analysis", rec.Title)
	assert.Equal(t, "Citation analysis", rec.Abstract)
	assert.Equal(t, 2021, rec.Year)
	assert.Equal(t, []string{"Ada Smith", "Bo Jones"}, rec.Authors)
	assert.Equal(t, "Journal of Tests", rec.Venue)
	assert.Equal(t, "TestPub", rec.Publisher)
	assert.Equal(t, "1234-5678", rec.ISSN)
	assert.False(t, rec.Retracted)
	assert.Equal(t, 42, rec.CitedByCount)
	assert.Len(t, rec.ReferencedWorks, 2)
	assert.Equal(t, "555", rec.PMID)
	assert.Equal(t, "smith", rec.FirstAuthorKey())
}

func TestOpenAlexNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()
	swapBaseURL(t, &OpenAlexBaseURL, ts)

	src := &OpenAlex{Client: ts.Client()}
	rec, err := src.GetByIdentifier(context.Background(), "10.9999/missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestOpenAlexListCiting(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cites:W77", r.URL.Query().Get("filter"))
		assert.Equal(t, "publication_date:desc", r.URL.Query().Get("sort"))
		w.Write([]byte(`{"results": [{"id": "https://openalex.org/W88", "display_name": "Citing Work"}]}`))
	}))
	defer ts.Close()
	swapBaseURL(t, &OpenAlexBaseURL, ts)

	src := &OpenAlex{Client: ts.Client()}
	recs, err := src.ListCiting(context.Background(), "https://openalex.org/W77", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Citing Work", recs[0].Title)
}

func TestOpenAlexRetractedFlag(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"id": "https://openalex.org/W9", "title": "Withdrawn", "is_retracted": true}`))
	}))
	defer ts.Close()
	swapBaseURL(t, &OpenAlexBaseURL, ts)

	src := &OpenAlex{Client: ts.Client()}
	rec, err := src.GetByIdentifier(context.Background(), "W9")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Retracted)
	assert.NotEmpty(t, rec.RetractionDetail)
}

func TestCrossrefGetByDOI(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message": {
			"DOI": "10.5555/xyz",
			"title": ["A Study of Things"],
			"container-title": ["Annals of Studies"],
			"publisher": "StudyPub",
			"ISSN": ["2222-3333"],
			"abstract": "<jats:p>We study <jats:italic>things</jats:italic>.</jats:p>",
			"author": [{"family": "Kim", "given": "Lee"}],
			"issued": {"date-parts": [[2019, 4]]},
			"update-to": [{"type": "retraction", "label": "Retraction"}]
		}}`))
	}))
	defer ts.Close()
	swapBaseURL(t, &CrossrefBaseURL, ts)

	src := &Crossref{Client: ts.Client(), Mailto: "lab@example.org"}
	rec, err := src.GetByIdentifier(context.Background(), "10.5555/XYZ")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "10.5555/xyz", rec.DOI)
	assert.Equal(t, "A Study of Things", rec.Title)
	assert.Equal(t, "Annals of Studies", rec.Venue)
	assert.Equal(t, "StudyPub", rec.Publisher)
	assert.Equal(t, "2222-3333", rec.ISSN)
	assert.Equal(t, "We study things .", rec.Abstract)
	assert.Equal(t, []string{"Lee Kim"}, rec.Authors)
	assert.Equal(t, 2019, rec.Year)
	assert.True(t, rec.Retracted)
}

func TestCrossrefNonDOIIdentifier(t *testing.T) {
	src := &Crossref{}
	rec, err := src.GetByIdentifier(context.Background(), "W123")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCrossrefSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "citation matching", r.URL.Query().Get("query.bibliographic"))
		assert.Equal(t, "3", r.URL.Query().Get("rows"))
		w.Write([]byte(`{"message": {"items": [{"DOI": "10.1/a", "title": ["First"]}, {"DOI": "10.1/b", "title": ["Second"]}]}}`))
	}))
	defer ts.Close()
	swapBaseURL(t, &CrossrefBaseURL, ts)

	src := &Crossref{Client: ts.Client()}
	recs, err := src.Search(context.Background(), "citation matching", 3)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "First", recs[0].Title)
}

func TestArxivGetByID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2301.07041", r.URL.Query().Get("id_list"))
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <entry>
    <id>http://arxiv.org/abs/2301.07041v2</id>
    <title>Large  Models
      for Science</title>
    <summary>We present models.</summary>
    <published>2023-01-17T12:00:00Z</published>
    <author><name>Jo Garcia</name></author>
    <arxiv:doi>10.4321/qrs</arxiv:doi>
    <arxiv:journal_ref>Proc. Sci. 2023</arxiv:journal_ref>
  </entry>
</feed>`))
	}))
	defer ts.Close()
	swapBaseURL(t, &ArxivBaseURL, ts)

	src := &Arxiv{Client: ts.Client()}
	rec, err := src.GetByIdentifier(context.Background(), "2301.07041")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "2301.07041v2", rec.SourceID)
	assert.Equal(t, "Large Models for Science", rec.Title)
	assert.Equal(t, "We present models.", rec.Abstract)
	assert.Equal(t, 2023, rec.Year)
	assert.Equal(t, "10.4321/qrs", rec.DOI)
	assert.Equal(t, "Proc. Sci. 2023", rec.Venue)
	assert.Equal(t, []string{"Jo Garcia"}, rec.Authors)
}

func TestArxivEmptyFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	}))
	defer ts.Close()
	swapBaseURL(t, &ArxivBaseURL, ts)

	src := &Arxiv{Client: ts.Client()}
	rec, err := src.GetByIdentifier(context.Background(), "9999.99999")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPubMedGetByDOI(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/esearch.fcgi":
			assert.Contains(t, r.URL.Query().Get("term"), "[DOI]")
			w.Write([]byte(`{"esearchresult": {"idlist": ["31452104"]}}`))
		case r.URL.Path == "/esummary.fcgi":
			assert.Equal(t, "31452104", r.URL.Query().Get("id"))
			w.Write([]byte(`{"result": {"uids": ["31452104"], "31452104": {
				"title": "Biomedical Result.",
				"fulljournalname": "Journal of Medicine",
				"pubdate": "2019 Aug 20",
				"issn": "4444-5555",
				"authors": [{"name": "Nguyen T"}],
				"articleids": [{"idtype": "doi", "value": "10.7777/med"}, {"idtype": "pmcid", "value": "PMC6708584"}]
			}}}`))
		case r.URL.Path == "/efetch.fcgi":
			w.Write([]byte(`<?xml version="1.0"?>
<PubmedArticleSet><PubmedArticle><MedlineCitation><Article><Abstract>
<AbstractText>Background text.</AbstractText>
<AbstractText>Conclusion text.</AbstractText>
</Abstract></Article></MedlineCitation></PubmedArticle></PubmedArticleSet>`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer ts.Close()
	swapBaseURL(t, &PubMedBaseURL, ts)

	src := &PubMed{Client: ts.Client(), APIKey: "k"}
	rec, err := src.GetByIdentifier(context.Background(), "10.7777/MED")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "31452104", rec.PMID)
	assert.Equal(t, "10.7777/med", rec.DOI)
	assert.Equal(t, "PMC6708584", rec.PMCID)
	assert.Equal(t, "Biomedical Result.", rec.Title)
	assert.Equal(t, "Journal of Medicine", rec.Venue)
	assert.Equal(t, 2019, rec.Year)
	assert.Equal(t, "Background text. Conclusion text.", rec.Abstract)
	assert.Equal(t, "nguyen", rec.FirstAuthorKey())
}

func TestPubMedNoMatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"esearchresult": {"idlist": []}}`))
	}))
	defer ts.Close()
	swapBaseURL(t, &PubMedBaseURL, ts)

	src := &PubMed{Client: ts.Client()}
	rec, err := src.GetByIdentifier(context.Background(), "10.9/none")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSurname(t *testing.T) {
	assert.Equal(t, "Smith", surname("Ada Smith"))
	assert.Equal(t, "Smith", surname("Smith, Ada"))
	assert.Equal(t, "Nguyen", surname("Nguyen T"))
	assert.Equal(t, "Garcia", surname("Jo Garcia"))
	assert.Equal(t, "", surname("  "))
}
