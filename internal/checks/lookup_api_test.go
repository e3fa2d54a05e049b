// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citeguard/pkg/types"
)

func TestRetractionAPILookupEnvelope(t *testing.T) {
	var gotAuth, gotDOI string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotDOI = r.URL.Query().Get("doi")
		w.Write([]byte(`{"match": true, "record": {"doi": "10.1000/bad", "nature": "Retraction", "reason": "data fabrication"}}`))
	}))
	defer srv.Close()

	api := NewHTTPRetractionAPI(srv.URL, "tok-123", srv.Client())
	rec, err := api.LookupDOI(context.Background(), "https://doi.org/10.1000/BAD")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Retraction", rec.Nature)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "10.1000/bad", gotDOI)
}

func TestRetractionAPILookupRecordsArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"records": [{"doi": "10.1000/other"}, {"doi": "10.1000/bad", "reason": "plagiarism"}]}`))
	}))
	defer srv.Close()

	api := NewHTTPRetractionAPI(srv.URL, "", srv.Client())
	rec, err := api.LookupDOI(context.Background(), "10.1000/bad")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "plagiarism", rec.Reason)
}

func TestRetractionAPILookupBareListAndFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"doi": "10.1000/bad", "nature": "Retraction"}]`))
	}))
	defer srv.Close()

	api := NewHTTPRetractionAPI(srv.URL, "", srv.Client())
	rec, err := api.LookupDOI(context.Background(), "10.1000/bad")
	require.NoError(t, err)
	require.NotNil(t, rec)

	flag := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"is_retracted": true}`))
	}))
	defer flag.Close()

	api = NewHTTPRetractionAPI(flag.URL, "", flag.Client())
	rec, err = api.LookupDOI(context.Background(), "10.1000/bad")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Retracted)
	assert.Equal(t, "10.1000/bad", rec.DOI)
}

func TestRetractionAPILookupMisses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	api := NewHTTPRetractionAPI(srv.URL, "", srv.Client())
	rec, err := api.LookupDOI(context.Background(), "10.1000/clean")
	require.NoError(t, err)
	assert.Nil(t, rec)

	// Empty DOI never hits the network.
	api = NewHTTPRetractionAPI("http://invalid.localhost", "", nil)
	rec, err = api.LookupDOI(context.Background(), "not a doi")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPredatoryAPILookupExactMatchOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"match": true, "record": {"journal": "Journal of Bogus Science", "issn": "1234-5678"}}`))
	}))
	defer srv.Close()

	api := NewHTTPPredatoryAPI(srv.URL, "", srv.Client())

	rec, err := api.LookupVenue(context.Background(), "Journal of Bogus Science", "", "")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "1234-5678", rec.ISSN)

	// A provider record that matches none of the queried fields is dropped
	// even inside a match envelope.
	rec, err = api.LookupVenue(context.Background(), "Nature", "Springer", "0028-0836")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPredatoryAPILookupScansCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"records": [{"journal": "Other Journal"}, {"publisher": "Paper Mill Press"}]}`))
	}))
	defer srv.Close()

	api := NewHTTPPredatoryAPI(srv.URL, "", srv.Client())
	rec, err := api.LookupVenue(context.Background(), "", "Paper Mill Press", "")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Paper Mill Press", rec.Publisher)
}

func TestRetractionFlagHighFromAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"match": true, "record": {"doi": "10.9000/api-only", "nature": "Retraction"}}`))
	}))
	defer srv.Close()

	checker := &ReferenceFlagChecker{
		RetractionAPI: NewHTTPRetractionAPI(srv.URL, "", srv.Client()),
		Workers:       1,
	}
	refs := []types.ReferenceEntry{{RefID: "1"}}
	resolved := map[string]*types.ResolvedWork{
		"1": {RefID: "1", Source: "openalex", Confidence: 1.0, DOI: "10.9000/api-only"},
	}

	issues, counts, err := checker.Check(context.Background(), refs, resolved, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Retracted)
	require.Len(t, issues, 1)
	assert.Equal(t, types.IssueRetractedReference, issues[0].Type)
	assert.Equal(t, "high", issues[0].Confidence)
}

func TestPredatoryFlagTwoTierWithAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("journal") == "Obscure Predator Weekly" {
			w.Write([]byte(`{"match": true, "record": {"journal": "Obscure Predator Weekly"}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, predatory := loadTestDatasets(t)
	checker := &ReferenceFlagChecker{
		Predatory:    predatory,
		PredatoryAPI: NewHTTPPredatoryAPI(srv.URL, "", srv.Client()),
		Workers:      1,
	}
	refs := []types.ReferenceEntry{{RefID: "1"}, {RefID: "2"}}
	resolved := map[string]*types.ResolvedWork{
		// API hit only: a single signal needs review.
		"1": {RefID: "1", Source: "crossref", Confidence: 1.0, Journal: "Obscure Predator Weekly"},
		// CSV ISSN hit: conclusive on its own.
		"2": {RefID: "2", Source: "crossref", Confidence: 1.0, ISSN: "1234-5678"},
	}

	issues, counts, err := checker.Check(context.Background(), refs, resolved, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Predatory)
	require.Len(t, issues, 2)
	assert.Equal(t, "review_needed", issues[0].Confidence)
	assert.Equal(t, "high", issues[1].Confidence)
}

func TestFlagCheckSurvivesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, predatory := loadTestDatasets(t)
	checker := &ReferenceFlagChecker{
		Predatory:     predatory,
		RetractionAPI: NewHTTPRetractionAPI(srv.URL, "", srv.Client()),
		PredatoryAPI:  NewHTTPPredatoryAPI(srv.URL, "", srv.Client()),
		Workers:       1,
	}
	refs := []types.ReferenceEntry{{RefID: "1"}}
	resolved := map[string]*types.ResolvedWork{
		"1": {RefID: "1", Source: "crossref", Confidence: 1.0, DOI: "10.1000/x", ISSN: "1234-5678"},
	}

	issues, _, err := checker.Check(context.Background(), refs, resolved, nil)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, types.IssuePredatoryVenue, issues[0].Type)
}
