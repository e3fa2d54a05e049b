// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/citeguard/internal/httputil"
	"github.com/pdiddy/citeguard/internal/normalize"
)

// PubMedBaseURL is the NCBI E-utilities root. Tests substitute an httptest
// server.
var PubMedBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// PubMed queries the NCBI E-utilities (esearch + esummary + efetch).
type PubMed struct {
	Client    *http.Client
	Limiter   *rate.Limiter
	UserAgent string
	// APIKey raises the NCBI rate limit when set.
	APIKey string
	// Email identifies the caller per NCBI usage policy.
	Email string
}

// Name returns the source identifier.
func (s *PubMed) Name() string { return "pubmed" }

// GetByIdentifier fetches one work by PMID or DOI. A DOI is first mapped to
// a PMID via esearch. Returns nil when nothing matches.
func (s *PubMed) GetByIdentifier(ctx context.Context, id string) (*Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}

	pmid := id
	if doi := normalize.DOI(id); doi != "" {
		ids, err := s.esearch(ctx, doi+"[DOI]", 1)
		if err != nil || len(ids) == 0 {
			return nil, err
		}
		pmid = ids[0]
	} else if _, err := strconv.Atoi(pmid); err != nil {
		return nil, nil
	}

	records, err := s.esummary(ctx, []string{pmid})
	if err != nil || len(records) == 0 {
		return nil, err
	}
	rec := records[0]

	if abstract, err := s.efetchAbstract(ctx, pmid); err == nil && abstract != "" {
		rec.Abstract = abstract
	}
	return &rec, nil
}

// Search runs a free-text query and returns up to rows records, without
// abstracts (one efetch per hit would be too chatty for fuzzy scoring).
func (s *PubMed) Search(ctx context.Context, query string, rows int) ([]Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if rows <= 0 {
		rows = 5
	}

	ids, err := s.esearch(ctx, query, rows)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return s.esummary(ctx, ids)
}

func (s *PubMed) esearch(ctx context.Context, term string, retmax int) ([]string, error) {
	params := s.baseParams()
	params.Set("term", term)
	params.Set("retmax", fmt.Sprintf("%d", retmax))

	var resp struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := s.getJSON(ctx, PubMedBaseURL+"/esearch.fcgi", params, &resp); err != nil {
		return nil, err
	}
	return resp.ESearchResult.IDList, nil
}

func (s *PubMed) esummary(ctx context.Context, pmids []string) ([]Record, error) {
	params := s.baseParams()
	params.Set("id", strings.Join(pmids, ","))

	// esummary returns a result object keyed by PMID plus a "uids" list.
	var resp struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := s.getJSON(ctx, PubMedBaseURL+"/esummary.fcgi", params, &resp); err != nil {
		return nil, err
	}

	var uids []string
	if raw, ok := resp.Result["uids"]; ok {
		json.Unmarshal(raw, &uids)
	}

	var records []Record
	for _, uid := range uids {
		raw, ok := resp.Result[uid]
		if !ok {
			continue
		}
		var summary pubmedSummary
		if err := json.Unmarshal(raw, &summary); err != nil {
			continue
		}
		records = append(records, summary.toRecord(uid))
	}
	return records, nil
}

// efetchAbstract pulls the abstract out of the efetch XML for one PMID.
func (s *PubMed) efetchAbstract(ctx context.Context, pmid string) (string, error) {
	params := s.baseParams()
	params.Set("retmode", "xml")
	params.Set("rettype", "abstract")
	params.Set("id", pmid)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, PubMedBaseURL+"/efetch.fcgi?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating PubMed request: %w", err)
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, s.httpClient(), req, s.Limiter, 0)
	if err != nil {
		return "", fmt.Errorf("PubMed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("PubMed returned HTTP %d", resp.StatusCode)
	}

	var doc struct {
		Texts []string `xml:"PubmedArticle>MedlineCitation>Article>Abstract>AbstractText"`
	}
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("parsing PubMed abstract: %w", err)
	}
	return strings.Join(strings.Fields(strings.Join(doc.Texts, " ")), " "), nil
}

func (s *PubMed) baseParams() url.Values {
	params := url.Values{
		"db":      {"pubmed"},
		"retmode": {"json"},
		"tool":    {"citeguard"},
	}
	if s.Email != "" {
		params.Set("email", s.Email)
	}
	if s.APIKey != "" {
		params.Set("api_key", s.APIKey)
	}
	return params
}

func (s *PubMed) httpClient() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s *PubMed) getJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating PubMed request: %w", err)
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, s.httpClient(), req, s.Limiter, 0)
	if err != nil {
		return fmt.Errorf("PubMed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("PubMed returned HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing PubMed response: %w", err)
	}
	return nil
}

// pubmedSummary is the esummary record shape.
type pubmedSummary struct {
	Title           string `json:"title"`
	FullJournalName string `json:"fulljournalname"`
	PubDate         string `json:"pubdate"`
	ISSN            string `json:"issn"`
	Authors         []struct {
		Name string `json:"name"`
	} `json:"authors"`
	ArticleIDs []struct {
		IDType string `json:"idtype"`
		Value  string `json:"value"`
	} `json:"articleids"`
}

func (p pubmedSummary) toRecord(pmid string) Record {
	rec := Record{
		SourceID: pmid,
		PMID:     pmid,
		Title:    strings.TrimSpace(p.Title),
		Venue:    strings.TrimSpace(p.FullJournalName),
		ISSN:     strings.TrimSpace(p.ISSN),
	}

	// pubdate opens with the year ("2021 Mar 15").
	if len(p.PubDate) >= 4 {
		if year, err := strconv.Atoi(p.PubDate[:4]); err == nil {
			rec.Year = year
		}
	}

	for _, a := range p.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			rec.Authors = append(rec.Authors, name)
		}
	}

	for _, id := range p.ArticleIDs {
		switch strings.ToLower(id.IDType) {
		case "doi":
			rec.DOI = normalize.DOI(id.Value)
		case "pmcid", "pmc":
			rec.PMCID = strings.TrimSpace(id.Value)
		}
	}

	return rec
}
