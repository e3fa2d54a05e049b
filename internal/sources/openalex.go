// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/citeguard/internal/httputil"
	"github.com/pdiddy/citeguard/internal/normalize"
)

// OpenAlexBaseURL is the OpenAlex API root. Declared as a var so tests can
// substitute an httptest server.
var OpenAlexBaseURL = "https://api.openalex.org"

// OpenAlex queries the OpenAlex works API. It is the only source that
// supports graph expansion (ListCiting, ListReferences).
type OpenAlex struct {
	Client    *http.Client
	Limiter   *rate.Limiter
	UserAgent string
	// Email is sent as the mailto parameter for polite-pool access.
	Email string
}

// Name returns the source identifier.
func (s *OpenAlex) Name() string { return "openalex" }

// GetByIdentifier fetches one work by DOI or OpenAlex id ("W123...", or the
// https://openalex.org/W123 form). Returns nil when the work is unknown.
func (s *OpenAlex) GetByIdentifier(ctx context.Context, id string) (*Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}

	var workURL string
	switch {
	case strings.HasPrefix(id, "https://openalex.org/"):
		parts := strings.Split(strings.TrimRight(id, "/"), "/")
		workURL = OpenAlexBaseURL + "/works/" + parts[len(parts)-1]
	case strings.HasPrefix(id, "W"):
		workURL = OpenAlexBaseURL + "/works/" + id
	default:
		doi := normalize.DOI(id)
		if doi == "" {
			return nil, nil
		}
		workURL = OpenAlexBaseURL + "/works/https://doi.org/" + doi
	}

	var work openAlexWork
	found, err := s.getJSON(ctx, workURL, nil, &work)
	if err != nil || !found {
		return nil, err
	}
	rec := work.toRecord()
	return &rec, nil
}

// Search runs a fuzzy works search and returns up to rows records.
func (s *OpenAlex) Search(ctx context.Context, query string, rows int) ([]Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if rows <= 0 {
		rows = 5
	}

	params := url.Values{
		"search":   {query},
		"per-page": {fmt.Sprintf("%d", rows)},
	}

	var resp openAlexListResponse
	if _, err := s.getJSON(ctx, OpenAlexBaseURL+"/works", params, &resp); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(resp.Results))
	for _, work := range resp.Results {
		records = append(records, work.toRecord())
	}
	return records, nil
}

// ListCiting returns recent works citing the given OpenAlex id, newest
// first.
func (s *OpenAlex) ListCiting(ctx context.Context, id string, rows int) ([]Record, error) {
	id = bareOpenAlexID(id)
	if id == "" {
		return nil, nil
	}
	if rows <= 0 {
		rows = 25
	}

	params := url.Values{
		"filter":   {"cites:" + id},
		"sort":     {"publication_date:desc"},
		"per-page": {fmt.Sprintf("%d", rows)},
	}

	var resp openAlexListResponse
	if _, err := s.getJSON(ctx, OpenAlexBaseURL+"/works", params, &resp); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(resp.Results))
	for _, work := range resp.Results {
		records = append(records, work.toRecord())
	}
	return records, nil
}

// ListReferences returns the ids of works the given work cites.
func (s *OpenAlex) ListReferences(ctx context.Context, id string) ([]string, error) {
	rec, err := s.GetByIdentifier(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.ReferencedWorks, nil
}

// getJSON performs one GET with retry and decodes the body into out.
// A 404 reports found=false with no error.
func (s *OpenAlex) getJSON(ctx context.Context, rawURL string, params url.Values, out any) (found bool, err error) {
	if params == nil {
		params = url.Values{}
	}
	if s.Email != "" {
		params.Set("mailto", s.Email)
	}
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, fmt.Errorf("creating OpenAlex request: %w", err)
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, s.Limiter, 0)
	if err != nil {
		return false, fmt.Errorf("OpenAlex request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("OpenAlex returned HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("parsing OpenAlex response: %w", err)
	}
	return true, nil
}

// bareOpenAlexID reduces any accepted id form to "W123...".
func bareOpenAlexID(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "https://openalex.org/") {
		parts := strings.Split(strings.TrimRight(id, "/"), "/")
		id = parts[len(parts)-1]
	}
	if strings.HasPrefix(id, "W") {
		return id
	}
	return ""
}

// OpenAlex API JSON structures.
type openAlexListResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DisplayName           string               `json:"display_name"`
	DOI                   string               `json:"doi"`
	PublicationYear       int                  `json:"publication_year"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	HostVenue             *openAlexVenue       `json:"host_venue"`
	PrimaryLocation       *openAlexLocation    `json:"primary_location"`
	IsRetracted           *bool                `json:"is_retracted"`
	CitedByCount          int                  `json:"cited_by_count"`
	ReferencedWorks       []string             `json:"referenced_works"`
	IDs                   *openAlexIDs         `json:"ids"`
}

type openAlexAuthorship struct {
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

type openAlexVenue struct {
	DisplayName string   `json:"display_name"`
	Publisher   string   `json:"publisher"`
	ISSNL       string   `json:"issn_l"`
	ISSN        []string `json:"issn"`
}

type openAlexLocation struct {
	Source *struct {
		DisplayName      string   `json:"display_name"`
		HostOrganization string   `json:"host_organization_name"`
		ISSNL            string   `json:"issn_l"`
		ISSN             []string `json:"issn"`
	} `json:"source"`
}

type openAlexIDs struct {
	PMID  string `json:"pmid"`
	PMCID string `json:"pmcid"`
}

func (w openAlexWork) toRecord() Record {
	rec := Record{
		SourceID:        strings.TrimSpace(w.ID),
		DOI:             normalize.DOI(w.DOI),
		Title:           strings.TrimSpace(firstNonEmpty(w.DisplayName, w.Title)),
		Abstract:        reconstructAbstract(w.AbstractInvertedIndex),
		Year:            w.PublicationYear,
		CitedByCount:    w.CitedByCount,
		ReferencedWorks: w.ReferencedWorks,
	}

	for _, authorship := range w.Authorships {
		if name := strings.TrimSpace(authorship.Author.DisplayName); name != "" {
			rec.Authors = append(rec.Authors, name)
		}
	}

	// host_venue is the legacy field; primary_location.source replaces it.
	if hv := w.HostVenue; hv != nil {
		rec.Venue = strings.TrimSpace(hv.DisplayName)
		rec.Publisher = strings.TrimSpace(hv.Publisher)
		rec.ISSN = venueISSN(hv.ISSNL, hv.ISSN)
	}
	if rec.Venue == "" && w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
		src := w.PrimaryLocation.Source
		rec.Venue = strings.TrimSpace(src.DisplayName)
		rec.Publisher = strings.TrimSpace(src.HostOrganization)
		rec.ISSN = venueISSN(src.ISSNL, src.ISSN)
	}

	if w.IsRetracted != nil && *w.IsRetracted {
		rec.Retracted = true
		rec.RetractionDetail = "OpenAlex marks this work as retracted"
	}

	if w.IDs != nil {
		rec.PMID = pmidFromURL(w.IDs.PMID)
		rec.PMCID = pmidFromURL(w.IDs.PMCID)
	}

	return rec
}

func venueISSN(issnL string, issn []string) string {
	if s := strings.TrimSpace(issnL); s != "" {
		return s
	}
	if len(issn) > 0 {
		return strings.TrimSpace(issn[0])
	}
	return ""
}

// pmidFromURL strips the identifier out of OpenAlex's URL-form external ids.
func pmidFromURL(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "/")
	return parts[len(parts)-1]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to the positions where it
// appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}
