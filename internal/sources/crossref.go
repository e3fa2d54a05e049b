// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/citeguard/internal/httputil"
	"github.com/pdiddy/citeguard/internal/normalize"
)

// CrossrefBaseURL is the Crossref REST API root. Tests substitute an
// httptest server.
var CrossrefBaseURL = "https://api.crossref.org"

// Crossref queries the Crossref works API. Crossref is DOI-keyed and has no
// native work id.
type Crossref struct {
	Client    *http.Client
	Limiter   *rate.Limiter
	UserAgent string
	// Mailto joins the polite pool when set.
	Mailto string
}

// Name returns the source identifier.
func (s *Crossref) Name() string { return "crossref" }

// GetByIdentifier fetches one work by DOI. Non-DOI identifiers and unknown
// DOIs return nil.
func (s *Crossref) GetByIdentifier(ctx context.Context, id string) (*Record, error) {
	doi := normalize.DOI(id)
	if doi == "" {
		return nil, nil
	}

	var resp struct {
		Message crossrefWork `json:"message"`
	}
	found, err := s.getJSON(ctx, CrossrefBaseURL+"/works/"+url.PathEscape(doi), nil, &resp)
	if err != nil || !found {
		return nil, err
	}
	rec := resp.Message.toRecord()
	return &rec, nil
}

// Search runs a bibliographic query and returns up to rows records.
func (s *Crossref) Search(ctx context.Context, query string, rows int) ([]Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if rows <= 0 {
		rows = 5
	}

	params := url.Values{
		"query.bibliographic": {query},
		"rows":                {fmt.Sprintf("%d", rows)},
	}

	var resp struct {
		Message struct {
			Items []crossrefWork `json:"items"`
		} `json:"message"`
	}
	if _, err := s.getJSON(ctx, CrossrefBaseURL+"/works", params, &resp); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(resp.Message.Items))
	for _, work := range resp.Message.Items {
		records = append(records, work.toRecord())
	}
	return records, nil
}

func (s *Crossref) getJSON(ctx context.Context, rawURL string, params url.Values, out any) (found bool, err error) {
	if params == nil {
		params = url.Values{}
	}
	if s.Mailto != "" {
		params.Set("mailto", s.Mailto)
	}
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, fmt.Errorf("creating Crossref request: %w", err)
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
		return false, fmt.Errorf("Crossref request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("Crossref returned HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("parsing Crossref response: %w", err)
	}
	return true, nil
}

// Crossref API JSON structures.
type crossrefWork struct {
	DOI            string           `json:"DOI"`
	Title          []string         `json:"title"`
	ContainerTitle []string         `json:"container-title"`
	Publisher      string           `json:"publisher"`
	ISSN           []string         `json:"ISSN"`
	Abstract       string           `json:"abstract"`
	Author         []crossrefAuthor `json:"author"`
	Issued         *crossrefDate    `json:"issued"`
	UpdateTo       []crossrefUpdate `json:"update-to"`
}

type crossrefAuthor struct {
	Family string `json:"family"`
	Given  string `json:"given"`
	Name   string `json:"name"`
}

type crossrefDate struct {
	DateParts [][]int `json:"date-parts"`
}

type crossrefUpdate struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

var jatsTagRe = regexp.MustCompile(`<[^>]+>`)

func (w crossrefWork) toRecord() Record {
	rec := Record{
		DOI:       normalize.DOI(w.DOI),
		Publisher: strings.TrimSpace(w.Publisher),
	}
	if len(w.Title) > 0 {
		rec.Title = strings.TrimSpace(w.Title[0])
	}
	if len(w.ContainerTitle) > 0 {
		rec.Venue = strings.TrimSpace(w.ContainerTitle[0])
	}
	if len(w.ISSN) > 0 {
		rec.ISSN = strings.TrimSpace(w.ISSN[0])
	}

	// Crossref abstracts are JATS XML; strip the markup.
	if w.Abstract != "" {
		rec.Abstract = strings.TrimSpace(strings.Join(strings.Fields(jatsTagRe.ReplaceAllString(w.Abstract, " ")), " "))
	}

	for _, a := range w.Author {
		switch {
		case a.Family != "" && a.Given != "":
			rec.Authors = append(rec.Authors, a.Given+" "+a.Family)
		case a.Family != "":
			rec.Authors = append(rec.Authors, a.Family)
		case a.Name != "":
			rec.Authors = append(rec.Authors, a.Name)
		}
	}

	if w.Issued != nil && len(w.Issued.DateParts) > 0 && len(w.Issued.DateParts[0]) > 0 {
		rec.Year = w.Issued.DateParts[0][0]
	}

	// A retraction shows up as an update-to entry whose type or label
	// mentions "retract".
	for _, u := range w.UpdateTo {
		if strings.Contains(strings.ToLower(u.Type), "retract") ||
			strings.Contains(strings.ToLower(u.Label), "retract") {
			rec.Retracted = true
			rec.RetractionDetail = strings.TrimSpace(firstNonEmpty(u.Label, "Crossref update-to: "+u.Type))
			break
		}
	}

	return rec
}
