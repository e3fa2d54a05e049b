// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/citeguard/internal/httputil"
	"github.com/pdiddy/citeguard/internal/normalize"
)

// ArxivBaseURL is the arXiv Atom API endpoint. Tests substitute an httptest
// server.
var ArxivBaseURL = "https://export.arxiv.org/api/query"

// Arxiv queries the arXiv Atom feed API.
type Arxiv struct {
	Client    *http.Client
	Limiter   *rate.Limiter
	UserAgent string
}

// Name returns the source identifier.
func (s *Arxiv) Name() string { return "arxiv" }

// GetByIdentifier fetches one preprint by arXiv id or DOI. Returns nil when
// nothing matches.
func (s *Arxiv) GetByIdentifier(ctx context.Context, id string) (*Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}

	var params url.Values
	if doi := normalize.DOI(id); doi != "" {
		params = url.Values{
			"search_query": {"doi:" + doi},
			"start":        {"0"},
			"max_results":  {"1"},
		}
	} else {
		params = url.Values{"id_list": {strings.TrimPrefix(id, "arxiv:")}}
	}

	entries, err := s.query(ctx, params)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	rec := entries[0]
	return &rec, nil
}

// Search runs a free-text query and returns up to rows records.
func (s *Arxiv) Search(ctx context.Context, query string, rows int) ([]Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if rows <= 0 {
		rows = 5
	}
	return s.query(ctx, url.Values{
		"search_query": {"all:" + query},
		"start":        {"0"},
		"max_results":  {fmt.Sprintf("%d", rows)},
	})
}

func (s *Arxiv) query(ctx context.Context, params url.Values) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ArxivBaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating arXiv request: %w", err)
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
		return nil, fmt.Errorf("arXiv request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv feed: %w", err)
	}

	records := make([]Record, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		records = append(records, entry.toRecord())
	}
	return records, nil
}

// arXiv Atom feed structures.
type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string        `xml:"id"`
	Title      string        `xml:"title"`
	Summary    string        `xml:"summary"`
	Published  string        `xml:"published"`
	DOI        string        `xml:"doi"`
	JournalRef string        `xml:"journal_ref"`
	Authors    []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

func (e arxivEntry) toRecord() Record {
	rec := Record{
		SourceID: arxivIDFromURL(e.ID),
		DOI:      normalize.DOI(e.DOI),
		Title:    cleanFeedText(e.Title),
		Abstract: cleanFeedText(e.Summary),
		Venue:    cleanFeedText(e.JournalRef),
	}
	for _, a := range e.Authors {
		if name := cleanFeedText(a.Name); name != "" {
			rec.Authors = append(rec.Authors, name)
		}
	}

	// Published is RFC 3339; the leading four digits are the year.
	if len(e.Published) >= 4 {
		var year int
		if _, err := fmt.Sscanf(e.Published[:4], "%d", &year); err == nil {
			rec.Year = year
		}
	}

	return rec
}

func arxivIDFromURL(idURL string) string {
	idURL = strings.TrimRight(strings.TrimSpace(idURL), "/")
	if idURL == "" {
		return ""
	}
	parts := strings.Split(idURL, "/")
	return parts[len(parts)-1]
}

// cleanFeedText collapses the newlines and runs of spaces arXiv wraps long
// fields with.
func cleanFeedText(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
