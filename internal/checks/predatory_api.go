// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pdiddy/citeguard/internal/datasets"
	"github.com/pdiddy/citeguard/internal/httputil"
)

// PredatoryLookup is an optional dedicated predatory-venue lookup
// collaborator. A nil record with a nil error means no listing matches the
// queried venue.
type PredatoryLookup interface {
	LookupVenue(ctx context.Context, journal, publisher, issn string) (*PredatoryAPIRecord, error)
}

// PredatoryAPIRecord is one listing from a predatory-lookup API.
type PredatoryAPIRecord struct {
	Journal   string `json:"journal,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	ISSN      string `json:"issn,omitempty"`
	Source    string `json:"source,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// HTTPPredatoryAPI queries a predatory-venue endpoint with
// GET <endpoint>?issn=..&journal=..&publisher=.. and accepts the same
// response shapes as the retraction lookup. Returned records are only
// accepted when they exactly match the queried ISSN, journal, or publisher
// after normalization, so fuzzy provider responses cannot flag the wrong
// venue.
type HTTPPredatoryAPI struct {
	Endpoint string
	Token    string
	Client   *http.Client
}

var _ PredatoryLookup = (*HTTPPredatoryAPI)(nil)

// NewHTTPPredatoryAPI builds a lookup client for the given endpoint.
func NewHTTPPredatoryAPI(endpoint, token string, client *http.Client) *HTTPPredatoryAPI {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTTPPredatoryAPI{Endpoint: endpoint, Token: token, Client: client}
}

// LookupVenue fetches the listing matching the venue. All-empty queries
// return nil without a request.
func (p *HTTPPredatoryAPI) LookupVenue(ctx context.Context, journal, publisher, issn string) (*PredatoryAPIRecord, error) {
	if journal == "" && publisher == "" && issn == "" {
		return nil, nil
	}

	params := url.Values{
		"issn":      {issn},
		"journal":   {journal},
		"publisher": {publisher},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building predatory lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	resp, err := httputil.DoWithRetry(ctx, p.Client, req, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("predatory lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("predatory lookup: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading predatory lookup response: %w", err)
	}
	return parsePredatoryLookup(body, journal, publisher, issn)
}

func parsePredatoryLookup(body []byte, journal, publisher, issn string) (*PredatoryAPIRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var records []PredatoryAPIRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decoding predatory lookup response: %w", err)
		}
		return firstPredatoryMatch(records, journal, publisher, issn), nil
	}

	var payload struct {
		Match   *bool                `json:"match"`
		Record  *PredatoryAPIRecord  `json:"record"`
		Records []PredatoryAPIRecord `json:"records"`
		Items   []PredatoryAPIRecord `json:"items"`
		Data    []PredatoryAPIRecord `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, fmt.Errorf("decoding predatory lookup response: %w", err)
	}

	if payload.Record != nil {
		if predatoryRecordMatches(*payload.Record, journal, publisher, issn) {
			return payload.Record, nil
		}
		return nil, nil
	}
	for _, records := range [][]PredatoryAPIRecord{payload.Records, payload.Items, payload.Data} {
		if rec := firstPredatoryMatch(records, journal, publisher, issn); rec != nil {
			return rec, nil
		}
	}

	var single PredatoryAPIRecord
	if err := json.Unmarshal(trimmed, &single); err == nil && predatoryRecordMatches(single, journal, publisher, issn) {
		return &single, nil
	}
	return nil, nil
}

func firstPredatoryMatch(records []PredatoryAPIRecord, journal, publisher, issn string) *PredatoryAPIRecord {
	for i := range records {
		if predatoryRecordMatches(records[i], journal, publisher, issn) {
			return &records[i]
		}
	}
	return nil
}

// predatoryRecordMatches requires an exact normalized match on ISSN,
// journal name, or publisher name.
func predatoryRecordMatches(rec PredatoryAPIRecord, journal, publisher, issn string) bool {
	if i := datasets.NormalizeISSN(issn); i != "" {
		if r := datasets.NormalizeISSN(rec.ISSN); r != "" && r == i {
			return true
		}
	}
	if j := datasets.NormalizeVenueName(journal); j != "" {
		if r := datasets.NormalizeVenueName(rec.Journal); r != "" && r == j {
			return true
		}
	}
	if p := datasets.NormalizeVenueName(publisher); p != "" {
		if r := datasets.NormalizeVenueName(rec.Publisher); r != "" && r == p {
			return true
		}
	}
	return false
}
