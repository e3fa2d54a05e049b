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

	"github.com/pdiddy/citeguard/internal/httputil"
	"github.com/pdiddy/citeguard/internal/normalize"
)

// RetractionLookup is an optional dedicated retraction-lookup collaborator.
// A nil record with a nil error means the DOI is not listed.
type RetractionLookup interface {
	LookupDOI(ctx context.Context, doi string) (*RetractionAPIRecord, error)
}

// RetractionAPIRecord is one listing from a retraction-lookup API. Schemas
// differ between providers, so every field is optional.
type RetractionAPIRecord struct {
	DOI       string `json:"doi,omitempty"`
	Title     string `json:"title,omitempty"`
	Journal   string `json:"journal,omitempty"`
	Nature    string `json:"nature,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Date      string `json:"date,omitempty"`
	URL       string `json:"url,omitempty"`
	Retracted bool   `json:"is_retracted,omitempty"`
}

// HTTPRetractionAPI queries a retraction-lookup endpoint with
// GET <endpoint>?doi=<doi>. The response may be a {"match": true,
// "record": {...}} envelope, a records/items/data array, a bare array, or a
// single record object.
type HTTPRetractionAPI struct {
	Endpoint string
	Token    string
	Client   *http.Client
}

var _ RetractionLookup = (*HTTPRetractionAPI)(nil)

// NewHTTPRetractionAPI builds a lookup client for the given endpoint.
func NewHTTPRetractionAPI(endpoint, token string, client *http.Client) *HTTPRetractionAPI {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTTPRetractionAPI{Endpoint: endpoint, Token: token, Client: client}
}

// LookupDOI fetches the listing for one DOI. Unlisted DOIs and empty or
// malformed DOIs return nil.
func (r *HTTPRetractionAPI) LookupDOI(ctx context.Context, doi string) (*RetractionAPIRecord, error) {
	norm := normalize.DOI(doi)
	if norm == "" {
		return nil, nil
	}

	u := r.Endpoint + "?" + url.Values{"doi": {norm}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building retraction lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	resp, err := httputil.DoWithRetry(ctx, r.Client, req, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("retraction lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("retraction lookup: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading retraction lookup response: %w", err)
	}
	return parseRetractionLookup(body, norm)
}

// parseRetractionLookup normalizes the provider's response shape down to at
// most one record for the queried DOI.
func parseRetractionLookup(body []byte, doi string) (*RetractionAPIRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var records []RetractionAPIRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decoding retraction lookup response: %w", err)
		}
		return firstRetractionByDOI(records, doi), nil
	}

	var payload struct {
		Match   *bool                 `json:"match"`
		Record  *RetractionAPIRecord  `json:"record"`
		Records []RetractionAPIRecord `json:"records"`
		Items   []RetractionAPIRecord `json:"items"`
		Data    []RetractionAPIRecord `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, fmt.Errorf("decoding retraction lookup response: %w", err)
	}

	if payload.Match != nil && *payload.Match && payload.Record != nil {
		return payload.Record, nil
	}
	if payload.Record != nil && normalize.DOI(payload.Record.DOI) == doi {
		return payload.Record, nil
	}
	for _, records := range [][]RetractionAPIRecord{payload.Records, payload.Items, payload.Data} {
		if rec := firstRetractionByDOI(records, doi); rec != nil {
			return rec, nil
		}
	}

	// Some providers return the record object directly, or just a flag.
	var single RetractionAPIRecord
	if err := json.Unmarshal(trimmed, &single); err == nil {
		if normalize.DOI(single.DOI) == doi {
			return &single, nil
		}
		if single.Retracted {
			return &RetractionAPIRecord{DOI: doi, Retracted: true}, nil
		}
	}
	return nil, nil
}

func firstRetractionByDOI(records []RetractionAPIRecord, doi string) *RetractionAPIRecord {
	for i := range records {
		if normalize.DOI(records[i].DOI) == doi {
			return &records[i]
		}
	}
	return nil
}
