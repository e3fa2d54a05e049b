// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources implements the external bibliographic-source clients the
// resolver and graph engine consult: OpenAlex, Crossref, PubMed, and arXiv.
// Each client normalizes its API's payload into a Record; a missing work is
// a nil Record, not an error. Network failures surface as errors and are
// treated by callers as "this source had no answer".
package sources

import (
	"context"
	"strings"

	"github.com/pdiddy/citeguard/internal/normalize"
)

// Record is the normalized metadata extracted from any source. Every field
// is optional; extraction from upstream payloads is defensive and an absent
// or wrong-typed field stays zero.
type Record struct {
	// SourceID is the source-native identifier (OpenAlex work id, PMID,
	// arXiv id). Empty for sources without one (Crossref is DOI-keyed).
	SourceID string

	DOI      string
	Title    string
	Abstract string
	Year     int

	Venue     string
	Publisher string
	ISSN      string

	Authors []string

	Retracted        bool
	RetractionDetail string

	CitedByCount int

	// ReferencedWorks lists source-native ids of works this work cites,
	// for sources that expose an outgoing reference list.
	ReferencedWorks []string

	PMID  string
	PMCID string
}

// FirstAuthorKey returns the normalized surname key of the record's first
// author, or "".
func (r *Record) FirstAuthorKey() string {
	if r == nil || len(r.Authors) == 0 {
		return ""
	}
	return normalize.AuthorName(surname(r.Authors[0]))
}

// surname picks the family-name token from a display name: the last word,
// unless the name is "Family, Given" form or the PubMed "Family IN" form
// with trailing initials.
func surname(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.Index(name, ","); i >= 0 {
		return strings.TrimSpace(name[:i])
	}
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	last := fields[len(fields)-1]
	if len(fields) >= 2 && len(last) <= 2 && last == strings.ToUpper(last) {
		return fields[len(fields)-2]
	}
	return last
}

// Source is one external bibliographic backend. GetByIdentifier accepts a
// DOI or a source-native id and returns nil when the work is unknown.
type Source interface {
	Name() string
	GetByIdentifier(ctx context.Context, id string) (*Record, error)
	Search(ctx context.Context, query string, rows int) ([]Record, error)
}

// GraphSource additionally supports citation-graph expansion.
type GraphSource interface {
	Source

	// ListCiting returns recent works citing id, newest first, capped at
	// rows.
	ListCiting(ctx context.Context, id string, rows int) ([]Record, error)

	// ListReferences returns the source-native ids of works id cites.
	ListReferences(ctx context.Context, id string) ([]string, error)
}
