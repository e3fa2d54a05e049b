// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ResolvedWork is the canonical record for one bibliography entry after the
// resolution pipeline has consulted the external sources. Works sharing a
// normalized DOI share one cached ResolvedWork within a run.
type ResolvedWork struct {
	// RefID links back to the ReferenceEntry this work was resolved for.
	RefID string `json:"ref_id" yaml:"ref_id"`

	// DOI is the canonical DOI, normalized to lowercase without a URL prefix.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Year     int    `json:"year,omitempty" yaml:"year,omitempty"`

	Journal   string `json:"journal,omitempty" yaml:"journal,omitempty"`
	Publisher string `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	ISSN      string `json:"issn,omitempty" yaml:"issn,omitempty"`

	// Authors lists author display names in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Retracted is the source-native retraction flag; RetractionDetail
	// carries whatever explanation the source supplied.
	Retracted        bool   `json:"retracted,omitempty" yaml:"retracted,omitempty"`
	RetractionDetail string `json:"retraction_detail,omitempty" yaml:"retraction_detail,omitempty"`

	// Per-source identifiers, populated by whichever sources answered.
	OpenAlexID string `json:"openalex_id,omitempty" yaml:"openalex_id,omitempty"`
	PMID       string `json:"pmid,omitempty" yaml:"pmid,omitempty"`
	PMCID      string `json:"pmcid,omitempty" yaml:"pmcid,omitempty"`
	ArxivID    string `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`

	// Source identifies which backend ultimately supplied the record
	// ("openalex", "crossref", "arxiv", "pubmed"); empty when resolution
	// failed everywhere.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Confidence is 1.0 for identifier lookups and the fuzzy-match score
	// otherwise.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// ResolutionNotes records how the work was resolved, including DOI
	// discrepancies between the bibliography and the winning record.
	ResolutionNotes string `json:"resolution_notes,omitempty" yaml:"resolution_notes,omitempty"`
}
