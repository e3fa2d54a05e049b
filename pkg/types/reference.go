// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the citeguard pipeline:
// parsed bibliography entries and in-text citations, citation-to-bibliography
// matches, resolved works, report issues, and the configuration tree.
package types

// CitationKind distinguishes the two in-text citation styles the parser
// recognizes.
type CitationKind string

const (
	CitationNumeric    CitationKind = "numeric"
	CitationAuthorYear CitationKind = "author_year"
)

// ReferenceEntry is one bibliography item. Entries are created once at parse
// time and never mutated afterwards.
type ReferenceEntry struct {
	// RefID is a stable key: the numeric label ("12") for numbered
	// bibliographies, or a synthetic "refN" id otherwise.
	RefID string `json:"ref_id" yaml:"ref_id"`

	// Raw is the bibliography text of the entry.
	Raw string `json:"raw" yaml:"raw"`

	// RefNumber is the numeric label when the bibliography is numbered;
	// 0 when the entry is unnumbered.
	RefNumber int `json:"ref_number,omitempty" yaml:"ref_number,omitempty"`

	// DOI extracted from the raw entry, empty if none was found.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Year extracted from the raw entry, 0 if none was found.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// FirstAuthor is the normalized surname of the first author.
	FirstAuthor string `json:"first_author,omitempty" yaml:"first_author,omitempty"`
}

// CitationInstance is one detected in-text citation. A marker that encodes
// several citations ("[1,3-5]", "(A, 2000; B, 2001)") is split into several
// instances sharing one context span.
type CitationInstance struct {
	Kind CitationKind `json:"kind" yaml:"kind"`

	// Raw is the citation excerpt as it appears in the body text.
	Raw string `json:"raw" yaml:"raw"`

	// Locator is the normalized key used for matching: a number for numeric
	// citations, or "surname-year[suffix]" for author-year citations.
	Locator string `json:"locator" yaml:"locator"`

	// Context is the enclosing sentence, capped at 600 characters.
	Context string `json:"context,omitempty" yaml:"context,omitempty"`
}

// MatchStatus is the outcome of linking a citation to the bibliography.
type MatchStatus string

const (
	MatchMatched   MatchStatus = "matched"
	MatchAmbiguous MatchStatus = "ambiguous"
	MatchUnmatched MatchStatus = "unmatched"
)

// MatchCandidate is one scored bibliography candidate for a citation.
type MatchCandidate struct {
	RefID string `json:"ref_id" yaml:"ref_id"`

	Score float64 `json:"score" yaml:"score"`

	// Reasons lists human-readable scoring contributions
	// (e.g. "author surname match", "year within ±1").
	Reasons []string `json:"reasons,omitempty" yaml:"reasons,omitempty"`
}

// CitationMatch links one CitationInstance to at most one ReferenceEntry.
// Status is ambiguous whenever the top two candidate scores differ by less
// than 0.08 or the best score is below 0.65; unmatched when no candidate
// survives filtering.
type CitationMatch struct {
	Citation CitationInstance `json:"citation" yaml:"citation"`

	// Ref is the chosen bibliography entry; nil unless Status is matched
	// (or ambiguous with a provisional best).
	Ref *ReferenceEntry `json:"ref,omitempty" yaml:"ref,omitempty"`

	Status MatchStatus `json:"status" yaml:"status"`

	// Confidence is in [0,1]; 1.0 for direct numeric lookups.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Method tags how the link was made: number_direct, author_year_exact,
	// author_year_suffix_ignored, author_year_nearby, author_only_unique.
	// A disambiguation pass appends "_llm".
	Method string `json:"method,omitempty" yaml:"method,omitempty"`

	// Candidates is ranked descending by score.
	Candidates []MatchCandidate `json:"candidates,omitempty" yaml:"candidates,omitempty"`

	Notes []string `json:"notes,omitempty" yaml:"notes,omitempty"`
}
