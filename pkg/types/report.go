// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Severity grades an issue for display ordering.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Issue types emitted by the flag and appropriateness checkers.
const (
	IssueMissingBibliography   = "missing_bibliography_entry"
	IssueAmbiguousBibliography = "ambiguous_bibliography_entry"
	IssueUnresolvedReference   = "unresolved_reference"
	IssueRetractedReference    = "retracted_reference"
	IssuePredatoryVenue        = "predatory_venue"
	IssueInappropriateCitation = "inappropriate_citation"
	IssueManualReview          = "citation_needs_manual_review"
)

// Issue is one reported citation-integrity finding.
type Issue struct {
	Type     string   `json:"type" yaml:"type"`
	Title    string   `json:"title" yaml:"title"`
	Severity Severity `json:"severity" yaml:"severity"`

	// Confidence qualifies dataset-backed flags: "high" when a strong
	// source or two independent sources agree, "review_needed" otherwise.
	Confidence string `json:"confidence,omitempty" yaml:"confidence,omitempty"`

	// Details carries structured evidence (locators, DOIs, scores).
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

// Summary holds the report's headline counts.
type Summary struct {
	References int `json:"references" yaml:"references"`
	Citations  int `json:"citations" yaml:"citations"`
	Matched    int `json:"matched" yaml:"matched"`
	Ambiguous  int `json:"ambiguous" yaml:"ambiguous"`
	Unmatched  int `json:"unmatched" yaml:"unmatched"`
	Resolved   int `json:"resolved" yaml:"resolved"`
	Issues     int `json:"issues" yaml:"issues"`
}

// Report is the engine's single output value for one analysis run.
type Report struct {
	ID        string    `json:"id" yaml:"id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	Summary Summary `json:"summary" yaml:"summary"`

	Issues []Issue `json:"issues,omitempty" yaml:"issues,omitempty"`

	Matches    []CitationMatch `json:"matches,omitempty" yaml:"matches,omitempty"`
	References []ResolvedWork  `json:"references,omitempty" yaml:"references,omitempty"`

	// Limitations lists every soft-degradation the run took
	// (skipped stages, heuristic fallbacks, budget notes).
	Limitations []string `json:"limitations,omitempty" yaml:"limitations,omitempty"`

	// Deep is present only when the literature-graph stage ran.
	Deep *DeepReport `json:"deep,omitempty" yaml:"deep,omitempty"`
}
