// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// DeepStage names the literature-graph engine's pipeline stages. A run moves
// through them in order; any stage may end the run as skipped with a reason,
// or record a per-stage failure and degrade to a heuristic fallback.
type DeepStage string

const (
	StageIdle            DeepStage = "idle"
	StageVerifyingSeeds  DeepStage = "verifying-seed-set"
	StageSelectingKeys   DeepStage = "selecting-key-refs"
	StageExpandingGraph  DeepStage = "expanding-graph"
	StageScoring         DeepStage = "scoring"
	StageBuildingRefList DeepStage = "building-reference-list"
	StageDrafting        DeepStage = "drafting-suggestions"
	StageComplete        DeepStage = "complete"
	StageSkipped         DeepStage = "skipped"
)

// NetworkStats summarizes the expanded literature graph.
type NetworkStats struct {
	Nodes int `json:"nodes" yaml:"nodes"`
	Edges int `json:"edges" yaml:"edges"`

	Components       int `json:"components" yaml:"components"`
	LargestComponent int `json:"largest_component" yaml:"largest_component"`

	// NodesTruncated/EdgesTruncated record that a cap was hit and
	// expansion halted early.
	NodesTruncated bool `json:"nodes_truncated,omitempty" yaml:"nodes_truncated,omitempty"`
	EdgesTruncated bool `json:"edges_truncated,omitempty" yaml:"edges_truncated,omitempty"`

	// Excluded counts nodes purged by the excluded-source list.
	Excluded int `json:"excluded,omitempty" yaml:"excluded,omitempty"`
}

// PoolStats counts the works contributed by each expansion tier.
type PoolStats struct {
	OriginalRefs int `json:"original_refs" yaml:"original_refs"`
	KeyRefs      int `json:"key_refs" yaml:"key_refs"`
	CitedRefs    int `json:"cited_refs" yaml:"cited_refs"`
	CitedRefs2   int `json:"cited_refs2" yaml:"cited_refs2"`
	CitingRefs   int `json:"citing_refs" yaml:"citing_refs"`
	CitingRefs2  int `json:"citing_refs2" yaml:"citing_refs2"`

	// SkippedFetches counts graph-source lookups that failed and were
	// treated as empty.
	SkippedFetches int `json:"skipped_fetches,omitempty" yaml:"skipped_fetches,omitempty"`
}

// Category is one structural-importance bucket: the top-10% (minimum one)
// nodes by a single metric.
type Category struct {
	// Name is one of highly_connected, bridge, core,
	// bibliographic_coupling, tangential.
	Name string `json:"name" yaml:"name"`

	NodeIDs []string `json:"node_ids" yaml:"node_ids"`
}

// MasterReference is one canonical, deduplicated entry in the literature
// reference table.
type MasterReference struct {
	// RID is the short display id ("R1", "R2", ...) assigned in
	// first-seen order across the grouping passes.
	RID string `json:"rid" yaml:"rid"`

	Title   string   `json:"title,omitempty" yaml:"title,omitempty"`
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Year    int      `json:"year,omitempty" yaml:"year,omitempty"`
	Venue   string   `json:"venue,omitempty" yaml:"venue,omitempty"`
	DOI     string   `json:"doi,omitempty" yaml:"doi,omitempty"`

	// NodeIDs lists every graph node merged into this entry.
	NodeIDs []string `json:"node_ids" yaml:"node_ids"`

	// Seed marks entries originating from the manuscript's own
	// bibliography.
	Seed bool `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// ReferenceGroup is one disjoint display group of master references,
// assigned first-match-wins.
type ReferenceGroup struct {
	// Name is one of key_references, citations_to_revisit,
	// cited_and_strong, suggested_important, suggested_connector,
	// suggested_core, coupling_works, other.
	Name string   `json:"name" yaml:"name"`
	RIDs []string `json:"rids" yaml:"rids"`
}

// CitationGroup is one overlapping category group used for downstream
// prompting; a reference may appear in several.
type CitationGroup struct {
	Name string   `json:"name" yaml:"name"`
	RIDs []string `json:"rids" yaml:"rids"`
}

// Subsection is one detected manuscript section, collapsible to a flat
// top-level sequence.
type Subsection struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Level int    `json:"level" yaml:"level"`
	Text  string `json:"text,omitempty" yaml:"text,omitempty"`
}

// ReferenceIntegration suggests working one nearby non-seed work into a
// section.
type ReferenceIntegration struct {
	RID       string `json:"rid" yaml:"rid"`
	Rationale string `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// SectionPlan is the revision plan for one manuscript section.
type SectionPlan struct {
	SubsectionID string `json:"subsection_id" yaml:"subsection_id"`

	Summary      string   `json:"summary,omitempty" yaml:"summary,omitempty"`
	Improvements []string `json:"improvements,omitempty" yaml:"improvements,omitempty"`

	Integrations []ReferenceIntegration `json:"integrations,omitempty" yaml:"integrations,omitempty"`

	OpenQuestions []string `json:"open_questions,omitempty" yaml:"open_questions,omitempty"`

	// Heuristic marks plans produced by the fallback path after the
	// section call budget ran out or the model output was rejected.
	Heuristic bool `json:"heuristic,omitempty" yaml:"heuristic,omitempty"`
}

// SuggestionSection groups revision bullets under one manuscript section.
type SuggestionSection struct {
	Title   string   `json:"title" yaml:"title"`
	Bullets []string `json:"bullets" yaml:"bullets"`
}

// SuggestionSet is the run-wide revision guide: a short overview plus
// per-section bullets, referencing master entries by [R#] only.
type SuggestionSet struct {
	Overview string              `json:"overview" yaml:"overview"`
	Sections []SuggestionSection `json:"sections,omitempty" yaml:"sections,omitempty"`

	// Heuristic marks guides produced without a model call.
	Heuristic bool `json:"heuristic,omitempty" yaml:"heuristic,omitempty"`

	Note string `json:"note,omitempty" yaml:"note,omitempty"`
}

// DeepReport is the literature-graph engine's contribution to the report.
type DeepReport struct {
	Stage      DeepStage `json:"stage" yaml:"stage"`
	SkipReason string    `json:"skip_reason,omitempty" yaml:"skip_reason,omitempty"`

	// SeedIDs are node ids of the verified bibliography; KeyRefIDs the
	// chosen expansion seeds.
	SeedIDs   []string `json:"seed_ids,omitempty" yaml:"seed_ids,omitempty"`
	KeyRefIDs []string `json:"key_ref_ids,omitempty" yaml:"key_ref_ids,omitempty"`

	Pool    PoolStats    `json:"pool" yaml:"pool"`
	Network NetworkStats `json:"network" yaml:"network"`

	Categories []Category `json:"categories,omitempty" yaml:"categories,omitempty"`

	References []MasterReference `json:"references,omitempty" yaml:"references,omitempty"`

	Groups         []ReferenceGroup `json:"groups,omitempty" yaml:"groups,omitempty"`
	CitationGroups []CitationGroup  `json:"citation_groups,omitempty" yaml:"citation_groups,omitempty"`

	Structure []Subsection  `json:"structure,omitempty" yaml:"structure,omitempty"`
	Plans     []SectionPlan `json:"plans,omitempty" yaml:"plans,omitempty"`

	Suggestions *SuggestionSet `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`

	// LLMCallsUsed counts graph-stage model calls (key selection,
	// structure, per-section plans).
	LLMCallsUsed int `json:"llm_calls_used" yaml:"llm_calls_used"`

	Limitations []string `json:"limitations,omitempty" yaml:"limitations,omitempty"`
}
