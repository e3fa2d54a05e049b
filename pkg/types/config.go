// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "citeguard/0.1 (mailto:you@example.org)").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AIConfig holds shared settings for stages that call the language-model judge.
type AIConfig struct {
	// Model is the model identifier passed to the chat API.
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the chat API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ParseConfig holds settings for the entity parser.
type ParseConfig struct {
	// EnableAIFallback controls whether the model is consulted when regex
	// extraction finds nothing.
	EnableAIFallback bool `json:"enable_ai_fallback" yaml:"enable_ai_fallback"`

	// MaxBibliographyChars caps the bibliography text sent to the model.
	MaxBibliographyChars int `json:"max_bibliography_chars" yaml:"max_bibliography_chars"`

	// MaxBibliographyRefs caps how many entries the model fallback may return.
	MaxBibliographyRefs int `json:"max_bibliography_refs" yaml:"max_bibliography_refs"`
}

// MatchConfig holds settings for the citation matcher.
type MatchConfig struct {
	// MaxLLMCalls bounds the disambiguation pass; 0 disables it.
	// Exhausting this budget is a soft skip, not a failure.
	MaxLLMCalls int `json:"max_llm_calls" yaml:"max_llm_calls"`
}

// ResolveConfig holds settings for the reference resolver.
type ResolveConfig struct {
	// Workers is the resolution worker-pool size (default 4).
	Workers int `json:"workers" yaml:"workers"`

	// Sources orders the fallback chain (default openalex, crossref,
	// pubmed, arxiv).
	Sources []string `json:"sources" yaml:"sources"`

	// MaxLLMCalls bounds fuzzy-candidate disambiguation across the run.
	// Exhausting this budget fails the run.
	MaxLLMCalls int `json:"max_llm_calls" yaml:"max_llm_calls"`

	// SearchRows is how many fuzzy-search rows to request per source.
	SearchRows int `json:"search_rows" yaml:"search_rows"`
}

// ChecksConfig holds settings for the flag and appropriateness checkers.
type ChecksConfig struct {
	// Workers is the per-item check worker-pool size (default 4).
	Workers int `json:"workers" yaml:"workers"`

	// RetractionCSV is the path to the Retraction Watch dataset.
	RetractionCSV string `json:"retraction_csv" yaml:"retraction_csv"`

	// PredatoryCSV is the path to the curated predatory-venue dataset.
	PredatoryCSV string `json:"predatory_csv" yaml:"predatory_csv"`

	// RetractionAPIURL enables the dedicated retraction-lookup API when
	// set. The endpoint is queried with ?doi=<doi>.
	RetractionAPIURL   string `json:"retraction_api_url,omitempty" yaml:"retraction_api_url,omitempty"`
	RetractionAPIToken string `json:"retraction_api_token,omitempty" yaml:"retraction_api_token,omitempty"`

	// PredatoryAPIURL enables the dedicated predatory-venue lookup API
	// when set. The endpoint is queried with ?issn=..&journal=..&publisher=..
	PredatoryAPIURL   string `json:"predatory_api_url,omitempty" yaml:"predatory_api_url,omitempty"`
	PredatoryAPIToken string `json:"predatory_api_token,omitempty" yaml:"predatory_api_token,omitempty"`

	// EnableNLI controls the local entailment classifier tier.
	EnableNLI bool `json:"enable_nli" yaml:"enable_nli"`

	// NLIEndpoint is the classifier's HTTP endpoint.
	NLIEndpoint string `json:"nli_endpoint,omitempty" yaml:"nli_endpoint,omitempty"`

	// MaxLLMCalls bounds appropriateness judgments across the run.
	// Exhausting this budget fails the run.
	MaxLLMCalls int `json:"max_llm_calls" yaml:"max_llm_calls"`
}

// GraphConfig holds settings for the literature-graph engine.
type GraphConfig struct {
	// Enable turns the deep-analysis stage on.
	Enable bool `json:"enable" yaml:"enable"`

	// MinConfidence is the resolution-confidence floor for seed entries.
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`

	// MaxOriginalRefs skips the stage entirely when the verified
	// bibliography is larger than this.
	MaxOriginalRefs int `json:"max_original_refs" yaml:"max_original_refs"`

	MaxNodes int `json:"max_nodes" yaml:"max_nodes"`
	MaxEdges int `json:"max_edges" yaml:"max_edges"`

	// Workers is the per-hop fetch worker-pool size.
	Workers int `json:"workers" yaml:"workers"`

	// MaxReferencesPerWork caps outgoing reference fetches per work.
	MaxReferencesPerWork int `json:"max_references_per_work" yaml:"max_references_per_work"`

	// MaxSecondHopSeeds caps how many first-hop works seed the second hop.
	MaxSecondHopSeeds int `json:"max_second_hop_seeds" yaml:"max_second_hop_seeds"`

	// MaxTotalCitingRefs caps incoming-citation fetches across all key refs.
	MaxTotalCitingRefs int `json:"max_total_citing_refs" yaml:"max_total_citing_refs"`

	// MaxCitingRefsForSecondHop caps citing works that get their own
	// reference fetch.
	MaxCitingRefsForSecondHop int `json:"max_citing_refs_for_second_hop" yaml:"max_citing_refs_for_second_hop"`

	// EnableLLMKeySelection and EnableLLMSuggestions switch the model-backed
	// paths; heuristics run when off.
	EnableLLMKeySelection bool `json:"enable_llm_key_selection" yaml:"enable_llm_key_selection"`
	EnableLLMSuggestions  bool `json:"enable_llm_suggestions" yaml:"enable_llm_suggestions"`

	// MaxLLMCalls bounds graph-stage model calls. Exhausting it soft-skips
	// remaining calls rather than failing the run.
	MaxLLMCalls int `json:"max_llm_calls" yaml:"max_llm_calls"`

	// ExcludedSourcesFile is a newline-separated list of venue/publisher
	// names to purge from the graph, matched case- and
	// punctuation-insensitively as substrings.
	ExcludedSourcesFile string `json:"excluded_sources_file,omitempty" yaml:"excluded_sources_file,omitempty"`

	// DisplayMaxKeyRefs and DisplayMaxPerCategory bound the report's
	// reference-group sizes.
	DisplayMaxKeyRefs     int `json:"display_max_key_refs" yaml:"display_max_key_refs"`
	DisplayMaxPerCategory int `json:"display_max_per_category" yaml:"display_max_per_category"`
}

// StoreConfig holds settings for the report store.
type StoreConfig struct {
	// Path is the sqlite database file (default "citeguard.db").
	Path string `json:"path" yaml:"path"`
}

// Config groups all stage configurations for one analysis run.
type Config struct {
	HTTP    HTTPConfig    `json:"http" yaml:"http"`
	AI      AIConfig      `json:"ai" yaml:"ai"`
	Parse   ParseConfig   `json:"parse" yaml:"parse"`
	Match   MatchConfig   `json:"match" yaml:"match"`
	Resolve ResolveConfig `json:"resolve" yaml:"resolve"`
	Checks  ChecksConfig  `json:"checks" yaml:"checks"`
	Graph   GraphConfig   `json:"graph" yaml:"graph"`
	Store   StoreConfig   `json:"store" yaml:"store"`

	// SecretsDir is a directory of plain-text secret files
	// (openrouter-api-key, openalex-email, crossref-mailto, pubmed-api-key).
	SecretsDir string `json:"secrets_dir,omitempty" yaml:"secrets_dir,omitempty"`
}

// DefaultConfig returns the configuration used when no file or environment
// overrides are present. The numbers mirror the service defaults.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "citeguard/0.1",
		},
		AI: AIConfig{
			Model:      "openai/gpt-4o-mini",
			MaxRetries: 3,
		},
		Parse: ParseConfig{
			EnableAIFallback:     true,
			MaxBibliographyChars: 60000,
			MaxBibliographyRefs:  400,
		},
		Match: MatchConfig{
			MaxLLMCalls: 25,
		},
		Resolve: ResolveConfig{
			Workers:     4,
			Sources:     []string{"openalex", "crossref", "pubmed", "arxiv"},
			MaxLLMCalls: 40,
			SearchRows:  5,
		},
		Checks: ChecksConfig{
			Workers:     4,
			EnableNLI:   false,
			MaxLLMCalls: 60,
		},
		Graph: GraphConfig{
			Enable:                    false,
			MinConfidence:             0.75,
			MaxOriginalRefs:           150,
			MaxNodes:                  600,
			MaxEdges:                  4000,
			Workers:                   6,
			MaxReferencesPerWork:      40,
			MaxSecondHopSeeds:         25,
			MaxTotalCitingRefs:        120,
			MaxCitingRefsForSecondHop: 30,
			EnableLLMKeySelection:     true,
			EnableLLMSuggestions:      true,
			MaxLLMCalls:               20,
			DisplayMaxKeyRefs:         12,
			DisplayMaxPerCategory:     8,
		},
		Store: StoreConfig{
			Path: "citeguard.db",
		},
	}
}
