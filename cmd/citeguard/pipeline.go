// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/citeguard/internal/ai"
	"github.com/pdiddy/citeguard/internal/input"
	"github.com/pdiddy/citeguard/internal/parse"
	"github.com/pdiddy/citeguard/internal/sources"
	"github.com/pdiddy/citeguard/internal/store"
	"github.com/pdiddy/citeguard/pkg/types"
)

// buildSources constructs the resolver's source chain in configured order.
// The OpenAlex client is returned separately because it alone supports
// graph expansion.
func buildSources(cfg types.Config, loaded map[string]string) ([]sources.Source, *sources.OpenAlex) {
	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}
	ua := cfg.HTTP.UserAgent

	openalex := &sources.OpenAlex{
		Client:    httpClient,
		Limiter:   rate.NewLimiter(rate.Limit(10), 10),
		UserAgent: ua,
		Email:     loaded["openalex-email"],
	}
	byName := map[string]sources.Source{
		"openalex": openalex,
		"crossref": &sources.Crossref{
			Client:    httpClient,
			Limiter:   rate.NewLimiter(rate.Limit(2), 2),
			UserAgent: ua,
			Mailto:    loaded["crossref-mailto"],
		},
		"pubmed": &sources.PubMed{
			Client:    httpClient,
			Limiter:   rate.NewLimiter(rate.Limit(3), 3),
			UserAgent: ua,
			APIKey:    loaded["pubmed-api-key"],
			Email:     loaded["openalex-email"],
		},
		"arxiv": &sources.Arxiv{
			Client:    httpClient,
			Limiter:   rate.NewLimiter(rate.Limit(1), 1),
			UserAgent: ua,
		},
	}

	var chain []sources.Source
	for _, name := range cfg.Resolve.Sources {
		if src, ok := byName[strings.ToLower(strings.TrimSpace(name))]; ok {
			chain = append(chain, src)
		}
	}
	if len(chain) == 0 {
		chain = []sources.Source{openalex}
	}
	return chain, openalex
}

// buildAIClient returns nil when no API key is configured; model-backed
// steps then fall back to their heuristics.
func buildAIClient(cfg types.Config, log *zap.Logger) ai.Client {
	if cfg.AI.APIKey == "" {
		return nil
	}
	return ai.NewOpenRouter(cfg.AI, &http.Client{Timeout: cfg.HTTP.Timeout}, log)
}

// parseManuscript splits and parses the manuscript, using the model
// fallback when regex extraction comes up empty. A non-empty refsOverride
// replaces the manuscript's own references section, for callers that supply
// the bibliography as a separate file.
func parseManuscript(
	ctx context.Context,
	cfg types.Config,
	client ai.Client,
	text, refsOverride string,
) (body string, references []types.ReferenceEntry, citations []types.CitationInstance, limitations []string) {
	body, refsText := parse.SplitReferences(text)
	if strings.TrimSpace(refsOverride) != "" {
		body = text
		refsText = refsOverride
	}

	if strings.TrimSpace(refsText) == "" && cfg.Parse.EnableAIFallback && client != nil {
		section, notes, err := parse.ExtractReferencesSectionAI(ctx, client, text, cfg.Parse.MaxBibliographyChars)
		limitations = append(limitations, notes...)
		if err == nil && section != "" {
			refsText = section
		}
	}

	references = parse.ParseReferences(refsText)
	if len(references) == 0 && strings.TrimSpace(refsText) != "" && cfg.Parse.EnableAIFallback && client != nil {
		aiRefs, notes, err := parse.ParseReferencesAI(ctx, client, refsText,
			cfg.Parse.MaxBibliographyChars, cfg.Parse.MaxBibliographyRefs)
		limitations = append(limitations, notes...)
		if err == nil {
			references = aiRefs
		}
	}

	citations = parse.SplitMultiCitations(parse.ParseCitations(body))
	if len(citations) == 0 && cfg.Parse.EnableAIFallback && client != nil {
		aiCits, notes, err := parse.ParseCitationsAI(ctx, client, body)
		limitations = append(limitations, notes...)
		if err == nil {
			citations = aiCits
		}
	}
	return body, references, citations, limitations
}

// loadBibliographyFlag reads the --bibliography file when the flag is set.
func loadBibliographyFlag(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("bibliography")
	if path == "" {
		return "", nil
	}
	text, err := input.Load(path)
	if err != nil {
		return "", fmt.Errorf("loading bibliography: %w", err)
	}
	return text, nil
}

// resolutionCacheKey keys the cross-run cache by the entry's raw text, so
// re-analyzing the same manuscript skips repeat lookups.
func resolutionCacheKey(ref types.ReferenceEntry) string {
	norm := strings.ToLower(strings.Join(strings.Fields(ref.Raw), " "))
	return fmt.Sprintf("raw:%x", sha256.Sum256([]byte(norm)))
}

// cachedResolutions partitions references into cache hits and entries that
// still need resolving. A nil store resolves everything fresh.
func cachedResolutions(st *store.Store, references []types.ReferenceEntry) (map[string]*types.ResolvedWork, []types.ReferenceEntry) {
	hits := make(map[string]*types.ResolvedWork)
	if st == nil {
		return hits, references
	}
	var misses []types.ReferenceEntry
	for _, ref := range references {
		work, err := st.CachedResolution(resolutionCacheKey(ref))
		if err != nil || work == nil {
			misses = append(misses, ref)
			continue
		}
		dup := *work
		dup.RefID = ref.RefID
		hits[ref.RefID] = &dup
	}
	return hits, misses
}

// persistResolutions caches freshly resolved works that cleared a source.
func persistResolutions(st *store.Store, references []types.ReferenceEntry, resolved map[string]*types.ResolvedWork, log *zap.Logger) {
	if st == nil {
		return
	}
	for _, ref := range references {
		work := resolved[ref.RefID]
		if work == nil || work.Source == "" {
			continue
		}
		if err := st.PutResolution(resolutionCacheKey(ref), work); err != nil {
			log.Warn("caching resolution failed", zap.String("ref", ref.RefID), zap.Error(err))
		}
	}
}
