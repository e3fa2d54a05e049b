// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve links bibliography entries to canonical records in the
// configured scholarly sources. Each reference runs through the source chain
// in order: identifier lookup first, then fuzzy search with model-backed
// disambiguation for mid-confidence hits. Results are cached by DOI so
// duplicate entries cost one lookup.
package resolve

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/citeguard/internal/ai"
	"github.com/pdiddy/citeguard/internal/normalize"
	"github.com/pdiddy/citeguard/internal/sources"
	"github.com/pdiddy/citeguard/pkg/types"
)

// Search-score thresholds and bonuses.
const (
	autoAcceptScore = 0.93
	llmReviewScore  = 0.65
	authorBonus     = 0.12
	yearExactBonus  = 0.08
	yearNearBonus   = 0.04
	doiBonus        = 0.20
)

var (
	arxivURLRe = regexp.MustCompile(`(?i)arxiv\.org/(?:abs|pdf)/([A-Za-z0-9.\-_/]+)`)
	arxivTagRe = regexp.MustCompile(`(?i)\barxiv\s*:?\s*([A-Za-z0-9.\-_/]+)`)
)

// sourceLabels maps source names to the labels used in resolution notes.
var sourceLabels = map[string]string{
	"openalex": "OpenAlex",
	"crossref": "Crossref",
	"arxiv":    "arXiv",
	"pubmed":   "PubMed",
}

// Resolver resolves references against an ordered source chain.
type Resolver struct {
	Sources    []sources.Source
	Client     ai.Client
	Budget     *ai.Budget
	Workers    int
	SearchRows int
	Log        *zap.Logger

	mu    sync.Mutex
	cache map[string]*types.ResolvedWork
}

// New builds a Resolver over the given source chain.
func New(srcs []sources.Source, client ai.Client, budget *ai.Budget, workers, searchRows int, log *zap.Logger) *Resolver {
	if workers < 1 {
		workers = 1
	}
	if searchRows < 1 {
		searchRows = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		Sources:    srcs,
		Client:     client,
		Budget:     budget,
		Workers:    workers,
		SearchRows: searchRows,
		Log:        log,
		cache:      make(map[string]*types.ResolvedWork),
	}
}

// Resolve resolves every reference, keyed by ref id. An exhausted model
// budget aborts the run; raise the resolve call limit to proceed.
func (r *Resolver) Resolve(ctx context.Context, references []types.ReferenceEntry, progress func(string, float64)) (map[string]*types.ResolvedWork, error) {
	if progress != nil {
		progress(fmt.Sprintf("Resolving %d references", len(references)), 0.0)
	}

	out := make(map[string]*types.ResolvedWork, len(references))
	var outMu sync.Mutex
	var done int

	total := len(references)
	step := total / 10
	if step < 1 {
		step = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Workers)
	for i := range references {
		ref := references[i]
		g.Go(func() error {
			resolved, err := r.resolveOne(gctx, ref)
			if err != nil {
				return err
			}
			outMu.Lock()
			out[ref.RefID] = resolved
			done++
			n := done
			outMu.Unlock()
			if progress != nil && (n == 1 || n%step == 0 || n == total) {
				progress(fmt.Sprintf("Resolved %d/%d references", n, total), float64(n)/float64(total))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) resolveOne(ctx context.Context, ref types.ReferenceEntry) (*types.ResolvedWork, error) {
	doiFromRef := ref.DOI
	if doiFromRef == "" {
		doiFromRef = normalize.DOI(ref.Raw)
	}

	if doiFromRef != "" {
		r.mu.Lock()
		cached := r.cache[doiFromRef]
		r.mu.Unlock()
		if cached != nil {
			dup := *cached
			dup.RefID = ref.RefID
			return &dup, nil
		}
	}

	arxivID := arxivIDFromText(ref.Raw)

	var (
		record *sources.Record
		match  *matchInfo
		source sources.Source
	)
	for _, src := range r.Sources {
		rec, m, err := r.matchSource(ctx, src, ref, doiFromRef, arxivID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			record, match, source = rec, m, src
			break
		}
	}

	resolved := r.buildResolved(ref, doiFromRef, record, match, source)

	if resolved.DOI != "" {
		r.mu.Lock()
		if _, ok := r.cache[resolved.DOI]; !ok {
			r.cache[resolved.DOI] = resolved
		}
		r.mu.Unlock()
	}
	return resolved, nil
}

// matchInfo records how a source matched a reference.
type matchInfo struct {
	method     string
	confidence float64
	rationale  string
}

func (r *Resolver) matchSource(ctx context.Context, src sources.Source, ref types.ReferenceEntry, doi, arxivID string) (*sources.Record, *matchInfo, error) {
	if src.Name() == "arxiv" && arxivID != "" {
		rec, err := src.GetByIdentifier(ctx, arxivID)
		if err != nil {
			r.Log.Warn("source lookup failed", zap.String("source", src.Name()), zap.String("ref_id", ref.RefID), zap.Error(err))
		} else if rec != nil {
			return rec, &matchInfo{method: "arxiv_id", confidence: 1.0}, nil
		}
	}

	if doi != "" {
		rec, err := src.GetByIdentifier(ctx, doi)
		if err != nil {
			r.Log.Warn("source lookup failed", zap.String("source", src.Name()), zap.String("ref_id", ref.RefID), zap.Error(err))
		} else if rec != nil {
			return rec, &matchInfo{method: "doi", confidence: 1.0}, nil
		}
	}

	query := searchQuery(src.Name(), ref)
	candidates, err := src.Search(ctx, query, r.SearchRows)
	if err != nil {
		r.Log.Warn("source search failed", zap.String("source", src.Name()), zap.String("ref_id", ref.RefID), zap.Error(err))
		return nil, nil, nil
	}

	type scoredCandidate struct {
		score float64
		rec   sources.Record
	}
	var scored []scoredCandidate
	for _, cand := range candidates {
		if cand.SourceID == "" {
			continue
		}
		scored = append(scored, scoredCandidate{score: candidateScore(ref, doi, &cand), rec: cand})
	}
	if len(scored) == 0 {
		return nil, nil, nil
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	top := scored[0]
	switch {
	case top.score >= autoAcceptScore:
		full, err := src.GetByIdentifier(ctx, top.rec.SourceID)
		if err != nil || full == nil {
			full = &top.rec
		}
		return full, &matchInfo{method: "search", confidence: top.score}, nil

	case top.score >= llmReviewScore:
		kept := scored
		if len(kept) > 5 {
			kept = kept[:5]
		}
		recs := make([]sources.Record, len(kept))
		for i, sc := range kept {
			recs[i] = sc.rec
		}
		bestID, conf, rationale, err := r.chooseCandidate(ctx, src.Name(), ref, doi, recs)
		if err != nil {
			return nil, nil, err
		}
		if bestID == "" {
			return nil, nil, nil
		}
		full, err := src.GetByIdentifier(ctx, bestID)
		if err != nil || full == nil {
			for i := range recs {
				if recs[i].SourceID == bestID {
					full = &recs[i]
					break
				}
			}
		}
		if full == nil {
			return nil, nil, nil
		}
		return full, &matchInfo{method: "search_llm", confidence: conf, rationale: rationale}, nil
	}

	return nil, nil, nil
}

// searchQuery builds the source query from the reference. arXiv uses its
// fielded query syntax; the rest take a plain concatenation.
func searchQuery(sourceName string, ref types.ReferenceEntry) string {
	if sourceName == "arxiv" {
		parts := []string{`all:"` + clipQuery(ref.Raw) + `"`}
		if ref.FirstAuthor != "" {
			parts = append(parts, `au:"`+ref.FirstAuthor+`"`)
		}
		if ref.Year > 0 {
			parts = append(parts, strconv.Itoa(ref.Year))
		}
		return strings.Join(parts, " AND ")
	}
	parts := []string{ref.Raw}
	if ref.FirstAuthor != "" {
		parts = append(parts, ref.FirstAuthor)
	}
	if ref.Year > 0 {
		parts = append(parts, strconv.Itoa(ref.Year))
	}
	return strings.Join(parts, " ")
}

func clipQuery(text string) string {
	cleaned := strings.Join(strings.Fields(strings.ReplaceAll(text, `"`, "")), " ")
	if len(cleaned) > 180 {
		cleaned = cleaned[:180]
	}
	return cleaned
}

// candidateScore rates a search candidate against the reference: token
// Jaccard on titles plus bonuses for author, year, and DOI agreement.
func candidateScore(ref types.ReferenceEntry, doi string, cand *sources.Record) float64 {
	score := normalize.Jaccard(normalize.ContentTokens(ref.Raw), normalize.ContentTokens(cand.Title))
	if ref.FirstAuthor != "" {
		if a := cand.FirstAuthorKey(); a != "" && a == ref.FirstAuthor {
			score += authorBonus
		}
	}
	if ref.Year > 0 && cand.Year > 0 {
		switch diff := abs(cand.Year - ref.Year); {
		case diff == 0:
			score += yearExactBonus
		case diff <= 1:
			score += yearNearBonus
		}
	}
	if doi != "" && cand.DOI != "" && cand.DOI == doi {
		score += doiBonus
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// buildResolved maps a matched source record onto the resolved-work shape,
// noting DOI discrepancies between the reference and the matched record.
func (r *Resolver) buildResolved(ref types.ReferenceEntry, doiFromRef string, record *sources.Record, match *matchInfo, source sources.Source) *types.ResolvedWork {
	resolved := &types.ResolvedWork{
		RefID: ref.RefID,
		DOI:   doiFromRef,
		Year:  ref.Year,
	}

	if record == nil {
		resolved.ResolutionNotes = "Unresolved in " + chainLabel(r.Sources) + "."
		return resolved
	}

	var matchNotes []string
	if record.DOI != "" {
		if doiFromRef != "" && doiFromRef != record.DOI {
			matchNotes = append(matchNotes, "Resolved DOI differs from reference DOI.")
		}
		resolved.DOI = record.DOI
	}

	resolved.Title = record.Title
	resolved.Abstract = record.Abstract
	if record.Year > 0 {
		resolved.Year = record.Year
	}
	resolved.Journal = record.Venue
	resolved.Publisher = record.Publisher
	resolved.ISSN = record.ISSN
	resolved.Authors = record.Authors
	resolved.Retracted = record.Retracted
	resolved.RetractionDetail = record.RetractionDetail
	resolved.PMID = record.PMID
	resolved.PMCID = record.PMCID

	name := source.Name()
	switch name {
	case "openalex":
		resolved.OpenAlexID = record.SourceID
	case "arxiv":
		resolved.ArxivID = record.SourceID
	case "pubmed":
		if resolved.PMID == "" {
			resolved.PMID = record.SourceID
		}
	}

	resolved.Source = name
	resolved.Confidence = match.confidence

	label := sourceLabels[name]
	if label == "" {
		label = name
	}
	var note string
	switch match.method {
	case "doi":
		note = "Linked to " + label + " by DOI."
	case "arxiv_id":
		note = "Linked to " + label + " by ID."
	case "search_llm":
		note = "Resolved via " + label + " search (LLM disambiguation)."
	default:
		note = "Resolved via " + label + " search."
	}
	if len(matchNotes) > 0 {
		note = strings.TrimSpace(note + " " + strings.Join(matchNotes, " "))
	}
	resolved.ResolutionNotes = note
	return resolved
}

func chainLabel(srcs []sources.Source) string {
	labels := make([]string, 0, len(srcs))
	for _, src := range srcs {
		label := sourceLabels[src.Name()]
		if label == "" {
			label = src.Name()
		}
		labels = append(labels, label)
	}
	return strings.Join(labels, "/")
}

// arxivIDFromText pulls an arXiv identifier out of a URL or "arXiv:" tag.
func arxivIDFromText(text string) string {
	var id string
	if m := arxivURLRe.FindStringSubmatch(text); m != nil {
		id = m[1]
	} else if m := arxivTagRe.FindStringSubmatch(text); m != nil {
		id = m[1]
	}
	id = strings.TrimRight(strings.TrimSpace(id), ").,;:]}")
	if strings.HasSuffix(strings.ToLower(id), ".pdf") {
		id = id[:len(id)-4]
	}
	return id
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
