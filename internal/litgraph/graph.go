// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package litgraph

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/citeguard/pkg/types"
)

// edge is one directed citation link, citing node first.
type edge struct {
	Src string
	Dst string
}

// litGraph is the capped node/edge accumulator for graph expansion. Once a
// cap is hit the corresponding truncation flag latches and every later
// admission attempt is refused, so the graph never grows past its caps.
type litGraph struct {
	maxNodes int
	maxEdges int

	nodes map[string]struct{}
	edges []edge

	hitMaxNodes bool
	hitMaxEdges bool
}

func newLitGraph(maxNodes, maxEdges int) *litGraph {
	return &litGraph{
		maxNodes: maxNodes,
		maxEdges: maxEdges,
		nodes:    make(map[string]struct{}),
	}
}

// tryAddNode admits id unless the node cap is reached. Known nodes report
// success without consuming capacity.
func (g *litGraph) tryAddNode(id string) bool {
	if _, ok := g.nodes[id]; ok {
		return true
	}
	if len(g.nodes) >= g.maxNodes {
		g.hitMaxNodes = true
		return false
	}
	g.nodes[id] = struct{}{}
	return true
}

func (g *litGraph) tryAddEdge(src, dst string) bool {
	if len(g.edges) >= g.maxEdges {
		g.hitMaxEdges = true
		return false
	}
	g.edges = append(g.edges, edge{Src: src, Dst: dst})
	return true
}

func (g *litGraph) truncated() bool {
	return g.hitMaxNodes || g.hitMaxEdges
}

// purge removes the given nodes and every edge touching them. It returns how
// many nodes were actually removed.
func (g *litGraph) purge(drop map[string]struct{}) int {
	if len(drop) == 0 {
		return 0
	}
	removed := 0
	for id := range drop {
		if _, ok := g.nodes[id]; !ok {
			continue
		}
		delete(g.nodes, id)
		removed++
	}
	if removed == 0 {
		return 0
	}
	kept := g.edges[:0]
	for _, e := range g.edges {
		if _, ok := drop[e.Src]; ok {
			continue
		}
		if _, ok := drop[e.Dst]; ok {
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept
	return removed
}

func isOpenAlexID(id string) bool {
	return strings.HasPrefix(id, "https://openalex.org/") ||
		strings.HasPrefix(id, "https://api.openalex.org/works/") ||
		strings.HasPrefix(id, "W")
}

// expansion accumulates the four-tier fan-out from the key references.
type expansion struct {
	graph *litGraph
	pool  types.PoolStats

	citedRefs   map[string]struct{}
	cited2Refs  map[string]struct{}
	citingRefs  map[string]struct{}
	citing2Refs map[string]struct{}

	// venueNamesByNode carries venue/publisher strings seen for expansion
	// nodes, used by the excluded-source purge.
	venueNamesByNode map[string][]string

	limitations []string
}

// expandGraph grows the literature pool from the key references: works they
// cite, works those cite, recent works citing them, and the references of
// those citing works. Fetches run on a bounded pool; admission is serialized
// in seed order so the cap invariant holds.
func (e *Engine) expandGraph(
	ctx context.Context,
	keyOpenAlexIDs []string,
	originalNodes map[string]struct{},
) *expansion {
	cfg := e.Config
	exp := &expansion{
		graph:            newLitGraph(cfg.MaxNodes, cfg.MaxEdges),
		citedRefs:        make(map[string]struct{}),
		cited2Refs:       make(map[string]struct{}),
		citingRefs:       make(map[string]struct{}),
		citing2Refs:      make(map[string]struct{}),
		venueNamesByNode: make(map[string][]string),
	}
	for id := range originalNodes {
		exp.graph.tryAddNode(id)
	}

	// Tier 1: works cited by the key references.
	refsBySeed := e.fetchReferences(ctx, keyOpenAlexIDs, &exp.pool)
	for _, kid := range keyOpenAlexIDs {
		if exp.graph.truncated() {
			break
		}
		for _, rid := range refsBySeed[kid] {
			if !exp.graph.tryAddNode(rid) {
				break
			}
			exp.citedRefs[rid] = struct{}{}
			exp.graph.tryAddEdge(kid, rid)
		}
	}

	// Tier 2: works cited by those cited works.
	if len(exp.citedRefs) > 0 && !exp.graph.truncated() {
		seeds := sortedKeys(exp.citedRefs)
		if len(seeds) > cfg.MaxSecondHopSeeds {
			seeds = seeds[:cfg.MaxSecondHopSeeds]
			exp.limitations = append(exp.limitations,
				"Deep analysis: second-hop expansion was limited to keep the run fast and memory-safe.")
		}
		refsBySeed = e.fetchReferences(ctx, seeds, &exp.pool)
		for _, sid := range seeds {
			if exp.graph.truncated() {
				break
			}
			for _, rid := range refsBySeed[sid] {
				if !exp.graph.tryAddNode(rid) {
					break
				}
				exp.cited2Refs[rid] = struct{}{}
				exp.graph.tryAddEdge(sid, rid)
			}
		}
	}

	// Tier 3: recent works citing the key references, capped per key ref
	// and in total.
	if len(keyOpenAlexIDs) > 0 && !exp.graph.truncated() {
		budget := cfg.MaxTotalCitingRefs
		for _, kid := range keyOpenAlexIDs {
			if budget <= 0 || exp.graph.truncated() {
				break
			}
			rows := budget
			if rows > 100 {
				rows = 100
			}
			citing, err := e.Source.ListCiting(ctx, kid, rows)
			if err != nil {
				exp.pool.SkippedFetches++
				continue
			}
			for _, rec := range citing {
				wid := strings.TrimSpace(rec.SourceID)
				if wid == "" {
					continue
				}
				if !exp.graph.tryAddNode(wid) {
					break
				}
				if _, ok := exp.citingRefs[wid]; !ok {
					exp.citingRefs[wid] = struct{}{}
					budget--
				}
				exp.recordVenueNames(wid, rec.Venue, rec.Publisher)
				exp.graph.tryAddEdge(wid, kid)
				if budget <= 0 || exp.graph.truncated() {
					break
				}
			}
		}
	}

	// Tier 4: references of those citing works.
	if len(exp.citingRefs) > 0 && !exp.graph.truncated() {
		seeds := sortedKeys(exp.citingRefs)
		if len(seeds) > cfg.MaxCitingRefsForSecondHop {
			seeds = seeds[:cfg.MaxCitingRefsForSecondHop]
			exp.limitations = append(exp.limitations,
				"Deep analysis: expansion from citing papers was limited to keep the run fast and memory-safe.")
		}
		refsBySeed = e.fetchReferences(ctx, seeds, &exp.pool)
		for _, sid := range seeds {
			if exp.graph.truncated() {
				break
			}
			for _, rid := range refsBySeed[sid] {
				if !exp.graph.tryAddNode(rid) {
					break
				}
				exp.citing2Refs[rid] = struct{}{}
				exp.graph.tryAddEdge(sid, rid)
			}
		}
	}

	exp.pool.OriginalRefs = len(originalNodes)
	exp.pool.CitedRefs = len(exp.citedRefs)
	exp.pool.CitedRefs2 = len(exp.cited2Refs)
	exp.pool.CitingRefs = len(exp.citingRefs)
	exp.pool.CitingRefs2 = len(exp.citing2Refs)
	return exp
}

func (exp *expansion) recordVenueNames(node string, names ...string) {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		exp.venueNamesByNode[node] = append(exp.venueNamesByNode[node], name)
	}
}

// fetchReferences resolves the outgoing-reference lists for the given works
// in parallel. Failed lookups count as skipped and yield no references.
func (e *Engine) fetchReferences(ctx context.Context, ids []string, pool *types.PoolStats) map[string][]string {
	out := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return out
	}

	workers := e.Config.Workers
	if workers < 1 {
		workers = 1
	}
	maxPerWork := e.Config.MaxReferencesPerWork

	results := make([][]string, len(ids))
	var mu sync.Mutex
	var skipped int

	var g errgroup.Group
	g.SetLimit(workers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			refs, err := e.Source.ListReferences(ctx, id)
			if err != nil {
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			cleaned := make([]string, 0, len(refs))
			for _, rid := range refs {
				rid = strings.TrimSpace(rid)
				if rid == "" {
					continue
				}
				cleaned = append(cleaned, rid)
				if maxPerWork > 0 && len(cleaned) >= maxPerWork {
					break
				}
			}
			results[i] = cleaned
			return nil
		})
	}
	_ = g.Wait()

	pool.SkippedFetches += skipped
	for i, id := range ids {
		out[id] = results[i]
	}
	return out
}
