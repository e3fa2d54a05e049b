// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package litgraph builds and scores a multi-hop literature graph around a
// manuscript's verified references, then derives reading lists, structure
// aware integration plans, and revision suggestions from it.
package litgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/citeguard/internal/ai"
	"github.com/pdiddy/citeguard/internal/datasets"
	"github.com/pdiddy/citeguard/internal/normalize"
	"github.com/pdiddy/citeguard/internal/sources"
	"github.com/pdiddy/citeguard/pkg/types"
)

// Skip reasons surfaced in the report when the graph stage does not run.
const (
	skipDisabled     = "Deep analysis disabled."
	skipNoVerified   = "No verified references available for deep analysis."
	skipTooManyRefs  = "Too many verified references for deep analysis in this configuration."
	keySelectionNote = "Deep analysis: key-reference selection fell back to a heuristic due to LLM output issues."
)

const (
	keyTitleClip   = 140
	keyExampleClip = 220
	keyExcerptClip = 4000
)

// Engine runs the literature-graph stage. All model calls inside the engine
// are soft: on budget exhaustion or invalid output it falls back to
// heuristics and records a limitation instead of failing the run.
type Engine struct {
	Source   sources.GraphSource
	Client   ai.Client
	Budget   *ai.Budget
	Config   types.GraphConfig
	Excluded datasets.ExcludedSources
	Log      *zap.Logger
}

// citationStats aggregates in-text usage per bibliography entry.
type citationStats struct {
	count    int
	contexts []string
}

// Run executes the full stage machine and always returns a report; the
// error return is reserved for context cancellation.
func (e *Engine) Run(
	ctx context.Context,
	references []types.ReferenceEntry,
	resolved map[string]*types.ResolvedWork,
	matches []types.CitationMatch,
	paperText string,
	progress func(message string, fraction float64),
) (*types.DeepReport, error) {
	if progress == nil {
		progress = func(string, float64) {}
	}
	log := e.Log
	if log == nil {
		log = zap.NewNop()
	}
	rep := &types.DeepReport{Stage: types.StageIdle}

	if !e.Config.Enable {
		rep.Stage = types.StageSkipped
		rep.SkipReason = skipDisabled
		return rep, nil
	}

	rep.Stage = types.StageVerifyingSeeds
	progress("verifying seed references", 0.02)

	stats := buildCitationStats(matches)
	verified := e.verifiedReferences(references, resolved)
	if len(verified) == 0 {
		rep.Stage = types.StageSkipped
		rep.SkipReason = skipNoVerified
		return rep, nil
	}
	if e.Config.MaxOriginalRefs > 0 && len(verified) > e.Config.MaxOriginalRefs {
		rep.Stage = types.StageSkipped
		rep.SkipReason = skipTooManyRefs
		return rep, nil
	}
	for _, ref := range verified {
		rep.SeedIDs = append(rep.SeedIDs, ref.RefID)
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	rep.Stage = types.StageSelectingKeys
	progress("selecting key references", 0.08)
	keyRefIDs := e.selectKeyReferences(ctx, verified, resolved, stats, paperText, rep)
	rep.KeyRefIDs = keyRefIDs
	log.Debug("key references selected",
		zap.Int("verified", len(verified)), zap.Int("key", len(keyRefIDs)))

	rep.Stage = types.StageExpandingGraph
	progress("expanding the literature graph", 0.18)

	nodeIDForRef := func(refID string) string {
		return nodeIDForOriginal(refID, resolved[refID])
	}
	originalNodes := make(map[string]struct{}, len(verified))
	originalRefIDByNode := make(map[string]string, len(verified))
	for _, ref := range verified {
		nid := nodeIDForRef(ref.RefID)
		originalNodes[nid] = struct{}{}
		originalRefIDByNode[nid] = ref.RefID
	}
	keyNodes := make(map[string]struct{}, len(keyRefIDs))
	var keyOpenAlexIDs []string
	for _, rid := range keyRefIDs {
		nid := nodeIDForRef(rid)
		keyNodes[nid] = struct{}{}
		if isOpenAlexID(nid) {
			keyOpenAlexIDs = append(keyOpenAlexIDs, nid)
		}
	}

	exp := e.expandGraph(ctx, keyOpenAlexIDs, originalNodes)
	rep.Pool = exp.pool
	rep.Pool.KeyRefs = len(keyRefIDs)
	rep.Limitations = append(rep.Limitations, exp.limitations...)
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	// Retroactive venue exclusion runs before any scoring so dropped
	// nodes never influence centrality or categories. Seed nodes stay;
	// the master list filters them later.
	purged := e.purgeExcluded(exp, originalNodes)

	rep.Stage = types.StageScoring
	progress("scoring the graph", 0.50)
	citeCounts := make(map[string]int, len(stats))
	for refID, st := range stats {
		citeCounts[refID] = st.count
	}
	m := computeMetrics(exp.graph, keyNodes, originalNodes, originalRefIDByNode, citeCounts)
	m.Network.Excluded = purged
	rep.Network = m.Network
	for _, name := range []string{CategoryHighlyConnected, CategoryBridge, CategoryCore, CategoryCoupling, CategoryTangential} {
		rep.Categories = append(rep.Categories, types.Category{Name: name, NodeIDs: m.Categories[name]})
	}
	log.Debug("graph scored",
		zap.Int("nodes", m.Network.Nodes), zap.Int("edges", m.Network.Edges),
		zap.Int("components", m.Network.Components), zap.Int("excluded", purged))

	rep.Stage = types.StageBuildingRefList
	progress("building the master reference list", 0.62)
	master := e.buildMasterList(ctx, m, keyRefIDs, verified, resolved, nodeIDForRef)
	rep.References = master.References
	rep.Groups = master.Groups
	rep.CitationGroups = master.CitationGroups

	rep.Stage = types.StageDrafting
	progress("drafting suggestions", 0.74)
	subs := e.documentStructure(ctx, paperText, rep)
	rep.Structure = subs

	citedBysection := citedRefIDsBySubsection(subs, references)
	weakAdj := buildWeakAdjacency(exp.graph)
	rep.Plans = e.buildSectionPlans(ctx, subs, citedBysection, master, weakAdj, nodeIDForRef, rep)
	progress("drafting suggestions", 0.84)
	rep.Suggestions = e.buildSuggestions(ctx, subs, master, rep)

	progress("deep analysis complete", 1.0)
	rep.Stage = types.StageComplete
	return rep, ctx.Err()
}

// buildCitationStats tallies in-text use per matched reference, keeping
// trimmed sentence contexts for prompting.
func buildCitationStats(matches []types.CitationMatch) map[string]*citationStats {
	out := make(map[string]*citationStats)
	for _, mt := range matches {
		if mt.Status != types.MatchMatched || mt.Ref == nil {
			continue
		}
		st := out[mt.Ref.RefID]
		if st == nil {
			st = &citationStats{}
			out[mt.Ref.RefID] = st
		}
		st.count++
		if ctxText := strings.TrimSpace(mt.Citation.Context); ctxText != "" && len(st.contexts) < 3 {
			st.contexts = append(st.contexts, ctxText)
		}
	}
	return out
}

// verifiedReferences keeps entries whose resolution cleared the confidence
// floor, preserving bibliography order.
func (e *Engine) verifiedReferences(references []types.ReferenceEntry, resolved map[string]*types.ResolvedWork) []types.ReferenceEntry {
	var out []types.ReferenceEntry
	for _, ref := range references {
		w := resolved[ref.RefID]
		if w == nil || w.Source == "" {
			continue
		}
		if w.Confidence < e.Config.MinConfidence {
			continue
		}
		out = append(out, ref)
	}
	return out
}

// nodeIDForOriginal maps a bibliography entry onto its graph node id:
// OpenAlex id when resolved, then a normalized DOI, then a local ref id.
func nodeIDForOriginal(refID string, w *types.ResolvedWork) string {
	if w != nil {
		if w.OpenAlexID != "" {
			return w.OpenAlexID
		}
		if doi := normalize.DOI(w.DOI); doi != "" {
			return "doi:" + doi
		}
	}
	return "ref:" + refID
}

type keySelectionResponse struct {
	KeyRefIDs []string `json:"key_ref_ids"`
}

// selectKeyReferences picks ceil(n/2) seeds, asking the model first when
// enabled and falling back to a most-cited-then-newest heuristic.
func (e *Engine) selectKeyReferences(
	ctx context.Context,
	verified []types.ReferenceEntry,
	resolved map[string]*types.ResolvedWork,
	stats map[string]*citationStats,
	paperText string,
	rep *types.DeepReport,
) []string {
	target := int(math.Ceil(float64(len(verified)) / 2))
	if target < 1 {
		target = 1
	}
	if target >= len(verified) {
		out := make([]string, 0, len(verified))
		for _, ref := range verified {
			out = append(out, ref.RefID)
		}
		return out
	}

	if e.Config.EnableLLMKeySelection && e.Client != nil {
		if ids, ok := e.llmKeySelection(ctx, verified, resolved, stats, paperText, target, rep); ok {
			return ids
		}
		rep.Limitations = append(rep.Limitations, keySelectionNote)
	}
	return heuristicKeySelection(verified, resolved, stats, target)
}

func (e *Engine) llmKeySelection(
	ctx context.Context,
	verified []types.ReferenceEntry,
	resolved map[string]*types.ResolvedWork,
	stats map[string]*citationStats,
	paperText string,
	target int,
	rep *types.DeepReport,
) ([]string, bool) {
	if !e.takeCall(rep) {
		return nil, false
	}

	allowed := make(map[string]struct{}, len(verified))
	var lines []string
	for _, ref := range verified {
		allowed[ref.RefID] = struct{}{}
		w := resolved[ref.RefID]
		year := "NA"
		title := ""
		if w != nil {
			if w.Year > 0 {
				year = fmt.Sprintf("%d", w.Year)
			}
			title = clipText(w.Title, keyTitleClip)
		}
		count := 0
		example := ""
		if st := stats[ref.RefID]; st != nil {
			count = st.count
			if len(st.contexts) > 0 {
				example = clipText(st.contexts[0], keyExampleClip)
			}
		}
		lines = append(lines, fmt.Sprintf("- ref_id=%s | cites_in_paper=%d | year=%s | title=%s | example_use=%s",
			ref.RefID, count, year, title, example))
	}

	system := "You identify the references most central to a manuscript's argument. Reply with strict JSON only."
	user := fmt.Sprintf(
		"Manuscript excerpt:\n%s\n\nVerified references:\n%s\n\nPick exactly %d key references. Return JSON {\"key_ref_ids\": [\"...\"]} using the ref_id values above, no other text.",
		clipText(paperText, keyExcerptClip), strings.Join(lines, "\n"), target)

	raw, err := e.Client.ChatJSON(ctx, system, user)
	if err != nil {
		return nil, false
	}
	var resp keySelectionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false
	}

	seen := make(map[string]struct{}, len(resp.KeyRefIDs))
	var cleaned []string
	for _, id := range resp.KeyRefIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := allowed[id]; !ok {
			return nil, false
		}
		if _, dup := seen[id]; dup {
			return nil, false
		}
		seen[id] = struct{}{}
		cleaned = append(cleaned, id)
	}
	if len(cleaned) != target {
		return nil, false
	}
	return cleaned, true
}

// heuristicKeySelection ranks by in-text citation count, then publication
// year, then ref id, all descending.
func heuristicKeySelection(
	verified []types.ReferenceEntry,
	resolved map[string]*types.ResolvedWork,
	stats map[string]*citationStats,
	target int,
) []string {
	type ranked struct {
		refID string
		count int
		year  int
	}
	items := make([]ranked, 0, len(verified))
	for _, ref := range verified {
		it := ranked{refID: ref.RefID}
		if st := stats[ref.RefID]; st != nil {
			it.count = st.count
		}
		if w := resolved[ref.RefID]; w != nil {
			it.year = w.Year
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].count != items[j].count {
			return items[i].count > items[j].count
		}
		if items[i].year != items[j].year {
			return items[i].year > items[j].year
		}
		return items[i].refID > items[j].refID
	})
	out := make([]string, 0, target)
	for _, it := range items[:target] {
		out = append(out, it.refID)
	}
	return out
}

// purgeExcluded drops pool nodes whose only known venues are excluded.
// Seed nodes are never purged from the graph.
func (e *Engine) purgeExcluded(exp *expansion, originalNodes map[string]struct{}) int {
	if len(e.Excluded) == 0 {
		return 0
	}
	drop := make(map[string]struct{})
	for node, names := range exp.venueNamesByNode {
		if _, seed := originalNodes[node]; seed {
			continue
		}
		for _, name := range names {
			if e.Excluded.Matches(name) {
				drop[node] = struct{}{}
				break
			}
		}
	}
	return exp.graph.purge(drop)
}

// takeCall draws one call from the shared model budget, counting it
// against the report. A refusal is not fatal here.
func (e *Engine) takeCall(rep *types.DeepReport) bool {
	if e.Budget == nil {
		return e.Client != nil
	}
	if err := e.Budget.Take(); err != nil {
		return false
	}
	rep.LLMCallsUsed++
	return true
}
