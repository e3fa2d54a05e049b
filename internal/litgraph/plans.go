// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package litgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/citeguard/pkg/types"
)

const (
	planMaxHops       = 3
	planMaxNodes      = 250
	planSectionClip   = 3500
	planMaxHeuristics = 8
)

const planBudgetNote = "Deep analysis: some section plans used a heuristic because the model call budget was exhausted."

var ridPatternRe = regexp.MustCompile(`(?i)\bR\d{1,4}\b`)

var planActionTypes = map[string]struct{}{
	"add": {}, "strengthen": {}, "justify": {}, "reconsider": {},
}

var planPriorities = map[string]struct{}{
	"high": {}, "medium": {}, "low": {},
}

// sectionContext is the per-section graph neighborhood used to build and
// validate a plan.
type sectionContext struct {
	sub       types.Subsection
	order     int
	seedRIDs  []string
	distByRID map[string]int
	nodeCount int
}

// buildSectionPlans drafts one revision plan per section. Model calls are
// spent on the sections with the most cited references first; the rest get
// heuristic plans.
func (e *Engine) buildSectionPlans(
	ctx context.Context,
	subs []types.Subsection,
	citedBySection map[string][]string,
	master masterList,
	weakAdj map[string][]string,
	nodeIDForRef func(string) string,
	rep *types.DeepReport,
) []types.SectionPlan {
	if len(subs) == 0 {
		return nil
	}

	ridByNodes := func(nodes map[string]int) map[string]int {
		out := make(map[string]int)
		for node, d := range nodes {
			rid, ok := master.ridByNode[node]
			if !ok {
				continue
			}
			if prev, seen := out[rid]; !seen || d < prev {
				out[rid] = d
			}
		}
		return out
	}

	contexts := make([]sectionContext, 0, len(subs))
	for i, sub := range subs {
		sc := sectionContext{sub: sub, order: i}
		var seedNodes []string
		seen := make(map[string]struct{})
		for _, refID := range citedBySection[sub.ID] {
			node := nodeIDForRef(refID)
			seedNodes = append(seedNodes, node)
			if rid, ok := master.ridByNode[node]; ok {
				if _, dup := seen[rid]; !dup {
					seen[rid] = struct{}{}
					sc.seedRIDs = append(sc.seedRIDs, rid)
				}
			}
		}
		sort.Strings(sc.seedRIDs)
		dist, _ := subnetworkNodesByDistance(weakAdj, seedNodes, planMaxHops, planMaxNodes)
		sc.distByRID = ridByNodes(dist)
		sc.nodeCount = len(dist)
		contexts = append(contexts, sc)
	}

	// Sections with more seeds, then bigger neighborhoods, get the model
	// calls first.
	priority := make([]int, len(contexts))
	for i := range priority {
		priority[i] = i
	}
	sort.SliceStable(priority, func(a, b int) bool {
		ca, cb := contexts[priority[a]], contexts[priority[b]]
		if len(ca.seedRIDs) != len(cb.seedRIDs) {
			return len(ca.seedRIDs) > len(cb.seedRIDs)
		}
		if ca.nodeCount != cb.nodeCount {
			return ca.nodeCount > cb.nodeCount
		}
		return ca.order < cb.order
	})

	plans := make([]types.SectionPlan, len(contexts))
	budgetHit := false
	for _, idx := range priority {
		sc := contexts[idx]
		if e.Config.EnableLLMSuggestions && e.Client != nil && len(sc.seedRIDs) > 0 {
			if e.takeCall(rep) {
				if plan, ok := e.llmSectionPlan(ctx, sc, master); ok {
					plans[idx] = plan
					continue
				}
			} else {
				budgetHit = true
			}
		}
		plans[idx] = heuristicSectionPlan(sc, master)
	}
	if budgetHit {
		rep.Limitations = append(rep.Limitations, planBudgetNote)
	}
	return plans
}

type planImprovement struct {
	Action     string `json:"action"`
	ActionType string `json:"action_type"`
	Why        string `json:"why"`
	Where      string `json:"where"`
	Priority   string `json:"priority"`
}

type planIntegration struct {
	RID      string `json:"rid"`
	Why      string `json:"why"`
	Where    string `json:"where"`
	Example  string `json:"example"`
	Priority string `json:"priority"`
}

type planResponse struct {
	Summary       string            `json:"summary"`
	Improvements  []planImprovement `json:"improvements"`
	Integrations  []planIntegration `json:"integrations"`
	OpenQuestions []string          `json:"open_questions"`
}

func (e *Engine) llmSectionPlan(ctx context.Context, sc sectionContext, master masterList) (types.SectionPlan, bool) {
	seedSet := make(map[string]struct{}, len(sc.seedRIDs))
	for _, rid := range sc.seedRIDs {
		seedSet[rid] = struct{}{}
	}
	// Integrations may only point at uncited works reachable from this
	// section's citations.
	allowedIntegrations := make(map[string]struct{})
	for rid, d := range sc.distByRID {
		if d > 0 {
			if _, cited := seedSet[rid]; !cited {
				allowedIntegrations[rid] = struct{}{}
			}
		}
	}

	lines := describePlanRefs(sc, master)
	system := "You help revise one section of an academic manuscript using its citation neighborhood. Reply with strict JSON only."
	user := fmt.Sprintf(
		"Section %q:\n%s\n\nReferences (dist 0 = cited in this section):\n%s\n\nReturn JSON {\"summary\": \"...\", \"improvements\": [{\"action\": \"...\", \"action_type\": \"add|strengthen|justify|reconsider\", \"why\": \"...\", \"where\": \"...\", \"priority\": \"high|medium|low\"}], \"integrations\": [{\"rid\": \"R#\", \"why\": \"...\", \"where\": \"...\", \"example\": \"...\", \"priority\": \"high|medium|low\"}], \"open_questions\": [\"...\"]}. Integrations may only use uncited references with dist > 0.",
		sc.sub.Title, clipText(sc.sub.Text, planSectionClip), strings.Join(lines, "\n"))

	raw, err := e.Client.ChatJSON(ctx, system, user)
	if err != nil {
		return types.SectionPlan{}, false
	}
	var resp planResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return types.SectionPlan{}, false
	}

	plan := types.SectionPlan{
		SubsectionID: sc.sub.ID,
		Summary:      strings.TrimSpace(resp.Summary),
	}
	for _, imp := range resp.Improvements {
		action := strings.TrimSpace(imp.Action)
		if action == "" || strings.TrimSpace(imp.Why) == "" {
			continue
		}
		actionType := strings.ToLower(strings.TrimSpace(imp.ActionType))
		if _, ok := planActionTypes[actionType]; !ok {
			actionType = "strengthen"
		}
		text := fmt.Sprintf("[%s] %s", actionType, action)
		if where := strings.TrimSpace(imp.Where); where != "" {
			text += " (" + where + ")"
		}
		plan.Improvements = append(plan.Improvements, text)
	}
	for _, integ := range resp.Integrations {
		rid := normalizeRID(integ.RID)
		if rid == "" {
			continue
		}
		if _, ok := allowedIntegrations[rid]; !ok {
			continue
		}
		why := strings.TrimSpace(integ.Why)
		if why == "" {
			continue
		}
		rationale := why
		if example := strings.TrimSpace(integ.Example); example != "" {
			rationale += " Example: " + example
		}
		plan.Integrations = append(plan.Integrations, types.ReferenceIntegration{RID: rid, Rationale: rationale})
	}
	for _, q := range resp.OpenQuestions {
		if q = strings.TrimSpace(q); q != "" {
			plan.OpenQuestions = append(plan.OpenQuestions, q)
		}
	}
	if plan.Summary == "" && len(plan.Improvements) == 0 && len(plan.Integrations) == 0 {
		return types.SectionPlan{}, false
	}
	return plan, true
}

// describePlanRefs lists the section's citation neighborhood for the
// prompt: cited works first, then in-paper neighbors, then new works, the
// neighbors ordered by distance, recency, and display id.
func describePlanRefs(sc sectionContext, master masterList) []string {
	var seeds, inPaper, fresh []string
	for rid := range sc.distByRID {
		switch {
		case sc.distByRID[rid] == 0:
			seeds = append(seeds, rid)
		case master.metaByRID[rid] != nil && master.metaByRID[rid].inPaper:
			inPaper = append(inPaper, rid)
		default:
			fresh = append(fresh, rid)
		}
	}
	sort.Strings(seeds)
	byDistYear := func(rids []string) {
		sort.Slice(rids, func(i, j int) bool {
			di, dj := sc.distByRID[rids[i]], sc.distByRID[rids[j]]
			if di != dj {
				return di < dj
			}
			var yi, yj int
			if m := master.metaByRID[rids[i]]; m != nil {
				yi = m.year
			}
			if m := master.metaByRID[rids[j]]; m != nil {
				yj = m.year
			}
			if yi != yj {
				return yi > yj
			}
			return rids[i] < rids[j]
		})
	}
	byDistYear(inPaper)
	byDistYear(fresh)

	var lines []string
	describe := func(rid string) {
		meta := master.metaByRID[rid]
		if meta == nil {
			return
		}
		lines = append(lines, fmt.Sprintf("- %s | dist=%d | in_paper=%t | year=%d | %s",
			rid, sc.distByRID[rid], meta.inPaper, meta.year, clipText(meta.title, keyTitleClip)))
	}
	for _, rid := range seeds {
		describe(rid)
	}
	for _, rid := range inPaper {
		describe(rid)
	}
	for _, rid := range fresh {
		describe(rid)
	}
	return lines
}

// heuristicSectionPlan is the not-enough-budget fallback: generic
// improvements plus nearby uncited works as integration candidates,
// in-paper neighbors first.
func heuristicSectionPlan(sc sectionContext, master masterList) types.SectionPlan {
	plan := types.SectionPlan{
		SubsectionID: sc.sub.ID,
		Summary:      fmt.Sprintf("Cites %d reference(s); %d related work(s) sit within %d hops in the literature graph.", len(sc.seedRIDs), len(sc.distByRID)-len(sc.seedRIDs), planMaxHops),
		Improvements: []string{
			"[strengthen] Check that each claim in this section cites its strongest available support.",
			"[justify] Make sure methodological choices mentioned here point at the works they come from.",
		},
		Heuristic: true,
	}

	seedSet := make(map[string]struct{}, len(sc.seedRIDs))
	for _, rid := range sc.seedRIDs {
		seedSet[rid] = struct{}{}
	}
	var candidates []string
	for rid, d := range sc.distByRID {
		if d == 0 {
			continue
		}
		if _, cited := seedSet[rid]; cited {
			continue
		}
		candidates = append(candidates, rid)
	}
	sort.Slice(candidates, func(i, j int) bool {
		mi, mj := master.metaByRID[candidates[i]], master.metaByRID[candidates[j]]
		pi, pj := mi != nil && mi.inPaper, mj != nil && mj.inPaper
		if pi != pj {
			return pi
		}
		di, dj := sc.distByRID[candidates[i]], sc.distByRID[candidates[j]]
		if di != dj {
			return di < dj
		}
		return candidates[i] < candidates[j]
	})
	if len(candidates) > planMaxHeuristics {
		candidates = candidates[:planMaxHeuristics]
	}
	for _, rid := range candidates {
		plan.Integrations = append(plan.Integrations, types.ReferenceIntegration{
			RID:       rid,
			Rationale: fmt.Sprintf("Close to this section's citations in the literature graph (%d hop(s) away); consider citing it alongside related claims.", sc.distByRID[rid]),
		})
	}
	return plan
}

func normalizeRID(raw string) string {
	raw = strings.Trim(strings.TrimSpace(raw), "[]()")
	if m := ridPatternRe.FindString(raw); m != "" {
		return strings.ToUpper(m)
	}
	return ""
}
