// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package litgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/citeguard/pkg/types"
)

const suggestionsFallbackNote = "Revision guide produced heuristically; the model call budget was exhausted or the model reply was unusable."

// defaultSectionOrder is the canonical manuscript outline used when the
// document's own structure is missing or unrecognizable.
var defaultSectionOrder = []string{
	"Introduction", "Literature Review", "Methods", "Results",
	"Discussion", "Conclusion", "Limitations", "Future Work",
}

var sectionAliases = map[string]string{
	"introduction": "Introduction", "background": "Introduction",
	"literature review": "Literature Review", "related work": "Literature Review",
	"related works": "Literature Review", "prior work": "Literature Review",
	"methods": "Methods", "method": "Methods", "methodology": "Methods",
	"materials and methods": "Methods", "experimental setup": "Methods",
	"results": "Results", "findings": "Results", "evaluation": "Results",
	"discussion": "Discussion", "conclusion": "Conclusion",
	"conclusions": "Conclusion", "summary": "Conclusion",
	"limitations": "Limitations", "future work": "Future Work",
	"future directions": "Future Work",
}

// groupSectionPrefs maps citation-graph groups onto the outline sections
// where their works most naturally land.
var groupSectionPrefs = map[string][]string{
	"key_references":        {"Introduction", "Discussion"},
	CategoryHighlyConnected: {"Literature Review", "Introduction"},
	CategoryBridge:          {"Discussion", "Literature Review"},
	CategoryCore:            {"Literature Review", "Methods"},
	CategoryCoupling:        {"Literature Review"},
	CategoryTangential:      {"Discussion", "Limitations"},
}

var overviewGroupOrder = []string{
	CategoryHighlyConnected, CategoryCore, CategoryBridge,
	CategoryTangential, CategoryCoupling,
}

// extractSectionOrder maps detected headings onto canonical outline names,
// keeping document order; unmapped manuscripts fall back to the default
// outline.
func extractSectionOrder(subs []types.Subsection) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, sub := range subs {
		title := strings.ToLower(strings.TrimSpace(sub.Title))
		title = strings.TrimLeft(title, "0123456789.) ")
		canonical, ok := sectionAliases[title]
		if !ok {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	if len(out) == 0 {
		return defaultSectionOrder
	}
	return out
}

// buildSuggestions assembles the run-wide revision guide. The model drafts
// it when enabled and affordable; otherwise the guide comes from the
// citation groups directly.
func (e *Engine) buildSuggestions(ctx context.Context, subs []types.Subsection, master masterList, rep *types.DeepReport) *types.SuggestionSet {
	if len(master.References) == 0 {
		return nil
	}
	order := extractSectionOrder(subs)

	if e.Config.EnableLLMSuggestions && e.Client != nil && e.takeCall(rep) {
		if set, ok := e.llmSuggestions(ctx, order, master); ok {
			return set
		}
		set := heuristicSuggestions(order, master)
		set.Note = suggestionsFallbackNote
		return set
	}
	set := heuristicSuggestions(order, master)
	if e.Config.EnableLLMSuggestions {
		set.Note = suggestionsFallbackNote
	}
	return set
}

type suggestionsResponse struct {
	Overview string `json:"overview"`
	Sections []struct {
		Title   string   `json:"title"`
		Bullets []string `json:"bullets"`
	} `json:"sections"`
}

func (e *Engine) llmSuggestions(ctx context.Context, order []string, master masterList) (*types.SuggestionSet, bool) {
	var refLines []string
	for _, ref := range master.References {
		seed := "suggested"
		if ref.Seed {
			seed = "in paper"
		}
		refLines = append(refLines, fmt.Sprintf("- %s (%s, year=%d): %s", ref.RID, seed, ref.Year, clipText(ref.Title, keyTitleClip)))
	}
	var groupLines []string
	for _, g := range master.CitationGroups {
		groupLines = append(groupLines, fmt.Sprintf("- %s: %s", g.Name, strings.Join(g.RIDs, ", ")))
	}

	system := "You write a short revision guide for an academic manuscript from its literature graph. Reply with strict JSON only."
	user := fmt.Sprintf(
		"Manuscript sections, in order: %s\n\nMaster references:\n%s\n\nCitation groups:\n%s\n\nReturn JSON {\"overview\": \"...\", \"sections\": [{\"title\": \"...\", \"bullets\": [\"...\"]}]}. Refer to works only by their R# ids. Use only the listed section titles.",
		strings.Join(order, ", "), strings.Join(refLines, "\n"), strings.Join(groupLines, "\n"))

	raw, err := e.Client.ChatJSON(ctx, system, user)
	if err != nil {
		return nil, false
	}
	var resp suggestionsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false
	}

	allowed := make(map[string]struct{}, len(order))
	for _, title := range order {
		allowed[title] = struct{}{}
	}
	set := &types.SuggestionSet{Overview: strings.TrimSpace(resp.Overview)}
	for _, sec := range resp.Sections {
		title := strings.TrimSpace(sec.Title)
		if _, ok := allowed[title]; !ok {
			continue
		}
		var bullets []string
		for _, b := range sec.Bullets {
			if b = strings.TrimSpace(b); b != "" {
				bullets = append(bullets, b)
			}
		}
		if len(bullets) > 0 {
			set.Sections = append(set.Sections, types.SuggestionSection{Title: title, Bullets: bullets})
		}
	}
	if set.Overview == "" && len(set.Sections) == 0 {
		return nil, false
	}
	return set, true
}

// heuristicSuggestions builds the guide straight from the citation groups:
// an overview naming the highest-priority groups, then per-section bullets
// for the groups that prefer that section.
func heuristicSuggestions(order []string, master masterList) *types.SuggestionSet {
	ridsByGroup := make(map[string][]string, len(master.CitationGroups))
	for _, g := range master.CitationGroups {
		ridsByGroup[g.Name] = g.RIDs
	}

	var overview []string
	for _, group := range overviewGroupOrder {
		rids := ridsByGroup[group]
		if len(rids) == 0 {
			continue
		}
		overview = append(overview, fmt.Sprintf("%s works to review: %s.", groupLabel(group), joinRIDs(rids, 6)))
		if len(overview) >= 3 {
			break
		}
	}

	set := &types.SuggestionSet{
		Overview:  strings.Join(overview, " "),
		Heuristic: true,
	}
	for _, section := range order {
		var bullets []string
		for group, prefs := range groupSectionPrefs {
			rids := ridsByGroup[group]
			if len(rids) == 0 {
				continue
			}
			for _, pref := range prefs {
				if pref == section {
					bullets = append(bullets, fmt.Sprintf("Consider %s here: %s.", strings.ToLower(groupLabel(group)), joinRIDs(rids, 5)))
					break
				}
			}
		}
		if len(bullets) == 0 {
			continue
		}
		sort.Strings(bullets)
		set.Sections = append(set.Sections, types.SuggestionSection{Title: section, Bullets: bullets})
	}
	return set
}

func groupLabel(group string) string {
	switch group {
	case "key_references":
		return "Key"
	case CategoryHighlyConnected:
		return "Highly connected"
	case CategoryBridge:
		return "Bridging"
	case CategoryCore:
		return "Core"
	case CategoryCoupling:
		return "Bibliographically coupled"
	case CategoryTangential:
		return "Tangentially cited"
	}
	return group
}

func joinRIDs(rids []string, limit int) string {
	if len(rids) > limit {
		rids = rids[:limit]
	}
	return strings.Join(rids, ", ")
}
