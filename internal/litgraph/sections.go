// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package litgraph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/citeguard/internal/match"
	"github.com/pdiddy/citeguard/internal/parse"
	"github.com/pdiddy/citeguard/pkg/types"
)

var (
	numberedHeadingRe = regexp.MustCompile(`^\s*(\d+(?:\.\d+)*)[.)]?\s+(\S.*)$`)
	urlishRe          = regexp.MustCompile(`(?i)https?://|www\.|doi\.org`)
)

// looksLikeHeading filters heading candidates: short standalone lines
// without sentence punctuation, links, or citation brackets.
func looksLikeHeading(line string) bool {
	line = strings.TrimSpace(line)
	if len(line) < 3 || len(line) > 90 {
		return false
	}
	if strings.HasSuffix(line, ".") {
		return false
	}
	if urlishRe.MatchString(line) {
		return false
	}
	if strings.ContainsAny(line, "[]()") {
		return false
	}
	if strings.Count(line, ",") >= 2 {
		return false
	}
	if len(strings.Fields(line)) > 12 {
		return false
	}
	return true
}

// headingLevel derives nesting depth from a numbering prefix; unnumbered
// headings count as level one.
func headingLevel(line string) int {
	if m := numberedHeadingRe.FindStringSubmatch(line); m != nil {
		return strings.Count(m[1], ".") + 1
	}
	return 1
}

// extractSubsections splits the manuscript on heading-looking lines. Text
// before the first heading becomes an "(opening)" preamble. Headings with
// no body before the next heading are dropped.
func extractSubsections(text string) []types.Subsection {
	lines := strings.Split(text, "\n")

	type heading struct {
		line  int
		title string
		level int
	}
	var headings []heading
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		numbered := numberedHeadingRe.MatchString(line)
		allCaps := line == strings.ToUpper(line) && len(line) >= 5 && strings.ContainsAny(line, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
		if !numbered && !allCaps {
			continue
		}
		if !looksLikeHeading(line) {
			continue
		}
		// A heading immediately followed by another heading has no body.
		if n := len(headings); n > 0 && i-headings[n-1].line <= 1 {
			headings = headings[:n-1]
		}
		headings = append(headings, heading{line: i, title: line, level: headingLevel(line)})
	}

	var subs []types.Subsection
	sectionText := func(from, to int) string {
		return strings.TrimSpace(strings.Join(lines[from:to], "\n"))
	}
	if len(headings) == 0 {
		if body := strings.TrimSpace(text); body != "" {
			subs = append(subs, types.Subsection{ID: "S0", Title: "(opening)", Level: 1, Text: body})
		}
		return subs
	}
	if preamble := sectionText(0, headings[0].line); preamble != "" {
		subs = append(subs, types.Subsection{ID: "S0", Title: "(opening)", Level: 1, Text: preamble})
	}
	for i, h := range headings {
		end := len(lines)
		if i+1 < len(headings) {
			end = headings[i+1].line
		}
		subs = append(subs, types.Subsection{
			ID:    fmt.Sprintf("S%d", len(subs)),
			Title: h.title,
			Level: h.level,
			Text:  sectionText(h.line+1, end),
		})
	}
	return subs
}

// collapseToTopLevel merges nested subsections into their closest
// top-level ancestor, where top level is the minimum level present outside
// the preamble.
func collapseToTopLevel(subs []types.Subsection) []types.Subsection {
	minLevel := 0
	for _, s := range subs {
		if s.Title == "(opening)" {
			continue
		}
		if minLevel == 0 || s.Level < minLevel {
			minLevel = s.Level
		}
	}
	if minLevel == 0 {
		return subs
	}

	var out []types.Subsection
	for _, s := range subs {
		if s.Title == "(opening)" || s.Level <= minLevel || len(out) == 0 {
			out = append(out, s)
			continue
		}
		last := &out[len(out)-1]
		last.Text = strings.TrimSpace(last.Text + "\n\n" + s.Title + "\n" + s.Text)
	}
	for i := range out {
		out[i].ID = fmt.Sprintf("S%d", i)
		if out[i].Title != "(opening)" {
			out[i].Level = 1
		}
	}
	return out
}

// citedRefIDsBySubsection matches each subsection's text independently
// against the bibliography and returns the matched ref ids per subsection.
func citedRefIDsBySubsection(subs []types.Subsection, references []types.ReferenceEntry) map[string][]string {
	out := make(map[string][]string, len(subs))
	for _, sub := range subs {
		citations := parse.SplitMultiCitations(parse.ParseCitations(sub.Text))
		seen := make(map[string]struct{})
		var ids []string
		for _, mt := range match.Match(citations, references) {
			if mt.Status != types.MatchMatched || mt.Ref == nil {
				continue
			}
			if _, dup := seen[mt.Ref.RefID]; dup {
				continue
			}
			seen[mt.Ref.RefID] = struct{}{}
			ids = append(ids, mt.Ref.RefID)
		}
		sort.Strings(ids)
		out[sub.ID] = ids
	}
	return out
}

// buildWeakAdjacency flattens the directed graph into undirected neighbor
// lists for distance queries.
func buildWeakAdjacency(g *litGraph) map[string][]string {
	adj := make(map[string]map[string]struct{}, len(g.nodes))
	for id := range g.nodes {
		adj[id] = make(map[string]struct{})
	}
	for _, e := range g.edges {
		if _, ok := adj[e.Src]; !ok {
			continue
		}
		if _, ok := adj[e.Dst]; !ok {
			continue
		}
		adj[e.Src][e.Dst] = struct{}{}
		adj[e.Dst][e.Src] = struct{}{}
	}
	out := make(map[string][]string, len(adj))
	for id, nbrs := range adj {
		out[id] = sortedKeys(nbrs)
	}
	return out
}

// subnetworkNodesByDistance walks at most maxHops out from the seeds and
// returns distances for up to maxNodes nodes, reporting whether the node
// cap cut the walk short.
func subnetworkNodesByDistance(adj map[string][]string, seeds []string, maxHops, maxNodes int) (map[string]int, bool) {
	dist := make(map[string]int)
	var queue []string
	for _, s := range seeds {
		if _, ok := adj[s]; !ok {
			continue
		}
		if _, ok := dist[s]; ok {
			continue
		}
		dist[s] = 0
		queue = append(queue, s)
	}
	hit := false
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if dist[cur] >= maxHops {
			continue
		}
		for _, nb := range adj[cur] {
			if _, ok := dist[nb]; ok {
				continue
			}
			if maxNodes > 0 && len(dist) >= maxNodes {
				hit = true
				queue = nil
				break
			}
			dist[nb] = dist[cur] + 1
			queue = append(queue, nb)
		}
	}
	return dist, hit
}
