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

const structureMaxCandidates = 80

var sectionKeywords = []string{
	"introduction", "background", "literature", "related work", "methods",
	"methodology", "materials", "results", "findings", "discussion",
	"conclusion", "limitations", "future work", "references", "abstract",
}

type headingCandidate struct {
	line  int
	text  string
	score int
}

// scoreHeadingCandidates finds likely heading lines and scores them by
// formatting cues: numbering, surrounding blank lines, capitalization, and
// familiar section names.
func scoreHeadingCandidates(lines []string) []headingCandidate {
	blank := func(i int) bool {
		return i < 0 || i >= len(lines) || strings.TrimSpace(lines[i]) == ""
	}
	score := func(i int, line string) int {
		s := 0
		if numberedHeadingRe.MatchString(line) {
			s += 4
		}
		switch {
		case blank(i-1) && blank(i+1):
			s += 3
		case blank(i-1) || blank(i+1):
			s++
		}
		if line == strings.ToUpper(line) && len(line) >= 5 {
			s += 2
		}
		lower := strings.ToLower(line)
		for _, kw := range sectionKeywords {
			if strings.Contains(lower, kw) {
				s++
				break
			}
		}
		return s
	}

	collect := func(minScore int) []headingCandidate {
		var out []headingCandidate
		for i, raw := range lines {
			line := strings.TrimSpace(raw)
			if line == "" || !looksLikeHeading(line) {
				continue
			}
			if s := score(i, line); s >= minScore {
				out = append(out, headingCandidate{line: i, text: line, score: s})
			}
		}
		return out
	}

	cands := collect(3)
	if len(cands) < 6 {
		cands = collect(1)
	}

	best := make(map[int]headingCandidate, len(cands))
	for _, c := range cands {
		if prev, ok := best[c.line]; !ok || c.score > prev.score {
			best[c.line] = c
		}
	}
	out := make([]headingCandidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].line < out[j].line })
	if len(out) > structureMaxCandidates {
		sort.Slice(out, func(i, j int) bool {
			if out[i].score != out[j].score {
				return out[i].score > out[j].score
			}
			return out[i].line < out[j].line
		})
		out = out[:structureMaxCandidates]
		sort.Slice(out, func(i, j int) bool { return out[i].line < out[j].line })
	}
	return out
}

type structureHeading struct {
	Line  int    `json:"line"`
	Title string `json:"title"`
	Level int    `json:"level"`
}

type structureResponse struct {
	Headings []structureHeading `json:"headings"`
	Notes    string             `json:"notes"`
}

// documentStructure produces the manuscript's top-level sections, asking
// the model to pick headings from heuristic candidates when suggestions
// are enabled and falling back to pure heuristics otherwise.
func (e *Engine) documentStructure(ctx context.Context, paperText string, rep *types.DeepReport) []types.Subsection {
	heuristic := collapseToTopLevel(extractSubsections(paperText))
	if !e.Config.EnableLLMSuggestions || e.Client == nil {
		return heuristic
	}

	lines := strings.Split(paperText, "\n")
	cands := scoreHeadingCandidates(lines)
	if len(cands) == 0 {
		return heuristic
	}
	if !e.takeCall(rep) {
		return heuristic
	}

	var listed []string
	for _, c := range cands {
		listed = append(listed, fmt.Sprintf("  line=%d: %s", c.line, c.text))
	}
	system := "You recover document structure from heading candidates. Reply with strict JSON only."
	user := fmt.Sprintf(
		"Candidate heading lines from a manuscript, in order:\n%s\n\nSelect the real section headings. Return JSON {\"headings\": [{\"line\": <int>, \"title\": \"...\", \"level\": <int>}], \"notes\": \"\"}. Use only the listed line numbers, in increasing order.",
		strings.Join(listed, "\n"))

	raw, err := e.Client.ChatJSON(ctx, system, user)
	if err != nil {
		return heuristic
	}
	var resp structureResponse
	if err := json.Unmarshal(raw, &resp); err != nil || len(resp.Headings) == 0 {
		return heuristic
	}

	textByLine := make(map[int]string, len(cands))
	for _, c := range cands {
		textByLine[c.line] = c.text
	}
	var accepted []structureHeading
	prev := -1
	for _, h := range resp.Headings {
		text, ok := textByLine[h.Line]
		if !ok || h.Line <= prev {
			return heuristic
		}
		prev = h.Line
		// The candidate's exact text wins; model rewrites are ignored.
		h.Title = text
		if h.Level < 1 {
			h.Level = 1
		}
		if h.Level > 6 {
			h.Level = 6
		}
		accepted = append(accepted, h)
	}

	var subs []types.Subsection
	sectionText := func(from, to int) string {
		if from > to {
			return ""
		}
		return strings.TrimSpace(strings.Join(lines[from:to], "\n"))
	}
	if preamble := sectionText(0, accepted[0].Line); preamble != "" {
		subs = append(subs, types.Subsection{ID: "S0", Title: "(opening)", Level: 1, Text: preamble})
	}
	for i, h := range accepted {
		end := len(lines)
		if i+1 < len(accepted) {
			end = accepted[i+1].Line
		}
		subs = append(subs, types.Subsection{
			ID:    fmt.Sprintf("S%d", len(subs)),
			Title: h.Title,
			Level: h.Level,
			Text:  sectionText(h.Line+1, end),
		})
	}
	return collapseToTopLevel(subs)
}
