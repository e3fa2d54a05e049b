// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/citeguard/pkg/types"
)

// Citation regex patterns.
var (
	// numericCitRe matches bracketed numeric citations, including comma
	// lists and ranges: [1], [2,4], [3-5], [1, 3-5].
	numericCitRe = regexp.MustCompile(`\[(\s*\d+(?:\s*[-–]\s*\d+)?(?:\s*,\s*\d+(?:\s*[-–]\s*\d+)?)*)\s*\]`)

	// narrativeAYRe matches narrative author-year citations like
	// "Smith (2020)" or "Smith et al. (2020a)".
	narrativeAYRe = regexp.MustCompile(`\b([A-Z][A-Za-z'’\-]+)(?:\s+et\s+al\.)?\s*\(\s*((?:19|20)\d{2}[a-z]?)\s*\)`)

	// parenAYContainerRe grabs a parenthetical that contains a year;
	// parenAYItemRe then pulls each "Author, 2020" item out of it.
	parenAYContainerRe = regexp.MustCompile(`\(([^)]*\b(?:19|20)\d{2}[a-z]?[^)]*)\)`)
	parenAYItemRe      = regexp.MustCompile(`\b([A-Z][A-Za-z'’\-]+)(?:\s+et\s+al\.)?(?:\s*(?:&|and)\s*[A-Z][A-Za-z'’\-]+)?\s*,\s*((?:19|20)\d{2}[a-z]?)`)

	ayYearRe    = regexp.MustCompile(`(?i)\b(19|20)\d{2}[a-z]?\b`)
	ayAuthorRe  = regexp.MustCompile(`[A-Za-z][A-Za-z'’\-]+`)
	ayLeadingRe = regexp.MustCompile(`(?i)^(see also|see|cf\.|cf|e\.g\.|eg)\s+`)
	aySplitRe   = regexp.MustCompile(`\s*;\s*`)
)

const (
	// maxContextChars bounds the enclosing-sentence excerpt.
	maxContextChars = 600

	// maxRangeSpan guards numeric range expansion against typos like
	// "[3-500]".
	maxRangeSpan = 200
)

// ParseCitations scans body text for in-text citations and returns one
// CitationInstance per cited work. Multi-citation markers ("[1,3-5]",
// "(Smith, 2020; Jones, 2021)") are expanded into independent instances
// sharing one context span.
func ParseCitations(mainText string) []types.CitationInstance {
	text := mainText
	var instances []types.CitationInstance

	for _, m := range numericCitRe.FindAllStringSubmatchIndex(text, -1) {
		raw := text[m[0]:m[1]]
		body := text[m[2]:m[3]]
		context := sentenceContext(text, m[0], m[1])
		for _, n := range ExpandNumericBody(body) {
			instances = append(instances, types.CitationInstance{
				Kind:    types.CitationNumeric,
				Raw:     raw,
				Locator: strconv.Itoa(n),
				Context: context,
			})
		}
	}

	for _, m := range narrativeAYRe.FindAllStringSubmatchIndex(text, -1) {
		author := strings.ToLower(text[m[2]:m[3]])
		year := strings.ToLower(text[m[4]:m[5]])
		instances = append(instances, types.CitationInstance{
			Kind:    types.CitationAuthorYear,
			Raw:     text[m[0]:m[1]],
			Locator: author + "-" + year,
			Context: sentenceContext(text, m[0], m[1]),
		})
	}

	for _, container := range parenAYContainerRe.FindAllStringSubmatchIndex(text, -1) {
		body := text[container[2]:container[3]]
		context := sentenceContext(text, container[0], container[1])
		for _, m := range parenAYItemRe.FindAllStringSubmatch(body, -1) {
			instances = append(instances, types.CitationInstance{
				Kind:    types.CitationAuthorYear,
				Raw:     text[container[0]:container[1]],
				Locator: strings.ToLower(m[1]) + "-" + strings.ToLower(m[2]),
				Context: context,
			})
		}
	}

	return instances
}

// SplitMultiCitations expands any instance whose raw text still encodes
// several citations. Regex extraction already splits; this pass covers
// AI-fallback output, which may return one instance per marker.
func SplitMultiCitations(citations []types.CitationInstance) []types.CitationInstance {
	var out []types.CitationInstance
	for _, cit := range citations {
		switch cit.Kind {
		case types.CitationNumeric:
			out = append(out, splitNumericCitation(cit)...)
		case types.CitationAuthorYear:
			out = append(out, splitAuthorYearCitation(cit)...)
		default:
			out = append(out, cit)
		}
	}
	return out
}

func splitNumericCitation(cit types.CitationInstance) []types.CitationInstance {
	raw := strings.TrimSpace(cit.Raw)
	if raw == "" {
		return []types.CitationInstance{cit}
	}
	body := stripWrapper(raw)
	if !strings.ContainsAny(body, ",-–;") {
		return []types.CitationInstance{cit}
	}
	numbers := ExpandNumericBody(body)
	if len(numbers) <= 1 {
		return []types.CitationInstance{cit}
	}
	out := make([]types.CitationInstance, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, types.CitationInstance{
			Kind:    types.CitationNumeric,
			Raw:     "[" + strconv.Itoa(n) + "]",
			Locator: strconv.Itoa(n),
			Context: cit.Context,
		})
	}
	return out
}

func splitAuthorYearCitation(cit types.CitationInstance) []types.CitationInstance {
	raw := strings.TrimSpace(cit.Raw)
	if raw == "" {
		return []types.CitationInstance{cit}
	}
	yearHits := ayYearRe.FindAllString(raw, -1)
	if !strings.Contains(raw, ";") && len(yearHits) <= 1 {
		return []types.CitationInstance{cit}
	}

	body := raw
	wrapped := strings.HasPrefix(body, "(") && strings.HasSuffix(body, ")")
	if wrapped {
		body = body[1 : len(body)-1]
	}

	var parts []string
	for _, p := range aySplitRe.Split(body, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) <= 1 {
		return []types.CitationInstance{cit}
	}

	var out []types.CitationInstance
	for _, part := range parts {
		yearLoc := ayYearRe.FindStringIndex(part)
		if yearLoc == nil {
			continue
		}
		year := strings.ToLower(part[yearLoc[0]:yearLoc[1]])
		authorPart := strings.TrimSpace(part[:yearLoc[0]])
		authorPart = strings.TrimSpace(ayLeadingRe.ReplaceAllString(authorPart, ""))
		authorPart = strings.TrimRight(authorPart, ",;")
		author := ayAuthorRe.FindString(authorPart)
		if author == "" {
			continue
		}

		rawPiece := strings.TrimSpace(part)
		if wrapped {
			rawPiece = "(" + rawPiece + ")"
		}
		out = append(out, types.CitationInstance{
			Kind:    types.CitationAuthorYear,
			Raw:     rawPiece,
			Locator: strings.ToLower(author) + "-" + year,
			Context: cit.Context,
		})
	}
	if len(out) == 0 {
		return []types.CitationInstance{cit}
	}
	return out
}

func stripWrapper(raw string) string {
	body := raw
	if strings.HasPrefix(body, "[") && strings.HasSuffix(body, "]") {
		body = body[1 : len(body)-1]
	}
	if strings.HasPrefix(body, "(") && strings.HasSuffix(body, ")") {
		body = body[1 : len(body)-1]
	}
	return body
}

// ExpandNumericBody expands a numeric citation body ("1, 3-5") into the
// cited numbers. Ranges run low to high regardless of order and a span
// wider than 200 entries is dropped as a typo.
func ExpandNumericBody(body string) []int {
	var out []int
	body = strings.ReplaceAll(body, "–", "-")
	for _, part := range strings.Split(body, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			a, errA := strconv.Atoi(strings.TrimSpace(bounds[0]))
			b, errB := strconv.Atoi(strings.TrimSpace(bounds[1]))
			if errA != nil || errB != nil || a <= 0 || b <= 0 {
				continue
			}
			if b < a {
				a, b = b, a
			}
			if b-a > maxRangeSpan {
				continue
			}
			for n := a; n <= b; n++ {
				out = append(out, n)
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			continue
		}
		out = append(out, n)
	}
	return out
}

// sentenceContext returns the sentence enclosing [start,end): bounded by the
// nearest sentence punctuation or newline on both sides, capped at 600
// characters.
func sentenceContext(text string, start, end int) string {
	left := -1
	for _, sep := range []string{"\n", ".", "?", "!"} {
		if i := strings.LastIndex(text[:start], sep); i > left {
			left = i
		}
	}
	left++

	right := len(text)
	for _, sep := range []string{"\n", ".", "?", "!"} {
		if i := strings.Index(text[end:], sep); i != -1 && end+i < right {
			right = end + i
		}
	}

	snippet := strings.TrimSpace(text[left:right])
	if len(snippet) > maxContextChars {
		snippet = snippet[:maxContextChars] + "…"
	}
	return snippet
}
