// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package parse turns manuscript text into structured entities: bibliography
// ReferenceEntry records and in-text CitationInstance records. The regex
// path handles numbered and author-led bibliographies and numeric plus
// author-year citation styles; an AI-assisted fallback covers unstructured
// cases.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/citeguard/internal/normalize"
	"github.com/pdiddy/citeguard/pkg/types"
)

var (
	// refHeadingRe locates a References/Bibliography heading line. The
	// last occurrence wins so body text mentioning "references" does not
	// truncate the manuscript.
	refHeadingRe = regexp.MustCompile(`(?i)(^|\n)[ \t]*(references|bibliography)[ \t]*(\n|$)`)

	yearRe = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)

	// refNumRe matches a bibliography entry label: "[12]" or "12." or
	// "12)" at the start of a line.
	refNumRe = regexp.MustCompile(`^\s*(?:\[(\d{1,4})\]\s*|(\d{1,4})[).]\s+)`)

	authorStartRe = regexp.MustCompile(`^\s*([A-Z][A-Za-z'’\-]+)`)
)

// SplitReferences divides a manuscript into body text and bibliography text
// at the last References/Bibliography heading. Without a heading the whole
// text is body and the bibliography is empty.
func SplitReferences(text string) (body, references string) {
	if text == "" {
		return "", ""
	}
	locs := refHeadingRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text, ""
	}
	last := locs[len(locs)-1]
	return strings.TrimSpace(text[:last[0]]), strings.TrimSpace(text[last[1]:])
}

// ParseReferences segments bibliography text into ReferenceEntry records.
// Entries are separated by blank lines or by the start of a new numbered
// label; continuation lines are joined with single spaces. DOI, year, and
// first-author surname are extracted opportunistically from each entry.
func ParseReferences(referencesText string) []types.ReferenceEntry {
	if strings.TrimSpace(referencesText) == "" {
		return nil
	}

	raw := strings.ReplaceAll(referencesText, "\r\n", "\n")
	lines := strings.Split(raw, "\n")

	var entries []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			joined := strings.TrimSpace(strings.Join(current, " "))
			if joined != "" {
				entries = append(entries, joined)
			}
			current = nil
		}
	}

	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			flush()
			continue
		}
		if refNumRe.MatchString(ln) && len(current) > 0 {
			flush()
		}
		current = append(current, ln)
	}
	flush()

	parsed := make([]types.ReferenceEntry, 0, len(entries))
	for i, entry := range entries {
		num := 0
		if m := refNumRe.FindStringSubmatch(entry); m != nil {
			hit := m[1]
			if hit == "" {
				hit = m[2]
			}
			if n, err := strconv.Atoi(hit); err == nil {
				num = n
			}
		}

		doi := normalize.DOI(entry)

		year := 0
		if m := yearRe.FindStringSubmatch(entry); m != nil {
			if y, err := strconv.Atoi(m[1]); err == nil {
				year = y
			}
		}

		firstAuthor := ""
		if m := authorStartRe.FindStringSubmatch(entry); m != nil {
			firstAuthor = strings.ToLower(m[1])
		}

		refID := fmt.Sprintf("ref-%d", i+1)
		if num > 0 {
			refID = strconv.Itoa(num)
		}

		parsed = append(parsed, types.ReferenceEntry{
			RefID:       refID,
			Raw:         entry,
			RefNumber:   num,
			DOI:         doi,
			Year:        year,
			FirstAuthor: firstAuthor,
		})
	}
	return parsed
}
