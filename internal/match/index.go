// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package match links in-text citations to bibliography entries. Numeric
// markers resolve directly by reference number; author-year markers go
// through indexed lookup, heuristic scoring, and an optional model-backed
// disambiguation step for ties.
package match

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/citeguard/internal/normalize"
	"github.com/pdiddy/citeguard/pkg/types"
)

var (
	refNumRe    = regexp.MustCompile(`^\s*(?:\[(\d{1,4})\]\s*|(\d{1,4})[).]\s+)`)
	yearTokenRe = regexp.MustCompile(`(?i)\b((?:19|20)\d{2}[a-z]?)\b`)
	surnameRe   = regexp.MustCompile(`[A-Z][A-Za-z'’\-]+`)
)

// citationNameStopwords are capitalized tokens inside citation markers that
// are not surnames.
var citationNameStopwords = map[string]struct{}{
	"see": {}, "also": {}, "cf": {}, "eg": {}, "e": {}, "g": {}, "al": {}, "et": {},
}

// Index holds lookup tables over a bibliography.
type Index struct {
	byNumber     map[string]*types.ReferenceEntry
	byAuthorYear map[string][]*types.ReferenceEntry
	byAuthor     map[string][]*types.ReferenceEntry

	surnamesByRefID  map[string]map[string]struct{}
	yearTokenByRefID map[string]string
}

// BuildIndex indexes references by number, by author-year key, and by first
// author. Suffixed year tokens ("2020a") are indexed under both the suffixed
// and the bare year so that either citation form finds the entry.
func BuildIndex(references []types.ReferenceEntry) *Index {
	idx := &Index{
		byNumber:         make(map[string]*types.ReferenceEntry),
		byAuthorYear:     make(map[string][]*types.ReferenceEntry),
		byAuthor:         make(map[string][]*types.ReferenceEntry),
		surnamesByRefID:  make(map[string]map[string]struct{}),
		yearTokenByRefID: make(map[string]string),
	}

	for i := range references {
		ref := &references[i]

		yearToken := extractYearToken(ref.Raw, ref.Year)
		idx.yearTokenByRefID[ref.RefID] = yearToken
		idx.surnamesByRefID[ref.RefID] = referenceSurnames(ref)

		refNumber := ref.RefNumber
		if refNumber == 0 {
			refNumber = extractRefNumber(ref.Raw)
		}
		if refNumber > 0 {
			key := strconv.Itoa(refNumber)
			if _, ok := idx.byNumber[key]; !ok {
				idx.byNumber[key] = ref
			}
		}

		author := normalize.AuthorName(ref.FirstAuthor)
		if author == "" {
			continue
		}
		idx.byAuthor[author] = append(idx.byAuthor[author], ref)
		switch {
		case yearToken != "":
			keyFull := author + "-" + yearToken
			idx.byAuthorYear[keyFull] = append(idx.byAuthorYear[keyFull], ref)
			if bare, ok := unsuffixYear(yearToken); ok {
				idx.byAuthorYear[author+"-"+bare] = append(idx.byAuthorYear[author+"-"+bare], ref)
			}
		case ref.Year > 0:
			key := author + "-" + strconv.Itoa(ref.Year)
			idx.byAuthorYear[key] = append(idx.byAuthorYear[key], ref)
		}
	}

	return idx
}

// extractRefNumber pulls a leading "[12]" or "12." label out of a raw entry.
func extractRefNumber(raw string) int {
	m := refNumRe.FindStringSubmatch(raw)
	if m == nil {
		return 0
	}
	hit := m[1]
	if hit == "" {
		hit = m[2]
	}
	n, err := strconv.Atoi(hit)
	if err != nil {
		return 0
	}
	return n
}

// extractYearToken picks the year token for an entry. When the structured
// year is known, a suffixed token like "2020a" in the raw text wins over the
// bare year.
func extractYearToken(raw string, fallbackYear int) string {
	if fallbackYear > 0 {
		want := strconv.Itoa(fallbackYear)
		for _, m := range yearTokenRe.FindAllString(raw, -1) {
			if len(m) == 5 && m[:4] == want {
				return normalize.YearToken(m)
			}
		}
		return want
	}
	if m := yearTokenRe.FindStringSubmatch(raw); m != nil {
		return normalize.YearToken(m[1])
	}
	return ""
}

// referenceSurnames collects author surnames from the author segment of a
// raw entry (everything before the first year token), plus the structured
// first author.
func referenceSurnames(ref *types.ReferenceEntry) map[string]struct{} {
	out := make(map[string]struct{})
	if a := normalize.AuthorName(ref.FirstAuthor); a != "" {
		out[a] = struct{}{}
	}
	head := ref.Raw
	if loc := yearTokenRe.FindStringIndex(head); loc != nil {
		head = head[:loc[0]]
	}
	for _, hit := range surnameRe.FindAllString(head, -1) {
		token := strings.ToLower(hit)
		if _, stop := citationNameStopwords[token]; stop {
			continue
		}
		if norm := normalize.AuthorName(token); norm != "" {
			out[norm] = struct{}{}
		}
	}
	return out
}

// unsuffixYear strips a trailing letter from a year token, reporting whether
// the token was suffixed.
func unsuffixYear(token string) (string, bool) {
	if len(token) >= 5 && isDigits(token[:4]) {
		return token[:4], true
	}
	return token, false
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// refYearInt returns the entry's year as an integer, falling back to the
// indexed year token.
func (idx *Index) refYearInt(ref *types.ReferenceEntry) int {
	if ref.Year > 0 {
		return ref.Year
	}
	yt := idx.yearTokenByRefID[ref.RefID]
	if len(yt) >= 4 && isDigits(yt[:4]) {
		n, _ := strconv.Atoi(yt[:4])
		return n
	}
	return 0
}
