// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize holds the string canonicalization shared by the parser,
// matcher, resolver, and dataset lookups: DOI extraction, content-word
// tokenization, author-surname folding, and author-year locator keys.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// doiCleanRe anchors a DOI at the start of the value, tolerating
	// leading whitespace or brackets.
	doiCleanRe = regexp.MustCompile(`(?i)^[\s\[\({<]*(10\.\d{4,9}/[-._;()/:A-Za-z0-9]+)`)

	// doiCoreRe finds a DOI anywhere in free text.
	doiCoreRe = regexp.MustCompile(`(?i)(10\.\d{4,9}/[-._;()/:A-Za-z0-9]+)`)

	wordRe = regexp.MustCompile(`[a-z0-9]+`)

	authorTokenRe = regexp.MustCompile(`(?i)[a-z][a-z'’\-]+`)

	yearSuffixRe = regexp.MustCompile(`(19|20)\d{2}[a-z]?$`)
)

// DOI extracts and canonicalizes a DOI from raw text: URL prefixes and
// surrounding brackets are dropped, trailing punctuation trimmed, and the
// result lowercased. Returns "" when no DOI is present.
func DOI(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	var candidate string
	if m := doiCleanRe.FindStringSubmatch(raw); m != nil {
		candidate = m[1]
	} else if m := doiCoreRe.FindStringSubmatch(raw); m != nil {
		candidate = m[1]
	} else {
		return ""
	}

	candidate = strings.TrimRight(candidate, ").,;]")
	return strings.ToLower(candidate)
}

// Tokenize returns the set of lowercase alphanumeric word tokens in text.
func Tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, t := range wordRe.FindAllString(strings.ToLower(text), -1) {
		tokens[t] = struct{}{}
	}
	return tokens
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "have": {}, "in": {},
	"is": {}, "it": {}, "of": {}, "on": {}, "or": {}, "that": {},
	"the": {}, "their": {}, "this": {}, "to": {}, "was": {}, "were": {},
	"with": {},
}

// ContentTokens returns Tokenize(text) minus stopwords and tokens of one or
// two characters.
func ContentTokens(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for t := range Tokenize(text) {
		if len(t) <= 2 {
			continue
		}
		if _, stop := stopwords[t]; stop {
			continue
		}
		tokens[t] = struct{}{}
	}
	return tokens
}

// AuthorName folds an author name to a comparison key: Unicode compatibility
// decomposition with combining marks removed, lowercased, non-alphanumerics
// dropped. "Gómez-Pérez" and "Gomez Perez" fold to the same key.
func AuthorName(value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range norm.NFKD.String(raw) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// YearToken canonicalizes a year marker, keeping a trailing suffix letter
// ("2020b" stays distinct from "2020").
func YearToken(value string) string {
	raw := strings.ToLower(strings.TrimSpace(value))
	if raw == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AuthorYearKey builds the "surname-year" index key, or "" when either part
// is missing.
func AuthorYearKey(author string, year int) string {
	if year == 0 {
		return ""
	}
	return AuthorYearTokenKey(author, strconv.Itoa(year))
}

// AuthorYearTokenKey is AuthorYearKey with the year already in token form,
// so suffixed years ("2020b") survive.
func AuthorYearTokenKey(author, yearToken string) string {
	a := AuthorName(author)
	y := YearToken(yearToken)
	if a == "" || y == "" {
		return ""
	}
	return a + "-" + y
}

// AuthorYearLocator canonicalizes a citation locator into the same key space
// as AuthorYearKey. Multi-author markers ("Smith, Jones & Lee 2020",
// "Smith et al. 2020") are cut down to the first surname. When no year can
// be found the author key alone is returned; when nothing parses the input
// comes back as a bare token.
func AuthorYearLocator(locator string) string {
	loc := strings.ToLower(strings.TrimSpace(locator))
	if loc == "" {
		return ""
	}

	authorRaw := loc
	yearRaw := ""
	if i := strings.LastIndex(loc, "-"); i >= 0 {
		authorRaw, yearRaw = loc[:i], loc[i+1:]
	} else if parts := strings.Fields(loc); len(parts) >= 2 {
		yearRaw = parts[len(parts)-1]
		authorRaw = strings.Join(parts[:len(parts)-1], " ")
	} else if m := yearSuffixRe.FindStringIndex(loc); m != nil {
		yearRaw = loc[m[0]:]
		authorRaw = loc[:m[0]]
	}

	authorRaw = strings.TrimSpace(authorRaw)
	if authorRaw != "" && multiAuthorHint(authorRaw) {
		cut := authorRaw
		for _, sep := range []string{",", "&", ";"} {
			if i := strings.Index(cut, sep); i >= 0 {
				cut = cut[:i]
			}
		}
		if i := strings.Index(cut, " and "); i >= 0 {
			cut = cut[:i]
		}
		if i := strings.Index(cut, " et al"); i >= 0 {
			cut = cut[:i]
		}
		if m := authorTokenRe.FindString(strings.TrimSpace(cut)); m != "" {
			authorRaw = m
		}
	}

	authorNorm := AuthorName(authorRaw)
	yearNorm := YearToken(yearRaw)
	switch {
	case authorNorm != "" && yearNorm != "":
		return authorNorm + "-" + yearNorm
	case authorNorm != "":
		return authorNorm
	}
	if y := YearToken(loc); y != "" {
		return y
	}
	return loc
}

func multiAuthorHint(author string) bool {
	return strings.Contains(author, ",") ||
		strings.Contains(author, "&") ||
		strings.Contains(author, ";") ||
		strings.Contains(author, " and ") ||
		strings.Contains(author, " et al")
}

// Jaccard computes set overlap |a∩b| / |a∪b| over token sets; 0 when either
// side is empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
