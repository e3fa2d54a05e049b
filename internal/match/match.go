// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package match

import (
	"strconv"
	"strings"

	"github.com/pdiddy/citeguard/internal/normalize"
	"github.com/pdiddy/citeguard/pkg/types"
)

// Scoring constants for author-year candidates.
const (
	baseScore         = 0.55
	authorBonus       = 0.10
	yearTokenBonus    = 0.18
	yearExactBonus    = 0.14
	yearNearBonus     = 0.07
	coauthorBonus     = 0.04
	coauthorBonusCap  = 0.12
	ambiguityMargin   = 0.08
	matchThreshold    = 0.65
	maxCandidatesKept = 5
)

// Match links each citation to its bibliography entry. Numeric citations
// match by reference number with confidence 1.0 or not at all. Author-year
// citations collect candidates by exact key, then suffix-ignored key, then
// year-tolerant and unique-author fallbacks, and score them; a top score
// under 0.65 or a margin under 0.08 leaves the match ambiguous.
func Match(citations []types.CitationInstance, references []types.ReferenceEntry) []types.CitationMatch {
	idx := BuildIndex(references)
	matches := make([]types.CitationMatch, 0, len(citations))

	for _, cit := range citations {
		switch cit.Kind {
		case types.CitationNumeric:
			matches = append(matches, matchNumeric(idx, cit))
		case types.CitationAuthorYear:
			matches = append(matches, matchAuthorYear(idx, cit))
		default:
			matches = append(matches, types.CitationMatch{
				Citation: cit,
				Status:   types.MatchUnmatched,
				Method:   "unknown",
				Notes:    []string{"Unsupported citation kind."},
			})
		}
	}

	return matches
}

func matchNumeric(idx *Index, cit types.CitationInstance) types.CitationMatch {
	ref, ok := idx.byNumber[strings.TrimSpace(cit.Locator)]
	if !ok {
		return types.CitationMatch{
			Citation: cit,
			Status:   types.MatchUnmatched,
			Method:   "number_direct",
			Notes:    []string{"No bibliography item with that reference number."},
		}
	}
	return types.CitationMatch{
		Citation:   cit,
		Ref:        ref,
		Status:     types.MatchMatched,
		Confidence: 1.0,
		Method:     "number_direct",
		Candidates: []types.MatchCandidate{{RefID: ref.RefID, Score: 1.0, Reasons: []string{"ref_number match"}}},
	}
}

func matchAuthorYear(idx *Index, cit types.CitationInstance) types.CitationMatch {
	author, yearToken := parseLocator(cit.Locator)
	if author == "" {
		return types.CitationMatch{
			Citation: cit,
			Status:   types.MatchUnmatched,
			Method:   "author_year_unparsed",
			Notes:    []string{"Could not parse author/year locator."},
		}
	}

	var candidates []*types.ReferenceEntry
	method := "author_year_exact"
	var notes []string

	if yearToken != "" {
		candidates = idx.byAuthorYear[author+"-"+yearToken]
	}

	if len(candidates) == 0 && yearToken != "" {
		if bare, suffixed := unsuffixYear(yearToken); suffixed {
			candidates = idx.byAuthorYear[author+"-"+bare]
			method = "author_year_suffix_ignored"
			if len(candidates) > 0 {
				notes = append(notes, "Citation year suffix ignored for bibliography match.")
			}
		}
	}

	if len(candidates) == 0 {
		authorRefs := idx.byAuthor[author]
		yearInt := yearTokenInt(yearToken)
		if yearInt > 0 {
			var near []*types.ReferenceEntry
			for _, ref := range authorRefs {
				ry := idx.refYearInt(ref)
				if ry == 0 {
					continue
				}
				if abs(ry-yearInt) <= 1 {
					near = append(near, ref)
				}
			}
			if len(near) > 0 {
				candidates = near
				method = "author_year_nearby"
				notes = append(notes, "Matched by author with year tolerance (±1).")
			}
		}
		if len(candidates) == 0 && len(authorRefs) == 1 {
			candidates = authorRefs
			method = "author_only_unique"
			notes = append(notes, "Matched by author only (unique author in bibliography); year mismatch possible.")
		}
	}

	if len(candidates) == 0 {
		return types.CitationMatch{
			Citation: cit,
			Status:   types.MatchUnmatched,
			Method:   method,
			Notes:    append([]string{"No bibliography candidates found."}, notes...),
		}
	}

	scored := scoreCandidates(idx, cit, author, yearToken, candidates)

	top := scored[0]
	margin := top.Score
	if len(scored) > 1 {
		margin = top.Score - scored[1].Score
	}

	status := types.MatchMatched
	if len(scored) > 1 && margin < ambiguityMargin {
		status = types.MatchAmbiguous
	}
	if top.Score < matchThreshold {
		status = types.MatchAmbiguous
	}

	kept := scored
	if len(kept) > maxCandidatesKept {
		kept = kept[:maxCandidatesKept]
	}
	candOut := make([]types.MatchCandidate, len(kept))
	copy(candOut, kept)

	return types.CitationMatch{
		Citation:   cit,
		Ref:        findRef(candidates, top.RefID),
		Status:     status,
		Confidence: top.Score,
		Method:     method,
		Candidates: candOut,
		Notes:      notes,
	}
}

// scoreCandidates ranks candidates best first. Sorting is stable so that
// equal scores keep bibliography order.
func scoreCandidates(idx *Index, cit types.CitationInstance, author, yearToken string, candidates []*types.ReferenceEntry) []types.MatchCandidate {
	citSurnames := citationSurnames(cit.Raw)
	yearInt := yearTokenInt(yearToken)

	scored := make([]types.MatchCandidate, 0, len(candidates))
	for _, ref := range candidates {
		var reasons []string
		score := baseScore

		score += authorBonus
		reasons = append(reasons, "first_author match")

		refYearToken := idx.yearTokenByRefID[ref.RefID]
		if yearToken != "" && refYearToken != "" && yearToken == refYearToken {
			score += yearTokenBonus
			reasons = append(reasons, "year token match")
		} else if ry := idx.refYearInt(ref); yearInt > 0 && ry > 0 {
			switch diff := abs(ry - yearInt); {
			case diff == 0:
				score += yearExactBonus
				reasons = append(reasons, "year match")
			case diff <= 1:
				score += yearNearBonus
				reasons = append(reasons, "year within ±1")
			default:
				reasons = append(reasons, "year differs by "+strconv.Itoa(diff))
			}
		}

		var overlap int
		for surname := range citSurnames {
			if surname == author {
				continue
			}
			if _, ok := idx.surnamesByRefID[ref.RefID][surname]; ok {
				overlap++
			}
		}
		if overlap > 0 {
			bump := coauthorBonus * float64(overlap)
			if bump > coauthorBonusCap {
				bump = coauthorBonusCap
			}
			score += bump
			reasons = append(reasons, "coauthor overlap ("+strconv.Itoa(overlap)+")")
		}

		if score > 1.0 {
			score = 1.0
		}
		scored = append(scored, types.MatchCandidate{RefID: ref.RefID, Score: score, Reasons: reasons})
	}

	sortCandidates(scored)
	return scored
}

func sortCandidates(cands []types.MatchCandidate) {
	// Insertion sort keeps equal scores in input order.
	for i := 1; i < len(cands); i++ {
		for j := i; j > 0 && cands[j].Score > cands[j-1].Score; j-- {
			cands[j], cands[j-1] = cands[j-1], cands[j]
		}
	}
}

// parseLocator splits an author-year locator like "smith-2020a" into its
// normalized author and year token parts.
func parseLocator(locator string) (author, yearToken string) {
	norm := normalize.AuthorYearLocator(locator)
	if norm == "" {
		return "", ""
	}
	if i := strings.LastIndex(norm, "-"); i >= 0 {
		return normalize.AuthorName(norm[:i]), normalize.YearToken(norm[i+1:])
	}
	return normalize.AuthorName(norm), ""
}

// citationSurnames pulls surnames out of a raw citation marker, ignoring
// connective words.
func citationSurnames(raw string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, hit := range surnameRe.FindAllString(raw, -1) {
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

func yearTokenInt(token string) int {
	if len(token) >= 4 && isDigits(token[:4]) {
		n, _ := strconv.Atoi(token[:4])
		return n
	}
	return 0
}

func findRef(candidates []*types.ReferenceEntry, refID string) *types.ReferenceEntry {
	for _, ref := range candidates {
		if ref.RefID == refID {
			return ref
		}
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
