// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package datasets

import (
	"os"
	"regexp"
	"strings"

	"github.com/pdiddy/citeguard/pkg/types"
)

var nameCleanRe = regexp.MustCompile(`[^a-z0-9]+`)

// ExcludedSources is a set of normalized venue names that the graph engine
// ignores (aggregators, preprint mirrors, and similar non-venues).
type ExcludedSources map[string]struct{}

// NormalizeSourceName lowercases and strips punctuation for exclusion
// matching.
func NormalizeSourceName(name string) string {
	cleaned := nameCleanRe.ReplaceAllString(strings.ToLower(name), " ")
	return strings.Join(strings.Fields(cleaned), " ")
}

// LoadExcludedSources reads one venue name per line; blank lines and #
// comments are skipped. A missing file yields an empty set.
func LoadExcludedSources(path string) (ExcludedSources, error) {
	if path == "" {
		return ExcludedSources{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ExcludedSources{}, nil
		}
		return nil, err
	}
	out := make(ExcludedSources)
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if norm := NormalizeSourceName(line); norm != "" {
			out[norm] = struct{}{}
		}
	}
	return out, nil
}

// Matches reports whether a venue name hits the exclusion set, either
// exactly or by containing an excluded name.
func (e ExcludedSources) Matches(name string) bool {
	if name == "" || len(e) == 0 {
		return false
	}
	norm := NormalizeSourceName(name)
	if norm == "" {
		return false
	}
	if _, ok := e[norm]; ok {
		return true
	}
	for ex := range e {
		if ex != "" && strings.Contains(norm, ex) {
			return true
		}
	}
	return false
}

// WorkExcluded reports whether a resolved work's journal or publisher is
// excluded.
func (e ExcludedSources) WorkExcluded(work *types.ResolvedWork) bool {
	if work == nil || len(e) == 0 {
		return false
	}
	return e.Matches(work.Journal) || e.Matches(work.Publisher)
}
