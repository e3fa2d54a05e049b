// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package litgraph

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/citeguard/internal/normalize"
	"github.com/pdiddy/citeguard/internal/sources"
	"github.com/pdiddy/citeguard/pkg/types"
)

// displayMaxMetaFetches caps metadata lookups for pool nodes outside the
// manuscript bibliography.
const displayMaxMetaFetches = 120

// metaAbstractMax bounds stored abstracts for prompt building.
const metaAbstractMax = 1500

var (
	bookReviewTitleRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bbook review\b`),
		regexp.MustCompile(`(?i)\breview of\b`),
		regexp.MustCompile(`(?i)^review[:\-]\s`),
	}
	reviewAllowlistRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bliterature review\b`),
		regexp.MustCompile(`(?i)\breview of (the )?literature\b`),
		regexp.MustCompile(`(?i)\bsystematic review\b`),
		regexp.MustCompile(`(?i)\bscoping review\b`),
		regexp.MustCompile(`(?i)\bmeta[- ]analysis\b`),
	}
)

// isSecondaryTitle reports whether a title looks like secondary literature
// (a book review). Titles that announce a literature review or meta-analysis
// are allowed through.
func isSecondaryTitle(title string) bool {
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return false
	}
	for _, re := range reviewAllowlistRes {
		if re.MatchString(title) {
			return false
		}
	}
	for _, re := range bookReviewTitleRes {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

// masterMeta is the working metadata for one pool node before
// canonicalization.
type masterMeta struct {
	nodeIDs []string

	openalexID string
	doi        string
	title      string
	year       int
	venue      string
	publisher  string
	abstract   string
	authors    []string

	inPaper bool
	isKey   bool
	refID   string
}

// masterList is the deduplicated reference table plus its display and
// prompting groups.
type masterList struct {
	References     []types.MasterReference
	Groups         []types.ReferenceGroup
	CitationGroups []types.CitationGroup

	ridByNode map[string]string
	metaByRID map[string]*masterMeta
}

// buildMasterList canonicalizes the category picks plus every verified
// bibliography entry into deduplicated master references with stable R#
// display ids, dropping meaningless stubs, secondary literature, and
// excluded venues.
func (e *Engine) buildMasterList(
	ctx context.Context,
	m metrics,
	keyRefIDs []string,
	verifiedRefs []types.ReferenceEntry,
	resolved map[string]*types.ResolvedWork,
	nodeIDForRef func(string) string,
) masterList {
	maxPerCat := e.Config.DisplayMaxPerCategory
	take := func(ids []string) []string {
		if maxPerCat > 0 && len(ids) > maxPerCat {
			return ids[:maxPerCat]
		}
		return ids
	}
	catNodes := map[string][]string{
		CategoryHighlyConnected: take(m.Categories[CategoryHighlyConnected]),
		CategoryBridge:          take(m.Categories[CategoryBridge]),
		CategoryCore:            take(m.Categories[CategoryCore]),
		CategoryCoupling:        take(m.Categories[CategoryCoupling]),
		CategoryTangential:      take(m.Categories[CategoryTangential]),
	}

	originalRefIDByNode := make(map[string]string, len(verifiedRefs))
	for _, ref := range verifiedRefs {
		originalRefIDByNode[nodeIDForRef(ref.RefID)] = ref.RefID
	}
	keyRefIDSet := make(map[string]struct{}, len(keyRefIDs))
	for _, rid := range keyRefIDs {
		keyRefIDSet[rid] = struct{}{}
	}
	keyNodes := make([]string, 0, len(keyRefIDs))
	for _, rid := range keyRefIDs {
		keyNodes = append(keyNodes, nodeIDForRef(rid))
	}
	if e.Config.DisplayMaxKeyRefs > 0 && len(keyNodes) > e.Config.DisplayMaxKeyRefs {
		keyNodes = keyNodes[:e.Config.DisplayMaxKeyRefs]
	}

	// Every verified original first, then key refs, then the category
	// picks; order decides first-seen merging.
	var ordered []string
	seen := make(map[string]struct{})
	appendNodes := func(ids []string) {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ordered = append(ordered, id)
		}
	}
	for _, ref := range verifiedRefs {
		appendNodes([]string{nodeIDForRef(ref.RefID)})
	}
	appendNodes(keyNodes)
	for _, name := range []string{CategoryHighlyConnected, CategoryBridge, CategoryCore, CategoryCoupling, CategoryTangential} {
		appendNodes(catNodes[name])
	}

	summaries := e.fetchNodeSummaries(ctx, ordered, originalRefIDByNode)

	nodeIDToKey := make(map[string]string, len(ordered))
	metaByKey := make(map[string]*masterMeta)

	for _, nodeID := range ordered {
		meta := &masterMeta{nodeIDs: []string{nodeID}}
		if isOpenAlexID(nodeID) {
			meta.openalexID = nodeID
		}

		if refID, ok := originalRefIDByNode[nodeID]; ok {
			meta.inPaper = true
			meta.refID = refID
			_, meta.isKey = keyRefIDSet[refID]
			if w := resolved[refID]; w != nil {
				meta.doi = normalize.DOI(w.DOI)
				meta.title = strings.TrimSpace(w.Title)
				meta.year = w.Year
				meta.venue = strings.TrimSpace(w.Journal)
				meta.publisher = strings.TrimSpace(w.Publisher)
				meta.abstract = clipText(w.Abstract, metaAbstractMax)
				meta.authors = w.Authors
				if w.OpenAlexID != "" {
					meta.openalexID = w.OpenAlexID
				}
			}
		} else if rec := summaries[nodeID]; rec != nil {
			if rec.SourceID != "" {
				meta.openalexID = rec.SourceID
			}
			meta.doi = normalize.DOI(rec.DOI)
			meta.title = strings.TrimSpace(rec.Title)
			meta.year = rec.Year
			meta.venue = strings.TrimSpace(rec.Venue)
			meta.publisher = strings.TrimSpace(rec.Publisher)
			meta.abstract = clipText(rec.Abstract, metaAbstractMax)
			meta.authors = rec.Authors
		}

		key := canonicalKey(meta.doi, meta.openalexID, nodeID)
		nodeIDToKey[nodeID] = key
		if existing, ok := metaByKey[key]; ok {
			mergeMeta(existing, meta)
		} else {
			metaByKey[key] = meta
		}
	}

	allowed := make(map[string]struct{}, len(metaByKey))
	for key, meta := range metaByKey {
		if !meaningfulMeta(meta) || isSecondaryTitle(meta.title) || e.metaExcluded(meta) {
			continue
		}
		allowed[key] = struct{}{}
	}

	keysFor := func(nodes []string) []string {
		var out []string
		used := make(map[string]struct{})
		for _, nid := range nodes {
			key, ok := nodeIDToKey[nid]
			if !ok {
				continue
			}
			if _, ok := allowed[key]; !ok {
				continue
			}
			if _, dup := used[key]; dup {
				continue
			}
			used[key] = struct{}{}
			out = append(out, key)
		}
		return out
	}

	keyKeys := keysFor(keyNodes)
	tangentialKeys := keysFor(catNodes[CategoryTangential])
	importantKeys := keysFor(catNodes[CategoryHighlyConnected])
	bridgeKeys := keysFor(catNodes[CategoryBridge])
	coreKeys := keysFor(catNodes[CategoryCore])
	couplingKeys := keysFor(catNodes[CategoryCoupling])

	inPaper := func(key string) bool { return metaByKey[key].inPaper }
	filterKeys := func(keys []string, want bool) []string {
		var out []string
		for _, k := range keys {
			if inPaper(k) == want {
				out = append(out, k)
			}
		}
		return out
	}

	// Disjoint display groups, first-match-wins.
	assigned := make(map[string]struct{})
	assign := func(keys []string) []string {
		var out []string
		for _, k := range keys {
			if _, ok := assigned[k]; ok {
				continue
			}
			assigned[k] = struct{}{}
			out = append(out, k)
		}
		return out
	}

	type groupDef struct {
		name string
		keys []string
	}
	groupDefs := []groupDef{
		{"key_references", assign(keyKeys)},
		{"citations_to_revisit", assign(filterKeys(tangentialKeys, true))},
		{"cited_and_strong", assign(filterKeys(append(append(append([]string{}, importantKeys...), bridgeKeys...), coreKeys...), true))},
		{"suggested_important", assign(filterKeys(importantKeys, false))},
		{"suggested_connector", assign(filterKeys(bridgeKeys, false))},
		{"suggested_core", assign(filterKeys(coreKeys, false))},
		{"coupling_works", assign(couplingKeys)},
	}
	var leftovers []string
	for _, key := range sortedStringSet(allowed) {
		if _, ok := assigned[key]; !ok {
			leftovers = append(leftovers, key)
		}
	}
	if len(leftovers) > 0 {
		groupDefs = append(groupDefs, groupDef{"other", assign(leftovers)})
	}

	// Stable compact display ids, assigned in group order.
	ridByKey := make(map[string]string)
	n := 0
	for _, group := range groupDefs {
		for _, k := range group.keys {
			if _, ok := ridByKey[k]; ok {
				continue
			}
			n++
			ridByKey[k] = fmt.Sprintf("R%d", n)
		}
	}

	out := masterList{
		ridByNode: make(map[string]string),
		metaByRID: make(map[string]*masterMeta),
	}
	for key := range allowed {
		rid, ok := ridByKey[key]
		if !ok {
			continue
		}
		meta := metaByKey[key]
		out.metaByRID[rid] = meta
		out.References = append(out.References, types.MasterReference{
			RID:     rid,
			Title:   meta.title,
			Authors: meta.authors,
			Year:    meta.year,
			Venue:   meta.venue,
			DOI:     meta.doi,
			NodeIDs: meta.nodeIDs,
			Seed:    meta.inPaper,
		})
	}
	sort.Slice(out.References, func(i, j int) bool {
		return ridNumber(out.References[i].RID) < ridNumber(out.References[j].RID)
	})

	titleOf := func(rid string) string {
		meta := out.metaByRID[rid]
		if meta == nil {
			return ""
		}
		return strings.ToLower(meta.title)
	}
	for _, group := range groupDefs {
		rids := make([]string, 0, len(group.keys))
		for _, k := range group.keys {
			rids = append(rids, ridByKey[k])
		}
		if len(rids) == 0 {
			continue
		}
		sort.Slice(rids, func(i, j int) bool { return titleOf(rids[i]) < titleOf(rids[j]) })
		out.Groups = append(out.Groups, types.ReferenceGroup{Name: group.name, RIDs: rids})
	}

	ridsFor := func(keys []string) []string {
		var rids []string
		for _, k := range keys {
			if rid, ok := ridByKey[k]; ok {
				rids = append(rids, rid)
			}
		}
		return rids
	}
	citationGroups := []types.CitationGroup{
		{Name: "key_references", RIDs: ridsFor(keyKeys)},
		{Name: CategoryHighlyConnected, RIDs: ridsFor(importantKeys)},
		{Name: CategoryBridge, RIDs: ridsFor(bridgeKeys)},
		{Name: CategoryCore, RIDs: ridsFor(coreKeys)},
		{Name: CategoryCoupling, RIDs: ridsFor(couplingKeys)},
		{Name: CategoryTangential, RIDs: ridsFor(tangentialKeys)},
	}
	for _, g := range citationGroups {
		if len(g.RIDs) > 0 {
			out.CitationGroups = append(out.CitationGroups, g)
		}
	}

	for nodeID, key := range nodeIDToKey {
		if rid, ok := ridByKey[key]; ok {
			out.ridByNode[nodeID] = rid
		}
	}
	return out
}

// fetchNodeSummaries fetches metadata for pool nodes that are not part of
// the manuscript bibliography, capped and parallelized.
func (e *Engine) fetchNodeSummaries(
	ctx context.Context,
	ordered []string,
	originalRefIDByNode map[string]string,
) map[string]*sources.Record {
	var needed []string
	for _, nid := range ordered {
		if _, ok := originalRefIDByNode[nid]; ok {
			continue
		}
		if !isOpenAlexID(nid) {
			continue
		}
		needed = append(needed, nid)
		if len(needed) >= displayMaxMetaFetches {
			break
		}
	}
	out := make(map[string]*sources.Record, len(needed))
	if len(needed) == 0 {
		return out
	}

	workers := e.Config.Workers
	if workers < 1 {
		workers = 1
	}
	results := make([]*sources.Record, len(needed))
	var g errgroup.Group
	g.SetLimit(workers)
	var mu sync.Mutex
	for i, id := range needed {
		i, id := i, id
		g.Go(func() error {
			rec, err := e.Source.GetByIdentifier(ctx, id)
			if err != nil || rec == nil {
				return nil
			}
			mu.Lock()
			results[i] = rec
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for i, id := range needed {
		if results[i] != nil {
			out[id] = results[i]
		}
	}
	return out
}

func canonicalKey(doi, openalexID, nodeID string) string {
	if doi != "" {
		return "doi:" + doi
	}
	if openalexID != "" {
		return "oa:" + strings.TrimSpace(openalexID)
	}
	return "node:" + nodeID
}

// mergeMeta folds src into dst: first non-empty field wins, the fuller
// author list wins, flags accumulate.
func mergeMeta(dst, src *masterMeta) {
	dst.nodeIDs = append(dst.nodeIDs, src.nodeIDs...)
	if dst.openalexID == "" {
		dst.openalexID = src.openalexID
	}
	if dst.doi == "" {
		dst.doi = src.doi
	}
	if dst.title == "" {
		dst.title = src.title
	}
	if dst.year == 0 {
		dst.year = src.year
	}
	if dst.venue == "" {
		dst.venue = src.venue
	}
	if dst.publisher == "" {
		dst.publisher = src.publisher
	}
	if dst.abstract == "" {
		dst.abstract = src.abstract
	}
	if len(src.authors) > len(dst.authors) {
		dst.authors = src.authors
	}
	dst.inPaper = dst.inPaper || src.inPaper
	dst.isKey = dst.isKey || src.isKey
	if dst.refID == "" {
		dst.refID = src.refID
	}
}

// meaningfulMeta rejects stubs with a title but nothing else to identify
// the work.
func meaningfulMeta(meta *masterMeta) bool {
	if strings.TrimSpace(meta.title) == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(meta.title)) {
	case "untitled", "unknown title", "title unknown", "n/a", "na":
		return false
	}
	return len(meta.authors) > 0 || meta.year > 0 || meta.venue != "" || meta.doi != ""
}

func (e *Engine) metaExcluded(meta *masterMeta) bool {
	if len(e.Excluded) == 0 {
		return false
	}
	for _, name := range []string{meta.venue, meta.publisher} {
		if name != "" && e.Excluded.Matches(name) {
			return true
		}
	}
	return false
}

func clipText(text string, maxChars int) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if maxChars > 0 && len(cleaned) > maxChars {
		return cleaned[:maxChars] + "…"
	}
	return cleaned
}

func ridNumber(rid string) int {
	n := 0
	for _, r := range rid {
		if r >= '0' && r <= '9' {
			n = n*10 + int(r-'0')
		}
	}
	return n
}

func sortedStringSet(set map[string]struct{}) []string {
	return sortedKeys(set)
}
