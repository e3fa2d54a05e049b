// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package datasets loads the local CSV datasets the flag checkers consult:
// the Retraction Watch export, predatory venue lists, and the excluded
// sources file. Loads are cached by path and modification time so repeated
// runs reuse parsed data.
package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/pdiddy/citeguard/internal/normalize"
)

// RetractionRecord is one row of the Retraction Watch CSV, keyed by the
// original paper's DOI.
type RetractionRecord struct {
	DOI              string
	RecordID         string
	Title            string
	Journal          string
	Publisher        string
	URLs             string
	RetractionDate   string
	RetractionNature string
	Reason           string
	Paywalled        string
	Notes            string
}

// RetractionData indexes retraction records by normalized DOI.
type RetractionData struct {
	ByDOI map[string]RetractionRecord
}

// GetByDOI looks up a record. With retractionsOnly set, records whose nature
// names a correction or expression of concern rather than a retraction are
// filtered out.
func (d *RetractionData) GetByDOI(doi string, retractionsOnly bool) (RetractionRecord, bool) {
	norm := normalize.DOI(doi)
	if norm == "" {
		return RetractionRecord{}, false
	}
	rec, ok := d.ByDOI[norm]
	if !ok {
		return RetractionRecord{}, false
	}
	if retractionsOnly {
		nature := strings.ToLower(rec.RetractionNature)
		if nature != "" && !strings.Contains(nature, "retraction") {
			return RetractionRecord{}, false
		}
	}
	return rec, true
}

type retractionCacheEntry struct {
	mtime int64
	data  *RetractionData
}

var (
	retractionCacheMu sync.Mutex
	retractionCache   = make(map[string]retractionCacheEntry)
)

// LoadRetractions reads the Retraction Watch CSV at path. A missing file
// yields empty data rather than an error; a present file must carry the
// expected header columns.
func LoadRetractions(path string) (*RetractionData, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			retractionCacheMu.Lock()
			defer retractionCacheMu.Unlock()
			if cached, ok := retractionCache[path]; ok && cached.mtime == -1 {
				return cached.data, nil
			}
			data := &RetractionData{ByDOI: map[string]RetractionRecord{}}
			retractionCache[path] = retractionCacheEntry{mtime: -1, data: data}
			return data, nil
		}
		return nil, fmt.Errorf("stat retraction CSV: %w", err)
	}

	mtime := info.ModTime().UnixNano()
	retractionCacheMu.Lock()
	if cached, ok := retractionCache[path]; ok && cached.mtime == mtime {
		retractionCacheMu.Unlock()
		return cached.data, nil
	}
	retractionCacheMu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open retraction CSV: %w", err)
	}
	defer f.Close()

	byDOI, err := readRetractionCSV(f)
	if err != nil {
		return nil, err
	}
	data := &RetractionData{ByDOI: byDOI}

	retractionCacheMu.Lock()
	retractionCache[path] = retractionCacheEntry{mtime: mtime, data: data}
	retractionCacheMu.Unlock()
	return data, nil
}

var retractionColumns = []string{
	"Record ID", "Title", "Journal", "Publisher", "URLS", "RetractionDate",
	"RetractionNature", "Reason", "OriginalPaperDOI", "Paywalled", "Notes",
}

func readRetractionCSV(r io.Reader) (map[string]RetractionRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("retraction CSV has no header row: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, name := range retractionColumns {
		if _, ok := col[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("retraction CSV missing required columns: %s", strings.Join(missing, ", "))
	}

	field := func(row []string, name string) string {
		i := col[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	byDOI := make(map[string]RetractionRecord)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading retraction CSV: %w", err)
		}
		doi := normalize.DOI(field(row, "OriginalPaperDOI"))
		if doi == "" {
			continue
		}
		rec := RetractionRecord{
			DOI:              doi,
			RecordID:         field(row, "Record ID"),
			Title:            field(row, "Title"),
			Journal:          field(row, "Journal"),
			Publisher:        field(row, "Publisher"),
			URLs:             field(row, "URLS"),
			RetractionDate:   field(row, "RetractionDate"),
			RetractionNature: field(row, "RetractionNature"),
			Reason:           field(row, "Reason"),
			Paywalled:        field(row, "Paywalled"),
			Notes:            field(row, "Notes"),
		}
		existing, ok := byDOI[doi]
		if !ok {
			byDOI[doi] = rec
			continue
		}
		// Prefer a row explicitly marked as a retraction.
		if !strings.Contains(strings.ToLower(existing.RetractionNature), "retraction") &&
			strings.Contains(strings.ToLower(rec.RetractionNature), "retraction") {
			byDOI[doi] = rec
		}
	}
	return byDOI, nil
}
