// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode"
)

// PredatoryRecord is one venue from a predatory list.
type PredatoryRecord struct {
	Name      string
	VenueType string // "journal" or "publisher"
	ISSN      string
	Source    string
	Notes     string
}

// PredatoryMatch reports how a venue matched the list.
type PredatoryMatch struct {
	Record     PredatoryRecord
	MatchType  string // "issn_exact" or "name_exact"
	Confidence float64
}

// PredatoryData indexes predatory venues by ISSN and normalized name.
type PredatoryData struct {
	Records     []PredatoryRecord
	byISSN      map[string]PredatoryRecord
	byJournal   map[string]PredatoryRecord
	byPublisher map[string]PredatoryRecord
}

// Match checks a venue against the list. ISSN agreement is conclusive; an
// exact normalized name hit on journal then publisher scores lower.
func (d *PredatoryData) Match(journal, publisher, issn string) (PredatoryMatch, bool) {
	if n := NormalizeISSN(issn); n != "" {
		if rec, ok := d.byISSN[n]; ok {
			return PredatoryMatch{Record: rec, MatchType: "issn_exact", Confidence: 1.0}, true
		}
	}
	if n := NormalizeVenueName(journal); n != "" {
		if rec, ok := d.byJournal[n]; ok {
			return PredatoryMatch{Record: rec, MatchType: "name_exact", Confidence: 0.85}, true
		}
	}
	if n := NormalizeVenueName(publisher); n != "" {
		if rec, ok := d.byPublisher[n]; ok {
			return PredatoryMatch{Record: rec, MatchType: "name_exact", Confidence: 0.85}, true
		}
	}
	return PredatoryMatch{}, false
}

// NormalizeVenueName lowercases a venue name, strips punctuation, and
// collapses whitespace.
func NormalizeVenueName(value string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(value) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeISSN strips dashes and lowercases (the check digit may be X).
func NormalizeISSN(value string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(value, "-", "")))
}

type predatoryCacheEntry struct {
	mtime int64
	data  *PredatoryData
}

var (
	predatoryCacheMu sync.Mutex
	predatoryCache   = make(map[string]predatoryCacheEntry)
)

// LoadPredatory reads a predatory venue CSV. Two column layouts are
// accepted: name/type/issn/source/notes, or journal and/or publisher columns
// with issn/source/notes. A missing file yields empty data.
func LoadPredatory(path string) (*PredatoryData, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			predatoryCacheMu.Lock()
			defer predatoryCacheMu.Unlock()
			if cached, ok := predatoryCache[path]; ok && cached.mtime == -1 {
				return cached.data, nil
			}
			data := buildPredatoryData(nil)
			predatoryCache[path] = predatoryCacheEntry{mtime: -1, data: data}
			return data, nil
		}
		return nil, fmt.Errorf("stat predatory CSV: %w", err)
	}

	mtime := info.ModTime().UnixNano()
	predatoryCacheMu.Lock()
	if cached, ok := predatoryCache[path]; ok && cached.mtime == mtime {
		predatoryCacheMu.Unlock()
		return cached.data, nil
	}
	predatoryCacheMu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open predatory CSV: %w", err)
	}
	defer f.Close()

	records, err := readPredatoryCSV(f)
	if err != nil {
		return nil, err
	}
	data := buildPredatoryData(records)

	predatoryCacheMu.Lock()
	predatoryCache[path] = predatoryCacheEntry{mtime: mtime, data: data}
	predatoryCacheMu.Unlock()
	return data, nil
}

func readPredatoryCSV(r io.Reader) ([]PredatoryRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("predatory CSV has no header row: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			col[name] = i
		}
	}

	hasRequired := true
	for _, name := range []string{"name", "type", "issn", "source", "notes"} {
		if _, ok := col[name]; !ok {
			hasRequired = false
			break
		}
	}
	_, hasJournal := col["journal"]
	_, hasPublisher := col["publisher"]
	if !hasRequired && !hasJournal && !hasPublisher {
		return nil, fmt.Errorf("predatory CSV missing required columns: expected either name/type/issn/source/notes or journal/publisher/issn/source/notes")
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []PredatoryRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading predatory CSV: %w", err)
		}

		if hasRequired {
			records = append(records, PredatoryRecord{
				Name:      field(row, "name"),
				VenueType: strings.ToLower(field(row, "type")),
				ISSN:      field(row, "issn"),
				Source:    field(row, "source"),
				Notes:     field(row, "notes"),
			})
			continue
		}

		issn := field(row, "issn")
		source := field(row, "source")
		notes := field(row, "notes")
		if journal := field(row, "journal"); journal != "" {
			records = append(records, PredatoryRecord{
				Name: journal, VenueType: "journal", ISSN: issn, Source: source, Notes: notes,
			})
		}
		if publisher := field(row, "publisher"); publisher != "" {
			records = append(records, PredatoryRecord{
				Name: publisher, VenueType: "publisher", ISSN: issn, Source: source, Notes: notes,
			})
		}
	}
	return records, nil
}

func buildPredatoryData(records []PredatoryRecord) *PredatoryData {
	data := &PredatoryData{
		Records:     records,
		byISSN:      make(map[string]PredatoryRecord),
		byJournal:   make(map[string]PredatoryRecord),
		byPublisher: make(map[string]PredatoryRecord),
	}
	for _, rec := range records {
		if n := NormalizeISSN(rec.ISSN); n != "" {
			if _, ok := data.byISSN[n]; !ok {
				data.byISSN[n] = rec
			}
		}
		name := NormalizeVenueName(rec.Name)
		if name == "" {
			continue
		}
		switch rec.VenueType {
		case "journal":
			if _, ok := data.byJournal[name]; !ok {
				data.byJournal[name] = rec
			}
		case "publisher":
			if _, ok := data.byPublisher[name]; !ok {
				data.byPublisher[name] = rec
			}
		}
	}
	return data
}
