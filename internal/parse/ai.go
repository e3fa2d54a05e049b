// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/citeguard/internal/ai"
	"github.com/pdiddy/citeguard/internal/normalize"
	"github.com/pdiddy/citeguard/pkg/types"
)

// Prompt-size limits for the model-backed parsing fallback.
const (
	citationParseMaxChars          = 120_000
	citationParseMaxLines          = 2000
	citationParseMaxCandidateChars = 60_000
)

const referencesSystemPrompt = "You extract bibliographic references from an academic References/Bibliography section. " +
	"You MUST be conservative and MUST NOT invent data. " +
	"Return ONLY valid JSON, no markdown."

const citationsSystemPrompt = "You extract in-text citations from academic prose. " +
	"You MUST be conservative and MUST NOT invent citations. " +
	"Return ONLY valid JSON, no markdown."

const refSectionSystemPrompt = "You extract the References/Bibliography section from an academic manuscript. " +
	"You MUST return the references section verbatim (do not paraphrase). " +
	"If you cannot find a references section, return null. " +
	"Return ONLY valid JSON, no markdown."

// aiReference is one bibliography entry in the model response. All fields
// optional so malformed items degrade to skips rather than decode errors.
type aiReference struct {
	ID          string          `json:"id"`
	Raw         string          `json:"raw"`
	RefNumber   json.Number     `json:"ref_number"`
	DOI         string          `json:"doi"`
	Year        json.Number     `json:"year"`
	FirstAuthor string          `json:"first_author"`
	CSL         json.RawMessage `json:"csl"`
}

type aiReferencesPayload struct {
	References []json.RawMessage `json:"references"`
	Notes      []string          `json:"notes"`
}

type aiCitationsPayload struct {
	Citations []aiCitation `json:"citations"`
	Notes     []string     `json:"notes"`
}

type aiCitation struct {
	Kind    string `json:"kind"`
	Raw     string `json:"raw"`
	Locator string `json:"locator"`
	Context string `json:"context"`
}

type aiRefSectionPayload struct {
	ReferencesText *string     `json:"references_text"`
	Confidence     json.Number `json:"confidence"`
	Notes          []string    `json:"notes"`
}

// cslItem is the subset of a CSL-JSON record used to backfill missing
// reference fields.
type cslItem struct {
	DOIUpper string `json:"DOI"`
	DOILower string `json:"doi"`
	Issued   struct {
		DateParts [][]json.Number `json:"date-parts"`
	} `json:"issued"`
	Author []struct {
		Family string `json:"family"`
	} `json:"author"`
}

// ParseReferencesAI parses bibliography text with the model when regex
// segmentation produced nothing usable. Entries come back in input order;
// fields the model could not determine stay zero.
func ParseReferencesAI(ctx context.Context, client ai.Client, referencesText string, maxChars, maxRefs int) ([]types.ReferenceEntry, []string, error) {
	var notes []string
	text := strings.TrimSpace(referencesText)
	if text == "" {
		return nil, nil, fmt.Errorf("no references text provided for model bibliography parsing")
	}
	if len(text) > maxChars {
		notes = append(notes, fmt.Sprintf("References text truncated from %d to %d chars for model parsing.", len(text), maxChars))
		text = text[:maxChars]
	}

	raw, err := client.ChatJSON(ctx, referencesSystemPrompt, referencesPrompt(text, maxRefs))
	if err != nil {
		return nil, nil, err
	}

	var payload aiReferencesPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, nil, fmt.Errorf("%w: references payload: %v", ai.ErrInvalidOutput, err)
	}
	if payload.References == nil {
		return nil, nil, fmt.Errorf("%w: references payload missing 'references' list", ai.ErrInvalidOutput)
	}

	items := payload.References
	if len(items) > maxRefs {
		items = items[:maxRefs]
	}

	var refs []types.ReferenceEntry
	for i, itemRaw := range items {
		var item aiReference
		if err := json.Unmarshal(itemRaw, &item); err != nil {
			continue
		}
		rawEntry := strings.TrimSpace(item.Raw)
		if rawEntry == "" {
			continue
		}

		refNumber := safeInt(item.RefNumber)
		doi := normalize.DOI(item.DOI)
		year := safeInt(item.Year)
		firstAuthor := strings.ToLower(strings.TrimSpace(item.FirstAuthor))

		var csl cslItem
		if len(item.CSL) > 0 && json.Unmarshal(item.CSL, &csl) == nil {
			if doi == "" {
				doi = normalize.DOI(firstNonEmpty(csl.DOIUpper, csl.DOILower))
			}
			if year == 0 && len(csl.Issued.DateParts) > 0 && len(csl.Issued.DateParts[0]) > 0 {
				year = safeInt(csl.Issued.DateParts[0][0])
			}
			if firstAuthor == "" && len(csl.Author) > 0 {
				firstAuthor = strings.ToLower(strings.TrimSpace(csl.Author[0].Family))
			}
		}

		refID := strings.TrimSpace(item.ID)
		if refNumber > 0 {
			refID = strconv.Itoa(refNumber)
		} else if refID == "" {
			refID = fmt.Sprintf("ref-%d", i+1)
		}

		refs = append(refs, types.ReferenceEntry{
			RefID:       refID,
			Raw:         rawEntry,
			RefNumber:   refNumber,
			DOI:         doi,
			Year:        year,
			FirstAuthor: firstAuthor,
		})
	}

	return refs, appendPayloadNotes(payload.Notes, notes), nil
}

// ExtractReferencesSectionAI asks the model to locate the bibliography when
// no heading matched. Returns "" when the model found none.
func ExtractReferencesSectionAI(ctx context.Context, client ai.Client, fullText string, maxChars int) (string, []string, error) {
	var notes []string
	text := strings.TrimSpace(fullText)
	if text == "" {
		return "", nil, fmt.Errorf("no document text provided for references-section extraction")
	}
	if len(text) > maxChars {
		notes = append(notes, fmt.Sprintf("Document text truncated from %d to %d chars for references-section extraction.", len(text), maxChars))
		text = text[len(text)-maxChars:]
		notes = append(notes, "Used tail of document for references-section extraction.")
	}

	raw, err := client.ChatJSON(ctx, refSectionSystemPrompt, refSectionPrompt(text))
	if err != nil {
		return "", nil, err
	}

	var payload aiRefSectionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", nil, fmt.Errorf("%w: references-section payload: %v", ai.ErrInvalidOutput, err)
	}
	if payload.Confidence != "" {
		conf, err := payload.Confidence.Float64()
		if err != nil {
			return "", nil, fmt.Errorf("%w: references-section confidence must be a number 0..1", ai.ErrInvalidOutput)
		}
		if conf < 0 || conf > 1 {
			return "", nil, fmt.Errorf("%w: references-section confidence out of range", ai.ErrInvalidOutput)
		}
	}

	refsText := ""
	if payload.ReferencesText != nil {
		refsText = strings.TrimSpace(*payload.ReferencesText)
	}
	return refsText, appendPayloadNotes(payload.Notes, notes), nil
}

// ParseCitationsAI extracts in-text citations with the model. Oversized
// documents are reduced to citation-like lines before prompting.
func ParseCitationsAI(ctx context.Context, client ai.Client, mainText string) ([]types.CitationInstance, []string, error) {
	var notes []string
	text := strings.TrimSpace(mainText)
	if text == "" {
		return nil, nil, fmt.Errorf("no main text provided for model citation parsing")
	}

	content := text
	if len(text) > citationParseMaxChars {
		var picked []string
		total := 0
		for _, ln := range strings.Split(text, "\n") {
			ln = strings.TrimSpace(ln)
			if ln == "" || !looksLikeCitationLine(ln) {
				continue
			}
			if len(picked) >= citationParseMaxLines {
				break
			}
			if total+len(ln)+1 > citationParseMaxCandidateChars {
				break
			}
			picked = append(picked, ln)
			total += len(ln) + 1
		}
		content = strings.Join(picked, "\n")
		notes = append(notes, fmt.Sprintf(
			"Main text too large for full model pass (%d chars); sent %d chars of citation-like lines.", len(text), len(content)))
	}

	raw, err := client.ChatJSON(ctx, citationsSystemPrompt, citationsPrompt(content))
	if err != nil {
		return nil, nil, err
	}

	var payload aiCitationsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, nil, fmt.Errorf("%w: citations payload: %v", ai.ErrInvalidOutput, err)
	}
	if payload.Citations == nil {
		return nil, nil, fmt.Errorf("%w: citations payload missing 'citations' list", ai.ErrInvalidOutput)
	}

	var citations []types.CitationInstance
	for _, item := range payload.Citations {
		kind := types.CitationKind(strings.ToLower(strings.TrimSpace(item.Kind)))
		if kind != types.CitationNumeric && kind != types.CitationAuthorYear {
			continue
		}
		rawCit := strings.TrimSpace(item.Raw)
		locator := strings.ToLower(strings.TrimSpace(item.Locator))
		context := strings.TrimSpace(item.Context)
		if rawCit == "" || locator == "" || context == "" {
			continue
		}
		citations = append(citations, types.CitationInstance{Kind: kind, Raw: rawCit, Locator: locator, Context: context})
	}

	return citations, appendPayloadNotes(payload.Notes, notes), nil
}

func referencesPrompt(text string, maxRefs int) string {
	return "Extract bibliography entries into a standard JSON format.\n\n" +
		"Return a JSON object with keys:\n" +
		"- references: array of objects, in the same order as the input.\n" +
		"  Each object must contain:\n" +
		"  - id: string (stable within this response; prefer the numeric reference number as a string if present)\n" +
		"  - raw: string (verbatim as much as possible)\n" +
		"  - ref_number: integer|null\n" +
		"  - doi: string|null (bare DOI only, lowercase, no URL)\n" +
		"  - year: integer|null\n" +
		"  - first_author: string|null (family name only)\n" +
		"  - csl: object|null (CSL-JSON item; include DOI as 'DOI' if known)\n" +
		"- notes: array of strings\n\n" +
		fmt.Sprintf("Do not return more than %d references.\n", maxRefs) +
		"If unsure, keep fields null.\n\n" +
		"REFERENCES TEXT:\n" + text
}

func refSectionPrompt(text string) string {
	return "Identify the References/Bibliography section in the document and return it verbatim.\n\n" +
		"Return JSON with keys:\n" +
		"- references_text: string|null (verbatim section text)\n" +
		"- confidence: number 0..1\n" +
		"- notes: array of strings\n\n" +
		"DOCUMENT TEXT:\n" + text
}

func citationsPrompt(text string) string {
	return "Extract in-text citations.\n\n" +
		"Return a JSON object with keys:\n" +
		"- citations: array of objects with fields:\n" +
		"  - kind: 'numeric' or 'author_year'\n" +
		"  - raw: the exact citation marker text (e.g., '[12]' or '(Smith, 2020)')\n" +
		"  - locator:\n" +
		"    - for numeric: the referenced number as a string (e.g., '12')\n" +
		"    - for author_year: '<family>-<year>' lowercased (e.g., 'smith-2020')\n" +
		"  - context: the surrounding sentence (or line) where the citation occurs\n" +
		"- notes: array of strings\n\n" +
		"Do not invent missing author names. If you cannot derive a locator, omit that citation.\n\n" +
		"TEXT:\n" + text
}

var citationHintNumericRe = regexp.MustCompile(`\[\s*\d`)
var citationHintAuthorRe = regexp.MustCompile(`\b(et\s+al\.|\([A-Za-z].*?(19|20)\d{2})`)

func looksLikeCitationLine(line string) bool {
	if citationHintNumericRe.MatchString(line) {
		return true
	}
	hasYear := ayYearRe.MatchString(line)
	if hasYear && citationHintAuthorRe.MatchString(line) {
		return true
	}
	if hasYear && strings.Contains(strings.ToLower(line), "et al") {
		return true
	}
	return false
}

func safeInt(n json.Number) int {
	if n == "" {
		return 0
	}
	v, err := n.Int64()
	if err != nil {
		if f, ferr := n.Float64(); ferr == nil {
			return int(f)
		}
		return 0
	}
	return int(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func appendPayloadNotes(payload []string, existing []string) []string {
	var out []string
	for _, n := range payload {
		if strings.TrimSpace(n) != "" {
			out = append(out, n)
		}
	}
	return append(out, existing...)
}
