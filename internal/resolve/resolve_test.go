// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citeguard/internal/ai"
	"github.com/pdiddy/citeguard/internal/sources"
	"github.com/pdiddy/citeguard/pkg/types"
)

// fakeSource serves canned records keyed by identifier plus fixed search
// results, counting calls.
type fakeSource struct {
	name       string
	byID       map[string]*sources.Record
	searchHits []sources.Record

	mu          sync.Mutex
	getCalls    int
	searchCalls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) GetByIdentifier(_ context.Context, id string) (*sources.Record, error) {
	f.mu.Lock()
	f.getCalls++
	f.mu.Unlock()
	return f.byID[id], nil
}

func (f *fakeSource) Search(_ context.Context, _ string, _ int) ([]sources.Record, error) {
	f.mu.Lock()
	f.searchCalls++
	f.mu.Unlock()
	return f.searchHits, nil
}

type fakeChooser struct {
	payload string
	calls   int
}

func (f *fakeChooser) ChatJSON(context.Context, string, string) (json.RawMessage, error) {
	f.calls++
	return json.RawMessage(f.payload), nil
}

func newResolver(srcs []sources.Source, client ai.Client, limit int) *Resolver {
	return New(srcs, client, ai.NewBudget("resolve", limit), 2, 10, nil)
}

func TestResolveByDOIFirstSourceWins(t *testing.T) {
	openalex := &fakeSource{name: "openalex", byID: map[string]*sources.Record{
		"10.1234/abc": {
			SourceID: "https://openalex.org/W1", DOI: "10.1234/abc",
			Title: "Attention Is All You Need", Year: 2017,
			Venue: "NeurIPS", Publisher: "Curran", Authors: []string{"Ashish Vaswani"},
		},
	}}
	crossref := &fakeSource{name: "crossref"}

	r := newResolver([]sources.Source{openalex, crossref}, &fakeChooser{}, 5)
	out, err := r.Resolve(context.Background(), []types.ReferenceEntry{
		{RefID: "1", Raw: "[1] Vaswani...", DOI: "10.1234/abc", Year: 2017},
	}, nil)
	require.NoError(t, err)

	w := out["1"]
	require.NotNil(t, w)
	assert.Equal(t, "openalex", w.Source)
	assert.Equal(t, 1.0, w.Confidence)
	assert.Equal(t, "https://openalex.org/W1", w.OpenAlexID)
	assert.Equal(t, "Linked to OpenAlex by DOI.", w.ResolutionNotes)
	assert.Equal(t, 0, crossref.searchCalls)
}

func TestResolveFallsThroughChain(t *testing.T) {
	openalex := &fakeSource{name: "openalex"}
	crossref := &fakeSource{name: "crossref", byID: map[string]*sources.Record{
		"10.1234/abc": {SourceID: "10.1234/abc", DOI: "10.1234/abc", Title: "Some Work", Year: 2020},
	}}

	r := newResolver([]sources.Source{openalex, crossref}, &fakeChooser{}, 5)
	out, err := r.Resolve(context.Background(), []types.ReferenceEntry{
		{RefID: "1", Raw: "entry", DOI: "10.1234/abc"},
	}, nil)
	require.NoError(t, err)

	w := out["1"]
	assert.Equal(t, "crossref", w.Source)
	assert.Equal(t, "Linked to Crossref by DOI.", w.ResolutionNotes)
	assert.Equal(t, 1, openalex.searchCalls)
}

func TestResolveSearchAutoAccept(t *testing.T) {
	hit := sources.Record{
		SourceID: "https://openalex.org/W2", DOI: "10.9/x",
		Title: "Deep residual learning for image recognition", Year: 2016,
		Authors: []string{"Kaiming He"},
	}
	openalex := &fakeSource{
		name:       "openalex",
		searchHits: []sources.Record{hit},
		byID:       map[string]*sources.Record{"https://openalex.org/W2": &hit},
	}

	chooser := &fakeChooser{}
	r := newResolver([]sources.Source{openalex}, chooser, 5)
	out, err := r.Resolve(context.Background(), []types.ReferenceEntry{
		{RefID: "1", Raw: "He, K. Deep residual learning for image recognition. 2016.", Year: 2016, FirstAuthor: "he"},
	}, nil)
	require.NoError(t, err)

	w := out["1"]
	assert.Equal(t, "openalex", w.Source)
	assert.Equal(t, "Resolved via OpenAlex search.", w.ResolutionNotes)
	assert.GreaterOrEqual(t, w.Confidence, 0.93)
	assert.Equal(t, 0, chooser.calls)
	assert.Equal(t, "10.9/x", w.DOI)
}

func TestResolveSearchLLMReview(t *testing.T) {
	// Two plausible candidates around 0.70 force a model call.
	hits := []sources.Record{
		{SourceID: "W-a", Title: "Graph neural networks survey methods applications", Year: 2020, Authors: []string{"A Wu"}},
		{SourceID: "W-b", Title: "Graph neural networks survey training systems", Year: 2020, Authors: []string{"B Xu"}},
	}
	openalex := &fakeSource{
		name:       "openalex",
		searchHits: hits,
		byID:       map[string]*sources.Record{"W-b": &hits[1]},
	}
	chooser := &fakeChooser{payload: `{"best_id": "W-b", "confidence": 0.8, "rationale": "venue matches"}`}
	budget := ai.NewBudget("resolve", 5)
	r := New([]sources.Source{openalex}, chooser, budget, 1, 10, nil)

	out, err := r.Resolve(context.Background(), []types.ReferenceEntry{
		{RefID: "1", Raw: "Xu, B. Graph neural networks survey. 2020.", Year: 2020, FirstAuthor: "xu"},
	}, nil)
	require.NoError(t, err)

	w := out["1"]
	assert.Equal(t, "openalex", w.Source)
	assert.Equal(t, 0.8, w.Confidence)
	assert.Equal(t, "Resolved via OpenAlex search (LLM disambiguation).", w.ResolutionNotes)
	assert.Equal(t, 1, chooser.calls)
	assert.Equal(t, 1, budget.Used())
}

func TestResolveLLMBudgetExhaustedFatal(t *testing.T) {
	hits := []sources.Record{
		{SourceID: "W-a", Title: "Graph neural networks survey methods applications", Year: 2020, Authors: []string{"A Wu"}},
		{SourceID: "W-b", Title: "Graph neural networks survey training systems", Year: 2020, Authors: []string{"B Xu"}},
	}
	openalex := &fakeSource{name: "openalex", searchHits: hits}
	chooser := &fakeChooser{payload: `{"best_id": "W-b", "confidence": 0.8}`}
	r := New([]sources.Source{openalex}, chooser, ai.NewBudget("resolve", 0), 1, 10, nil)

	_, err := r.Resolve(context.Background(), []types.ReferenceEntry{
		{RefID: "1", Raw: "Xu, B. Graph neural networks survey. 2020.", Year: 2020, FirstAuthor: "xu"},
	}, nil)
	require.ErrorIs(t, err, ai.ErrBudgetExceeded)
}

func TestResolveUnresolved(t *testing.T) {
	openalex := &fakeSource{name: "openalex"}
	arxiv := &fakeSource{name: "arxiv"}
	r := newResolver([]sources.Source{openalex, arxiv}, &fakeChooser{}, 5)

	out, err := r.Resolve(context.Background(), []types.ReferenceEntry{
		{RefID: "1", Raw: "Unfindable entry zzz qqq.", Year: 1999},
	}, nil)
	require.NoError(t, err)

	w := out["1"]
	assert.Empty(t, w.Source)
	assert.Equal(t, 0.0, w.Confidence)
	assert.Equal(t, "Unresolved in OpenAlex/arXiv.", w.ResolutionNotes)
}

func TestResolveDOICacheIdempotent(t *testing.T) {
	openalex := &fakeSource{name: "openalex", byID: map[string]*sources.Record{
		"10.1234/abc": {SourceID: "W1", DOI: "10.1234/abc", Title: "Cached Work", Year: 2020},
	}}
	r := New([]sources.Source{openalex}, &fakeChooser{}, ai.NewBudget("resolve", 5), 1, 10, nil)

	refs := []types.ReferenceEntry{
		{RefID: "1", Raw: "first mention doi:10.1234/abc"},
		{RefID: "2", Raw: "second mention doi:10.1234/abc"},
	}
	out, err := r.Resolve(context.Background(), refs, nil)
	require.NoError(t, err)

	require.NotNil(t, out["1"])
	require.NotNil(t, out["2"])
	assert.Equal(t, "Cached Work", out["1"].Title)
	assert.Equal(t, "Cached Work", out["2"].Title)
	assert.Equal(t, "1", out["1"].RefID)
	assert.Equal(t, "2", out["2"].RefID)
	assert.Equal(t, 1, openalex.getCalls)
}

func TestResolveDOIDiscrepancyNoted(t *testing.T) {
	openalex := &fakeSource{name: "openalex", byID: map[string]*sources.Record{
		"10.1/ref": {SourceID: "W1", DOI: "10.2/other", Title: "Different DOI", Year: 2020},
	}}
	r := newResolver([]sources.Source{openalex}, &fakeChooser{}, 5)

	out, err := r.Resolve(context.Background(), []types.ReferenceEntry{
		{RefID: "1", Raw: "entry", DOI: "10.1/ref"},
	}, nil)
	require.NoError(t, err)

	w := out["1"]
	assert.Equal(t, "10.2/other", w.DOI)
	assert.Contains(t, w.ResolutionNotes, "Resolved DOI differs from reference DOI.")
}

func TestResolveArxivIDFromRaw(t *testing.T) {
	arxiv := &fakeSource{name: "arxiv", byID: map[string]*sources.Record{
		"1706.03762": {SourceID: "1706.03762", Title: "Attention Is All You Need", Year: 2017},
	}}
	r := newResolver([]sources.Source{arxiv}, &fakeChooser{}, 5)

	out, err := r.Resolve(context.Background(), []types.ReferenceEntry{
		{RefID: "1", Raw: "Vaswani et al. arXiv:1706.03762, 2017."},
	}, nil)
	require.NoError(t, err)

	w := out["1"]
	assert.Equal(t, "arxiv", w.Source)
	assert.Equal(t, "1706.03762", w.ArxivID)
	assert.Equal(t, "Linked to arXiv by ID.", w.ResolutionNotes)
}

func TestArxivIDFromText(t *testing.T) {
	assert.Equal(t, "1706.03762", arxivIDFromText("see https://arxiv.org/abs/1706.03762."))
	assert.Equal(t, "1706.03762", arxivIDFromText("https://arxiv.org/pdf/1706.03762.pdf"))
	assert.Equal(t, "2005.11401", arxivIDFromText("arXiv: 2005.11401 [cs.CL]"))
	assert.Empty(t, arxivIDFromText("no identifier here"))
}

func TestResolveProgressReported(t *testing.T) {
	openalex := &fakeSource{name: "openalex"}
	r := New([]sources.Source{openalex}, &fakeChooser{}, ai.NewBudget("resolve", 5), 1, 10, nil)

	var messages []string
	_, err := r.Resolve(context.Background(), []types.ReferenceEntry{
		{RefID: "1", Raw: "a"},
		{RefID: "2", Raw: "b"},
	}, func(msg string, _ float64) { messages = append(messages, msg) })
	require.NoError(t, err)
	require.NotEmpty(t, messages)
	assert.Equal(t, "Resolving 2 references", messages[0])
	assert.Equal(t, "Resolved 2/2 references", messages[len(messages)-1])
}
