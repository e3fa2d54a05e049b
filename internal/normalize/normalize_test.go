// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDOI(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", "10.1234/abc.def", "10.1234/abc.def"},
		{"url prefix", "https://doi.org/10.1234/ABC", "10.1234/abc"},
		{"doi prefix", "doi:10.1234/xyz", "10.1234/xyz"},
		{"bracketed", "[10.1234/xyz]", "10.1234/xyz"},
		{"trailing punctuation", "10.1234/xyz.", "10.1234/xyz"},
		{"embedded in text", "See https://doi.org/10.5555/12345678 for details", "10.5555/12345678"},
		{"none", "no identifier here", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DOI(tt.in))
		})
	}
}

func TestContentTokens(t *testing.T) {
	tokens := ContentTokens("The analysis of deep neural networks in the wild")
	assert.Contains(t, tokens, "analysis")
	assert.Contains(t, tokens, "deep")
	assert.Contains(t, tokens, "neural")
	assert.Contains(t, tokens, "wild")
	// Stopwords and short tokens are dropped.
	assert.NotContains(t, tokens, "the")
	assert.NotContains(t, tokens, "of")
	assert.NotContains(t, tokens, "in")
}

func TestAuthorName(t *testing.T) {
	assert.Equal(t, "gomezperez", AuthorName("Gómez-Pérez"))
	assert.Equal(t, "oconnor", AuthorName("O'Connor"))
	assert.Equal(t, "smith", AuthorName("  Smith "))
	assert.Equal(t, "", AuthorName(""))
	assert.Equal(t, AuthorName("Gómez Pérez"), AuthorName("Gomez Perez"))
}

func TestAuthorYearLocator(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"hyphenated key", "smith-2020", "smith-2020"},
		{"suffix year", "smith-2020b", "smith-2020b"},
		{"space separated", "Smith 2020", "smith-2020"},
		{"et al cut", "Smith et al. 2020", "smith-2020"},
		{"ampersand cut", "Smith & Jones 2021", "smith-2021"},
		{"comma cut", "Smith, Jones, and Lee 2019", "smith-2019"},
		{"glued year", "smith2020", "smith-2020"},
		{"author only", "smith", "smith"},
		{"diacritics", "Gómez-2018", "gomez-2018"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AuthorYearLocator(tt.in))
		})
	}
}

func TestAuthorYearKey(t *testing.T) {
	assert.Equal(t, "smith-2020", AuthorYearKey("Smith", 2020))
	assert.Equal(t, "", AuthorYearKey("Smith", 0))
	assert.Equal(t, "", AuthorYearKey("", 2020))
	assert.Equal(t, "smith-2020b", AuthorYearTokenKey("Smith", "2020b"))
}

func TestJaccard(t *testing.T) {
	a := ContentTokens("deep learning for citation analysis")
	b := ContentTokens("citation analysis with deep learning")
	assert.InDelta(t, 1.0, Jaccard(a, b), 1e-9)

	c := ContentTokens("unrelated quantum chemistry methods")
	assert.Equal(t, 0.0, Jaccard(a, map[string]struct{}{}))
	assert.Less(t, Jaccard(a, c), 0.2)
}
