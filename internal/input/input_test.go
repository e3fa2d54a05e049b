// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper.txt")
	require.NoError(t, os.WriteFile(path, []byte("A manuscript.\n\nReferences\n[1] X.\n"), 0o644))

	text, err := Load(path)
	require.NoError(t, err)
	assert.Contains(t, text, "A manuscript.")
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.md")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "is empty")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
