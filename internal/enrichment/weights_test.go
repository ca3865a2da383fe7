package enrichment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()
	assert.InDelta(t, 0.5, w.Default, 1e-9)
	assert.InDelta(t, 0.95, w.For("hunter", "owner_email"), 1e-9)
	assert.InDelta(t, 0.95, w.For("HUNTER", "owner_email"), 1e-9)
	assert.InDelta(t, 0.6, w.For("hunter", "revenue"), 1e-9, "vendor default")
	assert.InDelta(t, 0.5, w.For("acme-data", "revenue"), 1e-9, "global default")
	assert.Greater(t, w.For("hunter", "owner_email"), w.For("apollo", "revenue"))
}

func TestLoadWeights(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default: 0.4
vendors:
  Hunter:
    owner_email: 1.0
`), 0o600))

	w, err := LoadWeights(path)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, w.For("hunter", "owner_email"), 1e-9)
	assert.InDelta(t, 0.4, w.For("hunter", "owner_name"), 1e-9)

	w, err = LoadWeights("")
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights(), w)

	_, err = LoadWeights(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestParseWeights_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "vendors: ["},
		{"global out of range", "default: 1.5"},
		{"vendor default out of range", "vendors:\n  hunter:\n    default: 2"},
		{"field out of range", "vendors:\n  hunter:\n    owner_name: -0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWeights([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
