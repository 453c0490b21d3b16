package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAttrs() map[string]any {
	return map[string]any{
		KeyIDs:      []int{10, 11},
		KeyFeatureA: [][]float32{{1, 2}, {3, 4}},
		KeyFeatureB: [][]float32{{0.5}, {1.5}},
	}
}

func checkStore(t *testing.T, s Store) {
	t.Helper()
	assert.True(t, s.Has(KeyIDs))
	assert.False(t, s.Has("label_list"))

	var ids []float64
	require.NoError(t, s.Decode(KeyIDs, &ids))
	assert.Equal(t, []float64{10, 11}, ids)

	var a [][]float32
	require.NoError(t, s.Decode(KeyFeatureA, &a))
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, a)

	err := s.Decode("label_list", &a)
	assert.ErrorIs(t, err, ErrAttributeMissing)
}

func TestMemoryStore(t *testing.T) {
	checkStore(t, NewMemory(sampleAttrs()))
}

func TestZarrStore(t *testing.T) {
	root := filepath.Join(t.TempDir(), "dataset.zarr")
	require.NoError(t, WriteZarrAttrs(root, sampleAttrs()))

	s, err := Open(root)
	require.NoError(t, err)
	checkStore(t, s)
}

func TestYAMLStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attrs.yaml")
	doc := `contig_id_list: [10, 11]
tnf_list:
  - [1, 2]
  - [3, 4]
rpkm_list:
  - [0.5]
  - [1.5]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s, err := Open(path)
	require.NoError(t, err)
	checkStore(t, s)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = Open(path)
	assert.Error(t, err)

	// A directory without .zattrs is not a zarr group.
	_, err = Open(t.TempDir())
	assert.Error(t, err)
}
