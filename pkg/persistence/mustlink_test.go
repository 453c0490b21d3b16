package persistence

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sanonone/contigraph/pkg/features"
	"github.com/sanonone/contigraph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	idx, err := graph.NewIndexMap([]int64{7, 42, 1000000000123})
	require.NoError(t, err)
	return &graph.Graph{
		Index: idx,
		Entities: []graph.GraphedEntity{
			{RawEntity: features.RawEntity{ID: 7}, Neighbors: []graph.Neighbor{{ID: 42, Index: 1, Distance: 1}, {ID: 1000000000123, Index: 2, Distance: 2}}},
			{RawEntity: features.RawEntity{ID: 42}, Neighbors: []graph.Neighbor{{ID: 7, Index: 0, Distance: 1}}},
			{RawEntity: features.RawEntity{ID: 1000000000123}},
		},
	}
}

func TestExportFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "must_link.csv")

	n, err := Export(path, sampleGraph(t))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "7\t42\n7\t1000000000123\n42\t7\n", string(data))
}

func TestExportLineCountMatchesEdges(t *testing.T) {
	g := sampleGraph(t)
	path := filepath.Join(t.TempDir(), "ml.tsv")
	_, err := Export(path, g)
	require.NoError(t, err)

	edges, err := ReadMustLinks(path)
	require.NoError(t, err)
	assert.Len(t, edges, g.EdgeCount())
	assert.Equal(t, []Edge{{7, 42}, {7, 1000000000123}, {42, 7}}, edges)
}

func TestExportOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ml.tsv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("stale\n", 100)), 0644))

	_, err := Export(path, sampleGraph(t))
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = Export(path, sampleGraph(t))
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotContains(t, string(second), "stale")
}

func TestExportEmptyGraph(t *testing.T) {
	idx, err := graph.NewIndexMap(nil)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "ml.tsv")

	n, err := Export(path, &graph.Graph{Index: idx})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestExportOpenFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "ml.tsv")
	_, err := Export(path, sampleGraph(t))
	assert.ErrorIs(t, err, ErrWrite)

	// A directory cannot be opened for writing.
	_, err = Export(t.TempDir(), sampleGraph(t))
	assert.ErrorIs(t, err, ErrWrite)
}

type failingWriter struct{ after int }

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.after == 0 {
		return 0, errors.New("disk full")
	}
	f.after--
	return len(p), nil
}

func TestEncodeWriteFailure(t *testing.T) {
	n, err := Encode(&failingWriter{after: 1}, sampleGraph(t))
	assert.ErrorIs(t, err, ErrWrite)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, n)
}

func TestEncodeMatchesExport(t *testing.T) {
	var buf bytes.Buffer
	n, err := Encode(&buf, sampleGraph(t))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	path := filepath.Join(t.TempDir(), "ml.tsv")
	_, err = Export(path, sampleGraph(t))
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), data)
}

func TestWriterCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ml.tsv")
	w, err := NewMustLinkWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteEdge(1, 2))
	require.NoError(t, w.WriteEdge(2, 1))
	assert.Equal(t, 2, w.Count())
	assert.Equal(t, path, w.Path())
	require.NoError(t, w.Close())

	edges, err := ReadMustLinks(path)
	require.NoError(t, err)
	assert.Equal(t, []Edge{{1, 2}, {2, 1}}, edges)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode(strings.NewReader("1\t2\n3 4\n"))
	assert.ErrorIs(t, err, ErrMalformedLine)

	_, err = Decode(strings.NewReader("1\tx\n"))
	assert.ErrorIs(t, err, ErrMalformedLine)

	edges, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, edges)

	_, err = ReadMustLinks(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
