package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRows(paths ...string) []RowMetadata {
	rows := make([]RowMetadata, len(paths))
	for i, p := range paths {
		rows[i] = RowMetadata{
			RelativePath: p,
			Title:        p,
			ChunkIndex:   0,
			ChunkTotal:   1,
			Content:      "content of " + p,
			ModifiedTime: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		}
	}
	return rows
}

func TestVectorDataAppendAndRow(t *testing.T) {
	v := NewVectorData(3)
	require.NoError(t, v.AppendRow([]float32{1, 2, 3}))
	require.NoError(t, v.AppendRow([]float32{4, 5, 6}))

	assert.Equal(t, 2, v.Len())
	assert.Equal(t, []float32{1, 2, 3}, v.Row(0))
	assert.Equal(t, []float32{4, 5, 6}, v.Row(1))

	assert.Error(t, v.AppendRow([]float32{1, 2}))
}

func TestVectorDataSetRow(t *testing.T) {
	v := NewVectorData(2)
	require.NoError(t, v.AppendRow([]float32{1, 0}))
	require.NoError(t, v.SetRow(0, []float32{0, 1}))
	assert.Equal(t, []float32{0, 1}, v.Row(0))
}

func TestVectorDataDeleteRowsDescending(t *testing.T) {
	v := NewVectorData(1)
	for i := 0; i < 5; i++ {
		require.NoError(t, v.AppendRow([]float32{float32(i)}))
	}

	v.DeleteRowsDescending([]int{3, 1})

	assert.Equal(t, 3, v.Len())
	assert.Equal(t, []float32{0}, v.Row(0))
	assert.Equal(t, []float32{2}, v.Row(1))
	assert.Equal(t, []float32{4}, v.Row(2))
}

func TestVectorDataSearch(t *testing.T) {
	v := NewVectorData(2)
	require.NoError(t, v.AppendRow([]float32{1, 0}))
	require.NoError(t, v.AppendRow([]float32{0, 1}))
	require.NoError(t, v.AppendRow([]float32{0.707, 0.707}))

	results := v.Search([]float32{1, 0}, 2)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Row)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, 2, results[1].Row)
}

func TestVectorDataSearchTieBreaksByRow(t *testing.T) {
	v := NewVectorData(2)
	require.NoError(t, v.AppendRow([]float32{1, 0}))
	require.NoError(t, v.AppendRow([]float32{1, 0}))

	results := v.Search([]float32{1, 0}, 2)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Row)
	assert.Equal(t, 1, results[1].Row)
}

func TestFlatStoreSaveLoadRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".vaultmcp")
	s := NewFlatVectorStore(dir, nil)

	v := NewVectorData(4)
	require.NoError(t, v.AppendRow([]float32{0.1, -0.2, 0.3, 0.999}))
	require.NoError(t, v.AppendRow([]float32{-1, 0, 1e-8, 42.5}))

	rows := makeRows("a.md", "b.md")
	meta := &IndexMetadata{
		VaultPath:   "/vault",
		VaultName:   "vault",
		EncoderName: "static",
		Dimension:   4,
		VectorDType: "float32",
		IndexedAt:   time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
	}
	meta.RebuildFileTracking(rows)

	require.NoError(t, s.Save(v, rows, meta))

	gotV, gotRows, gotMeta, err := s.Load()
	require.NoError(t, err)

	// Bitwise vector round trip
	assert.Equal(t, v.data, gotV.data)
	assert.Equal(t, v.Dims(), gotV.Dims())

	assert.Equal(t, rows, gotRows)
	assert.Equal(t, meta.VaultPath, gotMeta.VaultPath)
	assert.Equal(t, meta.EncoderName, gotMeta.EncoderName)
	assert.True(t, meta.IndexedAt.Equal(gotMeta.IndexedAt))
	require.Contains(t, gotMeta.FileTracking, "a.md")
	assert.Equal(t, 0, gotMeta.FileTracking["a.md"].RowStart)
	assert.Equal(t, 1, gotMeta.FileTracking["a.md"].RowCount)
}

func TestFlatStoreLoadFirstRun(t *testing.T) {
	s := NewFlatVectorStore(filepath.Join(t.TempDir(), ".vaultmcp"), nil)

	v, rows, meta, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Nil(t, rows)
	assert.Nil(t, meta)

	m, err := s.LoadMetadata()
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestFlatStoreSaveLengthMismatch(t *testing.T) {
	s := NewFlatVectorStore(filepath.Join(t.TempDir(), ".vaultmcp"), nil)

	v := NewVectorData(2)
	require.NoError(t, v.AppendRow([]float32{1, 0}))

	err := s.Save(v, makeRows("a.md", "b.md"), &IndexMetadata{})
	assert.Error(t, err)
}

func TestFlatStoreClear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".vaultmcp")
	s := NewFlatVectorStore(dir, nil)

	v := NewVectorData(1)
	require.NoError(t, v.AppendRow([]float32{1}))
	require.NoError(t, s.Save(v, makeRows("a.md"), &IndexMetadata{Dimension: 1}))

	require.NoError(t, s.Clear())

	gotV, _, _, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, gotV)

	// Clearing twice is fine
	require.NoError(t, s.Clear())
}

func TestDecodeVectorsTruncated(t *testing.T) {
	v := NewVectorData(2)
	require.NoError(t, v.AppendRow([]float32{1, 2}))
	buf := encodeVectors(v)

	_, err := decodeVectors(buf[:len(buf)-2])
	assert.Error(t, err)

	_, err = decodeVectors([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestRebuildFileTrackingMultiChunk(t *testing.T) {
	rows := []RowMetadata{
		{RelativePath: "a.md", ChunkIndex: 0, ChunkTotal: 2},
		{RelativePath: "a.md", ChunkIndex: 1, ChunkTotal: 2},
		{RelativePath: "b.md", ChunkIndex: 0, ChunkTotal: 1},
	}
	var meta IndexMetadata
	meta.RebuildFileTracking(rows)

	assert.Equal(t, 0, meta.FileTracking["a.md"].RowStart)
	assert.Equal(t, 2, meta.FileTracking["a.md"].RowCount)
	assert.Equal(t, 2, meta.FileTracking["b.md"].RowStart)
	assert.Equal(t, 1, meta.FileTracking["b.md"].RowCount)
}
