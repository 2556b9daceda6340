package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/natefinch/atomic"

	vmcperrors "github.com/vaultmcp/vaultmcp/internal/errors"
	"github.com/vaultmcp/vaultmcp/internal/logging"
)

// vectorsMagic identifies the dense vector payload format.
var vectorsMagic = [4]byte{'V', 'M', 'V', '1'}

// VectorData is the flat row-major float32 vector array. Row i of the array
// corresponds to metadata row i.
type VectorData struct {
	dims int
	data []float32
}

// NewVectorData creates an empty array with the given dimension.
func NewVectorData(dims int) *VectorData {
	return &VectorData{dims: dims}
}

// Len returns the number of rows.
func (v *VectorData) Len() int {
	if v.dims == 0 {
		return 0
	}
	return len(v.data) / v.dims
}

// Dims returns the vector dimension.
func (v *VectorData) Dims() int { return v.dims }

// Row returns a view of row i. The slice aliases the underlying array and
// must not be mutated.
func (v *VectorData) Row(i int) []float32 {
	return v.data[i*v.dims : (i+1)*v.dims]
}

// AppendRow adds a vector at the end.
func (v *VectorData) AppendRow(vec []float32) error {
	if len(vec) != v.dims {
		return fmt.Errorf("vector dimension %d, want %d", len(vec), v.dims)
	}
	v.data = append(v.data, vec...)
	return nil
}

// SetRow overwrites row i in place.
func (v *VectorData) SetRow(i int, vec []float32) error {
	if len(vec) != v.dims {
		return fmt.Errorf("vector dimension %d, want %d", len(vec), v.dims)
	}
	copy(v.data[i*v.dims:(i+1)*v.dims], vec)
	return nil
}

// DeleteRowsDescending removes the given rows. The slice must be sorted in
// descending order so each removal leaves lower indices untouched.
func (v *VectorData) DeleteRowsDescending(rows []int) {
	for _, r := range rows {
		v.data = append(v.data[:r*v.dims], v.data[(r+1)*v.dims:]...)
	}
}

// Clone returns a deep copy. Writers clone the current generation before
// merging so readers keep an unchanging view.
func (v *VectorData) Clone() *VectorData {
	data := make([]float32, len(v.data))
	copy(data, v.data)
	return &VectorData{dims: v.dims, data: data}
}

// Search computes the dot product of query against every row and returns the
// topK rows by score. Vectors are unit-normalized so this is cosine
// similarity. Ties break by ascending row.
func (v *VectorData) Search(query []float32, topK int) []SemanticResult {
	n := v.Len()
	if n == 0 || topK <= 0 {
		return nil
	}

	results := make([]SemanticResult, n)
	for i := 0; i < n; i++ {
		row := v.Row(i)
		var dot float64
		for j := range row {
			dot += float64(row[j]) * float64(query[j])
		}
		results[i] = SemanticResult{Row: i, Score: dot}
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].Row < results[b].Row
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results
}

// Similarity returns the dot product of query against row i.
func (v *VectorData) Similarity(query []float32, i int) float64 {
	row := v.Row(i)
	var dot float64
	for j := range row {
		dot += float64(row[j]) * float64(query[j])
	}
	return dot
}

// FlatVectorStore persists the vector array, row metadata, and index
// metadata under a storage dot-directory.
type FlatVectorStore struct {
	dir    string
	logger *slog.Logger
}

// NewFlatVectorStore creates a store rooted at dir. The directory is created
// on first save.
func NewFlatVectorStore(dir string, logger *slog.Logger) *FlatVectorStore {
	if logger == nil {
		logger = logging.Discard()
	}
	return &FlatVectorStore{dir: dir, logger: logger}
}

// Dir returns the storage directory.
func (s *FlatVectorStore) Dir() string { return s.dir }

// LexicalPath returns the directory the lexical index persists under.
func (s *FlatVectorStore) LexicalPath() string {
	return filepath.Join(s.dir, LexicalDir)
}

// Save atomically replaces the persisted index. Precondition:
// vectors.Len() == len(rows).
func (s *FlatVectorStore) Save(vectors *VectorData, rows []RowMetadata, meta *IndexMetadata) error {
	if vectors.Len() != len(rows) {
		return vmcperrors.Newf(vmcperrors.KindIndex,
			"vector rows (%d) and metadata rows (%d) out of sync", vectors.Len(), len(rows))
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return vmcperrors.IndexError("creating storage directory", err).
			WithDetail("dir", s.dir)
	}

	if err := atomic.WriteFile(filepath.Join(s.dir, VectorsFile),
		bytes.NewReader(encodeVectors(vectors))); err != nil {
		return vmcperrors.IndexError("writing vectors", err)
	}

	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return vmcperrors.IndexError("encoding row metadata", err)
	}
	if err := atomic.WriteFile(filepath.Join(s.dir, RowsFile), bytes.NewReader(rowsJSON)); err != nil {
		return vmcperrors.IndexError("writing row metadata", err)
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return vmcperrors.IndexError("encoding index metadata", err)
	}
	if err := atomic.WriteFile(filepath.Join(s.dir, MetadataFile), bytes.NewReader(metaJSON)); err != nil {
		return vmcperrors.IndexError("writing index metadata", err)
	}

	s.logger.Debug("Index persisted",
		slog.String("dir", s.dir),
		slog.Int("rows", len(rows)),
		slog.Int("dimension", vectors.Dims()))
	return nil
}

// Load reads the persisted index. All three return values are nil on a
// clean first run (nothing persisted yet).
func (s *FlatVectorStore) Load() (*VectorData, []RowMetadata, *IndexMetadata, error) {
	vecBytes, err := os.ReadFile(filepath.Join(s.dir, VectorsFile))
	if os.IsNotExist(err) {
		return nil, nil, nil, nil
	}
	if err != nil {
		return nil, nil, nil, vmcperrors.IndexError("reading vectors", err)
	}

	vectors, err := decodeVectors(vecBytes)
	if err != nil {
		return nil, nil, nil, vmcperrors.IndexError("decoding vectors", err).
			WithSuggestion("the index may be corrupt; rebuild with 'vaultmcp index --force'")
	}

	rowsJSON, err := os.ReadFile(filepath.Join(s.dir, RowsFile))
	if err != nil {
		return nil, nil, nil, vmcperrors.IndexError("reading row metadata", err)
	}
	var rows []RowMetadata
	if err := json.Unmarshal(rowsJSON, &rows); err != nil {
		return nil, nil, nil, vmcperrors.IndexError("decoding row metadata", err)
	}

	meta, err := s.LoadMetadata()
	if err != nil {
		return nil, nil, nil, err
	}
	if meta == nil {
		return nil, nil, nil, vmcperrors.IndexError("index metadata missing", nil)
	}

	if vectors.Len() != len(rows) {
		return nil, nil, nil, vmcperrors.Newf(vmcperrors.KindIndex,
			"persisted index inconsistent: %d vector rows, %d metadata rows",
			vectors.Len(), len(rows))
	}

	return vectors, rows, meta, nil
}

// LoadMetadata reads only the index-metadata artifact. Returns nil with no
// error when absent (first run).
func (s *FlatVectorStore) LoadMetadata() (*IndexMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, MetadataFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, vmcperrors.IndexError("reading index metadata", err)
	}

	var meta IndexMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, vmcperrors.IndexError("decoding index metadata", err)
	}
	return &meta, nil
}

// Clear removes all persisted state including the lexical index.
func (s *FlatVectorStore) Clear() error {
	for _, name := range []string{VectorsFile, RowsFile, MetadataFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return vmcperrors.IndexError("clearing index", err).WithDetail("file", name)
		}
	}
	if err := os.RemoveAll(s.LexicalPath()); err != nil {
		return vmcperrors.IndexError("clearing lexical index", err)
	}
	return nil
}

// encodeVectors serializes the array: magic, row count, dimension, then
// row-major little-endian float32 bits.
func encodeVectors(v *VectorData) []byte {
	buf := make([]byte, 4+4+4+len(v.data)*4)
	copy(buf[0:4], vectorsMagic[:])
	binary.LittleEndian.PutUint32(buf[4:8], uint32(v.Len()))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(v.dims))
	for i, f := range v.data {
		binary.LittleEndian.PutUint32(buf[12+i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVectors is the inverse of encodeVectors and validates the payload
// length so truncated writes are detected.
func decodeVectors(buf []byte) (*VectorData, error) {
	if len(buf) < 12 {
		return nil, fmt.Errorf("vector payload too short: %d bytes", len(buf))
	}
	if !bytes.Equal(buf[0:4], vectorsMagic[:]) {
		return nil, fmt.Errorf("bad vector payload magic")
	}
	rowCount := int(binary.LittleEndian.Uint32(buf[4:8]))
	dims := int(binary.LittleEndian.Uint32(buf[8:12]))

	want := 12 + rowCount*dims*4
	if len(buf) != want {
		return nil, fmt.Errorf("vector payload truncated: %d bytes, want %d", len(buf), want)
	}

	data := make([]float32, rowCount*dims)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[12+i*4:]))
	}
	return &VectorData{dims: dims, data: data}, nil
}
