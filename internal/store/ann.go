package store

import (
	"sort"

	"github.com/coder/hnsw"
)

// ANNThreshold is the row count above which the search pipeline prefers the
// approximate graph over the exact scan.
const ANNThreshold = 20000

// ANNIndex is an optional HNSW accelerator built over the vector rows at
// load time. The exact dot-product scan remains the reference behavior; the
// graph only trades a little recall for latency on large vaults.
type ANNIndex struct {
	graph *hnsw.Graph[int]
	dims  int
}

// MaybeBuildANN builds the graph only past the size where the exact scan
// starts to hurt. Below the threshold it returns nil and the scan stays
// the reference path.
func MaybeBuildANN(vectors *VectorData) *ANNIndex {
	if vectors == nil || vectors.Len() < ANNThreshold {
		return nil
	}
	return BuildANNIndex(vectors)
}

// BuildANNIndex constructs the graph from every row of the array.
func BuildANNIndex(vectors *VectorData) *ANNIndex {
	graph := hnsw.NewGraph[int]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 40
	graph.Ml = 0.25

	for i := 0; i < vectors.Len(); i++ {
		vec := make([]float32, vectors.Dims())
		copy(vec, vectors.Row(i))
		graph.Add(hnsw.MakeNode(i, vec))
	}

	return &ANNIndex{graph: graph, dims: vectors.Dims()}
}

// Search returns the approximate topK rows by cosine similarity, ties by
// ascending row.
func (a *ANNIndex) Search(query []float32, topK int) []SemanticResult {
	if a.graph.Len() == 0 || topK <= 0 {
		return nil
	}

	nodes := a.graph.Search(query, topK)
	results := make([]SemanticResult, 0, len(nodes))
	for _, node := range nodes {
		var dot float64
		for j := range node.Value {
			dot += float64(node.Value[j]) * float64(query[j])
		}
		results = append(results, SemanticResult{Row: node.Key, Score: dot})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Row < results[j].Row
	})
	return results
}

// Len returns the number of indexed rows.
func (a *ANNIndex) Len() int {
	return a.graph.Len()
}
