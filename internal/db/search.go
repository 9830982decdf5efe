package db

import (
	"encoding/binary"
	"math"
)

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName string
	Vector    []float32
	// K is the number of neighbours returned.
	K int
	// EFRuntime widens the HNSW candidate list at query time (0 leaves the server default).
	EFRuntime    int
	ReturnFields []string
	// Distance selects the distance-to-similarity conversion (default cosine).
	Distance DistanceMetric
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// EncodeVector encodes v as little-endian FLOAT32 bytes, the wire format of
// vector hash fields and KNN query parameters.
func EncodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
