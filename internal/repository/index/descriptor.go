package index

import (
	"sync/atomic"

	"github.com/kailas-cloud/deskindex/internal/db"
	"github.com/kailas-cloud/deskindex/internal/domain"
	"github.com/kailas-cloud/deskindex/internal/settings"
)

// Document hash fields.
const (
	FieldType   = "type"
	FieldSource = "source"
	FieldVector = "vector"
)

// PublicQA is the index holding public FAQ content.
const PublicQA = "public-qa"

// HNSWConfig HNSW index parameters. Zero values keep server defaults.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// SchemaFunc builds an index definition from the current settings.
type SchemaFunc func(name string, snap *settings.Snapshot, hnsw HNSWConfig) (*db.IndexDefinition, error)

// Descriptor is a registry entry for one logical search index.
type Descriptor struct {
	Name    string
	schema  SchemaFunc
	indexed atomic.Bool
}

// NewDescriptor creates a descriptor for name with the given schema builder.
func NewDescriptor(name string, schema SchemaFunc) *Descriptor {
	return &Descriptor{Name: name, schema: schema}
}

// Indexed reports whether the backing index is known to exist.
func (d *Descriptor) Indexed() bool {
	return d.indexed.Load()
}

// SetIndexed records whether the backing index exists.
func (d *Descriptor) SetIndexed(v bool) {
	d.indexed.Store(v)
}

// Prefix is the key prefix of documents belonging to the index.
func (d *Descriptor) Prefix() string {
	return d.Name + ":"
}

// Key returns the hash key of document id.
func (d *Descriptor) Key(id string) string {
	return d.Prefix() + id
}

// Schema builds the index definition for snap.
func (d *Descriptor) Schema(snap *settings.Snapshot, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	return d.schema(d.Name, snap, hnsw)
}

// VectorSchema indexes the document type as TAG and the embedding as an HNSW
// vector sized and measured per the embeddings settings.
func VectorSchema(name string, snap *settings.Snapshot, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	distance, err := db.DistanceFromSimilarity(snap.SimilarityFunction)
	if err != nil {
		return nil, domain.NewConfigurationError(settings.KeySimilarityFunction, err.Error())
	}
	return db.NewIndex(name).
		Prefix(name+":").
		Tag(FieldType).
		Vector(FieldVector, snap.EmbeddingDimension, distance, hnsw.M, hnsw.EFConstruct).
		Build()
}

// DefaultDescriptors returns the static index registry.
func DefaultDescriptors() []*Descriptor {
	return []*Descriptor{
		NewDescriptor(PublicQA, VectorSchema),
	}
}
