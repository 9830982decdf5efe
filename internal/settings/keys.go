package settings

// Setting keys tracked by the cache.
const (
	KeyIndexStoreEnable      = "indexstore:enable"
	KeyIndexStoreHost        = "indexstore:host"
	KeyIndexStorePort        = "indexstore:port"
	KeySearchEnable          = "semanticsearch:enable"
	KeyAIHost                = "ai:host"
	KeyAIToken               = "ai:basicToken"
	KeyAutotaggerEnable      = "autotagger:enable"
	KeyTaggerPreferences     = "tagger:preferences"
	KeyTaggerStrategy        = "tagger:strategy"
	KeyTaggerStrategyOptions = "tagger:strategyOptions"
	KeyTaggerInference       = "tagger:inference:enable"
	KeyEmbeddingDimension    = "embeddings:dimension"
	KeySimilarityFunction    = "embeddings:similarityFunction"
)

// TrackedKeys is the allow-list of settings the cache loads and reacts to.
var TrackedKeys = []string{
	KeyIndexStoreEnable,
	KeyIndexStoreHost,
	KeyIndexStorePort,
	KeySearchEnable,
	KeyAIHost,
	KeyAIToken,
	KeyAutotaggerEnable,
	KeyTaggerPreferences,
	KeyTaggerStrategy,
	KeyTaggerStrategyOptions,
	KeyTaggerInference,
	KeyEmbeddingDimension,
	KeySimilarityFunction,
}

var tracked = func() map[string]struct{} {
	m := make(map[string]struct{}, len(TrackedKeys))
	for _, k := range TrackedKeys {
		m[k] = struct{}{}
	}
	return m
}()

// IsTracked reports whether key is in the allow-list.
func IsTracked(key string) bool {
	_, ok := tracked[key]
	return ok
}
