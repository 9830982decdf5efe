package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
)

// Defaults applied when a setting is absent.
const (
	DefaultIndexStoreHost     = "localhost"
	DefaultIndexStorePort     = 6379
	DefaultEmbeddingDimension = 384
	DefaultSimilarityFunction = "cosine"
)

// Snapshot is an immutable, fully populated view of the tracked settings.
// Never mutate a Snapshot obtained from the cache.
type Snapshot struct {
	IndexStoreEnabled bool
	IndexStoreHost    string
	IndexStorePort    int
	SearchEnabled     bool
	// Enabled is IndexStoreEnabled && SearchEnabled.
	Enabled bool

	AIHost  string
	AIToken string

	AutotaggerEnabled     bool
	TaggerPreferences     []string
	TaggerStrategy        string
	TaggerStrategyOptions json.RawMessage
	TaggerInference       bool

	EmbeddingDimension int
	SimilarityFunction string
}

// IndexStoreAddr returns host:port of the index store.
func (s *Snapshot) IndexStoreAddr() string {
	return net.JoinHostPort(s.IndexStoreHost, strconv.Itoa(s.IndexStorePort))
}

func defaultSnapshot() *Snapshot {
	return &Snapshot{
		IndexStoreHost:     DefaultIndexStoreHost,
		IndexStorePort:     DefaultIndexStorePort,
		EmbeddingDimension: DefaultEmbeddingDimension,
		SimilarityFunction: DefaultSimilarityFunction,
	}
}

func (s *Snapshot) clone() *Snapshot {
	c := *s
	c.TaggerPreferences = slices.Clone(s.TaggerPreferences)
	c.TaggerStrategyOptions = bytes.Clone(s.TaggerStrategyOptions)
	return &c
}

func (s *Snapshot) recompute() {
	s.Enabled = s.IndexStoreEnabled && s.SearchEnabled
}

// apply decodes raw into the field for key. A null or empty value resets the field to its default.
func (s *Snapshot) apply(key string, raw json.RawMessage) error {
	unset := len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
	def := defaultSnapshot()

	var err error
	switch key {
	case KeyIndexStoreEnable:
		s.IndexStoreEnabled, err = decodeBool(raw, unset)
	case KeyIndexStoreHost:
		s.IndexStoreHost, err = decodeString(raw, unset, def.IndexStoreHost)
	case KeyIndexStorePort:
		s.IndexStorePort, err = decodeInt(raw, unset, def.IndexStorePort)
	case KeySearchEnable:
		s.SearchEnabled, err = decodeBool(raw, unset)
	case KeyAIHost:
		s.AIHost, err = decodeString(raw, unset, "")
		s.AIHost = strings.TrimRight(s.AIHost, "/")
	case KeyAIToken:
		s.AIToken, err = decodeString(raw, unset, "")
	case KeyAutotaggerEnable:
		s.AutotaggerEnabled, err = decodeBool(raw, unset)
	case KeyTaggerPreferences:
		s.TaggerPreferences, err = decodeStrings(raw, unset)
	case KeyTaggerStrategy:
		s.TaggerStrategy, err = decodeString(raw, unset, "")
	case KeyTaggerStrategyOptions:
		s.TaggerStrategyOptions, err = decodeObject(raw, unset)
	case KeyTaggerInference:
		s.TaggerInference, err = decodeBool(raw, unset)
	case KeyEmbeddingDimension:
		s.EmbeddingDimension, err = decodeInt(raw, unset, def.EmbeddingDimension)
	case KeySimilarityFunction:
		s.SimilarityFunction, err = decodeString(raw, unset, def.SimilarityFunction)
	default:
		return fmt.Errorf("untracked setting %q", key)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Settings are written by several tools, so scalars may arrive JSON-typed or as strings.

func decodeBool(raw json.RawMessage, unset bool) (bool, error) {
	if unset {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return false, err
	}
	return strconv.ParseBool(str)
}

func decodeString(raw json.RawMessage, unset bool, def string) (string, error) {
	if unset {
		return def, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return "", err
	}
	if str == "" {
		return def, nil
	}
	return str, nil
}

func decodeInt(raw json.RawMessage, unset bool, def int) (int, error) {
	if unset {
		return def, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, err
	}
	if str == "" {
		return def, nil
	}
	return strconv.Atoi(str)
}

func decodeStrings(raw json.RawMessage, unset bool) ([]string, error) {
	if unset {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// decodeObject accepts a JSON object or a string containing one.
func decodeObject(raw json.RawMessage, unset bool) (json.RawMessage, error) {
	if unset {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] == '"' {
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return nil, err
		}
		if str == "" {
			return nil, nil
		}
		trimmed = []byte(str)
	}
	if !json.Valid(trimmed) {
		return nil, errors.New("invalid JSON object")
	}
	return bytes.Clone(trimmed), nil
}
