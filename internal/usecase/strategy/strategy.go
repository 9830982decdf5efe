// Package strategy holds the decision functions that pick which classifier
// labels become ticket tags.
package strategy

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskindex/internal/domain"
)

// Strategy names.
const (
	TopN         = "top-n"
	Threshold    = "threshold"
	TopPercent   = "top-percent"
	HighestScore = "highest-score"
)

// Defaults applied when options leave a value unset.
const (
	DefaultCount      = 3
	DefaultPercentage = 50.0
)

// ErrLengthMismatch is returned when labels and scores are not parallel arrays.
var ErrLengthMismatch = errors.New("labels and scores differ in length")

// Options is the union of all strategy option shapes; each strategy reads its own fields.
type Options struct {
	Count            *int     `json:"count,omitempty"`
	MinimumThreshold *float64 `json:"minimumThreshold,omitempty"`
	MaximumThreshold *float64 `json:"maximumThreshold,omitempty"`
	Percentage       *float64 `json:"percentage,omitempty"`
}

// ParseOptions decodes options stored in settings. Empty input yields nil options.
func ParseOptions(raw json.RawMessage) (*Options, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var opts Options
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, domain.NewConfigurationError("tagger:strategyOptions", err.Error())
	}
	return &opts, nil
}

// Decision is the strategy output: selected labels in strategy order.
type Decision struct {
	Labels []string
}

// Strategy selects labels given parallel label/score arrays.
type Strategy interface {
	Decide(labels []string, scores []float64, opts *Options) (Decision, error)
}

type scored struct {
	label string
	score float64
}

// rankDesc pairs labels with scores and stable-sorts by descending score,
// so ties keep their input order.
func rankDesc(labels []string, scores []float64) []scored {
	items := make([]scored, len(labels))
	for i := range labels {
		items[i] = scored{label: labels[i], score: scores[i]}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})
	return items
}

func firstLabels(items []scored, n int) []string {
	n = max(0, min(n, len(items)))
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = items[i].label
	}
	return out
}

func checkLengths(labels []string, scores []float64) error {
	if len(labels) != len(scores) {
		return fmt.Errorf("%w: %d labels, %d scores", ErrLengthMismatch, len(labels), len(scores))
	}
	return nil
}

// Registry resolves strategies by name.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry returns a registry with all built-in strategies.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{strategies: map[string]Strategy{
		TopN:         &topN{logger: logger},
		Threshold:    thresholdStrategy{},
		TopPercent:   topPercent{},
		HighestScore: highestScore{},
	}}
}

// Lookup returns the strategy registered under name. Unknown names are configuration errors.
func (r *Registry) Lookup(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, domain.NewConfigurationError("tagger:strategy", fmt.Sprintf("unknown strategy %q", name))
	}
	return s, nil
}
