package strategy

import (
	"math"

	"github.com/kailas-cloud/deskindex/internal/domain"
)

type topPercent struct{}

// Decide returns the top ceil(n*percentage/100) labels by descending score.
// Percentage defaults to 50 only when unset and is clamped to [0, 100].
func (topPercent) Decide(labels []string, scores []float64, opts *Options) (Decision, error) {
	if err := checkLengths(labels, scores); err != nil {
		return Decision{}, err
	}
	if opts == nil {
		return Decision{}, domain.NewConfigurationError("tagger:strategyOptions",
			"top-percent strategy options are missing")
	}

	pct := DefaultPercentage
	if opts.Percentage != nil {
		pct = max(0, min(*opts.Percentage, 100))
	}
	n := int(math.Ceil(float64(len(labels)) * pct / 100))

	return Decision{Labels: firstLabels(rankDesc(labels, scores), n)}, nil
}
