package strategy

import "github.com/kailas-cloud/deskindex/internal/domain"

type thresholdStrategy struct{}

// Decide keeps labels whose score lies within the configured bounds, in input
// order. A bound is honoured only when it is greater than zero.
func (thresholdStrategy) Decide(labels []string, scores []float64, opts *Options) (Decision, error) {
	if err := checkLengths(labels, scores); err != nil {
		return Decision{}, err
	}

	var minBound, maxBound *float64
	if opts != nil {
		if opts.MinimumThreshold != nil && *opts.MinimumThreshold > 0 {
			minBound = opts.MinimumThreshold
		}
		if opts.MaximumThreshold != nil && *opts.MaximumThreshold > 0 {
			maxBound = opts.MaximumThreshold
		}
	}
	if minBound == nil && maxBound == nil {
		return Decision{}, domain.NewConfigurationError("tagger:strategyOptions",
			"threshold strategy needs minimumThreshold or maximumThreshold")
	}

	out := []string{}
	for i, score := range scores {
		if minBound != nil && score < *minBound {
			continue
		}
		if maxBound != nil && score > *maxBound {
			continue
		}
		out = append(out, labels[i])
	}
	return Decision{Labels: out}, nil
}
