package strategy

import "go.uber.org/zap"

type topN struct {
	logger *zap.Logger
}

// Decide returns the Count highest-scored labels (3 when Count is unset). An
// explicit count of zero or less selects nothing.
func (s *topN) Decide(labels []string, scores []float64, opts *Options) (Decision, error) {
	if err := checkLengths(labels, scores); err != nil {
		return Decision{}, err
	}

	count := DefaultCount
	if opts != nil && opts.Count != nil {
		count = *opts.Count
	} else {
		s.logger.Warn("No count configured for top-n strategy, using default",
			zap.Int("count", DefaultCount))
	}

	return Decision{Labels: firstLabels(rankDesc(labels, scores), count)}, nil
}
