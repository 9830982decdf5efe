package strategy

type highestScore struct{}

// Decide returns the single best label; the first one wins ties.
func (highestScore) Decide(labels []string, scores []float64, _ *Options) (Decision, error) {
	if err := checkLengths(labels, scores); err != nil {
		return Decision{}, err
	}
	if len(labels) == 0 {
		return Decision{Labels: []string{}}, nil
	}

	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return Decision{Labels: []string{labels[best]}}, nil
}
