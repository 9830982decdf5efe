package domain

// Classification is the classifier output: parallel label and score arrays.
type Classification struct {
	Labels []string
	Scores []float64
}
