package types

// Flags marks disqualifying conditions detected by the grader. Any true flag
// forces the overall score to 0.
type Flags struct {
	Gibberish       bool `json:"gibberish"`
	OffTopic        bool `json:"off_topic"`
	DontKnow        bool `json:"dont_know"`
	PolicyViolation bool `json:"policy_violation"`
}

// Any reports whether at least one flag is set.
func (f Flags) Any() bool {
	return f.Gibberish || f.OffTopic || f.DontKnow || f.PolicyViolation
}

// Metrics is the structured scoring result for one answer. All numeric
// fields are in [0,10] with at most one decimal digit.
type Metrics struct {
	TechnicalCorrectness float64 `json:"technical_correctness"`
	Clarity              float64 `json:"clarity"`
	Completeness         float64 `json:"completeness"`
	Tone                 float64 `json:"tone"`
	Overall              float64 `json:"overall"`
	Flags                Flags   `json:"flags"`
	Notes                string  `json:"notes"`
}
