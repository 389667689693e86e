// Package scoring turns a (question, answer) pair into bounded, structured
// metrics via a single deterministic model call.
package scoring

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"interviewd/internal/llm"
	"interviewd/internal/logging"
	"interviewd/internal/types"
)

const maxNotesLen = 300

// Metric weights for the overall score. Must stay in sync with the rubric.
const (
	weightTechnical    = 0.5
	weightCompleteness = 0.25
	weightClarity      = 0.2
	weightTone         = 0.05
)

// Pipeline scores answers through the model client. It applies no timeout
// itself; callers bound the wait and substitute a neutral fallback.
type Pipeline struct {
	client llm.Client
}

// NewPipeline creates a scoring pipeline over the given client.
func NewPipeline(client llm.Client) *Pipeline {
	return &Pipeline{client: client}
}

// Score grades an answer. The model is invoked exactly once at temperature
// 0; its raw text is parsed fail-soft (malformed output yields the zero
// Metrics, not an error). The returned error is only ever an upstream
// transport failure.
func (p *Pipeline) Score(ctx context.Context, question, answer string) (types.Metrics, error) {
	timer := logging.StartTimer(logging.CategoryScoring, "Score")
	defer timer.Stop()

	raw, err := p.client.ChatDeterministic(ctx, []types.Message{
		types.System(rubric),
		types.User(scorePrompt(question, answer)),
	})
	if err != nil {
		return types.Metrics{}, err
	}

	m := Sanitize(raw)
	logging.ScoringDebug("scored answer: overall=%.1f flags=%+v", m.Overall, m.Flags)
	return m, nil
}

// OverallScore is the convenience entry point for callers that only need a
// single scalar: the rounded overall as an integer in [0,10].
func (p *Pipeline) OverallScore(ctx context.Context, question, answer string) (int, error) {
	m, err := p.Score(ctx, question, answer)
	if err != nil {
		return 0, err
	}
	return RoundedOverall(m), nil
}

// RoundedOverall maps a Metrics overall to a bounded integer.
func RoundedOverall(m types.Metrics) int {
	n := int(math.Round(m.Overall))
	if n < 0 {
		n = 0
	}
	if n > 10 {
		n = 10
	}
	return n
}

// rawMetrics accepts whatever shapes the model emits; coercion happens in
// Sanitize, not in the decoder.
type rawMetrics struct {
	TechnicalCorrectness interface{}            `json:"technical_correctness"`
	Clarity              interface{}            `json:"clarity"`
	Completeness         interface{}            `json:"completeness"`
	Tone                 interface{}            `json:"tone"`
	Overall              interface{}            `json:"overall"`
	Flags                map[string]interface{} `json:"flags"`
	Notes                interface{}            `json:"notes"`
}

// Sanitize converts raw model output into a Metrics value under the fixed
// protocol: fail-soft parse, per-field numeric coercion with 0 default,
// clamp to [0,10], overall recomputed from the weighted formula, flag
// hard-cap to 0, notes trimmed and truncated, 1-decimal rounding last.
//
// The model's own "overall" is deliberately ignored: recomputing it from
// the clamped sub-scores keeps the invariant independent of model
// arithmetic.
func Sanitize(raw string) types.Metrics {
	var m types.Metrics

	jsonStr := extractJSON(raw)
	if jsonStr == "" {
		logging.ScoringWarn("no JSON object in model output (len=%d); using zero metrics", len(raw))
		return m
	}

	var parsed rawMetrics
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		logging.ScoringWarn("model output JSON parse failed: %v; using zero metrics", err)
		return m
	}

	m.TechnicalCorrectness = clamp(coerceFloat(parsed.TechnicalCorrectness))
	m.Clarity = clamp(coerceFloat(parsed.Clarity))
	m.Completeness = clamp(coerceFloat(parsed.Completeness))
	m.Tone = clamp(coerceFloat(parsed.Tone))

	m.Flags = types.Flags{
		Gibberish:       coerceBool(parsed.Flags["gibberish"]),
		OffTopic:        coerceBool(parsed.Flags["off_topic"]),
		DontKnow:        coerceBool(parsed.Flags["dont_know"]),
		PolicyViolation: coerceBool(parsed.Flags["policy_violation"]),
	}

	notes := strings.TrimSpace(coerceString(parsed.Notes))
	if utf8.RuneCountInString(notes) > maxNotesLen {
		// Truncate by characters, not bytes, so multibyte notes stay
		// valid UTF-8.
		notes = string([]rune(notes)[:maxNotesLen])
	}
	m.Notes = notes

	m.Overall = weightTechnical*m.TechnicalCorrectness +
		weightCompleteness*m.Completeness +
		weightClarity*m.Clarity +
		weightTone*m.Tone

	// Hard cap: any disqualifying flag forces overall to 0, unconditionally.
	if m.Flags.Any() {
		m.Overall = 0
	}

	m.TechnicalCorrectness = round1(m.TechnicalCorrectness)
	m.Clarity = round1(m.Clarity)
	m.Completeness = round1(m.Completeness)
	m.Tone = round1(m.Tone)
	m.Overall = round1(m.Overall)

	return m
}

// extractJSON finds the first JSON object in the response (handles markdown
// wrappers and surrounding prose).
func extractJSON(response string) string {
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	for i := start; i < len(response); i++ {
		switch response[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}

func coerceFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func coerceBool(v interface{}) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return strings.EqualFold(strings.TrimSpace(x), "true")
	case float64:
		return x != 0
	default:
		return false
	}
}

func coerceString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func clamp(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
