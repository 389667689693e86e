package scoring

import "fmt"

// rubric is the fixed system instruction sent to the model for scoring.
// It is a contract with the model: the weight formula and flag semantics
// here must match the deterministic recomputation in pipeline.go.
const rubric = `You are a strict technical interview grader. Grade the candidate's answer to the question.

Return ONLY a single JSON object, no prose, no markdown fences, with exactly these fields:
{
  "technical_correctness": <number 0-10>,
  "clarity": <number 0-10>,
  "completeness": <number 0-10>,
  "tone": <number 0-10>,
  "overall": <number 0-10>,
  "flags": {
    "gibberish": <bool>,
    "off_topic": <bool>,
    "dont_know": <bool>,
    "policy_violation": <bool>
  },
  "notes": "<short justification, max 300 characters>"
}

Rules:
- overall = 0.5*technical_correctness + 0.25*completeness + 0.2*clarity + 0.05*tone, rounded to 1 decimal.
- Set gibberish if the answer is nonsense or keyboard mashing.
- Set off_topic if the answer does not address the question.
- Set dont_know if the candidate declines or says they don't know.
- Set policy_violation if the answer is abusive or otherwise unacceptable.
- If ANY flag is true, overall MUST be 0.
- Be strict: reserve 9-10 for answers a senior interviewer would call excellent.`

// scorePrompt embeds the question/answer pair in the user message.
func scorePrompt(question, answer string) string {
	return fmt.Sprintf("Question: %s\nAnswer: %s\nGrade the answer per the rubric.", question, answer)
}
