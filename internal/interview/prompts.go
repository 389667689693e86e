package interview

import "fmt"

// systemTemplate frames the interviewer persona per session.
const systemTemplate = "You are an expert %s interviewer (seniority: %s). " +
	"Ask ONE clear, concise question at a time. Increase difficulty gradually " +
	"if the candidate performs well."

// feedbackInstruction asks for bounded feedback plus the marked follow-up.
const feedbackInstruction = "Evaluate my answer briefly in ≤3 sentences (focus on correctness, clarity, completeness). " +
	"Then write 'NEXT:' followed by the single next question."

// nextMarker splits combined feedback/next-question output.
const nextMarker = "NEXT:"

// terminalQuestion is returned when the model omits the marker.
const terminalQuestion = "Interview finished."

// fallbackFirstQuestion substitutes when the first-question call fails or
// times out; the request still succeeds.
const fallbackFirstQuestion = "Tell me about a recent data project you’re proud of and your role in it."

// fallbackFeedback substitutes when the feedback call fails or times out.
const fallbackFeedback = "Good start. Consider adding specific metrics next time.\n\n" +
	"NEXT: What are your favorite data quality checks and why?"

func systemPrompt(role, seniority string) string {
	return fmt.Sprintf(systemTemplate, role, seniority)
}

func firstQuestionPrompt(company, role, seniority, brief string) string {
	if company == "" {
		company = "generic"
	}
	if seniority == "" {
		seniority = "unspecified"
	}
	if brief == "" {
		brief = "n/a"
	}
	return fmt.Sprintf(
		"Generate the FIRST interview question only.\n"+
			"Company: %s\n"+
			"Role: %s\n"+
			"Seniority/Level: %s\n"+
			"Candidate brief (optional): %s\n\n"+
			"Rules:\n"+
			"- Return a single well-formed question, no preamble, no explanation.\n"+
			"- Keep it relevant to the company/role/level and any brief above.\n"+
			"- Avoid multi-part questions; one focused question.",
		company, role, seniority, brief,
	)
}

// slotPrompt asks for the company/role/level slots hidden in a free-text
// candidate brief.
const slotPrompt = `Extract the target company, role, and seniority level from the candidate's brief.
Return ONLY a JSON object: {"company": "...", "role": "...", "level": "..."}.
Use "" for any slot the brief does not mention.`
