package llm

import (
	"fmt"
	"strings"
)

const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 1000
)

// SystemPrompt instructs the model to answer only from the supplied cases.
const SystemPrompt = `You are a legal research assistant specializing in Canadian criminal law decisions of the Supreme Court of Canada.
Answer the question using only the case excerpts provided in the context.
Ground every legal claim in those cases and refer to each case by its name or case number.
If the context does not contain enough information to answer, say so plainly instead of guessing.
Do not give legal advice.`

// UserPrompt renders the context block and question for providers that take a
// separate system prompt.
func UserPrompt(question, promptContext string) string {
	return fmt.Sprintf(`Context from Supreme Court of Canada decisions:

%s

Question: %s

Answer:`, strings.TrimSpace(promptContext), strings.TrimSpace(question))
}

// FullPrompt is SystemPrompt followed by UserPrompt, for single-prompt APIs.
func FullPrompt(question, promptContext string) string {
	return SystemPrompt + "\n\n" + UserPrompt(question, promptContext)
}
