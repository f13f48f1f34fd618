package ollama

import "fmt"

func buildAnswerPrompt(contextText, query string) string {
	return fmt.Sprintf(`Question:
%s

Context:
%s
`, query, contextText)
}
