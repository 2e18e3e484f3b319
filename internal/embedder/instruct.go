package embedder

import "fmt"

// DetailedInstruct renders an instruction and a text through a format
// string with two %s verbs. The default "%s%s" prepends the instruction
// directly; retrieval models like e5-mistral use richer templates.
func DetailedInstruct(format, instruction, text string) string {
	if format == "" {
		format = "%s%s"
	}
	return fmt.Sprintf(format, instruction, text)
}

// applyInstruction wraps every text with the instruction. An empty
// instruction returns the input untouched.
func applyInstruction(format, instruction string, texts []string) []string {
	if instruction == "" {
		return texts
	}
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = DetailedInstruct(format, instruction, text)
	}
	return out
}
