package promptstyle

import "strings"

const marker = "TENXCARDS_PROMPT_STYLE_V1"

// ApplySystem prepends a short guidance block to a system prompt. Prompts that
// already carry the block are returned unchanged.
func ApplySystem(system string, mode string) string {
	base := strings.TrimSpace(system)
	if base == "" {
		return base
	}
	if strings.Contains(base, marker) {
		return base
	}

	var b strings.Builder
	b.WriteString(marker)
	b.WriteString("\nYou write study flashcards for 10xCards.")
	b.WriteString("\nUse only facts present in the provided text; do not invent facts.")
	b.WriteString("\nKeep each question answerable from its answer alone.")
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "json":
		b.WriteString("\nReturn a single JSON object that conforms to the schema and contains no extra keys.")
	case "text":
		b.WriteString("\nReturn plain text without commentary.")
	}
	b.WriteString("\n\n")
	b.WriteString(base)
	return b.String()
}
