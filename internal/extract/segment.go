package extract

import "strings"

// SplitSentences splits raw text into candidate sentences on a terminal
// punctuation mark followed by whitespace. It is deliberately naive: no
// abbreviation handling, so "e.g. x" splits in two. Empty and
// whitespace-only fragments are dropped after trimming.
func SplitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		// Consume a run of terminal marks ("?!", "...").
		end := i + 1
		for end < len(runes) && isTerminal(runes[end]) {
			end++
		}
		if end < len(runes) && !isSpace(runes[end]) {
			i = end - 1
			continue
		}
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = end
		i = end - 1
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
