package openai

import "strings"

// unwrapMarkdown strips the <markdown></markdown> envelope and any code
// fences the model wraps around extracted page text.
func unwrapMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "<markdown>"); start >= 0 {
		s = s[start+len("<markdown>"):]
		if end := strings.LastIndex(s, "</markdown>"); end >= 0 {
			s = s[:end]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```markdown")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
