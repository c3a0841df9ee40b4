package vision

import (
	"regexp"
	"strings"
)

var numberedLine = regexp.MustCompile(`^\s*\d+[.)]\s*(.+)$`)

// ParseNumberedLines extracts the instruction text from a numbered-list
// response, stripping the leading numeral prefix. Lines that do not match
// the pattern and empty remainders are discarded.
func ParseNumberedLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		instruction := strings.TrimSpace(m[1])
		if instruction == "" {
			continue
		}
		out = append(out, instruction)
	}
	return out
}
