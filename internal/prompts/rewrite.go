package prompts

import (
	"strings"

	"server/internal/providers/vision"
)

// rewriteRule retargets person-specific phrasing at a generic subject.
// Rules are applied in declared order; longer patterns come first so a later
// rule never rewrites the output of an earlier one.
type rewriteRule struct {
	from string
	to   string
}

var subjectRules = []rewriteRule{
	{"their exact facial features", "its original form"},
	{"the person's", "the subject's"},
	{"the person", "the subject"},
	{"person's", "subject's"},
	{"facial structure", "basic structure"},
	{"expression", "appearance"},
}

// RewriteForSubject adapts a prompt written for a person when the classified
// subject is non-personal. Prompts for personal pronouns pass through
// untouched.
func RewriteForSubject(prompt string, pronoun vision.Pronoun) string {
	if pronoun != vision.PronounIt {
		return prompt
	}
	for _, rule := range subjectRules {
		prompt = strings.ReplaceAll(prompt, rule.from, rule.to)
	}
	return prompt
}
