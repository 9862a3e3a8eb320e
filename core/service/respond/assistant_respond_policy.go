// Package respond decides whether an email deserves an automatic reply and
// drafts one with the model.
package respond

import (
	"regexp"
	"strings"
)

// =============================================================================
// Response Policy
// =============================================================================

// Exclusions run before inclusions: an automated sender never gets a reply
// even when its text asks a question.
var noRespondPatterns = []string{
	`\b(newsletter|digest|unsubscribe|notification)\b`,
	`\b(noreply|no-reply|donotreply|do-not-reply)\b`,
	`\b(automated|automatic|system|bot)\b`,
	`@(newsletter|digest|noreply|notification)\.`,
}

var respondPatterns = []string{
	`\b(question|\?|inquiry|request|help|need|require)\b`,
	`\b(meeting|schedule|availability|when|time)\b`,
	`\b(please|can\s+you|would\s+you|could\s+you)\b`,
	`\b(urgent|important|asap|immediately)\b`,
}

// Policy is the rule-only gate in front of response generation. It never
// calls the model: drafting is expensive, the gate is free.
type Policy struct {
	noRespond []*regexp.Regexp
	respond   []*regexp.Regexp
}

// NewPolicy compiles the pattern lists.
func NewPolicy() *Policy {
	compile := func(exprs []string) []*regexp.Regexp {
		out := make([]*regexp.Regexp, 0, len(exprs))
		for _, e := range exprs {
			out = append(out, regexp.MustCompile(`(?i)`+e))
		}
		return out
	}
	return &Policy{
		noRespond: compile(noRespondPatterns),
		respond:   compile(respondPatterns),
	}
}

// ShouldRespond reports whether the message warrants a drafted reply.
// Default is no response: only a positive pattern match opts a message in,
// and any exclusion match vetoes it first.
func (p *Policy) ShouldRespond(subject, sender, snippet string) bool {
	allText := strings.ToLower(subject) + " " + strings.ToLower(sender) + " " + strings.ToLower(snippet)

	for _, re := range p.noRespond {
		if re.MatchString(allText) {
			return false
		}
	}
	for _, re := range p.respond {
		if re.MatchString(allText) {
			return true
		}
	}
	return false
}
