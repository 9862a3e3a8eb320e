// Package classification implements the layered email categorization
// pipeline: a free regex rule pass first, then a generative-model fallback
// for messages the rules cannot place.
package classification

import (
	"regexp"
	"strings"

	"assistant_server/core/domain"
)

// =============================================================================
// Rule Classifier (Stage 1)
// =============================================================================

// ruleScoreThreshold is the minimum winning score. Below it the classifier
// reports "uncertain" and the pipeline falls through to the model.
const ruleScoreThreshold = 2

var promotionPatterns = []string{
	`\b(offer|discount|sale|promo|deal|save|free|limited\s+time|special\s+price|%\s*off)\b`,
	`\b(buy\s+now|shop\s+now|order\s+now|get\s+yours|upgrade\s+now)\b`,
	`\b(black\s+friday|cyber\s+monday|flash\s+sale|clearance)\b`,
}

var newsletterPatterns = []string{
	`\b(newsletter|digest|weekly|monthly|daily|update|roundup)\b`,
	`\b(unsubscribe|manage\s+preferences|view\s+in\s+browser)\b`,
	`@(newsletter|digest|updates|news|mail|email)\.`,
	`\b(tech\s+news|industry\s+news|latest\s+news)\b`,
}

var meetingPatterns = []string{
	`\b(meeting|schedule|calendar|appointment|call|conference)\b`,
	`\b(available|availability|free\s+time|book\s+time)\b`,
	`\b(zoom|teams|google\s+meet|webinar|session)\b`,
	`\b(let'?s\s+(meet|talk|discuss|schedule))\b`,
}

var importantPatterns = []string{
	`\b(urgent|important|action\s+required|deadline|expires?)\b`,
	`\b(verify|verification|confirm|security|alert)\b`,
	`\b(payment|invoice|bill|account|suspended)\b`,
	`\b(login|password|access|unauthorized)\b`,
}

var personalPatterns = []string{
	`\b(happy\s+birthday|congratulations|family|mom|dad)\b`,
	`@(gmail\.com|yahoo\.com|hotmail\.com|icloud\.com)$`,
	`\b(love|miss|see\s+you|can'?t\s+wait)\b`,
}

// Keyword boosts applied on top of pattern counts.
var (
	newsletterSenderBoosts  = []string{"newsletter", "digest", "noreply", "no-reply", "updates"}
	promotionSubjectBoosts  = []string{"%", "off", "free", "sale", "offer"}
	meetingSubjectBoosts    = []string{"meeting", "schedule", "calendar", "invite"}
	importantSubjectBoosts  = []string{"urgent", "action required", "verify", "security"}
)

// RuleClassifier performs the fast, free categorization pass. It is a pure
// function over its inputs: no state is mutated by Classify or Scores.
type RuleClassifier struct {
	patterns map[domain.Category][]*regexp.Regexp
}

// NewRuleClassifier compiles the per-category pattern lists.
func NewRuleClassifier() *RuleClassifier {
	compile := func(exprs []string) []*regexp.Regexp {
		out := make([]*regexp.Regexp, 0, len(exprs))
		for _, e := range exprs {
			out = append(out, regexp.MustCompile(`(?i)`+e))
		}
		return out
	}

	return &RuleClassifier{
		patterns: map[domain.Category][]*regexp.Regexp{
			domain.CategoryPromotions:  compile(promotionPatterns),
			domain.CategoryNewsletters: compile(newsletterPatterns),
			domain.CategoryMeetings:    compile(meetingPatterns),
			domain.CategoryImportant:   compile(importantPatterns),
			domain.CategoryPersonal:    compile(personalPatterns),
		},
	}
}

// Name returns the classifier name.
func (c *RuleClassifier) Name() string {
	return "rule"
}

// Classify scores the three text fields and returns the winning category.
// ok is false when no category reaches the score threshold ("uncertain").
//
// Tie-break: when several categories share the maximal score, the winner is
// the first in the fixed priority order Important > Meetings > Promotions >
// Newsletters > Personal. This makes the classifier fully deterministic.
func (c *RuleClassifier) Classify(subject, sender, snippet string) (domain.Category, bool) {
	scores := c.Scores(subject, sender, snippet)

	maxScore := 0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}

	if maxScore < ruleScoreThreshold {
		return domain.CategoryNone, false
	}

	for _, cat := range domain.Categories() {
		if scores[cat] == maxScore {
			return cat, true
		}
	}
	return domain.CategoryNone, false
}

// Scores returns the per-category score vector. Exposed so tests can verify
// idempotence and boost arithmetic directly.
func (c *RuleClassifier) Scores(subject, sender, snippet string) map[domain.Category]int {
	subjectLower := strings.ToLower(subject)
	senderLower := strings.ToLower(sender)
	snippetLower := strings.ToLower(snippet)
	allText := subjectLower + " " + senderLower + " " + snippetLower

	scores := make(map[domain.Category]int, len(c.patterns))
	for cat, patterns := range c.patterns {
		scores[cat] = countMatches(allText, patterns)
	}

	if containsAny(senderLower, newsletterSenderBoosts) {
		scores[domain.CategoryNewsletters] += 2
	}
	if containsAny(subjectLower, promotionSubjectBoosts) {
		scores[domain.CategoryPromotions] += 2
	}
	if containsAny(subjectLower, meetingSubjectBoosts) {
		scores[domain.CategoryMeetings] += 2
	}
	if containsAny(subjectLower, importantSubjectBoosts) {
		scores[domain.CategoryImportant] += 2
	}

	return scores
}

// countMatches counts how many patterns match the text (each pattern counts
// at most once, however many times it occurs).
func countMatches(text string, patterns []*regexp.Regexp) int {
	count := 0
	for _, p := range patterns {
		if p.MatchString(text) {
			count++
		}
	}
	return count
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
