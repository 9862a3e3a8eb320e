package classification

import (
	"context"
	"fmt"
	"strings"

	"assistant_server/core/domain"
	"assistant_server/pkg/logger"
)

// =============================================================================
// LLM Classifier (Stage 2)
// =============================================================================

// Truncation budgets keep the classification prompt cheap regardless of how
// large the incoming email is.
const (
	classifySubjectMax = 100
	classifySenderMax  = 100
	classifySnippetMax = 200

	classifyMaxTokens   = 20
	classifyTemperature = 0.1
)

// Completer is the slice of the model client the classifier needs.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float32) (string, error)
	Model() string
}

// categoryDefinitions holds the prompt description for each built-in
// category. Configured categories outside this set are listed by name alone.
var categoryDefinitions = map[string]string{
	string(domain.CategoryImportant):   "urgent matters, security alerts, deadlines, account issues, work-critical communication",
	string(domain.CategoryNewsletters): "periodic digests, subscriptions, news roundups, mailing lists",
	string(domain.CategoryPromotions):  "marketing, sales, discounts, product offers, advertising",
	string(domain.CategoryMeetings):    "meeting requests, calendar invitations, scheduling, calls, conferences",
	string(domain.CategoryPersonal):    "messages from friends and family, personal correspondence",
}

// LLMClassifierConfig tunes the prompt. Zero values fall back to the built-in
// category set and the default snippet budget.
type LLMClassifierConfig struct {
	Categories      []string
	SnippetMaxChars int
}

// LLMClassifier resolves messages the rule pass could not place. A primary
// model is tried first, then a fallback tier; every failure path degrades to
// the Important category so no message is ever dropped on a provider outage.
type LLMClassifier struct {
	primary  Completer
	fallback Completer

	categories   []string
	systemPrompt string
	snippetMax   int

	log *logger.Logger
}

// NewLLMClassifier creates a classifier. Either tier may be nil.
func NewLLMClassifier(primary, fallback Completer, cfg LLMClassifierConfig, log *logger.Logger) *LLMClassifier {
	if log == nil {
		log = logger.Default()
	}

	categories := cfg.Categories
	if len(categories) == 0 {
		for _, c := range domain.Categories() {
			categories = append(categories, string(c))
		}
	}
	snippetMax := cfg.SnippetMaxChars
	if snippetMax <= 0 {
		snippetMax = classifySnippetMax
	}

	return &LLMClassifier{
		primary:      primary,
		fallback:     fallback,
		categories:   categories,
		systemPrompt: buildClassifySystemPrompt(categories),
		snippetMax:   snippetMax,
		log:          log,
	}
}

// Name returns the classifier name.
func (c *LLMClassifier) Name() string {
	return "llm"
}

// Classify asks the model for a category. It never returns an error: any
// failure yields the Important default so uncertain mail surfaces rather
// than disappears.
func (c *LLMClassifier) Classify(ctx context.Context, subject, sender, snippet string) domain.Category {
	prompt := c.buildClassifyPrompt(subject, sender, snippet)

	for _, tier := range []struct {
		name   string
		client Completer
	}{
		{"primary", c.primary},
		{"fallback", c.fallback},
	} {
		if tier.client == nil {
			continue
		}

		raw, err := tier.client.CompleteWithSystem(ctx, c.systemPrompt, prompt, classifyMaxTokens, classifyTemperature)
		if err != nil {
			c.log.WithError(err).WithFields(map[string]any{
				"tier":  tier.name,
				"model": tier.client.Model(),
			}).Warn("llm classification call failed")
			continue
		}

		if cat := c.parseCategory(strings.TrimSpace(raw)); cat != domain.CategoryNone {
			return cat
		}
		c.log.WithField("reply", strings.TrimSpace(raw)).Warn("llm returned unknown category")
	}

	return domain.CategoryImportant
}

// Available reports whether at least one model tier is configured.
func (c *LLMClassifier) Available() bool {
	return c.primary != nil || c.fallback != nil
}

// parseCategory matches a model reply against the configured category list.
func (c *LLMClassifier) parseCategory(s string) domain.Category {
	for _, name := range c.categories {
		if name == s {
			return domain.Category(name)
		}
	}
	return domain.CategoryNone
}

func buildClassifySystemPrompt(categories []string) string {
	var b strings.Builder
	b.WriteString("You are an email classifier. Categorize the email into exactly one of these categories:\n\n")
	for _, name := range categories {
		if def, ok := categoryDefinitions[name]; ok {
			fmt.Fprintf(&b, "- %s: %s\n", name, def)
		} else {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}
	b.WriteString("\nRespond with ONLY the category name, nothing else.")
	return b.String()
}

func (c *LLMClassifier) buildClassifyPrompt(subject, sender, snippet string) string {
	return fmt.Sprintf("Subject: %s\nFrom: %s\nPreview: %s",
		truncate(subject, classifySubjectMax),
		truncate(sender, classifySenderMax),
		truncate(snippet, c.snippetMax))
}

// truncate clips s to at most max runes.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
