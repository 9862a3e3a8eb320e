package respond

import (
	"context"
	"fmt"
	"strings"

	"assistant_server/pkg/logger"
)

// =============================================================================
// Response Generator
// =============================================================================

const (
	generateSubjectMax = 100
	generateSenderMax  = 100
	generateBodyMax    = 500

	generateMaxTokens   = 300
	generateTemperature = 0.7
)

// CannedReply is the guaranteed fallback when every model tier fails.
// Generation never returns an error to the caller.
const CannedReply = "Thank you for your email. I'll review this and get back to you soon."

// Completer is the slice of the model client the generator needs.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
	Model() string
}

// Generator drafts reply bodies with a primary model and a fallback tier.
type Generator struct {
	primary  Completer
	fallback Completer
	log      *logger.Logger
}

// NewGenerator creates a generator. Either tier may be nil.
func NewGenerator(primary, fallback Completer, log *logger.Logger) *Generator {
	if log == nil {
		log = logger.Default()
	}
	return &Generator{primary: primary, fallback: fallback, log: log}
}

// Generate drafts a reply body for the given email. On total model failure
// it returns the canned acknowledgment, never an error.
func (g *Generator) Generate(ctx context.Context, subject, sender, body string) string {
	prompt := buildResponsePrompt(subject, sender, body)

	for _, tier := range []struct {
		name   string
		client Completer
	}{
		{"primary", g.primary},
		{"fallback", g.fallback},
	} {
		if tier.client == nil {
			continue
		}
		reply, err := tier.client.Complete(ctx, prompt, generateMaxTokens, generateTemperature)
		if err != nil {
			g.log.WithError(err).WithFields(map[string]any{
				"tier":  tier.name,
				"model": tier.client.Model(),
			}).Warn("response generation failed")
			continue
		}
		if trimmed := strings.TrimSpace(reply); trimmed != "" {
			return trimmed
		}
	}

	return CannedReply
}

func buildResponsePrompt(subject, sender, body string) string {
	return fmt.Sprintf(`Generate a professional email response.

Guidelines:
- Keep it concise and professional
- Address key points
- Don't make commitments
- Include appropriate greeting and closing

Original Email:
Subject: %s
From: %s
Content: %s

Generate response (email body only).`,
		truncate(subject, generateSubjectMax),
		truncate(sender, generateSenderMax),
		truncate(body, generateBodyMax))
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
