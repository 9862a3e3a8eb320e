package respond

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestShouldRespond(t *testing.T) {
	policy := NewPolicy()

	tests := []struct {
		name    string
		subject string
		sender  string
		snippet string
		want    bool
	}{
		{
			name:    "direct question",
			subject: "Question about the invoice",
			sender:  "client@corp.example",
			snippet: "Can you confirm the amount?",
			want:    true,
		},
		{
			name:    "meeting availability ask",
			subject: "Availability next week",
			sender:  "partner@firm.example",
			snippet: "When would suit you for a call?",
			want:    true,
		},
		{
			name:    "polite request",
			subject: "Document review",
			sender:  "colleague@corp.example",
			snippet: "Could you take a look before Friday",
			want:    true,
		},
		{
			name:    "urgent flag",
			subject: "ASAP: contract signature",
			sender:  "legal@corp.example",
			snippet: "We must close this immediately",
			want:    true,
		},
		{
			name:    "noreply sender vetoes even with a question",
			subject: "Do you want to upgrade?",
			sender:  "noreply@service.example",
			snippet: "Can you spare a minute?",
			want:    false,
		},
		{
			name:    "newsletter text vetoes",
			subject: "Weekly digest",
			sender:  "updates@site.example",
			snippet: "Please see this week's newsletter",
			want:    false,
		},
		{
			name:    "automated system veto beats urgency",
			subject: "Urgent: automated backup report",
			sender:  "system@infra.example",
			snippet: "Action may be required",
			want:    false,
		},
		{
			name:    "meeting keyword opts in",
			subject: "FYI",
			sender:  "boss@corp.example",
			snippet: "The meeting notes are attached",
			want:    true,
		},
		{
			name:    "nothing matching defaults to silence",
			subject: "Photos",
			sender:  "friend@gmail.example",
			snippet: "Great seeing everyone yesterday",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.ShouldRespond(tt.subject, tt.sender, tt.snippet); got != tt.want {
				t.Errorf("ShouldRespond() = %v, want %v", got, tt.want)
			}
		})
	}
}

type stubCompleter struct {
	reply string
	err   error
	calls int
	last  string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string, _ int, _ float32) (string, error) {
	s.calls++
	s.last = prompt
	return s.reply, s.err
}

func (s *stubCompleter) Model() string { return "stub" }

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		primary  *stubCompleter
		fallback *stubCompleter
		want     string
	}{
		{
			name:    "primary drafts the reply",
			primary: &stubCompleter{reply: "Hi,\n\nThanks for reaching out.\n\nBest"},
			want:    "Hi,\n\nThanks for reaching out.\n\nBest",
		},
		{
			name:     "fallback used when primary errors",
			primary:  &stubCompleter{err: errors.New("quota")},
			fallback: &stubCompleter{reply: "Hello, noted."},
			want:     "Hello, noted.",
		},
		{
			name:     "canned reply when both fail",
			primary:  &stubCompleter{err: errors.New("down")},
			fallback: &stubCompleter{err: errors.New("down")},
			want:     CannedReply,
		},
		{
			name:    "empty model output falls through to canned reply",
			primary: &stubCompleter{reply: "   \n"},
			want:    CannedReply,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var primary, fallback Completer
			if tt.primary != nil {
				primary = tt.primary
			}
			if tt.fallback != nil {
				fallback = tt.fallback
			}
			g := NewGenerator(primary, fallback, nil)
			got := g.Generate(context.Background(), "Subject", "sender@x.example", "body text")
			if got != tt.want {
				t.Errorf("Generate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGeneratePromptTruncation(t *testing.T) {
	stub := &stubCompleter{reply: "ok"}
	g := NewGenerator(stub, nil, nil)

	longBody := strings.Repeat("x", 2000)
	g.Generate(context.Background(), "s", "f", longBody)

	if strings.Contains(stub.last, strings.Repeat("x", 501)) {
		t.Error("body was not truncated to 500 characters in the prompt")
	}
	if !strings.Contains(stub.last, strings.Repeat("x", 500)) {
		t.Error("truncated body missing from the prompt")
	}
}

func TestGenerateWithoutModels(t *testing.T) {
	g := NewGenerator(nil, nil, nil)
	if got := g.Generate(context.Background(), "s", "f", "b"); got != CannedReply {
		t.Errorf("Generate() = %q, want canned reply", got)
	}
}
