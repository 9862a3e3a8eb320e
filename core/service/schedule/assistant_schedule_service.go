// Package schedule turns meeting-request emails into concrete proposals:
// extracted details, free calendar slots and a drafted scheduling reply.
package schedule

import (
	"context"
	"fmt"
	"strings"

	"assistant_server/core/domain"
	"assistant_server/core/port/out"
	"assistant_server/pkg/apperr"
	"assistant_server/pkg/logger"

	"github.com/goccy/go-json"
)

// =============================================================================
// Meeting Details Extraction
// =============================================================================

const (
	extractSubjectMax = 100
	extractBodyMax    = 300
	extractMaxTokens  = 150

	scheduleReplyMaxTokens   = 300
	scheduleReplyTemperature = 0.7

	// DefaultDaysAhead bounds the calendar search window.
	DefaultDaysAhead = 7
)

// CannedSchedulingReply acknowledges a meeting request when drafting fails.
const CannedSchedulingReply = "Thank you for the meeting request. I have some availability and will get back to you with specific times soon."

// Completer is the slice of the model client the scheduler needs.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float32) (string, error)
	Model() string
}

// Service orchestrates the scheduling flow. calendar may be nil when no
// calendar credentials are configured; extraction and replies still work,
// time suggestions come back empty.
type Service struct {
	llm      Completer
	calendar out.CalendarProvider
	log      *logger.Logger
}

// NewService creates the scheduling service.
func NewService(llm Completer, calendar out.CalendarProvider, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{llm: llm, calendar: calendar, log: log}
}

// ExtractDetails pulls structured meeting details out of an email. Every
// failure path returns the documented defaults, never an error: a meeting
// flow must not die because the model hiccuped.
func (s *Service) ExtractDetails(ctx context.Context, msg *domain.Message) *domain.MeetingDetails {
	if s.llm == nil {
		return domain.DefaultMeetingDetails()
	}

	body := msg.Body
	if body == "" {
		body = msg.Snippet
	}
	prompt := fmt.Sprintf(`Extract meeting details as JSON:

{"meeting_type": "call/in-person/video", "duration": minutes, "purpose": "brief description", "urgency": "high/medium/low"}

Email:
Subject: %s
Content: %s

JSON only:`,
		truncate(msg.Subject, extractSubjectMax),
		truncate(body, extractBodyMax))

	raw, err := s.llm.Complete(ctx, prompt, extractMaxTokens, 0.1)
	if err != nil {
		s.log.WithError(err).WithMessage(msg.ID).Warn("meeting details extraction failed")
		return domain.DefaultMeetingDetails()
	}

	details := &domain.MeetingDetails{}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), details); err != nil {
		s.log.WithError(err).WithMessage(msg.ID).Warn("meeting details reply was not valid JSON")
		return domain.DefaultMeetingDetails()
	}

	// Partial JSON still gets sane defaults.
	defaults := domain.DefaultMeetingDetails()
	if details.MeetingType == "" {
		details.MeetingType = defaults.MeetingType
	}
	if details.DurationMinutes <= 0 {
		details.DurationMinutes = defaults.DurationMinutes
	}
	if details.Purpose == "" {
		details.Purpose = defaults.Purpose
	}
	if details.Urgency == "" {
		details.Urgency = defaults.Urgency
	}
	return details
}

// SuggestTimes asks the calendar for free slots matching the extracted
// duration. Without a calendar provider it returns an empty list.
func (s *Service) SuggestTimes(ctx context.Context, details *domain.MeetingDetails) ([]domain.TimeSlot, error) {
	if s.calendar == nil {
		return nil, nil
	}
	return s.calendar.SuggestTimes(ctx, details.DurationMinutes, DefaultDaysAhead)
}

// BookSlot creates a calendar event for the chosen slot, inviting the
// requester. Returns the provider event id.
func (s *Service) BookSlot(ctx context.Context, msg *domain.Message, details *domain.MeetingDetails, slot domain.TimeSlot) (string, error) {
	if s.calendar == nil {
		return "", apperr.NotFound("calendar provider")
	}
	if details == nil {
		details = domain.DefaultMeetingDetails()
	}

	title := details.Purpose
	if title == "" {
		title = "Meeting with " + msg.SenderName()
	}
	description := fmt.Sprintf("Scheduled from email %q", msg.Subject)

	return s.calendar.CreateEvent(ctx, title, slot.Start, slot.End,
		[]string{msg.SenderAddress()}, description)
}

// =============================================================================
// Scheduling Reply
// =============================================================================

const schedulingSystemPrompt = `Generate a professional email response for a meeting request with suggested times.

Include:
- Acknowledgment of the meeting request
- Suggested available times
- Request for confirmation
- Professional closing

Keep it concise and friendly.`

// DraftReply writes a scheduling response offering the suggested slots.
// On model failure it returns the canned acknowledgment.
func (s *Service) DraftReply(ctx context.Context, msg *domain.Message, slots []domain.TimeSlot) string {
	if s.llm == nil {
		return CannedSchedulingReply
	}

	var times strings.Builder
	for i, slot := range slots {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&times, "- %s to %s\n", slot.FormattedStart, slot.FormattedEnd)
	}

	userPrompt := fmt.Sprintf(`Original meeting request:
Subject: %s
From: %s

Suggested available times:
%s
Generate an appropriate response:`, msg.Subject, msg.Sender, times.String())

	reply, err := s.llm.CompleteWithSystem(ctx, schedulingSystemPrompt, userPrompt, scheduleReplyMaxTokens, scheduleReplyTemperature)
	if err != nil {
		s.log.WithError(err).WithMessage(msg.ID).Warn("scheduling reply generation failed")
		return CannedSchedulingReply
	}
	if trimmed := strings.TrimSpace(reply); trimmed != "" {
		return trimmed
	}
	return CannedSchedulingReply
}

// stripCodeFences removes a surrounding markdown code fence, with or without
// a language tag, from a model reply.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
