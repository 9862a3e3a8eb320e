package schedule

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"assistant_server/core/domain"
)

type stubCompleter struct {
	reply      string
	err        error
	lastPrompt string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string, _ int, _ float32) (string, error) {
	s.lastPrompt = prompt
	return s.reply, s.err
}

func (s *stubCompleter) CompleteWithSystem(_ context.Context, _, prompt string, _ int, _ float32) (string, error) {
	s.lastPrompt = prompt
	return s.reply, s.err
}

func (s *stubCompleter) Model() string { return "stub" }

type stubCalendar struct {
	slots []domain.TimeSlot
	err   error

	gotDuration int
	gotDays     int
}

func (c *stubCalendar) FreeBusy(_ context.Context, _, _ time.Time) ([]domain.BusyInterval, error) {
	return nil, nil
}

func (c *stubCalendar) SuggestTimes(_ context.Context, durationMinutes, daysAhead int) ([]domain.TimeSlot, error) {
	c.gotDuration = durationMinutes
	c.gotDays = daysAhead
	return c.slots, c.err
}

func (c *stubCalendar) CreateEvent(_ context.Context, _ string, _, _ time.Time, _ []string, _ string) (string, error) {
	return "evt-1", nil
}

func TestExtractDetails(t *testing.T) {
	msg := &domain.Message{ID: "m1", Subject: "Planning call", Body: "Can we do 30 minutes this week?"}

	tests := []struct {
		name  string
		reply string
		err   error
		want  domain.MeetingDetails
	}{
		{
			name:  "clean JSON reply",
			reply: `{"meeting_type": "video", "duration": 30, "purpose": "Planning", "urgency": "high"}`,
			want:  domain.MeetingDetails{MeetingType: "video", DurationMinutes: 30, Purpose: "Planning", Urgency: "high"},
		},
		{
			name:  "fenced JSON with language tag",
			reply: "```json\n{\"meeting_type\": \"in-person\", \"duration\": 45, \"purpose\": \"Review\", \"urgency\": \"low\"}\n```",
			want:  domain.MeetingDetails{MeetingType: "in-person", DurationMinutes: 45, Purpose: "Review", Urgency: "low"},
		},
		{
			name:  "bare fenced JSON",
			reply: "```\n{\"meeting_type\": \"call\", \"duration\": 15, \"purpose\": \"Standup\", \"urgency\": \"medium\"}\n```",
			want:  domain.MeetingDetails{MeetingType: "call", DurationMinutes: 15, Purpose: "Standup", Urgency: "medium"},
		},
		{
			name:  "partial JSON backfills defaults",
			reply: `{"duration": 90}`,
			want:  domain.MeetingDetails{MeetingType: "call", DurationMinutes: 90, Purpose: "Meeting discussion", Urgency: "medium"},
		},
		{
			name:  "garbage reply yields defaults",
			reply: "sure, happy to help!",
			want:  *domain.DefaultMeetingDetails(),
		},
		{
			name: "model error yields defaults",
			err:  errors.New("timeout"),
			want: *domain.DefaultMeetingDetails(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&stubCompleter{reply: tt.reply, err: tt.err}, nil, nil)
			got := svc.ExtractDetails(context.Background(), msg)
			if *got != tt.want {
				t.Errorf("ExtractDetails() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestExtractDetailsWithoutModel(t *testing.T) {
	svc := NewService(nil, nil, nil)
	got := svc.ExtractDetails(context.Background(), &domain.Message{ID: "m1"})
	if *got != *domain.DefaultMeetingDetails() {
		t.Errorf("ExtractDetails() = %+v, want defaults", *got)
	}
}

func TestSuggestTimesPassesDuration(t *testing.T) {
	cal := &stubCalendar{slots: []domain.TimeSlot{{FormattedStart: "Monday, March 2 at 09:00 AM", FormattedEnd: "09:30 AM"}}}
	svc := NewService(&stubCompleter{}, cal, nil)

	slots, err := svc.SuggestTimes(context.Background(), &domain.MeetingDetails{DurationMinutes: 30})
	if err != nil {
		t.Fatalf("SuggestTimes() error = %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("SuggestTimes() returned %d slots, want 1", len(slots))
	}
	if cal.gotDuration != 30 {
		t.Errorf("calendar asked for %d minutes, want 30", cal.gotDuration)
	}
	if cal.gotDays != DefaultDaysAhead {
		t.Errorf("calendar asked for %d days, want %d", cal.gotDays, DefaultDaysAhead)
	}
}

func TestSuggestTimesWithoutCalendar(t *testing.T) {
	svc := NewService(&stubCompleter{}, nil, nil)
	slots, err := svc.SuggestTimes(context.Background(), domain.DefaultMeetingDetails())
	if err != nil {
		t.Fatalf("SuggestTimes() error = %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("SuggestTimes() = %d slots, want 0 without a calendar", len(slots))
	}
}

func TestDraftReply(t *testing.T) {
	msg := &domain.Message{ID: "m1", Subject: "Meeting?", Sender: "jordan@partner.io"}
	slots := []domain.TimeSlot{
		{FormattedStart: "Monday, March 2 at 10:00 AM", FormattedEnd: "11:00 AM"},
		{FormattedStart: "Tuesday, March 3 at 02:00 PM", FormattedEnd: "03:00 PM"},
	}

	stub := &stubCompleter{reply: "Hi Jordan, happy to meet. Does Monday work?"}
	svc := NewService(stub, nil, nil)

	got := svc.DraftReply(context.Background(), msg, slots)
	if got != stub.reply {
		t.Errorf("DraftReply() = %q, want model output", got)
	}
	if !strings.Contains(stub.lastPrompt, "Monday, March 2 at 10:00 AM") {
		t.Error("prompt missing the first suggested slot")
	}
}

func TestDraftReplyFallsBackToCanned(t *testing.T) {
	msg := &domain.Message{ID: "m1", Subject: "Meeting?", Sender: "jordan@partner.io"}

	svc := NewService(&stubCompleter{err: errors.New("down")}, nil, nil)
	if got := svc.DraftReply(context.Background(), msg, nil); got != CannedSchedulingReply {
		t.Errorf("DraftReply() = %q, want canned fallback", got)
	}

	svc = NewService(nil, nil, nil)
	if got := svc.DraftReply(context.Background(), msg, nil); got != CannedSchedulingReply {
		t.Errorf("DraftReply() without model = %q, want canned fallback", got)
	}
}

func TestBookSlot(t *testing.T) {
	cal := &stubCalendar{}
	svc := NewService(&stubCompleter{}, cal, nil)
	msg := &domain.Message{ID: "m1", Subject: "Planning", Sender: "Jordan Lee <jordan@partner.io>"}
	slot := domain.TimeSlot{Start: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), End: time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)}

	id, err := svc.BookSlot(context.Background(), msg, domain.DefaultMeetingDetails(), slot)
	if err != nil {
		t.Fatalf("BookSlot() error = %v", err)
	}
	if id != "evt-1" {
		t.Errorf("BookSlot() = %q, want evt-1", id)
	}

	svc = NewService(&stubCompleter{}, nil, nil)
	if _, err := svc.BookSlot(context.Background(), msg, nil, slot); err == nil {
		t.Error("expected error without a calendar provider")
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  {\"a\":1}  ", "{\"a\":1}"},
	}
	for _, tt := range tests {
		if got := stripCodeFences(tt.in); got != tt.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
