package domain

import (
	"strings"
	"time"
)

// Category represents the AI-assigned category for an inbound email.
type Category string

const (
	CategoryImportant   Category = "Important"   // Urgent business matters, security alerts, deadlines
	CategoryNewsletters Category = "Newsletters" // Regular updates, subscriptions, digests
	CategoryPromotions  Category = "Promotions"  // Sales, discounts, marketing, advertisements
	CategoryMeetings    Category = "Meetings"    // Meeting requests, calendar invites, scheduling
	CategoryPersonal    Category = "Personal"    // Personal communications, family, friends

	// CategoryNone marks a message that has not been classified yet.
	// Unclassified messages must never be notified.
	CategoryNone Category = ""
)

// Categories returns the fixed category enumeration in priority order.
// The order doubles as the deterministic tie-break for the rule classifier:
// when two categories reach the same maximal score, the earlier one wins.
func Categories() []Category {
	return []Category{
		CategoryImportant,
		CategoryMeetings,
		CategoryPromotions,
		CategoryNewsletters,
		CategoryPersonal,
	}
}

// ParseCategory maps free text to a known category, or CategoryNone.
func ParseCategory(s string) Category {
	for _, c := range Categories() {
		if string(c) == s {
			return c
		}
	}
	return CategoryNone
}

// ClassifyMethod identifies which classifier produced a category.
type ClassifyMethod string

const (
	MethodRuleBased ClassifyMethod = "rule-based"
	MethodLLM       ClassifyMethod = "llm"
	MethodDefault   ClassifyMethod = "default" // fallback when every classifier failed
)

// Priority represents the notification priority tier.
// It is informational only and independent of the notify decision.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// =============================================================================
// Message
// =============================================================================

// Message is the unit of work flowing through the pipeline. It is created on
// fetch and enriched in place by each stage; stages never clear existing
// fields.
type Message struct {
	// Provider-assigned identity
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`

	// RFC 5322 Message-ID header, used for reply threading.
	RFCMessageID string `json:"rfc_message_id,omitempty"`

	// Content
	Subject   string    `json:"subject"`
	Sender    string    `json:"sender"` // "Name <addr>" as delivered by the provider
	Recipient string    `json:"recipient"`
	Body      string    `json:"body"`
	Snippet   string    `json:"snippet"`
	Timestamp time.Time `json:"timestamp"`
	Labels    []string  `json:"labels"`

	// Derived attributes, attached by the pipeline
	Category          Category        `json:"category,omitempty"`
	Method            ClassifyMethod  `json:"categorization_method,omitempty"`
	IsMeetingRequest  bool            `json:"is_meeting_request"`
	ShouldRespond     bool            `json:"should_respond"`
	GeneratedResponse string          `json:"generated_response,omitempty"`
	SuggestedTimes    []TimeSlot      `json:"suggested_times,omitempty"`
	MeetingDetails    *MeetingDetails `json:"meeting_details,omitempty"`
}

// SenderAddress extracts the bare address from a "Name <addr>" sender string.
func (m *Message) SenderAddress() string {
	s := m.Sender
	if i := strings.Index(s, "<"); i >= 0 {
		if j := strings.Index(s[i:], ">"); j > 0 {
			return strings.TrimSpace(s[i+1 : i+j])
		}
	}
	return strings.TrimSpace(s)
}

// SenderName extracts the display name from a "Name <addr>" sender string,
// falling back to the full sender when no display name is present.
func (m *Message) SenderName() string {
	s := m.Sender
	if i := strings.Index(s, "<"); i > 0 {
		return strings.Trim(strings.TrimSpace(s[:i]), `"`)
	}
	return strings.TrimSpace(s)
}

// MeetingDetails is the structured record extracted from a meeting request.
type MeetingDetails struct {
	MeetingType     string `json:"meeting_type"` // call, in-person, video
	DurationMinutes int    `json:"duration"`
	Purpose         string `json:"purpose"`
	Urgency         string `json:"urgency"` // high, medium, low
}

// DefaultMeetingDetails is the hardcoded record substituted when extraction
// fails or no model is configured.
func DefaultMeetingDetails() *MeetingDetails {
	return &MeetingDetails{
		MeetingType:     "call",
		DurationMinutes: 60,
		Purpose:         "Meeting discussion",
		Urgency:         "medium",
	}
}

// TimeSlot is a candidate meeting interval with human-readable formatting.
type TimeSlot struct {
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	FormattedStart string    `json:"formatted_start"`
	FormattedEnd   string    `json:"formatted_end"`
}

// BusyInterval is a busy period reported by the calendar provider.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// =============================================================================
// Processed-mail history
// =============================================================================

// ProcessedMail is one audit row describing a pipeline decision.
type ProcessedMail struct {
	MessageID   string         `db:"message_id" json:"message_id"`
	Subject     string         `db:"subject" json:"subject"`
	Sender      string         `db:"sender" json:"sender"`
	Category    Category       `db:"category" json:"category"`
	Method      ClassifyMethod `db:"method" json:"method"`
	Priority    Priority       `db:"priority" json:"priority"`
	Notified    bool           `db:"notified" json:"notified"`
	IsMeeting   bool           `db:"is_meeting" json:"is_meeting"`
	ReceivedAt  time.Time      `db:"received_at" json:"received_at"`
	ProcessedAt time.Time      `db:"processed_at" json:"processed_at"`
}

// HistoryStats summarizes the audit log for the status endpoint.
type HistoryStats struct {
	Total      int64            `json:"total"`
	Notified   int64            `json:"notified"`
	ByCategory map[string]int64 `json:"by_category"`
	ByMethod   map[string]int64 `json:"by_method"`
}
