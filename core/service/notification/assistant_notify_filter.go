// Package notification decides which classified messages surface to the
// user and at what priority.
package notification

import (
	"strings"

	"assistant_server/core/domain"
)

// =============================================================================
// Notification Filter
// =============================================================================

// urgentSubjectKeywords force a notification regardless of category.
var urgentSubjectKeywords = []string{
	"urgent", "action required", "deadline", "expires", "verify", "security",
}

// highPriorityKeywords push the priority tier to high.
var highPriorityKeywords = []string{
	"urgent", "deadline", "expires today", "action required",
}

// educationalSenderMarkers whitelist academic senders.
var educationalSenderMarkers = []string{
	".edu", "university", "college", "school",
}

// Filter applies the notification policy. Filtering happens after
// classification and before any message is shown to the user; suppressed
// messages are still archived in full, suppression only skips the ping.
type Filter struct{}

// NewFilter creates the notification filter.
func NewFilter() *Filter {
	return &Filter{}
}

// ShouldNotify reports whether the message warrants a push notification.
//
// The rules, in order: Important always notifies; meeting requests and the
// Meetings category always notify; an urgent keyword in the subject notifies
// whatever the category; educational senders notify. Everything else is
// suppressed.
func (f *Filter) ShouldNotify(msg *domain.Message) bool {
	if msg.Category == domain.CategoryImportant {
		return true
	}
	if msg.IsMeetingRequest || msg.Category == domain.CategoryMeetings {
		return true
	}

	subject := strings.ToLower(msg.Subject)
	for _, k := range urgentSubjectKeywords {
		if strings.Contains(subject, k) {
			return true
		}
	}

	sender := strings.ToLower(msg.Sender)
	for _, m := range educationalSenderMarkers {
		if strings.Contains(sender, m) {
			return true
		}
	}

	return false
}

// PriorityOf assigns the informational priority tier. It is independent of
// the notify decision: a suppressed message still carries a priority in the
// history log.
func (f *Filter) PriorityOf(msg *domain.Message) domain.Priority {
	subject := strings.ToLower(msg.Subject)
	for _, k := range highPriorityKeywords {
		if strings.Contains(subject, k) {
			return domain.PriorityHigh
		}
	}

	if msg.Category == domain.CategoryImportant || msg.Category == domain.CategoryMeetings || msg.IsMeetingRequest {
		return domain.PriorityMedium
	}

	return domain.PriorityLow
}
