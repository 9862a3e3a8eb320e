package classification

import "strings"

// =============================================================================
// Meeting Detector
// =============================================================================

// meetingKeywords flag a message as a meeting request when any of them occurs
// in the subject or body. Matching is case-insensitive substring search.
var meetingKeywords = []string{
	"meeting", "call", "conference", "zoom", "teams",
	"webinar", "appointment", "schedule", "calendar",
	"invite", "invitation",
}

// MeetingDetector flags messages that look like meeting requests. The check
// is independent of the assigned category: a promotional email mentioning a
// webinar is still surfaced to the scheduling flow.
type MeetingDetector struct {
	keywords []string
}

// NewMeetingDetector creates a detector with the default keyword set.
func NewMeetingDetector() *MeetingDetector {
	return &MeetingDetector{keywords: meetingKeywords}
}

// IsMeetingRequest reports whether subject or body contains a meeting keyword.
func (d *MeetingDetector) IsMeetingRequest(subject, body string) bool {
	text := strings.ToLower(subject + " " + body)
	for _, k := range d.keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
