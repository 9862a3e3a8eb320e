package messaging

import (
	"fmt"
	"strings"
	"time"

	"assistant_server/core/domain"
	"assistant_server/core/port/out"
)

// =============================================================================
// Notification Formatting
// =============================================================================

var categoryEmojis = map[domain.Category]string{
	domain.CategoryImportant:   "🚨",
	domain.CategoryMeetings:    "📅",
	domain.CategoryPromotions:  "🎯",
	domain.CategoryNewsletters: "📰",
	domain.CategoryPersonal:    "👤",
}

var urgentIndicatorKeywords = []string{"urgent", "action required", "deadline", "expires"}

// FormatNotification renders the push notification text for a message.
func FormatNotification(msg *domain.Message) string {
	emoji, ok := categoryEmojis[msg.Category]
	if !ok {
		emoji = "📧"
	}

	urgency := ""
	subjectLower := strings.ToLower(msg.Subject)
	for _, k := range urgentIndicatorKeywords {
		if strings.Contains(subjectLower, k) {
			urgency = " ⚡ URGENT"
			break
		}
	}

	return fmt.Sprintf(`%s *%s Email*%s

📬 *From:* %s
📧 %s

📝 *Subject:* %s

💬 *Preview:* %s...

🕐 *Received:* %s`,
		emoji, msg.Category, urgency,
		msg.SenderName(),
		msg.SenderAddress(),
		clip(msg.Subject, 100),
		clip(msg.Snippet, 150),
		time.Now().Format("15:04"))
}

// NotificationKeyboard builds the action keyboard for a notification.
// Meeting requests lead with Schedule; everything else leads with Reply.
func NotificationKeyboard(msg *domain.Message) [][]out.Button {
	id := msg.ID

	if msg.IsMeetingRequest {
		return [][]out.Button{
			{
				{Text: "📅 Schedule", Data: domain.Command{Kind: domain.ActionSchedule, MessageID: id}.CallbackData()},
				{Text: "✍️ Reply", Data: domain.Command{Kind: domain.ActionReply, MessageID: id}.CallbackData()},
			},
			{
				{Text: "👀 View Full", Data: domain.Command{Kind: domain.ActionView, MessageID: id}.CallbackData()},
				{Text: "🔇 Ignore", Data: domain.Command{Kind: domain.ActionIgnore, MessageID: id}.CallbackData()},
			},
		}
	}

	return [][]out.Button{
		{
			{Text: "✍️ Reply", Data: domain.Command{Kind: domain.ActionReply, MessageID: id}.CallbackData()},
			{Text: "👀 View Full", Data: domain.Command{Kind: domain.ActionView, MessageID: id}.CallbackData()},
		},
		{
			{Text: "✅ Mark Done", Data: domain.Command{Kind: domain.ActionDone, MessageID: id}.CallbackData()},
			{Text: "🔇 Ignore", Data: domain.Command{Kind: domain.ActionIgnore, MessageID: id}.CallbackData()},
		},
	}
}

// FormatResponsePreview renders a drafted reply for approval.
func FormatResponsePreview(msg *domain.Message, draft string) string {
	return fmt.Sprintf(`✍️ *Generated Response Preview*

📧 *Replying to:* %s
👤 *To:* %s

📝 *Generated Response:*
`+"```\n%s...\n```"+`

*Do you want to send this response?*`,
		clip(msg.Subject, 50),
		msg.Sender,
		clip(draft, 800))
}

// PreviewKeyboard builds the send/cancel keyboard under a response preview.
func PreviewKeyboard(messageID string) [][]out.Button {
	return [][]out.Button{
		{
			{Text: "✅ Send Response", Data: domain.Command{Kind: domain.ActionSend, MessageID: messageID}.CallbackData()},
		},
		{
			{Text: "❌ Cancel", Data: domain.Command{Kind: domain.ActionCancel, MessageID: messageID}.CallbackData()},
		},
	}
}

// FormatScheduleOptions renders the suggested meeting slots.
func FormatScheduleOptions(msg *domain.Message, slots []domain.TimeSlot) string {
	var times strings.Builder
	for i, slot := range slots {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&times, "• %d. %s\n", i+1, slot.FormattedStart)
	}

	return fmt.Sprintf(`📅 *Meeting Scheduling Options*

📧 *For:* %s

⏰ *Suggested Times:*
%s
*Which time works best for you?*`,
		clip(msg.Subject, 50),
		times.String())
}

// ScheduleKeyboard builds one button per suggested slot plus the fallbacks.
func ScheduleKeyboard(messageID string, slots []domain.TimeSlot) [][]out.Button {
	var keyboard [][]out.Button
	for i, slot := range slots {
		if i >= 3 {
			break
		}
		keyboard = append(keyboard, []out.Button{
			{
				Text: "📅 " + slot.FormattedStart,
				Data: domain.Command{Kind: domain.ActionPickTime, MessageID: messageID, TimeIndex: i}.CallbackData(),
			},
		})
	}
	keyboard = append(keyboard, []out.Button{
		{Text: "📝 Suggest Different Time", Data: domain.Command{Kind: domain.ActionCustomTime, MessageID: messageID}.CallbackData()},
		{Text: "❌ Cancel", Data: domain.Command{Kind: domain.ActionCancel, MessageID: messageID}.CallbackData()},
	})
	return keyboard
}

// FormatSuccess renders an action confirmation.
func FormatSuccess(action, details string) string {
	emojis := map[string]string{
		"sent":      "✅",
		"scheduled": "📅",
		"ignored":   "🔇",
		"saved":     "💾",
	}
	emoji, ok := emojis[action]
	if !ok {
		emoji = "✅"
	}

	text := fmt.Sprintf("%s *Action Completed*\n\n*Status:* %s successfully", emoji, capitalize(action))
	if details != "" {
		text += "\n" + details
	}
	return text + fmt.Sprintf("\n\n*Time:* %s", time.Now().Format("15:04:05"))
}

// FormatFullView renders the complete message body for the View action.
func FormatFullView(msg *domain.Message) string {
	body := msg.Body
	if body == "" {
		body = msg.Snippet
	}
	return fmt.Sprintf(`👀 *Full Email*

📝 *Subject:* %s
📬 *From:* %s

%s`,
		clip(msg.Subject, 100),
		msg.Sender,
		clip(body, 3000))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
