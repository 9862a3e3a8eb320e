// Package out defines outbound ports to external collaborators.
package out

import (
	"context"
	"time"

	"assistant_server/core/domain"
)

// =============================================================================
// Provider Ports
// =============================================================================

// MailProvider is the email collaborator (Gmail in production).
type MailProvider interface {
	// ListMessages fetches messages matching a provider-specific query
	// string, newest first, bounded by maxResults.
	ListMessages(ctx context.Context, query string, maxResults int64) ([]*domain.Message, error)

	// SendReply sends a plain-text reply, threading on inReplyTo when set.
	SendReply(ctx context.Context, to, subject, body, inReplyTo string) error

	// AddLabel attaches a label to a message, creating it if needed.
	AddLabel(ctx context.Context, messageID, labelName string) error
}

// CalendarProvider is the calendar collaborator (Google Calendar).
type CalendarProvider interface {
	// FreeBusy returns busy intervals on the primary calendar.
	FreeBusy(ctx context.Context, start, end time.Time) ([]domain.BusyInterval, error)

	// SuggestTimes returns up to three open weekday slots.
	SuggestTimes(ctx context.Context, durationMinutes, daysAhead int) ([]domain.TimeSlot, error)

	// CreateEvent creates an event and returns the provider event id.
	CreateEvent(ctx context.Context, title string, start, end time.Time, attendees []string, description string) (string, error)
}

// =============================================================================
// Messenger Port
// =============================================================================

// Button is one inline keyboard button; Data is the encoded Command.
type Button struct {
	Text string
	Data string
}

// IncomingText is a plain chat message received from the user.
type IncomingText struct {
	ChatID int64
	Text   string
}

// ButtonPress is a callback-query update from an inline button.
type ButtonPress struct {
	CallbackID string
	ChatID     int64
	Data       string
}

// Update is one item from the messenger update stream. Exactly one of Text
// and Press is non-nil.
type Update struct {
	ID    int64
	Text  *IncomingText
	Press *ButtonPress
}

// Messenger is the messaging collaborator (Telegram in production).
type Messenger interface {
	SendMessage(ctx context.Context, text string) error
	SendMessageWithButtons(ctx context.Context, text string, buttons [][]Button) error

	// PollUpdates returns updates with id >= sinceCursor, in arrival order.
	// Passing lastSeen+1 acknowledges everything up to lastSeen.
	PollUpdates(ctx context.Context, sinceCursor int64) ([]*Update, error)

	// AnswerCallback clears the loading state of a button press.
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// =============================================================================
// Store Ports
// =============================================================================

// SnapshotStore holds message snapshots between notification dispatch and the
// terminal callback action. Implementations must flush every mutation to
// backing storage before returning.
type SnapshotStore interface {
	Put(key string, msg *domain.Message) error
	Get(key string) (*domain.Message, bool)
	Delete(key string) error

	// Reload re-reads backing storage. Callers must reload before reporting
	// a miss: only the backing files survive a restart.
	Reload() error

	Len() int
}

// DraftStore holds pending response drafts awaiting send confirmation.
type DraftStore interface {
	Put(key string, draft string) error
	Get(key string) (string, bool)
	Delete(key string) error
	Reload() error
	Len() int
}

// HistoryStore is the processed-mail audit log.
type HistoryStore interface {
	Record(ctx context.Context, entry *domain.ProcessedMail) error
	Recent(ctx context.Context, limit int) ([]*domain.ProcessedMail, error)
	Stats(ctx context.Context) (*domain.HistoryStats, error)
}
