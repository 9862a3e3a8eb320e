package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// Callback Commands
// =============================================================================

// ActionKind enumerates the button actions the messenger can deliver.
type ActionKind string

const (
	ActionReply      ActionKind = "reply"    // draft an AI response
	ActionSchedule   ActionKind = "schedule" // suggest meeting times
	ActionView       ActionKind = "view"     // show the full email
	ActionIgnore     ActionKind = "ignore"   // terminal: drop the notification
	ActionDone       ActionKind = "done"     // terminal: mark handled
	ActionSend       ActionKind = "send"     // terminal: send the pending draft
	ActionCancel     ActionKind = "cancel"   // terminal: discard the pending draft
	ActionPickTime   ActionKind = "time"     // select a suggested slot by index
	ActionCustomTime ActionKind = "custom_time"
	ActionUnknown    ActionKind = ""
)

// Terminal reports whether completing this action must remove the cached
// entry for the message (the at-most-one-live-entry contract).
func (k ActionKind) Terminal() bool {
	switch k {
	case ActionIgnore, ActionDone, ActionSend, ActionCancel:
		return true
	}
	return false
}

// Command is a button press decoded once at the messaging boundary.
// The wire form is "verb_messageID" with an optional trailing index for
// time selection ("time_abc123_2").
type Command struct {
	Kind      ActionKind
	MessageID string
	TimeIndex int // only meaningful for ActionPickTime
}

// CallbackData encodes the command into the opaque callback-data string
// carried by an inline button.
func (c Command) CallbackData() string {
	if c.Kind == ActionPickTime {
		return fmt.Sprintf("%s_%s_%d", c.Kind, c.MessageID, c.TimeIndex)
	}
	return fmt.Sprintf("%s_%s", c.Kind, c.MessageID)
}

// ParseCommand decodes a callback-data string. Unknown verbs yield a Command
// with ActionUnknown rather than an error so the dispatcher can report them.
func ParseCommand(data string) (Command, error) {
	if data == "" {
		return Command{}, fmt.Errorf("empty callback data")
	}

	// "custom_time" contains the separator, so match verbs longest-first.
	verbs := []ActionKind{
		ActionCustomTime, ActionSchedule, ActionReply, ActionView,
		ActionIgnore, ActionDone, ActionSend, ActionCancel, ActionPickTime,
	}

	for _, verb := range verbs {
		prefix := string(verb) + "_"
		if !strings.HasPrefix(data, prefix) {
			continue
		}
		rest := data[len(prefix):]
		cmd := Command{Kind: verb, MessageID: rest}

		if verb == ActionPickTime {
			// Message ids never contain underscores, so the last segment
			// is the slot index.
			if i := strings.LastIndex(rest, "_"); i > 0 {
				idx, err := strconv.Atoi(rest[i+1:])
				if err != nil {
					return Command{}, fmt.Errorf("bad time index in %q: %w", data, err)
				}
				cmd.MessageID = rest[:i]
				cmd.TimeIndex = idx
			}
		}
		return cmd, nil
	}

	return Command{Kind: ActionUnknown, MessageID: data}, nil
}
