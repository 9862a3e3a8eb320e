package poller

import (
	"context"
	"fmt"
	"strings"

	"assistant_server/adapter/out/messaging"
	"assistant_server/core/domain"
	"assistant_server/core/port/out"
	"assistant_server/core/service/respond"
	"assistant_server/core/service/schedule"
	"assistant_server/pkg/metrics"

	"github.com/rs/zerolog"
)

// =============================================================================
// Action Dispatcher
// =============================================================================

// ActionHandler resolves button presses and text commands against the
// snapshot and draft stores.
type ActionHandler struct {
	mail      out.MailProvider
	messenger out.Messenger
	snapshots out.SnapshotStore
	drafts    out.DraftStore

	generator *respond.Generator
	scheduler *schedule.Service

	metrics *metrics.PipelineMetrics
	log     zerolog.Logger
}

// ActionHandlerDeps bundles the handler collaborators.
type ActionHandlerDeps struct {
	Mail      out.MailProvider
	Messenger out.Messenger
	Snapshots out.SnapshotStore
	Drafts    out.DraftStore
	Generator *respond.Generator
	Scheduler *schedule.Service
	Metrics   *metrics.PipelineMetrics
}

// NewActionHandler creates the dispatcher.
func NewActionHandler(deps ActionHandlerDeps, log zerolog.Logger) *ActionHandler {
	return &ActionHandler{
		mail:      deps.Mail,
		messenger: deps.Messenger,
		snapshots: deps.Snapshots,
		drafts:    deps.Drafts,
		generator: deps.Generator,
		scheduler: deps.Scheduler,
		metrics:   deps.Metrics,
		log:       log.With().Str("component", "actions").Logger(),
	}
}

// HandlePress dispatches one button press. Errors are reported back to the
// chat instead of bubbling up: the loop must keep draining updates.
func (h *ActionHandler) HandlePress(ctx context.Context, press *out.ButtonPress) {
	cmd, err := domain.ParseCommand(press.Data)
	if err != nil {
		h.log.Warn().Err(err).Str("data", press.Data).Msg("unparseable callback data")
		h.answer(ctx, press.CallbackID, "Sorry, that button is broken")
		return
	}

	log := h.log.With().Str("action", string(cmd.Kind)).Str("message_id", cmd.MessageID).Logger()

	if cmd.Kind == domain.ActionUnknown {
		log.Warn().Str("data", press.Data).Msg("unknown action verb")
		h.answer(ctx, press.CallbackID, "Unknown action")
		return
	}

	// Ack immediately so the button spinner clears even if the action below
	// takes seconds (model calls, calendar queries).
	h.answer(ctx, press.CallbackID, "Working on it...")

	msg, ok := h.lookup(cmd.MessageID)
	if !ok && cmd.Kind != domain.ActionCancel {
		log.Warn().Msg("no snapshot for message, notification is stale")
		h.send(ctx, "⚠️ That email is no longer tracked. It may have been handled already.")
		return
	}

	switch cmd.Kind {
	case domain.ActionReply:
		h.handleReply(ctx, log, msg)
	case domain.ActionSchedule:
		h.handleSchedule(ctx, log, msg)
	case domain.ActionView:
		h.send(ctx, messaging.FormatFullView(msg))
	case domain.ActionIgnore:
		h.finish(ctx, log, msg.ID, "ignored", "")
	case domain.ActionDone:
		h.finish(ctx, log, msg.ID, "saved", "Marked as done")
	case domain.ActionSend:
		h.handleSend(ctx, log, msg)
	case domain.ActionCancel:
		h.handleCancel(ctx, log, cmd.MessageID)
	case domain.ActionPickTime:
		h.handlePickTime(ctx, log, msg, cmd.TimeIndex)
	case domain.ActionCustomTime:
		h.send(ctx, "📝 Reply to the original email with your preferred time and I'll stay out of the way.")
	}
}

// HandleText dispatches slash commands typed into the chat.
func (h *ActionHandler) HandleText(ctx context.Context, text *out.IncomingText) {
	switch strings.TrimSpace(text.Text) {
	case "/start":
		h.send(ctx, "👋 *Email Assistant*\n\nI watch your inbox and ping you about mail that matters. Use the buttons under each notification to reply, schedule or dismiss.")
	case "/status":
		h.send(ctx, fmt.Sprintf("📊 *Status*\n\nPending notifications: %d\nPending drafts: %d",
			h.snapshots.Len(), h.drafts.Len()))
	case "/test":
		h.send(ctx, "✅ Bot is alive and listening.")
	default:
		// Free-form text is not a command; stay quiet.
	}
}

// -----------------------------------------------------------------------------
// Individual actions
// -----------------------------------------------------------------------------

func (h *ActionHandler) handleReply(ctx context.Context, log zerolog.Logger, msg *domain.Message) {
	draft := msg.GeneratedResponse
	if draft == "" {
		draft = h.generator.Generate(ctx, msg.Subject, msg.Sender, msg.Body)
	}

	if err := h.drafts.Put(msg.ID, draft); err != nil {
		log.Error().Err(err).Msg("failed to store draft")
		h.send(ctx, "⚠️ Could not save the draft, please try again.")
		return
	}

	h.send(ctx, messaging.FormatResponsePreview(msg, draft))
	h.sendButtons(ctx, "*Do you want to send this response?*", messaging.PreviewKeyboard(msg.ID))
}

func (h *ActionHandler) handleSchedule(ctx context.Context, log zerolog.Logger, msg *domain.Message) {
	if msg.MeetingDetails == nil {
		msg.MeetingDetails = h.scheduler.ExtractDetails(ctx, msg)
	}
	if len(msg.SuggestedTimes) == 0 {
		slots, err := h.scheduler.SuggestTimes(ctx, msg.MeetingDetails)
		if err != nil {
			log.Error().Err(err).Msg("time suggestion failed")
			h.send(ctx, "⚠️ Could not reach the calendar, please try again later.")
			return
		}
		msg.SuggestedTimes = slots
	}

	if len(msg.SuggestedTimes) == 0 {
		h.send(ctx, "📅 No free slots found in the next week. Reply to the email directly to negotiate a time.")
		return
	}

	// Persist the slots so the time_N press can resolve the same list.
	if err := h.snapshots.Put(msg.ID, msg); err != nil {
		log.Error().Err(err).Msg("failed to update snapshot with slots")
	}

	h.sendButtons(ctx,
		messaging.FormatScheduleOptions(msg, msg.SuggestedTimes),
		messaging.ScheduleKeyboard(msg.ID, msg.SuggestedTimes))
}

func (h *ActionHandler) handleSend(ctx context.Context, log zerolog.Logger, msg *domain.Message) {
	draft, ok := h.lookupDraft(msg.ID)
	if !ok {
		h.send(ctx, "⚠️ No pending draft for that email.")
		return
	}

	err := h.mail.SendReply(ctx,
		msg.SenderAddress(),
		"Re: "+msg.Subject,
		draft,
		msg.RFCMessageID)
	if err != nil {
		log.Error().Err(err).Msg("send failed")
		h.send(ctx, "⚠️ Sending failed, the draft is still saved. Try again in a minute.")
		return
	}

	h.metrics.RepliesSent.Add(1)

	// Terminal action: both entries go.
	if err := h.drafts.Delete(msg.ID); err != nil {
		log.Warn().Err(err).Msg("failed to delete draft")
	}
	h.finish(ctx, log, msg.ID, "sent", fmt.Sprintf("Reply delivered to %s", msg.SenderAddress()))
}

func (h *ActionHandler) handleCancel(ctx context.Context, log zerolog.Logger, messageID string) {
	if err := h.drafts.Delete(messageID); err != nil {
		log.Warn().Err(err).Msg("failed to delete draft")
	}
	if err := h.snapshots.Delete(messageID); err != nil {
		log.Warn().Err(err).Msg("failed to delete snapshot")
	}
	h.send(ctx, messaging.FormatSuccess("saved", "Draft discarded"))
}

func (h *ActionHandler) handlePickTime(ctx context.Context, log zerolog.Logger, msg *domain.Message, index int) {
	if index < 0 || index >= len(msg.SuggestedTimes) {
		h.send(ctx, "⚠️ That time slot is no longer available, ask me to schedule again.")
		return
	}
	slot := msg.SuggestedTimes[index]

	eventID, err := h.scheduler.BookSlot(ctx, msg, msg.MeetingDetails, slot)
	if err != nil {
		log.Error().Err(err).Msg("event creation failed")
		h.send(ctx, "⚠️ Could not create the calendar event, please try again.")
		return
	}
	h.metrics.EventsMade.Add(1)
	log.Info().Str("event_id", eventID).Str("slot", slot.FormattedStart).Msg("event created")

	// Offer a scheduling reply so the requester hears back.
	draft := h.scheduler.DraftReply(ctx, msg, []domain.TimeSlot{slot})
	if err := h.drafts.Put(msg.ID, draft); err != nil {
		log.Warn().Err(err).Msg("failed to store scheduling draft")
	} else {
		h.send(ctx, messaging.FormatResponsePreview(msg, draft))
		h.sendButtons(ctx, "*Send this confirmation?*", messaging.PreviewKeyboard(msg.ID))
	}

	h.send(ctx, messaging.FormatSuccess("scheduled", "Event: "+slot.FormattedStart))
}

// finish deletes the snapshot (terminal contract) and confirms in chat.
func (h *ActionHandler) finish(ctx context.Context, log zerolog.Logger, messageID, action, details string) {
	if err := h.snapshots.Delete(messageID); err != nil {
		log.Warn().Err(err).Msg("failed to delete snapshot")
	}
	h.send(ctx, messaging.FormatSuccess(action, details))
}

// -----------------------------------------------------------------------------
// Store and messenger helpers
// -----------------------------------------------------------------------------

// lookup fetches a snapshot, reloading from backing storage before trusting
// a miss. The press may be served by a process that never wrote the entry.
func (h *ActionHandler) lookup(messageID string) (*domain.Message, bool) {
	if msg, ok := h.snapshots.Get(messageID); ok {
		return msg, true
	}
	if err := h.snapshots.Reload(); err != nil {
		h.log.Warn().Err(err).Msg("snapshot reload failed")
		return nil, false
	}
	return h.snapshots.Get(messageID)
}

func (h *ActionHandler) lookupDraft(messageID string) (string, bool) {
	if draft, ok := h.drafts.Get(messageID); ok {
		return draft, true
	}
	if err := h.drafts.Reload(); err != nil {
		h.log.Warn().Err(err).Msg("draft reload failed")
		return "", false
	}
	return h.drafts.Get(messageID)
}

func (h *ActionHandler) answer(ctx context.Context, callbackID, text string) {
	if err := h.messenger.AnswerCallback(ctx, callbackID, text); err != nil {
		h.log.Warn().Err(err).Msg("failed to answer callback")
	}
}

func (h *ActionHandler) send(ctx context.Context, text string) {
	if err := h.messenger.SendMessage(ctx, text); err != nil {
		h.log.Warn().Err(err).Msg("failed to send message")
	}
}

func (h *ActionHandler) sendButtons(ctx context.Context, text string, buttons [][]out.Button) {
	if err := h.messenger.SendMessageWithButtons(ctx, text, buttons); err != nil {
		h.log.Warn().Err(err).Msg("failed to send keyboard")
	}
}
