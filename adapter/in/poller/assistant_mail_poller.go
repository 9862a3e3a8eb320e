// Package poller hosts the two long-running loops: inbox polling and
// messenger callback handling.
package poller

import (
	"context"
	"fmt"
	"time"

	"assistant_server/adapter/out/messaging"
	"assistant_server/core/domain"
	"assistant_server/core/port/out"
	"assistant_server/core/service/classification"
	"assistant_server/core/service/notification"
	"assistant_server/core/service/respond"
	"assistant_server/core/service/schedule"
	"assistant_server/pkg/apperr"
	"assistant_server/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// =============================================================================
// Mail Poller
// =============================================================================

// MailPollerConfig holds loop tuning.
type MailPollerConfig struct {
	Interval  time.Duration
	MaxErrors int // consecutive failures before the loop gives up
	MaxEmails int64
	AutoSend  bool

	// CategoryLabelPrefix, when non-empty, makes the poller mirror each
	// verdict back into the mailbox as "<prefix><category>".
	CategoryLabelPrefix string
}

// MailPoller drives the fetch -> classify -> notify pipeline on a timer.
//
// The watermark guarantees exactly-once intake: only messages received after
// it are processed, and it advances to the poll start time only when the
// whole cycle succeeds. A failed cycle leaves the watermark alone so the next
// cycle retries the same window.
type MailPoller struct {
	mail      out.MailProvider
	messenger out.Messenger
	snapshots out.SnapshotStore
	drafts    out.DraftStore
	history   out.HistoryStore

	pipeline  *classification.Pipeline
	filter    *notification.Filter
	policy    *respond.Policy
	generator *respond.Generator
	scheduler *schedule.Service

	metrics *metrics.PipelineMetrics
	cfg     MailPollerConfig
	log     zerolog.Logger

	watermark time.Time
}

// MailPollerDeps bundles the poller collaborators.
type MailPollerDeps struct {
	Mail      out.MailProvider
	Messenger out.Messenger
	Snapshots out.SnapshotStore
	Drafts    out.DraftStore
	History   out.HistoryStore

	Pipeline  *classification.Pipeline
	Filter    *notification.Filter
	Policy    *respond.Policy
	Generator *respond.Generator
	Scheduler *schedule.Service

	Metrics *metrics.PipelineMetrics
}

// NewMailPoller creates the poller. The watermark starts at construction
// time: only mail arriving after startup is processed.
func NewMailPoller(deps MailPollerDeps, cfg MailPollerConfig, log zerolog.Logger) *MailPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = 5
	}
	if cfg.MaxEmails <= 0 {
		cfg.MaxEmails = 10
	}

	return &MailPoller{
		mail:      deps.Mail,
		messenger: deps.Messenger,
		snapshots: deps.Snapshots,
		drafts:    deps.Drafts,
		history:   deps.History,
		pipeline:  deps.Pipeline,
		filter:    deps.Filter,
		policy:    deps.Policy,
		generator: deps.Generator,
		scheduler: deps.Scheduler,
		metrics:   deps.Metrics,
		cfg:       cfg,
		log:       log.With().Str("loop", "mail").Logger(),
		watermark: time.Now(),
	}
}

// Run polls until ctx is canceled or the consecutive-error budget is spent.
func (p *MailPoller) Run(ctx context.Context) error {
	p.log.Info().
		Dur("interval", p.cfg.Interval).
		Int("max_errors", p.cfg.MaxErrors).
		Msg("mail poller started")

	consecutive := 0
	for {
		if err := p.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			consecutive++
			p.metrics.PollErrors.Add(1)
			p.log.Error().Err(err).Int("consecutive", consecutive).Msg("poll cycle failed")

			if consecutive >= p.cfg.MaxErrors {
				return apperr.LoopFatal("mail poller", consecutive, err)
			}
			// Back off harder while the provider is unhappy.
			if !sleepCtx(ctx, 2*p.cfg.Interval) {
				return ctx.Err()
			}
			continue
		}

		consecutive = 0
		if !sleepCtx(ctx, p.cfg.Interval) {
			return ctx.Err()
		}
	}
}

// pollOnce runs one fetch-process cycle.
func (p *MailPoller) pollOnce(ctx context.Context) error {
	runID := uuid.NewString()[:8]
	cycleStart := time.Now()
	log := p.log.With().Str("run_id", runID).Logger()

	query := fmt.Sprintf("in:inbox after:%s", p.watermark.Format("2006/01/02"))
	messages, err := p.mail.ListMessages(ctx, query, p.cfg.MaxEmails)
	if err != nil {
		return err
	}

	processed := 0
	for _, msg := range messages {
		// The date query is day-granular; the watermark is the real filter.
		if !msg.Timestamp.After(p.watermark) {
			continue
		}
		if p.alreadyPending(msg.ID) {
			continue
		}

		if err := p.process(ctx, log, msg); err != nil {
			// One bad message is logged and skipped; the cycle goes on.
			log.Error().Err(err).Str("message_id", msg.ID).Msg("failed to process message")
			continue
		}
		processed++
	}

	if processed > 0 {
		log.Info().Int("processed", processed).Int("fetched", len(messages)).Msg("poll cycle complete")
	}

	p.watermark = cycleStart
	return nil
}

// alreadyPending checks the snapshot store for a live entry, reloading from
// backing storage before trusting a miss.
func (p *MailPoller) alreadyPending(messageID string) bool {
	if _, ok := p.snapshots.Get(messageID); ok {
		return true
	}
	if err := p.snapshots.Reload(); err != nil {
		return false
	}
	_, ok := p.snapshots.Get(messageID)
	return ok
}

// process runs the full pipeline for a single message.
func (p *MailPoller) process(ctx context.Context, log zerolog.Logger, msg *domain.Message) error {
	p.pipeline.Classify(ctx, msg)

	log.Debug().
		Str("message_id", msg.ID).
		Str("category", string(msg.Category)).
		Str("method", string(msg.Method)).
		Bool("is_meeting", msg.IsMeetingRequest).
		Msg("classified")

	if msg.IsMeetingRequest {
		msg.MeetingDetails = p.scheduler.ExtractDetails(ctx, msg)
		slots, err := p.scheduler.SuggestTimes(ctx, msg.MeetingDetails)
		if err != nil {
			log.Warn().Err(err).Str("message_id", msg.ID).Msg("time suggestion failed")
		} else {
			msg.SuggestedTimes = slots
		}
	}

	msg.ShouldRespond = p.policy.ShouldRespond(msg.Subject, msg.Sender, msg.Snippet)
	if msg.ShouldRespond {
		if msg.IsMeetingRequest && len(msg.SuggestedTimes) > 0 {
			msg.GeneratedResponse = p.scheduler.DraftReply(ctx, msg, msg.SuggestedTimes)
		} else {
			msg.GeneratedResponse = p.generator.Generate(ctx, msg.Subject, msg.Sender, msg.Body)
		}
	}

	if p.cfg.CategoryLabelPrefix != "" && msg.Category != domain.CategoryNone {
		if err := p.mail.AddLabel(ctx, msg.ID, p.cfg.CategoryLabelPrefix+string(msg.Category)); err != nil {
			log.Warn().Err(err).Str("message_id", msg.ID).Msg("failed to apply category label")
		}
	}

	notified := false
	if p.filter.ShouldNotify(msg) {
		if err := p.notify(ctx, msg); err != nil {
			return err
		}
		notified = true
		p.metrics.Notified.Add(1)
	} else {
		p.metrics.Suppressed.Add(1)
	}

	if p.cfg.AutoSend && msg.ShouldRespond && msg.GeneratedResponse != "" {
		if err := p.autoSend(ctx, log, msg); err != nil {
			log.Warn().Err(err).Str("message_id", msg.ID).Msg("auto-send failed")
		}
	}

	p.record(ctx, log, msg, notified)
	return nil
}

// notify snapshots the message and pushes the notification. The snapshot is
// written first: a notification whose buttons cannot be resolved later is
// worse than a crash before sending it. When the send fails the snapshot is
// removed again, otherwise the dedupe gate and the advanced watermark would
// suppress the retry on the next cycle.
func (p *MailPoller) notify(ctx context.Context, msg *domain.Message) error {
	if err := p.snapshots.Put(msg.ID, msg); err != nil {
		return err
	}
	err := p.messenger.SendMessageWithButtons(ctx,
		messaging.FormatNotification(msg), messaging.NotificationKeyboard(msg))
	if err != nil {
		if delErr := p.snapshots.Delete(msg.ID); delErr != nil {
			p.log.Warn().Err(delErr).Str("message_id", msg.ID).
				Msg("failed to release snapshot after undelivered notification")
		}
		return err
	}
	return nil
}

func (p *MailPoller) autoSend(ctx context.Context, log zerolog.Logger, msg *domain.Message) error {
	err := p.mail.SendReply(ctx,
		msg.SenderAddress(),
		"Re: "+msg.Subject,
		msg.GeneratedResponse,
		msg.RFCMessageID)
	if err != nil {
		return err
	}
	p.metrics.RepliesSent.Add(1)
	log.Info().Str("message_id", msg.ID).Msg("auto-sent reply")
	return nil
}

func (p *MailPoller) record(ctx context.Context, log zerolog.Logger, msg *domain.Message, notified bool) {
	if p.history == nil {
		return
	}
	entry := &domain.ProcessedMail{
		MessageID:   msg.ID,
		Subject:     msg.Subject,
		Sender:      msg.Sender,
		Category:    msg.Category,
		Method:      msg.Method,
		Priority:    p.filter.PriorityOf(msg),
		Notified:    notified,
		IsMeeting:   msg.IsMeetingRequest,
		ReceivedAt:  msg.Timestamp,
		ProcessedAt: time.Now(),
	}
	if err := p.history.Record(ctx, entry); err != nil {
		log.Warn().Err(err).Str("message_id", msg.ID).Msg("failed to record history")
	}
}

// sleepCtx sleeps for d, returning false if ctx was canceled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
