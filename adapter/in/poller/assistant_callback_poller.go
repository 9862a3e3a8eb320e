package poller

import (
	"context"
	"time"

	"assistant_server/core/port/out"
	"assistant_server/pkg/metrics"

	"github.com/rs/zerolog"
)

// =============================================================================
// Callback Poller
// =============================================================================

// CallbackPollerConfig holds loop tuning.
type CallbackPollerConfig struct {
	Interval   time.Duration // pacing between polls
	ErrorPause time.Duration // pause after a failed poll
}

// CallbackPoller drains messenger updates and dispatches button presses and
// text commands. Unlike the mail poller it never fail-stops: losing the
// button channel would strand every pending notification, so it keeps
// retrying for as long as the context lives.
type CallbackPoller struct {
	messenger out.Messenger
	actions   *ActionHandler
	metrics   *metrics.PipelineMetrics
	cfg       CallbackPollerConfig
	log       zerolog.Logger

	lastUpdateID int64
}

// NewCallbackPoller creates the poller.
func NewCallbackPoller(messenger out.Messenger, actions *ActionHandler, m *metrics.PipelineMetrics, cfg CallbackPollerConfig, log zerolog.Logger) *CallbackPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.ErrorPause <= 0 {
		cfg.ErrorPause = 5 * time.Second
	}
	return &CallbackPoller{
		messenger: messenger,
		actions:   actions,
		metrics:   m,
		cfg:       cfg,
		log:       log.With().Str("loop", "callback").Logger(),
	}
}

// Run polls until ctx is canceled.
func (p *CallbackPoller) Run(ctx context.Context) error {
	p.log.Info().Dur("interval", p.cfg.Interval).Msg("callback poller started")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		updates, err := p.messenger.PollUpdates(ctx, p.lastUpdateID+1)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.metrics.PollErrors.Add(1)
			p.log.Warn().Err(err).Msg("update poll failed")
			if !sleepCtx(ctx, p.cfg.ErrorPause) {
				return ctx.Err()
			}
			continue
		}

		for _, u := range updates {
			// Advance the cursor first: a handler panic must not cause the
			// same press to be redelivered forever.
			if u.ID > p.lastUpdateID {
				p.lastUpdateID = u.ID
			}

			switch {
			case u.Press != nil:
				p.actions.HandlePress(ctx, u.Press)
			case u.Text != nil:
				p.actions.HandleText(ctx, u.Text)
			}
		}

		if !sleepCtx(ctx, p.cfg.Interval) {
			return ctx.Err()
		}
	}
}
