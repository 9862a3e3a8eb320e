package bootstrap

import (
	"context"
	"os"
	"sync"

	"assistant_server/adapter/in/poller"
	"assistant_server/pkg/apperr"
	"assistant_server/pkg/logger"

	"github.com/rs/zerolog"
)

// Bot runs the two poll loops: inbox intake and messenger callbacks.
type Bot struct {
	mailPoller     *poller.MailPoller
	callbackPoller *poller.CallbackPoller
	deps           *Dependencies
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	zlog           zerolog.Logger
}

// NewBot wires the poll loops. The mail provider and messenger are the two
// collaborators the bot cannot run without.
func NewBot(deps *Dependencies) (*Bot, error) {
	if deps.Mail == nil {
		return nil, apperr.ConfigError("bot", "gmail provider is not configured")
	}
	if deps.Messenger == nil {
		return nil, apperr.ConfigError("bot", "telegram messenger is not configured")
	}

	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("component", "bot").Logger()

	cfg := deps.Config
	mailPoller := poller.NewMailPoller(poller.MailPollerDeps{
		Mail:      deps.Mail,
		Messenger: deps.Messenger,
		Snapshots: deps.Snapshots,
		Drafts:    deps.Drafts,
		History:   historyPort(deps),
		Pipeline:  deps.Pipeline,
		Filter:    deps.Filter,
		Policy:    deps.Policy,
		Generator: deps.Generator,
		Scheduler: deps.Scheduler,
		Metrics:   deps.Metrics,
	}, poller.MailPollerConfig{
		Interval:            cfg.PollInterval,
		MaxErrors:           cfg.MaxPollErrors,
		MaxEmails:           cfg.MaxEmails,
		AutoSend:            cfg.AutoSend,
		CategoryLabelPrefix: "AI/",
	}, zlog)

	actions := poller.NewActionHandler(poller.ActionHandlerDeps{
		Mail:      deps.Mail,
		Messenger: deps.Messenger,
		Snapshots: deps.Snapshots,
		Drafts:    deps.Drafts,
		Generator: deps.Generator,
		Scheduler: deps.Scheduler,
		Metrics:   deps.Metrics,
	}, zlog)

	callbackPoller := poller.NewCallbackPoller(deps.Messenger, actions, deps.Metrics,
		poller.CallbackPollerConfig{Interval: cfg.CallbackInterval}, zlog)

	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		mailPoller:     mailPoller,
		callbackPoller: callbackPoller,
		deps:           deps,
		ctx:            ctx,
		cancel:         cancel,
		zlog:           zlog,
	}, nil
}

// Start runs both loops and blocks until Stop is called or the mail loop
// spends its consecutive-error budget.
func (b *Bot) Start() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.mailPoller.Run(b.ctx); err != nil && b.ctx.Err() == nil {
			if apperr.IsCode(err, apperr.CodeLoopFatal) {
				b.zlog.Error().Err(err).Msg("mail poller gave up, shutting down bot")
			} else {
				b.zlog.Error().Err(err).Msg("mail poller stopped")
			}
			// A dead intake loop with a live callback loop would look
			// healthy from the outside. Take the whole bot down instead.
			b.cancel()
		}
	}()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.callbackPoller.Run(b.ctx); err != nil && b.ctx.Err() == nil {
			b.zlog.Error().Err(err).Msg("callback poller stopped")
			b.cancel()
		}
	}()

	logger.Info("bot started (poll interval: %s)", b.deps.Config.PollInterval)
	<-b.ctx.Done()
}

// Stop cancels both loops and waits for them to drain.
func (b *Bot) Stop() {
	b.cancel()
	b.wg.Wait()
}

// Dependencies exposes the shared dependency set.
func (b *Bot) Dependencies() *Dependencies {
	return b.deps
}
