package bootstrap

import (
	"assistant_server/adapter/out/messaging"
	"assistant_server/adapter/out/persistence"
	"assistant_server/adapter/out/provider"
	"assistant_server/config"
	"assistant_server/core/agent/llm"
	"assistant_server/core/port/out"
	"assistant_server/core/service/classification"
	"assistant_server/core/service/notification"
	"assistant_server/core/service/respond"
	"assistant_server/core/service/schedule"
	"assistant_server/pkg/cache"
	"assistant_server/pkg/logger"
	"assistant_server/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

// Dependencies wires every adapter and service once. Construction is
// degraded, not fatal: a collaborator whose credentials are missing stays
// nil with a warning, and the run modes decide what they cannot live
// without.
type Dependencies struct {
	Config *config.Config
	Redis  *redis.Client

	// Model tiers
	LLM         *llm.Client
	FallbackLLM *llm.Client

	// Providers
	Mail      *provider.GmailAdapter
	Calendar  *provider.CalendarAdapter
	Messenger *messaging.TelegramAdapter

	// Stores
	Snapshots out.SnapshotStore
	Drafts    out.DraftStore
	History   *persistence.HistoryStore

	// Services
	Pipeline  *classification.Pipeline
	Filter    *notification.Filter
	Policy    *respond.Policy
	Generator *respond.Generator
	Scheduler *schedule.Service

	Metrics *metrics.PipelineMetrics
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{
		Config:  cfg,
		Metrics: metrics.NewPipelineMetrics(),
	}
	var cleanups []func()

	// Model tiers. The pipeline runs rule-first, so a missing key only
	// disables the LLM stage and response generation.
	primary, err := llm.NewClient(llm.ClientConfig{
		APIKey:     cfg.OpenAIAPIKey,
		Model:      cfg.LLMModel,
		BaseURL:    cfg.LLMBaseURL,
		TimeoutSec: cfg.LLMTimeoutSec,
	})
	if err != nil {
		logger.WithError(err).Warn("primary model disabled")
	} else {
		deps.LLM = primary
		logger.Info("primary model initialized: %s", primary.Model())
	}

	if cfg.FallbackAPIKey != "" {
		fallback, err := llm.NewClient(llm.ClientConfig{
			APIKey:     cfg.FallbackAPIKey,
			Model:      cfg.FallbackModel,
			BaseURL:    cfg.FallbackBaseURL,
			TimeoutSec: cfg.LLMTimeoutSec,
		})
		if err != nil {
			logger.WithError(err).Warn("fallback model disabled")
		} else {
			deps.FallbackLLM = fallback
			logger.Info("fallback model initialized: %s", fallback.Model())
		}
	}

	// Gmail
	mail, err := provider.NewGmailAdapter(&provider.GmailConfig{
		CredentialsFile: cfg.GmailCredentialsFile,
		TokenFile:       cfg.GmailTokenFile,
	})
	if err != nil {
		logger.WithError(err).Warn("gmail provider disabled")
	} else {
		deps.Mail = mail
		logger.Info("gmail provider initialized")
	}

	// Google Calendar
	calendar, err := provider.NewCalendarAdapter(&provider.CalendarConfig{
		CredentialsFile: cfg.CalendarCredentialsFile,
		TokenFile:       cfg.CalendarTokenFile,
		Timezone:        cfg.Timezone,
	})
	if err != nil {
		logger.WithError(err).Warn("calendar provider disabled")
	} else {
		deps.Calendar = calendar
		logger.Info("calendar provider initialized")
	}

	// Telegram
	messenger, err := messaging.NewTelegramAdapter(&messaging.TelegramConfig{
		BotToken: cfg.TelegramBotToken,
		ChatID:   cfg.TelegramChatID,
		APIBase:  cfg.TelegramAPIBase,
	})
	if err != nil {
		logger.WithError(err).Warn("telegram messenger disabled")
	} else {
		deps.Messenger = messenger
		logger.Info("telegram messenger initialized")
	}

	// Snapshot and draft stores: Redis when configured, flat files otherwise.
	// A Redis connection failure falls back to files rather than crashing.
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewClient(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, falling back to file stores")
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { redisClient.Close() })
			deps.Snapshots = cache.NewRedisSnapshotStore(redisClient)
			deps.Drafts = cache.NewRedisDraftStore(redisClient)
			logger.Info("redis stores initialized")
		}
	}
	if deps.Snapshots == nil {
		snapshots, err := persistence.NewFileSnapshotStore(cfg.SnapshotCacheFile)
		if err != nil {
			return nil, nil, err
		}
		drafts, err := persistence.NewFileDraftStore(cfg.DraftCacheFile)
		if err != nil {
			return nil, nil, err
		}
		deps.Snapshots = snapshots
		deps.Drafts = drafts
		logger.Info("file stores initialized: %s, %s", cfg.SnapshotCacheFile, cfg.DraftCacheFile)
	}

	// History audit log
	history, err := persistence.NewHistoryStore(cfg.HistoryDBPath)
	if err != nil {
		logger.WithError(err).Warn("history store disabled")
	} else {
		deps.History = history
		cleanups = append(cleanups, func() { history.Close() })
	}

	// A nil *llm.Client must stay a nil interface, so the services skip the
	// tier instead of calling through a typed nil.
	var classifyPrimary, classifyFallback classification.Completer
	var respondPrimary, respondFallback respond.Completer
	var schedulePrimary schedule.Completer
	if deps.LLM != nil {
		classifyPrimary = deps.LLM
		respondPrimary = deps.LLM
		schedulePrimary = deps.LLM
	}
	if deps.FallbackLLM != nil {
		classifyFallback = deps.FallbackLLM
		respondFallback = deps.FallbackLLM
	}

	var calendarPort out.CalendarProvider
	if deps.Calendar != nil {
		calendarPort = deps.Calendar
	}

	deps.Pipeline = classification.NewPipeline(
		classification.NewRuleClassifier(),
		classification.NewLLMClassifier(classifyPrimary, classifyFallback, classification.LLMClassifierConfig{
			Categories:      cfg.Categories,
			SnippetMaxChars: cfg.ClassifyMaxChars,
		}, nil),
		classification.NewMeetingDetector(),
		deps.Metrics,
		nil,
	)
	deps.Filter = notification.NewFilter()
	deps.Policy = respond.NewPolicy()
	deps.Generator = respond.NewGenerator(respondPrimary, respondFallback, nil)
	deps.Scheduler = schedule.NewService(schedulePrimary, calendarPort, nil)

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	return deps, cleanup, nil
}

// historyPort converts the concrete history store into its port type,
// keeping the interface nil when the store is disabled.
func historyPort(d *Dependencies) out.HistoryStore {
	if d.History == nil {
		return nil
	}
	return d.History
}

// BreakerStates reports the circuit breaker state of every breaker-guarded
// collaborator, keyed by component name.
func (d *Dependencies) BreakerStates() map[string]string {
	states := make(map[string]string)
	if d.LLM != nil {
		states["llm_primary"] = d.LLM.BreakerState()
	}
	if d.FallbackLLM != nil {
		states["llm_fallback"] = d.FallbackLLM.BreakerState()
	}
	if d.Mail != nil {
		states["gmail"] = d.Mail.BreakerState()
	}
	return states
}
