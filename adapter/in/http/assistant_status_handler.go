package http

import (
	"assistant_server/core/port/out"
	"assistant_server/pkg/metrics"
	"assistant_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// StatusHandler exposes pipeline counters, circuit breaker states and the
// processed-mail audit log.
type StatusHandler struct {
	metrics   *metrics.PipelineMetrics
	snapshots out.SnapshotStore
	drafts    out.DraftStore
	history   out.HistoryStore

	// breakers reports circuit breaker states by component name.
	breakers func() map[string]string
}

// NewStatusHandler creates the handler. Store collaborators may be nil when
// the bot side is not configured; the endpoints degrade accordingly.
func NewStatusHandler(
	m *metrics.PipelineMetrics,
	snapshots out.SnapshotStore,
	drafts out.DraftStore,
	history out.HistoryStore,
	breakers func() map[string]string,
) *StatusHandler {
	return &StatusHandler{
		metrics:   m,
		snapshots: snapshots,
		drafts:    drafts,
		history:   history,
		breakers:  breakers,
	}
}

func (h *StatusHandler) Register(router fiber.Router) {
	router.Get("/status", h.Status)
	router.Get("/history", h.History)
	router.Get("/history/stats", h.HistoryStats)
}

// Status returns the pipeline counters plus live state.
func (h *StatusHandler) Status(c *fiber.Ctx) error {
	body := fiber.Map{
		"pipeline": h.metrics.Snapshot(),
	}

	if h.breakers != nil {
		body["circuit_breakers"] = h.breakers()
	}

	pending := fiber.Map{}
	if h.snapshots != nil {
		pending["notifications"] = h.snapshots.Len()
	}
	if h.drafts != nil {
		pending["drafts"] = h.drafts.Len()
	}
	body["pending"] = pending

	return response.OK(c, body)
}

// History returns the newest processed-mail entries.
func (h *StatusHandler) History(c *fiber.Ctx) error {
	if h.history == nil {
		return response.NotFound(c, "history store is not configured")
	}

	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit < 1 || limit > maxHistoryLimit {
		return response.BadRequest(c, "limit must be between 1 and 500")
	}

	entries, err := h.history.Recent(c.Context(), limit)
	if err != nil {
		return response.InternalError(c, err.Error())
	}
	return response.OK(c, entries)
}

// HistoryStats returns aggregate counts over the audit log.
func (h *StatusHandler) HistoryStats(c *fiber.Ctx) error {
	if h.history == nil {
		return response.NotFound(c, "history store is not configured")
	}

	stats, err := h.history.Stats(c.Context())
	if err != nil {
		return response.InternalError(c, err.Error())
	}
	return response.OK(c, stats)
}
