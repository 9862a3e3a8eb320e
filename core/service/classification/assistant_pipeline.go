package classification

import (
	"context"
	"time"

	"assistant_server/core/domain"
	"assistant_server/pkg/logger"
	"assistant_server/pkg/metrics"
)

// =============================================================================
// Classification Pipeline
// =============================================================================

// Pipeline runs the layered classification: the rule pass always executes
// first, and the model is consulted only when the rules report uncertain.
// The ordering is a cost invariant, not an optimization.
type Pipeline struct {
	rules    *RuleClassifier
	llm      *LLMClassifier
	detector *MeetingDetector
	metrics  *metrics.PipelineMetrics
	log      *logger.Logger
}

// NewPipeline wires the classification stages together. llm may be nil when
// no model tier is configured; uncertain messages then default to Important.
func NewPipeline(rules *RuleClassifier, llm *LLMClassifier, detector *MeetingDetector, m *metrics.PipelineMetrics, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Default()
	}
	return &Pipeline{
		rules:    rules,
		llm:      llm,
		detector: detector,
		metrics:  m,
		log:      log,
	}
}

// Classify assigns Category, Method and IsMeetingRequest on msg in place.
// Classification is idempotent: the same message always yields the same
// result from the rule stage, and a message is only classified once per
// pipeline run anyway (the snapshot store dedupes retries).
func (p *Pipeline) Classify(ctx context.Context, msg *domain.Message) {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.Classified.Add(1)
			p.metrics.ClassifyTime.Record(time.Since(start))
		}
	}()

	msg.IsMeetingRequest = p.detector.IsMeetingRequest(msg.Subject, msg.Body)

	if cat, ok := p.rules.Classify(msg.Subject, msg.Sender, msg.Snippet); ok {
		msg.Category = cat
		msg.Method = domain.MethodRuleBased
		if p.metrics != nil {
			p.metrics.RuleBased.Add(1)
		}
		return
	}

	if p.llm != nil && p.llm.Available() {
		if p.metrics != nil {
			p.metrics.LLMCalls.Add(1)
		}
		msg.Category = p.llm.Classify(ctx, msg.Subject, msg.Sender, msg.Snippet)
		msg.Method = domain.MethodLLM
		return
	}

	// No model configured: uncertain mail surfaces as Important rather than
	// being silently filed away.
	msg.Category = domain.CategoryImportant
	msg.Method = domain.MethodDefault
	if p.metrics != nil {
		p.metrics.Defaulted.Add(1)
	}
	p.log.WithMessage(msg.ID).Debug("no classifier reached a verdict, defaulting to Important")
}
