package conversation

import (
	"context"

	"github.com/convoleads/leadqual/internal/leads"
	"github.com/convoleads/leadqual/pkg/logging"
)

// Resolution is the combined outcome of classifying a message and producing
// a reply for it.
type Resolution struct {
	Reply      string
	Intent     Intent
	Confidence float64
	Keywords   []string
	NextAction string
}

// Resolver turns an inbound message plus context into a Resolution. Two
// implementations exist: the rule-based path (always available) and the
// model-backed path (configured when a completion-service credential is
// present), composed through FailOpenResolver.
type Resolver interface {
	Resolve(ctx context.Context, lead *leads.Lead, history []Turn, message string) (Resolution, error)
}

// nextActions maps each intent to the follow-up a sales rep should take.
// Used by the rule-based path; a model-supplied next action is trusted
// as-is.
var nextActions = map[Intent]string{
	IntentPricingInquiry: "offer_demo",
	IntentDemoRequest:    "schedule_demo",
	IntentFeatureInquiry: "share_documentation",
	IntentFollowUp:       "schedule_call",
	IntentNotInterested:  "mark_cold",
}

const defaultNextAction = "continue_conversation"

// NextActionFor returns the static follow-up action for an intent.
func NextActionFor(intent Intent) string {
	if action, ok := nextActions[intent]; ok {
		return action
	}
	return defaultNextAction
}

// RuleBasedResolver classifies with the keyword table and replies from the
// template bank. Pure and total; it never returns an error.
type RuleBasedResolver struct{}

func NewRuleBasedResolver() *RuleBasedResolver {
	return &RuleBasedResolver{}
}

func (r *RuleBasedResolver) Resolve(ctx context.Context, lead *leads.Lead, history []Turn, message string) (Resolution, error) {
	result := ClassifyIntent(message)
	return Resolution{
		Reply:      TemplateReply(result.Intent, lead),
		Intent:     result.Intent,
		Confidence: result.Confidence,
		Keywords:   result.MatchedKeywords,
		NextAction: NextActionFor(result.Intent),
	}, nil
}

// FailOpenResolver tries the primary resolver and silently substitutes the
// fallback on any error. The model-backed path must never surface a hard
// failure to the caller; availability beats model nuance here.
type FailOpenResolver struct {
	primary    Resolver
	fallback   Resolver
	logger     *logging.Logger
	onFallback func()
}

func NewFailOpenResolver(primary, fallback Resolver, logger *logging.Logger) *FailOpenResolver {
	if primary == nil || fallback == nil {
		panic("conversation: both resolvers are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FailOpenResolver{primary: primary, fallback: fallback, logger: logger}
}

// OnFallback registers a hook invoked whenever the fallback path is taken,
// used for metrics.
func (r *FailOpenResolver) OnFallback(fn func()) *FailOpenResolver {
	r.onFallback = fn
	return r
}

func (r *FailOpenResolver) Resolve(ctx context.Context, lead *leads.Lead, history []Turn, message string) (Resolution, error) {
	res, err := r.primary.Resolve(ctx, lead, history, message)
	if err == nil {
		return res, nil
	}

	r.logger.Warn("model-backed resolver failed, using rule-based fallback",
		"lead_id", lead.ID,
		"error", err.Error(),
	)
	if r.onFallback != nil {
		r.onFallback()
	}
	return r.fallback.Resolve(ctx, lead, history, message)
}
