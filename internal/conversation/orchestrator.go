package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/convoleads/leadqual/internal/leads"
	"github.com/convoleads/leadqual/internal/observability/metrics"
	"github.com/convoleads/leadqual/pkg/logging"
)

// historyWindow is the fixed number of prior turns loaded as model context.
// The upstream variants used 5 and 10; this implementation standardizes on 5.
const historyWindow = 5

// messageSnippetLen bounds the message excerpt written to the audit trail.
const messageSnippetLen = 100

// ExchangeRequest is one inbound chat message tied to a lead.
type ExchangeRequest struct {
	LeadID  string
	Message string
	// Profile is only consulted when the lead does not exist yet.
	Profile *leads.Profile
}

// ExchangeResult is the composed outcome returned to the caller.
type ExchangeResult struct {
	Reply      string       `json:"reply"`
	Intent     Intent       `json:"intent"`
	Confidence float64      `json:"confidence"`
	NextAction string       `json:"nextAction"`
	Score      int          `json:"score"`
	Status     leads.Status `json:"status"`
}

// Orchestrator coordinates one exchange: resolve the lead, load short-term
// history, resolve intent and reply, update the score, persist, respond.
//
// Persistence is three independent writes with no transaction or rollback;
// a failure can leave a user turn without its agent pair. Two concurrent
// exchanges for the same lead race on the score update and the last write
// wins — acceptable for a single end user chatting, not safe for concurrent
// multi-agent access.
type Orchestrator struct {
	leads      leads.Repository
	turns      TurnStore
	activities ActivityStore
	resolver   Resolver
	cache      *HistoryCache
	events     *EventLogger
	metrics    *metrics.ExchangeMetrics
	logger     *logging.Logger
	now        func() time.Time
}

// OrchestratorOption customizes optional collaborators.
type OrchestratorOption func(*Orchestrator)

// WithHistoryCache enables the Redis read-through cache for the context
// window.
func WithHistoryCache(cache *HistoryCache) OrchestratorOption {
	return func(o *Orchestrator) { o.cache = cache }
}

// WithMetrics wires Prometheus exchange metrics.
func WithMetrics(m *metrics.ExchangeMetrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(
	leadRepo leads.Repository,
	turns TurnStore,
	activities ActivityStore,
	resolver Resolver,
	logger *logging.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	if leadRepo == nil || turns == nil || activities == nil || resolver == nil {
		panic("conversation: orchestrator requires all collaborators")
	}
	if logger == nil {
		logger = logging.Default()
	}
	o := &Orchestrator{
		leads:      leadRepo,
		turns:      turns,
		activities: activities,
		resolver:   resolver,
		events:     NewEventLogger(logger),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleMessage runs the full pipeline for one inbound message.
func (o *Orchestrator) HandleMessage(ctx context.Context, req ExchangeRequest) (*ExchangeResult, error) {
	started := o.now()

	if strings.TrimSpace(req.LeadID) == "" {
		return nil, ErrMissingLeadID
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	o.events.MessageReceived(ctx, req.LeadID, req.Message)

	lead, err := o.resolveLead(ctx, req)
	if err != nil {
		return nil, err
	}

	history, err := o.loadHistory(ctx, lead.ID)
	if err != nil {
		o.events.ExchangeFailed(ctx, lead.ID, "load_history", err)
		o.metrics.ObserveExchange("", "error")
		return nil, fmt.Errorf("conversation: load history: %w", err)
	}

	resolution, err := o.resolver.Resolve(ctx, lead, history, req.Message)
	if err != nil {
		// The resolver stack is fail-open; an error here means even the
		// rule-based path failed, which should not happen.
		o.events.ExchangeFailed(ctx, lead.ID, "resolve", err)
		o.metrics.ObserveExchange("", "error")
		return nil, fmt.Errorf("conversation: resolve message: %w", err)
	}
	o.events.IntentClassified(ctx, lead.ID, resolution.Intent, resolution.Confidence)

	turnCount := lead.MessageCount + 1
	newScore := leads.NextScore(lead.Score, string(resolution.Intent), turnCount)
	newStatus := leads.StatusFor(newScore, string(resolution.Intent))
	o.events.ScoreUpdated(ctx, lead.ID, lead.Score, newScore, string(newStatus))

	if err := o.persistExchange(ctx, lead, req.Message, resolution, newScore, newStatus, turnCount); err != nil {
		o.events.ExchangeFailed(ctx, lead.ID, "persist", err)
		o.metrics.ObserveExchange(string(resolution.Intent), "error")
		return nil, err
	}

	o.metrics.ObserveExchange(string(resolution.Intent), "ok")
	o.metrics.ObserveExchangeLatency(o.now().Sub(started).Seconds())

	return &ExchangeResult{
		Reply:      resolution.Reply,
		Intent:     resolution.Intent,
		Confidence: resolution.Confidence,
		NextAction: resolution.NextAction,
		Score:      newScore,
		Status:     newStatus,
	}, nil
}

// resolveLead looks the lead up, creating it from the request profile on
// first contact. Without an existing lead or a profile carrying an email,
// the exchange fails with not-found.
func (o *Orchestrator) resolveLead(ctx context.Context, req ExchangeRequest) (*leads.Lead, error) {
	lead, err := o.leads.Get(ctx, req.LeadID)
	if err == nil {
		return lead, nil
	}
	if !errors.Is(err, leads.ErrLeadNotFound) {
		return nil, fmt.Errorf("conversation: lookup lead: %w", err)
	}

	if req.Profile == nil {
		return nil, leads.ErrLeadNotFound
	}
	if err := req.Profile.Validate(); err != nil {
		return nil, leads.ErrLeadNotFound
	}

	created, err := o.leads.Create(ctx, req.LeadID, req.Profile)
	if err != nil {
		return nil, fmt.Errorf("conversation: create lead: %w", err)
	}
	o.events.LeadCreated(ctx, created.ID, created.Email)
	return created, nil
}

// loadHistory returns the last historyWindow turns oldest-to-newest,
// preferring the Redis cache when configured. Cache errors degrade to the
// store.
func (o *Orchestrator) loadHistory(ctx context.Context, leadID string) ([]Turn, error) {
	if o.cache != nil {
		turns, ok, err := o.cache.Load(ctx, leadID)
		if err != nil {
			o.logger.Warn("history cache read failed", "lead_id", leadID, "error", err.Error())
		} else if ok {
			return turns, nil
		}
	}
	return o.turns.Recent(ctx, leadID, historyWindow)
}

// persistExchange appends the turn pair, updates the lead, and writes the
// audit entry. The writes are sequential and independent on purpose.
func (o *Orchestrator) persistExchange(
	ctx context.Context,
	lead *leads.Lead,
	message string,
	resolution Resolution,
	newScore int,
	newStatus leads.Status,
	turnCount int,
) error {
	now := o.now()

	userTurn := Turn{
		LeadID:     lead.ID,
		Sender:     SenderUser,
		Text:       message,
		Intent:     resolution.Intent,
		Confidence: resolution.Confidence,
		CreatedAt:  now,
	}
	if err := o.turns.Append(ctx, userTurn); err != nil {
		return fmt.Errorf("conversation: append user turn: %w", err)
	}

	agentTurn := Turn{
		LeadID:     lead.ID,
		Sender:     SenderAgent,
		Text:       resolution.Reply,
		NextAction: resolution.NextAction,
		CreatedAt:  now.Add(time.Millisecond),
	}
	if err := o.turns.Append(ctx, agentTurn); err != nil {
		return fmt.Errorf("conversation: append agent turn: %w", err)
	}

	if err := o.leads.Update(ctx, lead.ID, leads.Update{
		Score:             newScore,
		Status:            newStatus,
		MessageCount:      turnCount,
		LastInteractionAt: now,
	}); err != nil {
		return fmt.Errorf("conversation: update lead: %w", err)
	}

	snippet := message
	if len(snippet) > messageSnippetLen {
		cut := messageSnippetLen
		// Back off to a rune boundary so the audit detail stays valid UTF-8.
		for cut > 0 && !utf8.RuneStart(snippet[cut]) {
			cut--
		}
		snippet = snippet[:cut]
	}
	details := fmt.Sprintf("intent=%s confidence=%.2f message=%q", resolution.Intent, resolution.Confidence, snippet)
	if err := o.activities.Append(ctx, lead.ID, "message_classified", details); err != nil {
		return fmt.Errorf("conversation: append activity: %w", err)
	}

	if o.cache != nil {
		history, err := o.turns.Recent(ctx, lead.ID, historyWindow)
		if err == nil {
			if err := o.cache.Save(ctx, lead.ID, history); err != nil {
				o.logger.Warn("history cache write failed", "lead_id", lead.ID, "error", err.Error())
			}
		}
	}
	return nil
}

// RecentTurns exposes the transcript for the admin read endpoint.
func (o *Orchestrator) RecentTurns(ctx context.Context, leadID string, limit int) ([]Turn, error) {
	if _, err := o.leads.Get(ctx, leadID); err != nil {
		return nil, err
	}
	return o.turns.Recent(ctx, leadID, limit)
}
