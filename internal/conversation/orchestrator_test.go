package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoleads/leadqual/internal/leads"
	"github.com/convoleads/leadqual/pkg/logging"
)

type orchestratorFixture struct {
	repo       *leads.InMemoryRepository
	turns      *MemoryTurnStore
	activities *MemoryActivityStore
	o          *Orchestrator
}

func newOrchestratorFixture(t *testing.T, resolver Resolver, opts ...OrchestratorOption) *orchestratorFixture {
	t.Helper()
	if resolver == nil {
		resolver = NewRuleBasedResolver()
	}
	f := &orchestratorFixture{
		repo:       leads.NewInMemoryRepository(),
		turns:      NewMemoryTurnStore(),
		activities: NewMemoryActivityStore(),
	}
	f.o = NewOrchestrator(f.repo, f.turns, f.activities, resolver, logging.New("error"), opts...)
	return f
}

func (f *orchestratorFixture) seedLead(t *testing.T, id string, score int, messageCount int) {
	t.Helper()
	ctx := context.Background()
	_, err := f.repo.Create(ctx, id, &leads.Profile{Name: "Dana Wu", Email: "dana@example.com"})
	require.NoError(t, err)
	if score > 0 || messageCount > 0 {
		require.NoError(t, f.repo.Update(ctx, id, leads.Update{
			Score:             score,
			Status:            leads.StatusFor(score, ""),
			MessageCount:      messageCount,
			LastInteractionAt: time.Now().UTC(),
		}))
	}
}

func TestHandleMessageFirstContactCreatesLead(t *testing.T) {
	f := newOrchestratorFixture(t, nil)

	result, err := f.o.HandleMessage(context.Background(), ExchangeRequest{
		LeadID:  "lead_new",
		Message: "What's the pricing?",
		Profile: &leads.Profile{Name: "Dana Wu", Email: "dana@example.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, IntentPricingInquiry, result.Intent)
	// 0 + 15 intent delta + 3 engagement bonus for the first turn.
	assert.Equal(t, 18, result.Score)
	assert.Equal(t, leads.StatusCold, result.Status)
	assert.Equal(t, "offer_demo", result.NextAction)
	assert.Contains(t, result.Reply, "Dana")

	lead, err := f.repo.Get(context.Background(), "lead_new")
	require.NoError(t, err)
	assert.Equal(t, 18, lead.Score)
	assert.Equal(t, 1, lead.MessageCount)
	require.NotNil(t, lead.LastInteractionAt)
}

func TestHandleMessageScoresExistingLead(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	f.seedLead(t, "lead_1", 55, 4)

	result, err := f.o.HandleMessage(context.Background(), ExchangeRequest{
		LeadID:  "lead_1",
		Message: "Can I see a demo?",
	})
	require.NoError(t, err)

	// 55 + 25 demo delta + min(5*3, 20) engagement bonus.
	assert.Equal(t, 95, result.Score)
	assert.Equal(t, leads.StatusHot, result.Status)
	assert.Equal(t, IntentDemoRequest, result.Intent)
}

func TestHandleMessageNotInterestedOverridesStatus(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	f.seedLead(t, "lead_1", 90, 2)

	result, err := f.o.HandleMessage(context.Background(), ExchangeRequest{
		LeadID:  "lead_1",
		Message: "No thanks, not interested.",
	})
	require.NoError(t, err)

	assert.Equal(t, leads.StatusNotInterested, result.Status)
	assert.Less(t, result.Score, 90)
}

func TestHandleMessageValidation(t *testing.T) {
	f := newOrchestratorFixture(t, nil)

	_, err := f.o.HandleMessage(context.Background(), ExchangeRequest{LeadID: "  ", Message: "hi"})
	assert.ErrorIs(t, err, ErrMissingLeadID)

	_, err = f.o.HandleMessage(context.Background(), ExchangeRequest{LeadID: "lead_1", Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestHandleMessageUnknownLeadWithoutProfile(t *testing.T) {
	f := newOrchestratorFixture(t, nil)

	_, err := f.o.HandleMessage(context.Background(), ExchangeRequest{LeadID: "ghost", Message: "hello"})
	assert.ErrorIs(t, err, leads.ErrLeadNotFound)

	// A profile without an email is treated the same as no profile.
	_, err = f.o.HandleMessage(context.Background(), ExchangeRequest{
		LeadID:  "ghost",
		Message: "hello",
		Profile: &leads.Profile{Name: "No Email"},
	})
	assert.ErrorIs(t, err, leads.ErrLeadNotFound)
}

func TestHandleMessagePersistsTurnPairAndActivity(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	f.seedLead(t, "lead_1", 0, 0)

	_, err := f.o.HandleMessage(context.Background(), ExchangeRequest{
		LeadID:  "lead_1",
		Message: "What's the pricing?",
	})
	require.NoError(t, err)

	turns, err := f.turns.Recent(context.Background(), "lead_1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)

	assert.Equal(t, SenderUser, turns[0].Sender)
	assert.Equal(t, "What's the pricing?", turns[0].Text)
	assert.Equal(t, IntentPricingInquiry, turns[0].Intent)
	assert.NotZero(t, turns[0].Confidence)

	assert.Equal(t, SenderAgent, turns[1].Sender)
	assert.Empty(t, turns[1].Intent)
	assert.Equal(t, "offer_demo", turns[1].NextAction)
	assert.True(t, turns[1].CreatedAt.After(turns[0].CreatedAt))

	entries := f.activities.Entries("lead_1")
	require.Len(t, entries, 1)
	assert.Equal(t, "message_classified", entries[0].Type)
	assert.Contains(t, entries[0].Details, "intent=pricing_inquiry")
	assert.Contains(t, entries[0].Details, "What's the pricing?")
}

func TestHandleMessageActivitySnippetTruncated(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	f.seedLead(t, "lead_1", 0, 0)

	long := strings.Repeat("how much does it cost ", 20)
	_, err := f.o.HandleMessage(context.Background(), ExchangeRequest{LeadID: "lead_1", Message: long})
	require.NoError(t, err)

	entries := f.activities.Entries("lead_1")
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Details, long[:messageSnippetLen])
	assert.NotContains(t, entries[0].Details, long)
}

func TestHandleMessageActivitySnippetRuneBoundary(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	f.seedLead(t, "lead_1", 0, 0)

	// 180 bytes of 3-byte runes; byte index 100 falls inside a rune.
	long := strings.Repeat("€", 60)
	_, err := f.o.HandleMessage(context.Background(), ExchangeRequest{LeadID: "lead_1", Message: long})
	require.NoError(t, err)

	entries := f.activities.Entries("lead_1")
	require.Len(t, entries, 1)
	assert.True(t, utf8.ValidString(entries[0].Details))
	assert.NotContains(t, entries[0].Details, `\x`)
	assert.Contains(t, entries[0].Details, strings.Repeat("€", 33))
	assert.NotContains(t, entries[0].Details, strings.Repeat("€", 34))
}

type wrappingLeadRepo struct {
	leads.Repository
}

func (r wrappingLeadRepo) Get(ctx context.Context, id string) (*leads.Lead, error) {
	lead, err := r.Repository.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup lead %s: %w", id, err)
	}
	return lead, nil
}

func TestHandleMessageWrappedNotFoundStillCreates(t *testing.T) {
	repo := wrappingLeadRepo{leads.NewInMemoryRepository()}
	o := NewOrchestrator(repo, NewMemoryTurnStore(), NewMemoryActivityStore(), NewRuleBasedResolver(), logging.New("error"))

	result, err := o.HandleMessage(context.Background(), ExchangeRequest{
		LeadID:  "lead_new",
		Message: "What's the pricing?",
		Profile: &leads.Profile{Name: "Dana Wu", Email: "dana@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, 18, result.Score)
}

func TestHandleMessageHistoryWindow(t *testing.T) {
	captured := &capturingResolver{}
	f := newOrchestratorFixture(t, captured)
	f.seedLead(t, "lead_1", 0, 0)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := f.o.HandleMessage(ctx, ExchangeRequest{LeadID: "lead_1", Message: "tell me more"})
		require.NoError(t, err)
	}

	// 3 exchanges persisted 6 turns before the final call; only the last 5
	// reach the resolver.
	assert.Len(t, captured.lastHistory, 5)
}

type capturingResolver struct {
	lastHistory []Turn
}

func (c *capturingResolver) Resolve(ctx context.Context, lead *leads.Lead, history []Turn, message string) (Resolution, error) {
	c.lastHistory = history
	return Resolution{
		Reply:      "ok",
		Intent:     IntentGeneralInquiry,
		Confidence: 0.6,
		NextAction: "continue_conversation",
	}, nil
}

func TestHandleMessageFailOpenEndToEnd(t *testing.T) {
	broken := &stubResolver{err: errors.New("model down")}
	resolver := NewFailOpenResolver(broken, NewRuleBasedResolver(), logging.New("error"))
	f := newOrchestratorFixture(t, resolver)
	f.seedLead(t, "lead_1", 0, 0)

	result, err := f.o.HandleMessage(context.Background(), ExchangeRequest{
		LeadID:  "lead_1",
		Message: "What's the pricing?",
	})
	require.NoError(t, err)
	assert.Equal(t, IntentPricingInquiry, result.Intent)
	assert.NotEmpty(t, result.Reply)
}

type failingTurnStore struct{}

func (failingTurnStore) Append(ctx context.Context, turn Turn) error {
	return errors.New("disk full")
}

func (failingTurnStore) Recent(ctx context.Context, leadID string, limit int) ([]Turn, error) {
	return nil, nil
}

func TestHandleMessagePersistenceFailureSurfaces(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	_, err := repo.Create(context.Background(), "lead_1", &leads.Profile{Email: "d@example.com"})
	require.NoError(t, err)

	o := NewOrchestrator(repo, failingTurnStore{}, NewMemoryActivityStore(), NewRuleBasedResolver(), logging.New("error"))

	_, err = o.HandleMessage(context.Background(), ExchangeRequest{LeadID: "lead_1", Message: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append user turn")
}

func TestRecentTurnsUnknownLead(t *testing.T) {
	f := newOrchestratorFixture(t, nil)

	_, err := f.o.RecentTurns(context.Background(), "ghost", 10)
	assert.ErrorIs(t, err, leads.ErrLeadNotFound)
}

func TestRecentTurnsReturnsTranscript(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	f.seedLead(t, "lead_1", 0, 0)

	_, err := f.o.HandleMessage(context.Background(), ExchangeRequest{LeadID: "lead_1", Message: "hello"})
	require.NoError(t, err)

	turns, err := f.o.RecentTurns(context.Background(), "lead_1", 10)
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}
