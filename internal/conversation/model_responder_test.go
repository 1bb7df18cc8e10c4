package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/convoleads/leadqual/internal/leads"
	"github.com/convoleads/leadqual/pkg/logging"
)

type stubLLMClient struct {
	resp    LLMResponse
	err     error
	lastReq LLMRequest
}

func (s *stubLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	s.lastReq = req
	return s.resp, s.err
}

func newTestModelResolver(client LLMClient) *ModelResolver {
	return NewModelResolver(client, "gpt-4o-mini", 0, 0, logging.New("error"))
}

func TestModelResolverWellFormedOutput(t *testing.T) {
	client := &stubLLMClient{resp: LLMResponse{Text: `Response: Our Growth plan at $149/month is the most popular. Want a walkthrough?
Intent: pricing_inquiry
Confidence: 0.9
Next Action: offer_demo`}}
	resolver := newTestModelResolver(client)

	res, err := resolver.Resolve(context.Background(), &leads.Lead{ID: "lead_1", Name: "Dana"}, nil, "how much is it?")
	require.NoError(t, err)

	assert.Equal(t, "Our Growth plan at $149/month is the most popular. Want a walkthrough?", res.Reply)
	assert.Equal(t, IntentPricingInquiry, res.Intent)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.Equal(t, "offer_demo", res.NextAction)
}

func TestModelResolverTrustsModelNextAction(t *testing.T) {
	client := &stubLLMClient{resp: LLMResponse{Text: `Response: Let me loop in a specialist.
Intent: feature_inquiry
Confidence: 0.8
Next Action: escalate_to_human`}}
	resolver := newTestModelResolver(client)

	res, err := resolver.Resolve(context.Background(), &leads.Lead{ID: "lead_1"}, nil, "does it integrate with X?")
	require.NoError(t, err)

	// The model path passes its next action through without mapping.
	assert.Equal(t, "escalate_to_human", res.NextAction)
}

func TestModelResolverNormalizesIntentLabel(t *testing.T) {
	tests := []struct {
		raw  string
		want Intent
	}{
		{"Pricing Inquiry", IntentPricingInquiry},
		{"demo-request", IntentDemoRequest},
		{`"follow_up"`, IntentFollowUp},
		{"NOT_INTERESTED", IntentNotInterested},
		{"general_inquiry.", IntentGeneralInquiry},
	}
	for _, tt := range tests {
		client := &stubLLMClient{resp: LLMResponse{Text: "Response: Sure.\nIntent: " + tt.raw + "\nConfidence: 0.8"}}
		res, err := newTestModelResolver(client).Resolve(context.Background(), &leads.Lead{ID: "l"}, nil, "hello")
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.Intent, "raw label %q", tt.raw)
	}
}

func TestModelResolverReclassifiesUnknownIntent(t *testing.T) {
	client := &stubLLMClient{resp: LLMResponse{Text: `Response: Happy to help with pricing.
Intent: purchase_intent
Confidence: 0.9`}}
	resolver := newTestModelResolver(client)

	res, err := resolver.Resolve(context.Background(), &leads.Lead{ID: "lead_1"}, nil, "what does it cost?")
	require.NoError(t, err)

	// The out-of-set label is discarded and the raw message reclassified.
	assert.Equal(t, IntentPricingInquiry, res.Intent)
}

func TestModelResolverConfidenceParsing(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"decimal", "0.85", 0.85},
		{"percent", "85%", 0.85},
		{"integer percent", "90", 0.9},
		{"garbage", "quite high", defaultConfidence},
		{"missing", "", defaultConfidence},
		{"out of range", "250", defaultConfidence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := "Response: Sure thing.\nIntent: general_inquiry"
			if tt.raw != "" {
				text += "\nConfidence: " + tt.raw
			}
			client := &stubLLMClient{resp: LLMResponse{Text: text}}
			res, err := newTestModelResolver(client).Resolve(context.Background(), &leads.Lead{ID: "l"}, nil, "hi")
			require.NoError(t, err)
			assert.InDelta(t, tt.want, res.Confidence, 1e-9)
		})
	}
}

func TestModelResolverMissingResponseLabel(t *testing.T) {
	client := &stubLLMClient{resp: LLMResponse{Text: `Happy to walk you through a demo this week.
Intent: demo_request
Confidence: 0.88`}}
	resolver := newTestModelResolver(client)

	res, err := resolver.Resolve(context.Background(), &leads.Lead{ID: "lead_1"}, nil, "show me a demo")
	require.NoError(t, err)

	assert.Equal(t, "Happy to walk you through a demo this week.", res.Reply)
	assert.Equal(t, IntentDemoRequest, res.Intent)
}

func TestModelResolverScrubsMetaCommentary(t *testing.T) {
	outputs := []string{
		"Response: Our Starter plan is $49/month. Shall I set up a trial?\n\nSuggested next action: offer the demo link.\nIntent: pricing_inquiry\nConfidence: 0.9",
		"Response: Thanks for checking in! Any questions I can answer?\n1. I suggest following up on Tuesday.\nIntent: follow_up\nConfidence: 0.8",
	}
	for _, text := range outputs {
		client := &stubLLMClient{resp: LLMResponse{Text: text}}
		res, err := newTestModelResolver(client).Resolve(context.Background(), &leads.Lead{ID: "l"}, nil, "hi")
		require.NoError(t, err)

		lower := strings.ToLower(res.Reply)
		assert.NotContains(t, lower, "suggested next action")
		assert.NotContains(t, lower, "next action:")
		assert.NotContains(t, lower, "i suggest")
		assert.NotEmpty(t, res.Reply)
	}
}

func TestModelResolverEmptyReplyFallsBackToTemplate(t *testing.T) {
	client := &stubLLMClient{resp: LLMResponse{Text: `Response: Suggested next action: schedule a call
Intent: demo_request
Confidence: 0.9`}}
	resolver := newTestModelResolver(client)

	res, err := resolver.Resolve(context.Background(), &leads.Lead{ID: "lead_1", Name: "Dana"}, nil, "demo please")
	require.NoError(t, err)

	// Everything the model said was meta-commentary; the template stands in.
	assert.Equal(t, TemplateReply(IntentDemoRequest, &leads.Lead{Name: "Dana"}), res.Reply)
}

func TestModelResolverPropagatesClientError(t *testing.T) {
	client := &stubLLMClient{err: errors.New("rate limited")}
	resolver := newTestModelResolver(client)

	_, err := resolver.Resolve(context.Background(), &leads.Lead{ID: "lead_1"}, nil, "hello")
	require.Error(t, err)
}

func TestModelResolverEmptyCompletionIsError(t *testing.T) {
	client := &stubLLMClient{resp: LLMResponse{Text: "   \n"}}
	resolver := newTestModelResolver(client)

	_, err := resolver.Resolve(context.Background(), &leads.Lead{ID: "lead_1"}, nil, "hello")
	require.Error(t, err)
}

func TestModelResolverRequestShape(t *testing.T) {
	client := &stubLLMClient{resp: LLMResponse{Text: "Response: Hi!\nIntent: general_inquiry\nConfidence: 0.7"}}
	resolver := newTestModelResolver(client)

	history := []Turn{
		{Sender: SenderUser, Text: "is there a trial?"},
		{Sender: SenderAgent, Text: "Yes, 14 days free."},
	}
	_, err := resolver.Resolve(context.Background(), &leads.Lead{ID: "lead_1", Name: "Dana Wu"}, history, "great, how do I start?")
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", client.lastReq.Model)
	assert.Equal(t, int32(defaultModelMaxTokens), client.lastReq.MaxTokens)
	require.Len(t, client.lastReq.Messages, 1)

	prompt := client.lastReq.Messages[0].Content
	assert.Contains(t, prompt, "Prospect name: Dana Wu")
	assert.Contains(t, prompt, "Prospect: is there a trial?")
	assert.Contains(t, prompt, "Assistant: Yes, 14 days free.")
	assert.Contains(t, prompt, "great, how do I start?")
	assert.Contains(t, client.lastReq.System, "Response:")
}

type spanRecorder struct {
	noop.TracerProvider
	spanNames []string
}

func (r *spanRecorder) Tracer(name string, _ ...trace.TracerOption) trace.Tracer {
	return &recordingTracer{Tracer: noop.NewTracerProvider().Tracer(name), recorder: r}
}

type recordingTracer struct {
	trace.Tracer
	recorder *spanRecorder
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	t.recorder.spanNames = append(t.recorder.spanNames, name)
	return t.Tracer.Start(ctx, name, opts...)
}

func TestModelResolverStartsSpan(t *testing.T) {
	recorder := &spanRecorder{}
	otel.SetTracerProvider(recorder)
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	client := &stubLLMClient{resp: LLMResponse{Text: "Response: Hi!\nIntent: general_inquiry\nConfidence: 0.7"}}
	_, err := newTestModelResolver(client).Resolve(context.Background(), &leads.Lead{ID: "lead_1"}, nil, "hi")
	require.NoError(t, err)

	assert.Contains(t, recorder.spanNames, "conversation.model_resolve")
}

func TestParseModelOutputFirstOccurrenceWins(t *testing.T) {
	out := parseModelOutput("Intent: pricing_inquiry\nIntent: demo_request\nResponse: hi")
	assert.Equal(t, "pricing_inquiry", out.intent)
	assert.Equal(t, "hi", out.reply)
}

func TestParseModelOutputBoldLabels(t *testing.T) {
	out := parseModelOutput("**Response**: Sounds good!\n**Intent**: follow_up\n**Confidence**: 0.8")
	assert.Equal(t, "Sounds good!", out.reply)
	assert.Equal(t, "follow_up", out.intent)
	assert.Equal(t, "0.8", out.confidence)
}
