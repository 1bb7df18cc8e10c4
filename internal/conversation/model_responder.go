package conversation

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/convoleads/leadqual/internal/leads"
	"github.com/convoleads/leadqual/pkg/logging"
)

var modelTracer = otel.Tracer("leadqual.internal.conversation.model")

const (
	defaultModelTimeout   = 30 * time.Second
	defaultModelMaxTokens = 300
	defaultConfidence     = 0.75
	modelTemperature      = 0.7
)

// ModelResolver resolves intent and reply through the external completion
// service. It asks the model for a labeled block and parses it tolerantly;
// any transport or parse failure is returned as an error so FailOpenResolver
// can substitute the rule-based path.
type ModelResolver struct {
	client    LLMClient
	model     string
	maxTokens int32
	timeout   time.Duration
	logger    *logging.Logger
}

func NewModelResolver(client LLMClient, model string, timeout time.Duration, maxTokens int32, logger *logging.Logger) *ModelResolver {
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	if timeout <= 0 {
		timeout = defaultModelTimeout
	}
	if maxTokens <= 0 {
		maxTokens = defaultModelMaxTokens
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ModelResolver{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
		logger:    logger,
	}
}

func (r *ModelResolver) Resolve(ctx context.Context, lead *leads.Lead, history []Turn, message string) (Resolution, error) {
	ctx, span := modelTracer.Start(ctx, "conversation.model_resolve")
	defer span.End()
	if lead != nil {
		span.SetAttributes(attribute.String("leadqual.lead_id", lead.ID))
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	leadName := ""
	if lead != nil {
		leadName = lead.Name
	}

	resp, err := r.client.Complete(callCtx, LLMRequest{
		Model:       r.model,
		System:      systemPrompt,
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: buildUserPrompt(leadName, history, message)}},
		MaxTokens:   r.maxTokens,
		Temperature: modelTemperature,
	})
	if err != nil {
		span.RecordError(err)
		return Resolution{}, err
	}
	if strings.TrimSpace(resp.Text) == "" {
		err := errors.New("conversation: model returned empty completion")
		span.RecordError(err)
		return Resolution{}, err
	}

	parsed := parseModelOutput(resp.Text)

	// Intent must never be left undefined: reclassify the raw message when
	// the model's label is missing or outside the closed set.
	intent := normalizeIntent(parsed.intent)
	if intent == "" {
		intent = ClassifyIntent(message).Intent
	}

	confidence := parseConfidence(parsed.confidence)
	if confidence < 0 {
		confidence = defaultConfidence
	}

	reply := scrubReply(parsed.reply)
	if reply == "" {
		reply = TemplateReply(intent, lead)
	}

	nextAction := strings.TrimSpace(parsed.nextAction)
	if nextAction == "" {
		nextAction = NextActionFor(intent)
	}

	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("leadqual.intent", string(intent)),
			attribute.Float64("leadqual.confidence", confidence),
		)
	}

	return Resolution{
		Reply:      reply,
		Intent:     intent,
		Confidence: confidence,
		NextAction: nextAction,
	}, nil
}

type modelOutput struct {
	reply      string
	intent     string
	confidence string
	nextAction string
}

// labelRe anchors the four field labels at line starts, tolerating markdown
// bold markers around them.
var labelRe = regexp.MustCompile(`(?im)^[ \t]*(?:\*\*)?(response|intent|confidence|next action)(?:\*\*)?[ \t]*:[ \t]*`)

// parseModelOutput extracts the labeled fields from a completion. If the
// Response label is absent, the whole output minus the other label lines is
// treated as the reply. Parsing is heuristic by design: a reply containing a
// literal "Intent:" line can misparse, matching the upstream behavior.
func parseModelOutput(text string) modelOutput {
	var out modelOutput

	matches := labelRe.FindAllStringSubmatchIndex(text, -1)
	seen := make(map[string]bool)
	for i, m := range matches {
		label := strings.ToLower(text[m[2]:m[3]])
		if seen[label] {
			continue
		}
		seen[label] = true

		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		value := strings.TrimSpace(text[m[1]:end])

		switch label {
		case "response":
			out.reply = value
		case "intent":
			out.intent = firstLine(value)
		case "confidence":
			out.confidence = firstLine(value)
		case "next action":
			out.nextAction = firstLine(value)
		}
	}

	if !seen["response"] {
		var kept []string
		for _, line := range strings.Split(text, "\n") {
			if labelRe.MatchString(line) {
				continue
			}
			kept = append(kept, line)
		}
		out.reply = strings.TrimSpace(strings.Join(kept, "\n"))
	}
	return out
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// normalizeIntent maps a model-supplied label onto the closed intent set,
// returning "" when it doesn't fit.
func normalizeIntent(raw string) Intent {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.Trim(cleaned, `"'.`)
	cleaned = strings.NewReplacer(" ", "_", "-", "_").Replace(cleaned)
	if KnownIntent(cleaned) {
		return Intent(cleaned)
	}
	return ""
}

// parseConfidence returns a confidence in [0,1], or -1 when unparseable.
// Percent-style values ("85%") are scaled down.
func parseConfidence(raw string) float64 {
	cleaned := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if cleaned == "" {
		return -1
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return -1
	}
	if value > 1 && value <= 100 {
		value /= 100
	}
	if value < 0 || value > 1 {
		return -1
	}
	return value
}

// metaMarkers announce trailing meta-commentary the model sometimes appends
// after the actual reply. The reply is truncated at the earliest marker.
var metaMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)suggested next action`),
	regexp.MustCompile(`(?i)next action:`),
	regexp.MustCompile(`(?im)^[ \t]*\d+[.)][ \t]*(?:i[ \t]+)?suggest`),
}

// scrubReply strips trailing meta-commentary from a model reply: truncate at
// the earliest marker, drop residual lines mentioning the suggestion
// machinery, and trim dangling punctuation.
func scrubReply(reply string) string {
	cut := len(reply)
	for _, marker := range metaMarkers {
		if loc := marker.FindStringIndex(reply); loc != nil && loc[0] < cut {
			cut = loc[0]
		}
	}
	reply = reply[:cut]

	var kept []string
	for _, line := range strings.Split(reply, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "suggested") || strings.Contains(lower, "next action") {
			continue
		}
		kept = append(kept, line)
	}
	reply = strings.Join(kept, "\n")

	reply = strings.TrimRight(reply, " \t\r\n*-–—:;,(")
	return strings.TrimSpace(reply)
}
