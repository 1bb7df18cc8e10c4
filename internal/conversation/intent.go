package conversation

import "strings"

// Intent is the classified purpose of a user message, one of a closed set.
type Intent string

const (
	IntentPricingInquiry Intent = "pricing_inquiry"
	IntentDemoRequest    Intent = "demo_request"
	IntentFeatureInquiry Intent = "feature_inquiry"
	IntentFollowUp       Intent = "follow_up"
	IntentNotInterested  Intent = "not_interested"
	IntentGeneralInquiry Intent = "general_inquiry"
)

// IntentResult is the transient classification outcome attached to the user
// turn it was computed from.
type IntentResult struct {
	Intent          Intent   `json:"intent"`
	Confidence      float64  `json:"confidence"`
	MatchedKeywords []string `json:"matched_keywords"`
}

// intentKeywords is the fixed, ordered keyword table. Order matters: on a
// confidence tie the earlier entry wins, which keeps classification
// deterministic.
var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{IntentPricingInquiry, []string{"price", "cost", "how much", "pricing", "expensive", "budget", "quote"}},
	{IntentDemoRequest, []string{"demo", "demonstration", "trial", "show me", "try it", "walkthrough"}},
	{IntentFeatureInquiry, []string{"feature", "can it", "does it", "integration", "integrate", "capability", "support for"}},
	{IntentFollowUp, []string{"follow up", "follow-up", "following up", "checking in", "any update", "get back to"}},
	{IntentNotInterested, []string{"not interested", "no thanks", "no thank you", "unsubscribe", "stop contacting", "don't contact"}},
}

const (
	noMatchConfidence   = 0.6
	baseConfidence      = 0.5
	perKeywordIncrement = 0.3
	maxConfidence       = 0.95
)

// ClassifyIntent maps a message to an intent by counting keyword substring
// matches against the normalized text. Total function: it never fails and
// falls back to general_inquiry when nothing matches.
func ClassifyIntent(text string) IntentResult {
	normalized := strings.ToLower(text)

	best := IntentResult{
		Intent:     IntentGeneralInquiry,
		Confidence: 0,
	}

	for _, entry := range intentKeywords {
		var matched []string
		for _, kw := range entry.keywords {
			if strings.Contains(normalized, kw) {
				matched = append(matched, kw)
			}
		}
		if len(matched) == 0 {
			continue
		}

		confidence := baseConfidence + perKeywordIncrement*float64(len(matched))
		if confidence > maxConfidence {
			confidence = maxConfidence
		}
		// Strictly greater keeps the earlier table entry on ties.
		if confidence > best.Confidence {
			best = IntentResult{
				Intent:          entry.intent,
				Confidence:      confidence,
				MatchedKeywords: matched,
			}
		}
	}

	if best.Confidence == 0 {
		return IntentResult{
			Intent:          IntentGeneralInquiry,
			Confidence:      noMatchConfidence,
			MatchedKeywords: []string{},
		}
	}
	return best
}

// KnownIntent reports whether s names one of the closed intent set.
func KnownIntent(s string) bool {
	switch Intent(s) {
	case IntentPricingInquiry, IntentDemoRequest, IntentFeatureInquiry,
		IntentFollowUp, IntentNotInterested, IntentGeneralInquiry:
		return true
	}
	return false
}
