package leads

// Intent labels the scorer cares about. They mirror the classifier's closed
// set in internal/conversation; anything else falls into the default delta.
const (
	intentPricingInquiry = "pricing_inquiry"
	intentDemoRequest    = "demo_request"
	intentFeatureInquiry = "feature_inquiry"
	intentFollowUp       = "follow_up"
	intentNotInterested  = "not_interested"
)

const (
	// engagementBonusPerTurn rewards longer conversations.
	engagementBonusPerTurn = 3
	// engagementBonusCap bounds the per-exchange engagement bonus.
	engagementBonusCap = 20

	hotThreshold  = 70
	warmThreshold = 40
)

// intentDeltas maps each recognized intent to its score adjustment.
var intentDeltas = map[string]int{
	intentPricingInquiry: 15,
	intentDemoRequest:    25,
	intentFeatureInquiry: 10,
	intentFollowUp:       20,
	intentNotInterested:  -30,
}

// defaultIntentDelta applies to general inquiries and any unrecognized intent.
const defaultIntentDelta = 5

// NextScore computes the engagement score after an exchange. turnCount is the
// lead's message count including the current message. The result is clamped
// to [0,100].
func NextScore(previous int, intent string, turnCount int) int {
	delta, ok := intentDeltas[intent]
	if !ok {
		delta = defaultIntentDelta
	}

	bonus := turnCount * engagementBonusPerTurn
	if bonus > engagementBonusCap {
		bonus = engagementBonusCap
	}

	score := previous + delta + bonus
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// StatusFor derives the lead status from a score and the most recent intent.
// A not_interested intent forces the status regardless of score. converted is
// never produced here; it is set by a sales-rep action outside this pipeline.
func StatusFor(score int, intent string) Status {
	if intent == intentNotInterested {
		return StatusNotInterested
	}
	switch {
	case score >= hotThreshold:
		return StatusHot
	case score >= warmThreshold:
		return StatusWarm
	default:
		return StatusCold
	}
}
