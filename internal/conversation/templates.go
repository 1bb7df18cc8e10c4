package conversation

import (
	"fmt"

	"github.com/convoleads/leadqual/internal/leads"
)

// Product fact sheet interpolated into replies and prompts. Fixed copy; the
// model-backed responder embeds the same facts so both paths agree on
// pricing.
const (
	productName = "LeadQual"

	priceSheet = "Starter at $49/month, Growth at $149/month, and Enterprise at $499/month"
)

// replyTemplates holds one canned reply per intent. Each template receives
// the lead's first name; pricing-adjacent templates also receive the price
// sheet.
var replyTemplates = map[Intent]string{
	IntentPricingInquiry: "Great question, %s! We have three plans: %s. All plans include unlimited conversations and a 14-day free trial. Which plan sounds closest to what you need?",
	IntentDemoRequest:    "I'd love to show you around, %s! Our live demo takes about 20 minutes and covers everything from lead capture to scoring. What day this week works best for you?",
	IntentFeatureInquiry: "Happy to help, %s! " + productName + " covers intent detection, lead scoring, CRM sync, and real-time chat handoff out of the box. Is there a specific capability you'd like to dig into?",
	IntentFollowUp:       "Thanks for checking back in, %s! I've flagged your conversation for our team and someone will reach out shortly. Is there anything else I can answer in the meantime?",
	IntentNotInterested:  "No problem at all, %s — thanks for letting us know. If anything changes down the road, we'd be glad to pick things back up. Have a great day!",
	IntentGeneralInquiry: "Thanks for reaching out, %s! I can help with pricing, features, or setting up a demo. What would you like to know more about?",
}

// TemplateReply renders the canned reply for an intent. Unknown intents fall
// back to the general inquiry template, so this is total over any input.
func TemplateReply(intent Intent, lead *leads.Lead) string {
	name := "there"
	if lead != nil {
		name = lead.FirstName()
	}

	tmpl, ok := replyTemplates[intent]
	if !ok {
		tmpl = replyTemplates[IntentGeneralInquiry]
	}

	if intent == IntentPricingInquiry && ok {
		return fmt.Sprintf(tmpl, name, priceSheet)
	}
	return fmt.Sprintf(tmpl, name)
}
