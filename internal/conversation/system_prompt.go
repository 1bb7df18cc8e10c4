package conversation

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are the ` + productName + ` sales assistant, a friendly and knowledgeable guide for prospective customers evaluating our conversational lead-qualification platform.

RULES:
1. Keep every reply to 3 sentences or fewer.
2. End each reply with a question or a clear call to action.
3. Be helpful, never pushy. If the prospect is not interested, acknowledge it gracefully and close.
4. Only discuss ` + productName + ` and its plans. Do not invent features or prices.

PRODUCT FACTS:
- ` + productName + ` classifies chat messages by sales intent, scores engagement, and routes qualified leads to sales reps.
- Plans: ` + priceSheet + `. All plans include unlimited conversations and a 14-day free trial.
- Integrations: Slack, HubSpot, Salesforce, and webhooks.

OUTPUT FORMAT — respond with exactly these four labeled lines:
Response: <your reply to the prospect>
Intent: <one of pricing_inquiry, demo_request, feature_inquiry, follow_up, not_interested, general_inquiry>
Confidence: <0.0 to 1.0>
Next Action: <one of offer_demo, schedule_demo, share_documentation, schedule_call, mark_cold, continue_conversation>`

// buildUserPrompt serializes the context window and the new message into a
// single instruction block for the completion service.
func buildUserPrompt(leadName string, history []Turn, message string) string {
	var sb strings.Builder

	if leadName != "" {
		fmt.Fprintf(&sb, "Prospect name: %s\n\n", leadName)
	}

	if len(history) > 0 {
		sb.WriteString("Conversation so far:\n")
		for _, turn := range history {
			speaker := "Prospect"
			if turn.Sender == SenderAgent {
				speaker = "Assistant"
			}
			fmt.Fprintf(&sb, "%s: %s\n", speaker, turn.Text)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "New message from the prospect:\n%s\n\n", message)
	sb.WriteString("Classify the message and reply using the labeled output format.")
	return sb.String()
}
