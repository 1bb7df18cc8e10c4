package conversation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/convoleads/leadqual/pkg/logging"
)

// ExchangeEvent is a structured event emitted at each decision point of an
// orchestrated exchange. All events share the same base fields for easy
// filtering:
//
//	grep '"event":"intent_classified"' /var/log/app.log
//	grep '"lead_id":"lead_abc"' /var/log/app.log
type ExchangeEvent struct {
	Time   string         `json:"time"`
	Event  string         `json:"event"`
	LeadID string         `json:"lead_id"`
	Data   map[string]any `json:"data,omitempty"`
}

// EventLogger emits structured JSON events for the exchange pipeline.
type EventLogger struct {
	logger *logging.Logger
}

func NewEventLogger(logger *logging.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Log emits a structured exchange event.
func (e *EventLogger) Log(_ context.Context, event, leadID string, data map[string]any) {
	if e == nil || e.logger == nil {
		return
	}
	evt := ExchangeEvent{
		Time:   time.Now().UTC().Format(time.RFC3339Nano),
		Event:  event,
		LeadID: leadID,
		Data:   data,
	}
	b, _ := json.Marshal(evt)
	e.logger.Info(string(b))
}

func (e *EventLogger) MessageReceived(ctx context.Context, leadID, message string) {
	msg := message
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	e.Log(ctx, "message_received", leadID, map[string]any{
		"message": msg,
	})
}

func (e *EventLogger) LeadCreated(ctx context.Context, leadID, email string) {
	e.Log(ctx, "lead_created", leadID, map[string]any{
		"email": email,
	})
}

func (e *EventLogger) IntentClassified(ctx context.Context, leadID string, intent Intent, confidence float64) {
	e.Log(ctx, "intent_classified", leadID, map[string]any{
		"intent":     string(intent),
		"confidence": confidence,
	})
}

func (e *EventLogger) ScoreUpdated(ctx context.Context, leadID string, previous, current int, status string) {
	e.Log(ctx, "score_updated", leadID, map[string]any{
		"previous": previous,
		"current":  current,
		"status":   status,
	})
}

func (e *EventLogger) ExchangeFailed(ctx context.Context, leadID, step string, err error) {
	e.Log(ctx, "exchange_failed", leadID, map[string]any{
		"step":  step,
		"error": err.Error(),
	})
}
