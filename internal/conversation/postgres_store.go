package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/convoleads/leadqual/internal/leads"
)

// PostgresTurnStore persists conversation turns to the relational database.
type PostgresTurnStore struct {
	db leads.DB
}

func NewPostgresTurnStore(db leads.DB) *PostgresTurnStore {
	if db == nil {
		panic("conversation: pgx pool required")
	}
	return &PostgresTurnStore{db: db}
}

// Append inserts a turn. Optional classification fields are stored as NULL
// when unset so agent turns don't carry phantom intents.
func (s *PostgresTurnStore) Append(ctx context.Context, turn Turn) error {
	id := turn.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var intent *string
	var confidence *float64
	if turn.Intent != "" {
		v := string(turn.Intent)
		intent = &v
		confidence = &turn.Confidence
	}
	var nextAction *string
	if turn.NextAction != "" {
		nextAction = &turn.NextAction
	}

	query := `
		INSERT INTO conversation_turns (id, lead_id, sender, text, intent, confidence, next_action, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := s.db.Exec(ctx, query,
		id, turn.LeadID, turn.Sender, turn.Text, intent, confidence, nextAction, createdAt,
	); err != nil {
		return fmt.Errorf("conversation: insert turn failed: %w", err)
	}
	return nil
}

// Recent returns up to limit of the lead's latest turns, oldest first.
func (s *PostgresTurnStore) Recent(ctx context.Context, leadID string, limit int) ([]Turn, error) {
	query := `
		SELECT id, lead_id, sender, text, intent, confidence, next_action, created_at
		FROM (
			SELECT id, lead_id, sender, text, intent, confidence, next_action, created_at
			FROM conversation_turns
			WHERE lead_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) latest
		ORDER BY created_at ASC
	`
	rows, err := s.db.Query(ctx, query, leadID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: select turns failed: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var intent, nextAction *string
		var confidence *float64
		if err := rows.Scan(&t.ID, &t.LeadID, &t.Sender, &t.Text, &intent, &confidence, &nextAction, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan turn failed: %w", err)
		}
		if intent != nil {
			t.Intent = Intent(*intent)
		}
		if confidence != nil {
			t.Confidence = *confidence
		}
		if nextAction != nil {
			t.NextAction = *nextAction
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: iterate turns failed: %w", err)
	}
	return turns, nil
}

// PostgresActivityStore appends audit entries to the lead_activities table.
type PostgresActivityStore struct {
	db leads.DB
}

func NewPostgresActivityStore(db leads.DB) *PostgresActivityStore {
	if db == nil {
		panic("conversation: pgx pool required")
	}
	return &PostgresActivityStore{db: db}
}

func (s *PostgresActivityStore) Append(ctx context.Context, leadID, activityType, details string) error {
	query := `
		INSERT INTO lead_activities (id, lead_id, type, details)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.Exec(ctx, query, uuid.NewString(), leadID, activityType, details); err != nil {
		return fmt.Errorf("conversation: insert activity failed: %w", err)
	}
	return nil
}
