package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sender identifies which side of the conversation produced a turn.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// Turn is one message in a lead's conversation log. Turns are append-only
// and ordered by creation time; an orchestrated exchange always appends a
// user turn followed by an agent turn.
type Turn struct {
	ID         string    `json:"id"`
	LeadID     string    `json:"lead_id"`
	Sender     Sender    `json:"sender"`
	Text       string    `json:"text"`
	Intent     Intent    `json:"intent,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	NextAction string    `json:"next_action,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TurnStore persists conversation turns.
type TurnStore interface {
	Append(ctx context.Context, turn Turn) error
	// Recent returns up to limit of the lead's most recent turns,
	// ordered oldest to newest.
	Recent(ctx context.Context, leadID string, limit int) ([]Turn, error)
}

// ActivityStore is the append-only audit trail. The pipeline only writes;
// reads are an admin concern.
type ActivityStore interface {
	Append(ctx context.Context, leadID, activityType, details string) error
}

// MemoryTurnStore keeps turns in process memory for development and tests.
type MemoryTurnStore struct {
	mu    sync.RWMutex
	turns map[string][]Turn
}

func NewMemoryTurnStore() *MemoryTurnStore {
	return &MemoryTurnStore{turns: make(map[string][]Turn)}
}

func (s *MemoryTurnStore) Append(ctx context.Context, turn Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.turns[turn.LeadID] = append(s.turns[turn.LeadID], turn)
	s.mu.Unlock()
	return nil
}

func (s *MemoryTurnStore) Recent(ctx context.Context, leadID string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.turns[leadID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]Turn, len(all))
	copy(out, all)
	return out, nil
}

// MemoryActivityStore records audit entries in memory.
type MemoryActivityStore struct {
	mu      sync.Mutex
	entries map[string][]ActivityEntry
}

// ActivityEntry is one audit record.
type ActivityEntry struct {
	LeadID    string    `json:"lead_id"`
	Type      string    `json:"type"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

func NewMemoryActivityStore() *MemoryActivityStore {
	return &MemoryActivityStore{entries: make(map[string][]ActivityEntry)}
}

func (s *MemoryActivityStore) Append(ctx context.Context, leadID, activityType, details string) error {
	s.mu.Lock()
	s.entries[leadID] = append(s.entries[leadID], ActivityEntry{
		LeadID:    leadID,
		Type:      activityType,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	})
	s.mu.Unlock()
	return nil
}

// Entries returns a copy of the recorded activity for a lead, used in tests.
func (s *MemoryActivityStore) Entries(leadID string) []ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ActivityEntry, len(s.entries[leadID]))
	copy(out, s.entries[leadID])
	return out
}
