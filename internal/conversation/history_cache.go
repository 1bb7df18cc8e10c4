package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultHistoryTTL = 24 * time.Hour

// HistoryCache keeps the short context window for each lead in Redis so hot
// conversations skip the database read. It is best-effort: every miss or
// error falls through to the turn store.
type HistoryCache struct {
	redis  *redis.Client
	ttl    time.Duration
	window int
}

func NewHistoryCache(client *redis.Client, ttl time.Duration, window int) *HistoryCache {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultHistoryTTL
	}
	if window <= 0 {
		window = historyWindow
	}
	return &HistoryCache{redis: client, ttl: ttl, window: window}
}

// Load returns the cached window for a lead and whether it was present.
func (c *HistoryCache) Load(ctx context.Context, leadID string) ([]Turn, bool, error) {
	data, err := c.redis.Get(ctx, historyKey(leadID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("conversation: failed to load history: %w", err)
	}

	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, false, fmt.Errorf("conversation: failed to decode history: %w", err)
	}
	return turns, true, nil
}

// Save stores the window for a lead, trimmed to the configured size.
func (c *HistoryCache) Save(ctx context.Context, leadID string, turns []Turn) error {
	if len(turns) > c.window {
		turns = turns[len(turns)-c.window:]
	}
	data, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("conversation: failed to marshal history: %w", err)
	}
	if err := c.redis.Set(ctx, historyKey(leadID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("conversation: failed to persist history: %w", err)
	}
	return nil
}

func historyKey(leadID string) string {
	return fmt.Sprintf("history:%s", leadID)
}
