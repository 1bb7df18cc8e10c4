package leads

import (
	"context"
	"sync"
	"time"
)

// Repository defines the interface for lead storage
type Repository interface {
	Get(ctx context.Context, id string) (*Lead, error)
	Create(ctx context.Context, id string, profile *Profile) (*Lead, error)
	Update(ctx context.Context, id string, update Update) error
	Convert(ctx context.Context, id string) (*Lead, error)
}

// InMemoryRepository is a Repository backed by a process-local map. Used in
// development and tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]*Lead
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads: make(map[string]*Lead),
	}
}

// Get retrieves a lead by ID
func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}

	copied := *lead
	return &copied, nil
}

// Create registers a new lead with a zero score and cold status.
func (r *InMemoryRepository) Create(ctx context.Context, id string, profile *Profile) (*Lead, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	lead := &Lead{
		ID:        id,
		Name:      profile.Name,
		Email:     profile.Email,
		Phone:     profile.Phone,
		Company:   profile.Company,
		Score:     0,
		Status:    StatusCold,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.leads[id] = lead
	r.mu.Unlock()

	copied := *lead
	return &copied, nil
}

// Update writes the post-exchange score, status, and counters.
func (r *InMemoryRepository) Update(ctx context.Context, id string, update Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[id]
	if !ok {
		return ErrLeadNotFound
	}

	lead.Score = update.Score
	lead.Status = update.Status
	lead.MessageCount = update.MessageCount
	t := update.LastInteractionAt
	lead.LastInteractionAt = &t
	return nil
}

// Convert marks a lead as converted. This is the only write path for the
// converted status; the scoring pipeline never produces it.
func (r *InMemoryRepository) Convert(ctx context.Context, id string) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}

	lead.Status = StatusConverted
	copied := *lead
	return &copied, nil
}
