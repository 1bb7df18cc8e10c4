package leads

import (
	"strings"
	"time"
)

// Status labels the qualification stage of a lead. It is derived from the
// running score and the most recent intent; callers never set it directly.
// StatusConverted is the exception: it is applied by a sales-rep action, not
// by the scoring pipeline.
type Status string

const (
	StatusCold          Status = "cold"
	StatusWarm          Status = "warm"
	StatusHot           Status = "hot"
	StatusNotInterested Status = "not_interested"
	StatusConverted     Status = "converted"
)

// Lead represents a prospective customer engaged through the chat agent.
type Lead struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone,omitempty"`
	Company           string     `json:"company,omitempty"`
	Score             int        `json:"score"`
	Status            Status     `json:"status"`
	MessageCount      int        `json:"message_count"`
	LastInteractionAt *time.Time `json:"last_interaction_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// FirstName returns the leading word of the lead's name, or a neutral
// fallback for unnamed leads. Templates interpolate this.
func (l *Lead) FirstName() string {
	name := strings.TrimSpace(l.Name)
	if name == "" {
		return "there"
	}
	if idx := strings.IndexByte(name, ' '); idx > 0 {
		return name[:idx]
	}
	return name
}

// Profile carries the contact attributes needed to create a lead on its
// first message.
type Profile struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
}

// Validate checks that the profile is sufficient to create a lead.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Email) == "" {
		return ErrMissingEmail
	}
	return nil
}

// Update describes the mutable fields written back after each exchange.
type Update struct {
	Score             int
	Status            Status
	MessageCount      int
	LastInteractionAt time.Time
}
