package conversation

import "errors"

var (
	// ErrMissingLeadID is returned when a message arrives without a lead id
	ErrMissingLeadID = errors.New("leadId is required")

	// ErrEmptyMessage is returned when the message text is absent or blank
	ErrEmptyMessage = errors.New("message is required")
)
