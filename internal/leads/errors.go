package leads

import "errors"

var (
	// ErrMissingEmail is returned when a new lead is created without an email
	ErrMissingEmail = errors.New("email is required")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")
)
