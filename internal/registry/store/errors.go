package store

import "fmt"

// NotFoundError indicates the referenced entity is absent (or soft-deleted).
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ValidationError indicates malformed input, rejected before any mutation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// ConflictError indicates a uniqueness violation, e.g. a concurrent insert
// losing the content-hash race.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// InvalidTierError indicates an unrecognized target tier.
type InvalidTierError struct {
	Tier string
}

func (e *InvalidTierError) Error() string {
	return fmt.Sprintf("invalid tier: %q (valid: active, thread, stable, network)", e.Tier)
}
