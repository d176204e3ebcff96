package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RunID identifies one persisted channel/period fraction run. IDs are UUID
// v7, so lexical order follows creation order.
type RunID string

// NewRunID creates a time-ordered run identifier
func NewRunID() RunID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return RunID(id.String())
}

func (id RunID) String() string { return string(id) }

// IsEmpty reports whether the ID is unset
func (id RunID) IsEmpty() bool { return id == "" }

// ParseRunID validates a run identifier taken from user input
func ParseRunID(s string) (RunID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid run ID %q: %w", s, err)
	}
	return RunID(strings.ToLower(s)), nil
}
