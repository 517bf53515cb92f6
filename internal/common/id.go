package common

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique run ID with the "run_" prefix
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewInstanceID generates the ID clients use to notice a server restart
func NewInstanceID() string {
	return uuid.New().String()
}
