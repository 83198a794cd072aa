package common

import (
	"github.com/google/uuid"
)

// NewWatchSessionID generates a unique watch session ID with the "watch_" prefix
// Format: watch_<uuid>
func NewWatchSessionID() string {
	return "watch_" + uuid.New().String()
}
