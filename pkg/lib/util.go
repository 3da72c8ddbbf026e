package lib

import "github.com/google/uuid"

// NewID returns a random identifier used to correlate a supervisor run or an
// owned process across log records.
func NewID() string { return uuid.New().String() }
