package domain

import "time"

// UsageLog records what a finished job cost: pixels pushed through the
// transform pipeline, bytes shaved off the source, and wall-clock compute
// time.
type UsageLog struct {
	UserID          string
	JobID           string
	PixelsProcessed int64
	BytesSaved      int64
	ComputeTimeMS   int64
	CreatedAt       time.Time
}
