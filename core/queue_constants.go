package core

import "time"

// Redis keys and timings shared by the API and the report worker.
const (
	PendingReportsKey    = "pending_reports"
	ProcessingReportsKey = "processing_reports"

	// DefaultVisibilityTimeout is how long a reserved report stays invisible before the reclaimer
	// hands it to another worker.
	DefaultVisibilityTimeout = 60 * time.Second
	ReclaimInterval          = 15 * time.Second
	MaxReportRetries         = 3
)
