package constants

import "time"

// DefaultContextTimeout is the default timeout for context operations.
const DefaultContextTimeout = 10 * time.Second

// TestContextTimeout is the timeout for test contexts.
const TestContextTimeout = 5 * time.Second

// MillisecondsPerSecond converts between milliseconds and seconds.
const MillisecondsPerSecond = 1000

// DisplayTimeFormat is the human-readable timestamp format used by the CLI.
const DisplayTimeFormat = "2006-01-02 15:04:05"
