package logger

import "go.uber.org/zap"

// Standard field names for consistent structured logging across easel.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldContentID  = "content_id"
	FieldScheduleID = "schedule_id"
	FieldComponent  = "component"

	// Operations
	FieldOperation = "operation"
	FieldMethod    = "method"
	FieldPath      = "path"

	// Timing
	FieldDurationMS  = "duration_ms"
	FieldScheduledAt = "scheduled_at"
	FieldPublishedAt = "published_at"

	// Errors
	FieldError = "error"

	// Counts and status
	FieldCount     = "count"
	FieldBatchSize = "batch_size"
	FieldStatus    = "status"

	// Network
	FieldAddress = "address"
	FieldPort    = "port"
)

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	type Publisher struct {
//	    logger *zap.SugaredLogger
//	}
//
//	func NewPublisher(...) *Publisher {
//	    return &Publisher{
//	        logger: logger.ComponentLogger("publish.publisher"),
//	    }
//	}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
// Use for sub-operations that need extra context fields.
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return parent.With(keysAndValues...)
}
