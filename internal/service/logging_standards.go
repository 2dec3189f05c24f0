package service

// Standard Field Names
// Use these exact field names for consistency across all logging calls
const (
	// Core identifiers
	LogFieldRequestID = "request_id"
	LogFieldMessageID = "message_id"
	LogFieldSenderID  = "sender_id"
	LogFieldUserID    = "user_id"

	// Service and operation fields
	LogFieldService   = "service"
	LogFieldOperation = "operation"
	LogFieldComponent = "component"
	LogFieldMethod    = "method"

	// Pipeline fields
	LogFieldIntent      = "intent"
	LogFieldStage       = "stage"
	LogFieldStep        = "onboarding_step"
	LogFieldMessageType = "message_type"
	LogFieldDirection   = "direction" // "incoming" or "outgoing"

	// Performance fields
	LogFieldDuration = "duration_ms"
	LogFieldCount    = "count"
	LogFieldSize     = "size_bytes"

	// Network and external services
	LogFieldURL        = "url"
	LogFieldEndpoint   = "endpoint"
	LogFieldStatusCode = "status_code"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldUserAgent  = "user_agent"

	// Error and debugging
	LogFieldErrorCode  = "error_code"
	LogFieldRetryCount = "retry_count"
	LogFieldAttempt    = "attempt"
)

// Log Level Usage Guidelines
//
// DEBUG: Detailed flow information, classifier stage outcomes, raw payload
//   shapes (sanitized). Only useful in development or verbose mode.
//
// INFO: Application startup/shutdown, webhook accepted, reply sent,
//   onboarding transitions, configuration loaded.
//
// WARN: Retryable errors, fallback behavior used (LLM unavailable, default
//   recommendations served), duplicate webhook deliveries, rate limiting.
//
// ERROR: Failed sends after retries exhausted, database errors, provider
//   authentication failures.
//
// FATAL: Configuration required for startup is missing, database cannot be
//   opened.
