package errors

import (
	"fmt"
)

// Twilio REST error codes that short-circuit retries.
const (
	TwilioCodeInvalidToNumber     = 21211
	TwilioCodeUnregisteredChannel = 63007
	TwilioCodeAuthFailure         = 20003
	TwilioCodeRateLimited         = 20429
)

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation)
}

// NewTwilioError classifies a Twilio REST failure by error code and HTTP
// status. A small fixed set of provider codes is permanent; everything at
// or above 500, plus explicit rate limiting, is transient.
func NewTwilioError(twilioCode, statusCode int, err error) *AppError {
	var appErr *AppError

	switch twilioCode {
	case TwilioCodeInvalidToNumber:
		appErr = Wrap(err, ErrCodeInvalidDestination, "destination is not a valid number")
	case TwilioCodeUnregisteredChannel:
		appErr = Wrap(err, ErrCodeUnregisteredChannel, "sender is not a registered WhatsApp channel")
	case TwilioCodeAuthFailure:
		appErr = Wrap(err, ErrCodeAuthentication, "provider rejected credentials")
	case TwilioCodeRateLimited:
		appErr = WrapRetryable(err, ErrCodeRateLimit, "provider rate limit exceeded")
	default:
		appErr = Wrap(err, ErrCodeTwilioAPI, "provider send failed")
		if statusCode >= 500 || statusCode == 429 || statusCode == 408 {
			appErr.Retryable = true
		}
	}

	return appErr.
		WithContext("twilio_code", twilioCode).
		WithContext("status_code", statusCode)
}

// NewOpenAIError classifies an OpenAI API failure by HTTP status.
// Authentication and request-shape failures abort immediately; rate limits
// and server errors are transient.
func NewOpenAIError(statusCode int, err error) *AppError {
	var appErr *AppError

	switch {
	case statusCode == 401 || statusCode == 403:
		appErr = Wrap(err, ErrCodeAuthentication, "model provider rejected credentials")
	case statusCode == 400 || statusCode == 404:
		appErr = Wrap(err, ErrCodeOpenAIAPI, "model request rejected")
	case statusCode == 429:
		appErr = WrapRetryable(err, ErrCodeRateLimit, "model provider rate limit exceeded")
	default:
		appErr = WrapRetryable(err, ErrCodeOpenAIAPI, "model call failed")
	}

	return appErr.WithContext("status_code", statusCode)
}
