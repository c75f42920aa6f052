package ports

import "errors"

// Standard application-level errors.
// Adapters and schedulers wrap underlying failures with these sentinels so
// callers can branch with errors.Is.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Trigger Evaluation Errors
	ErrStaleData            = errors.New("no price received yet for instrument")
	ErrTriggerExpired       = errors.New("trigger aged out before firing")
	ErrNoPosition           = errors.New("no open position to close")
	ErrUnsupportedCondition = errors.New("candle-based conditions are not supported")
	ErrBotDisabled          = errors.New("bot is disabled")

	// Venue Specific Errors
	ErrUnknownInstrument = errors.New("instrument not present in the scrip master")
	ErrOrderRejected     = errors.New("order rejected by the venue")
	ErrOrderNotFound     = errors.New("order not found on the venue")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrQueryFailed    = errors.New("database query failed")
)
