package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Access control errors
// 13000-13999: Submission & Grading errors
const (
	// ========== System & Common Errors (10000-10999) ==========

	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError ErrorCode = 10100

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Storage errors (10250-10299)
	StorageError ErrorCode = 10250

	// Validation errors (10300-10399)
	ValidationFailed ErrorCode = 10300

	// ========== Access Control Errors (11000-11999) ==========

	TokenExpired ErrorCode = 11003
	TokenInvalid ErrorCode = 11004

	// ========== Submission & Grading Errors (13000-13999) ==========

	// Submission (13000-13099)
	SubmissionNotFound   ErrorCode = 13000
	CodeTooLarge         ErrorCode = 13002
	LanguageNotSupported ErrorCode = 13003

	// Grading (13100-13199)
	JudgeQueueFull   ErrorCode = 13100
	JudgeSystemError ErrorCode = 13101
	WorkspaceError   ErrorCode = 13107

	// Ad-hoc execution (13200-13299)
	CustomInputTooLarge ErrorCode = 13201
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	DatabaseError: "Database operation failed",
	CacheError:    "Cache operation failed",
	StorageError:  "Object storage operation failed",

	ValidationFailed: "Validation failed",

	TokenExpired: "Token has expired",
	TokenInvalid: "Invalid token",

	SubmissionNotFound:   "Submission not found",
	CodeTooLarge:         "Code is too large",
	LanguageNotSupported: "Programming language not supported",

	JudgeQueueFull:   "Grading queue is full, please try again later",
	JudgeSystemError: "Grading system error",
	WorkspaceError:   "Scratch workspace unavailable",

	CustomInputTooLarge: "Custom input is too large",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized, c == TokenExpired, c == TokenInvalid:
		return 401
	case c == Forbidden:
		return 403
	case c == NotFound, c == SubmissionNotFound:
		return 404
	case c == TooManyRequests, c == JudgeQueueFull:
		return 429
	case c == ServiceUnavailable:
		return 503
	case c == Timeout:
		return 504
	case c == InvalidParams, c == ValidationFailed, c == LanguageNotSupported,
		c == CodeTooLarge, c == CustomInputTooLarge:
		return 400
	default:
		return 500
	}
}
