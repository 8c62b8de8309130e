package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// Authentication
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// Validation
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// Resources
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// Quiz-specific
	ErrQuizNotAvailable     ErrCode = "QUIZ_NOT_AVAILABLE"
	ErrQuizAlreadyCompleted ErrCode = "QUIZ_ALREADY_COMPLETED"
	ErrQuizNotCompleted     ErrCode = "QUIZ_NOT_COMPLETED"
	ErrSessionNotStarted    ErrCode = "SESSION_NOT_STARTED"
	ErrSessionExpired       ErrCode = "SESSION_EXPIRED"
	ErrUnknownQuestion      ErrCode = "UNKNOWN_QUESTION"

	// Rate Limiting
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// Server
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Incorrect email or password."
	case ErrSessionInvalidated:
		return "Your login session has ended. Please sign in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	case ErrQuizNotAvailable:
		return "This quiz is not currently available."
	case ErrQuizAlreadyCompleted:
		return "You have already completed this quiz."
	case ErrQuizNotCompleted:
		return "You have not completed this quiz yet."
	case ErrSessionNotStarted:
		return "No quiz session is in progress. Start the quiz first."
	case ErrSessionExpired:
		return "Time is up. The quiz has been submitted."
	case ErrUnknownQuestion:
		return "The question does not belong to this quiz."

	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
