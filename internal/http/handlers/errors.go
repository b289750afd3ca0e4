// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable: clients branch on them, not on
// messages. Generic codes mirror HTTP status semantics; the delivery codes
// name outcomes of a send that status alone cannot express.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_found",
//	  "message": "delivery not found"
//	}
package handlers

const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeRateLimited = "too_many_requests"
	ErrCodeInternal    = "internal_error"

	// Domain-specific:
	ErrCodeMissingEmail     = "missing_email"
	ErrCodeDeliveryDisabled = "delivery_disabled"
	ErrCodeDeliveryFailed   = "delivery_failed"
	ErrCodeDeliveryTimeout  = "delivery_timeout"
	ErrCodeInvalidFeedback  = "invalid_feedback"
	ErrCodeInvalidPrefs     = "invalid_preferences"
	ErrCodeListFailed       = "list_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
