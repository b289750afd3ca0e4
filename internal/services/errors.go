// Package services defines the business logic for digest delivery, subject
// and highlight composition, and engagement tracking. This file centralizes
// the service-level error values so they can be returned consistently and
// checked by callers with errors.Is.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Delivery errors.
var (
	// ErrUserNotFound indicates that the user directory has no such user.
	ErrUserNotFound = errors.New("user not found")

	// ErrMissingEmail is returned when the user exists but has no address.
	ErrMissingEmail = errors.New("user has no email address")

	// ErrDeliveryDisabled is returned when the user turned email off.
	ErrDeliveryDisabled = errors.New("email delivery disabled")

	// ErrRecordingFailed means the pending delivery row could not be created.
	ErrRecordingFailed = errors.New("failed to record delivery attempt")

	// ErrRenderFailed is returned when no layout could produce HTML.
	ErrRenderFailed = errors.New("render failed")

	// ErrTransportFailed wraps every mailer failure.
	ErrTransportFailed = errors.New("transport failed")

	// ErrTimeout is returned when a send exceeds its deadline.
	ErrTimeout = errors.New("delivery timed out")

	// ErrDeliveryNotFound indicates an unknown delivery id.
	ErrDeliveryNotFound = errors.New("delivery not found")
)

// Feedback errors.
var (
	// ErrInvalidFeedback is returned for missing identifiers or an empty
	// feedback kind.
	ErrInvalidFeedback = errors.New("invalid feedback")
)

// Preference errors.
var (
	// ErrInvalidPreferences is returned when an update carries a value
	// outside the allowed set (frequency, time, timezone, format).
	ErrInvalidPreferences = errors.New("invalid email preferences")

	// ErrInvalidSubscriber is returned for a subscriber without user id.
	ErrInvalidSubscriber = errors.New("invalid subscriber")
)
