package mailer

import (
	"errors"
	"fmt"
)

// ErrContentTooLarge is wrapped by SendError when the HTML body exceeds the
// configured limit.
var ErrContentTooLarge = errors.New("email content too large")

// Kind classifies a transport failure.
type Kind string

const (
	KindAuth             Kind = "auth"
	KindRecipientRefused Kind = "recipient_refused"
	KindSMTP             Kind = "smtp"
	KindUnexpected       Kind = "unexpected"
	KindContentTooLarge  Kind = "content_too_large"
)

// SendError is returned by Sender implementations in this package. Its
// message is suitable for storing on the delivery record.
type SendError struct {
	Kind Kind
	Err  error
	// Size is the rejected body size for KindContentTooLarge.
	Size int
}

func (e *SendError) Error() string {
	switch e.Kind {
	case KindContentTooLarge:
		return fmt.Sprintf("Email content too large: %d bytes", e.Size)
	case KindAuth:
		return fmt.Sprintf("SMTP Authentication failed: %v", e.Err)
	case KindRecipientRefused:
		return fmt.Sprintf("Recipient refused: %v", e.Err)
	case KindSMTP:
		return fmt.Sprintf("SMTP error: %v", e.Err)
	default:
		return fmt.Sprintf("Unexpected error: %v", e.Err)
	}
}

func (e *SendError) Unwrap() error { return e.Err }
