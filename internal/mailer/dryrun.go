package mailer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DryRunSender logs messages instead of sending them. It is used when no
// SMTP relay is configured so the rest of the pipeline still runs.
type DryRunSender struct {
	MaxContentLength int
}

func (d DryRunSender) Send(ctx context.Context, e *Email) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, &SendError{Kind: KindUnexpected, Err: err}
	}
	if d.MaxContentLength > 0 && len(e.HTML) > d.MaxContentLength {
		return Receipt{}, &SendError{Kind: KindContentTooLarge, Size: len(e.HTML), Err: ErrContentTooLarge}
	}
	id := "<" + uuid.NewString() + "@dry-run>"
	log.Info().
		Str("to", e.To).
		Str("subject", e.Subject).
		Int("bytes", len(e.HTML)).
		Str("message_id", id).
		Msg("dry-run email")
	return Receipt{MessageID: id, SentAt: time.Now().UTC()}, nil
}
