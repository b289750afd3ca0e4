// Package mailer delivers rendered digest emails over SMTP.
//
// SMTPSender wraps github.com/wneessen/go-mail: one dial per message, STARTTLS
// required before authentication when TLS is enabled, and the session closed
// on every path. Failures come back as *SendError so callers can branch on
// Kind without parsing strings.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/wneessen/go-mail"
	"golang.org/x/time/rate"
)

// Email is one outgoing HTML message.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// Receipt describes an accepted message.
type Receipt struct {
	MessageID string
	SentAt    time.Time
}

// Sender is the transport seam used by the delivery orchestrator.
type Sender interface {
	Send(ctx context.Context, e *Email) (Receipt, error)
}

// Config is the SMTP account and the outbound limits.
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	UseTLS    bool
	Timeout   time.Duration

	MaxSubjectLength int
	MaxContentLength int
	RatePerHour      int
}

// From renders the sender mailbox as `Name <addr>`.
func (c Config) From() string {
	if c.FromName == "" {
		return c.FromEmail
	}
	return fmt.Sprintf("%s <%s>", c.FromName, c.FromEmail)
}

// SMTPSender sends through a single SMTP relay.
type SMTPSender struct {
	cfg     Config
	limiter *rate.Limiter
	now     func() time.Time

	// deliver performs the network exchange; replaced in tests.
	deliver func(ctx context.Context, m *mail.Msg) error
}

// Option configures an SMTPSender.
type Option func(*SMTPSender)

// WithLimiter overrides the pacing limiter derived from Config.RatePerHour.
func WithLimiter(l *rate.Limiter) Option {
	return func(s *SMTPSender) {
		if l != nil {
			s.limiter = l
		}
	}
}

// NewSMTPSender returns a sender for cfg.
func NewSMTPSender(cfg Config, opts ...Option) *SMTPSender {
	s := &SMTPSender{
		cfg:     cfg,
		limiter: newLimiter(cfg.RatePerHour),
		now:     time.Now,
	}
	s.deliver = s.dialAndSend
	for _, o := range opts {
		o(s)
	}
	return s
}

// newLimiter paces perHour messages evenly; zero or less disables pacing.
func newLimiter(perHour int) *rate.Limiter {
	if perHour <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := perHour / 60
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), burst)
}

// Send validates e, waits for a pacing slot and hands the message to the
// relay. The content size check happens before any I/O.
func (s *SMTPSender) Send(ctx context.Context, e *Email) (Receipt, error) {
	if e == nil {
		return Receipt{}, &SendError{Kind: KindUnexpected, Err: errors.New("nil email")}
	}
	if max := s.cfg.MaxContentLength; max > 0 && len(e.HTML) > max {
		return Receipt{}, &SendError{Kind: KindContentTooLarge, Size: len(e.HTML), Err: ErrContentTooLarge}
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return Receipt{}, &SendError{Kind: KindUnexpected, Err: err}
	}

	m, err := s.buildMessage(e)
	if err != nil {
		return Receipt{}, &SendError{Kind: KindUnexpected, Err: err}
	}
	if err := s.deliver(ctx, m); err != nil {
		se := classify(err)
		log.Warn().Err(err).Str("kind", string(se.Kind)).Str("to", e.To).Msg("smtp send failed")
		return Receipt{}, se
	}
	return Receipt{MessageID: m.GetMessageID(), SentAt: s.now().UTC()}, nil
}

func (s *SMTPSender) buildMessage(e *Email) (*mail.Msg, error) {
	m := mail.NewMsg()
	if s.cfg.FromName != "" {
		if err := m.FromFormat(s.cfg.FromName, s.cfg.FromEmail); err != nil {
			return nil, fmt.Errorf("from: %w", err)
		}
	} else if err := m.From(s.cfg.FromEmail); err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	if err := m.To(e.To); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	m.Subject(TruncateSubject(e.Subject, s.cfg.MaxSubjectLength))
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextHTML, e.HTML)
	return m, nil
}

func (s *SMTPSender) dialAndSend(ctx context.Context, m *mail.Msg) error {
	var opts []mail.Option
	if s.cfg.Port > 0 {
		opts = append(opts, mail.WithPort(s.cfg.Port))
	}
	if s.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.cfg.Timeout))
	}
	if s.cfg.UseTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	c, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return err
	}
	// DialAndSendWithContext closes the connection on every return path.
	return c.DialAndSendWithContext(ctx, m)
}

// TruncateSubject cuts s to at most max runes; max <= 0 disables the cap.
func TruncateSubject(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// classify maps a relay error to a SendError kind.
func classify(err error) *SendError {
	var se *SendError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &SendError{Kind: KindUnexpected, Err: err}
	}

	var tp *textproto.Error
	if errors.As(err, &tp) {
		switch tp.Code {
		case 530, 534, 535, 538:
			return &SendError{Kind: KindAuth, Err: err}
		}
	}

	var ms *mail.SendError
	if errors.As(err, &ms) {
		if ms.Reason == mail.ErrSMTPRcptTo {
			return &SendError{Kind: KindRecipientRefused, Err: err}
		}
		return &SendError{Kind: KindSMTP, Err: err}
	}
	if tp != nil {
		return &SendError{Kind: KindSMTP, Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "authenticat"):
		return &SendError{Kind: KindAuth, Err: err}
	case strings.Contains(msg, "smtp"), strings.Contains(msg, "starttls"):
		return &SendError{Kind: KindSMTP, Err: err}
	}
	return &SendError{Kind: KindUnexpected, Err: err}
}
