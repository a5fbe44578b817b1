// Package contact accepts contact form submissions and forwards them by email.
package contact

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cyberfolio/folio-core/logger"
	"github.com/cyberfolio/folio-core/ratelimit"
	"github.com/cyberfolio/folio-core/resilience"
	"github.com/cyberfolio/folio-core/sanitize"
	"github.com/google/uuid"
)

// ErrRelayNotConfigured is returned when no email relay is available.
var ErrRelayNotConfigured = errors.New("email service is not configured")

// ErrFormInvalid is the error reported to the tracker for a rejected form.
var ErrFormInvalid = errors.New("form validation failed")

const autoReplyTimeout = 30 * time.Second

// RateLimitError is returned when the submitter has used up their quota.
type RateLimitError struct {
	RetryAfter time.Duration
	Remaining  int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, please wait %d seconds", e.Seconds())
}

// Seconds is RetryAfter rounded up to whole seconds.
func (e *RateLimitError) Seconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// ValidationError lists every problem found in a submission.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid submission: " + strings.Join(e.Problems, "; ")
}

type Form struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Receipt describes an accepted submission.
type Receipt struct {
	ID        string    `json:"id"`
	SentAt    time.Time `json:"sent_at"`
	Remaining int       `json:"remaining"`
	AutoReply bool      `json:"auto_reply"`
}

// Sender delivers one templated email.
type Sender interface {
	Send(ctx context.Context, templateID string, params map[string]string) error
	Configured() bool
}

type Config struct {
	// TemplateID renders the notification to the site owner.
	TemplateID string
	// AutoReplyTemplateID renders the acknowledgement to the submitter. Empty skips it.
	AutoReplyTemplateID string
	// ReplyTo is the owner address put on the acknowledgement.
	ReplyTo string
}

type Option func(*Service)

// WithRetryConfig overrides resilience.DefaultRetryConfig for outbound email.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(s *Service) { s.retry = cfg }
}

// WithErrorReporter forwards rejected forms and failed emails to an error tracker.
func WithErrorReporter(report func(error)) Option {
	return func(s *Service) { s.report = report }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	limiter *ratelimit.Limiter
	sender  Sender
	config  Config
	retry   resilience.RetryConfig
	logger  logger.Logger
	report  func(error)
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewService returns a Service. A nil sender behaves as an unconfigured relay.
func NewService(log logger.Logger, limiter *ratelimit.Limiter, sender Sender, config Config, opts ...Option) *Service {
	s := &Service{
		limiter: limiter,
		sender:  sender,
		config:  config,
		retry:   resilience.DefaultRetryConfig(),
		logger:  log.WithPrefix("[contact]"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retry.Logger == nil {
		s.retry.Logger = s.logger
	}
	return s
}

func (s *Service) configured() bool {
	return s.sender != nil && s.sender.Configured() && s.config.TemplateID != ""
}

// Submit rate limits, sanitizes and forwards a submission from identifier.
// The acknowledgement email is sent in the background and never fails the call.
func (s *Service) Submit(ctx context.Context, identifier string, form Form) (Receipt, error) {
	decision, err := s.limiter.Check(ctx, identifier)
	if err != nil {
		return Receipt{}, errors.Wrap(err, "rate limit check")
	}
	if !decision.Allowed {
		s.logger.Info("rate limited %s for %s", identifier, decision.RetryAfter)
		return Receipt{}, &RateLimitError{RetryAfter: decision.RetryAfter, Remaining: decision.Remaining}
	}

	clean := sanitize.Form(form.Name, form.Email, form.Message)
	if !clean.Valid() {
		s.logger.Info("rejected submission from %s: %s", sanitize.MaskEmail(clean.Email), strings.Join(clean.Errors, ", "))
		s.reportError(errors.WithSafeDetails(ErrFormInvalid, "errors=%s", errors.Safe(strings.Join(clean.Errors, "; "))))
		return Receipt{}, &ValidationError{Problems: clean.Errors}
	}

	if !s.configured() {
		s.logger.Error("email relay is not configured")
		return Receipt{}, ErrRelayNotConfigured
	}

	sentAt := s.now()
	params := map[string]string{
		"from_name":  clean.Name,
		"from_email": clean.Email,
		"message":    clean.Message,
		"reply_to":   clean.Email,
		"timestamp":  sentAt.Format(time.RFC1123),
	}
	if err := resilience.RetryEmailSend(ctx, s.retry, func(ctx context.Context) error {
		return s.sender.Send(ctx, s.config.TemplateID, params)
	}); err != nil {
		s.logger.Error("send from %s failed: %s", sanitize.MaskEmail(clean.Email), err)
		err = errors.Wrap(err, "send notification")
		s.reportError(errors.WithSafeDetails(err, "identifier=%s", errors.Safe(identifier)))
		return Receipt{}, err
	}

	receipt := Receipt{
		ID:        uuid.NewString(),
		SentAt:    sentAt,
		Remaining: decision.Remaining,
		AutoReply: s.config.AutoReplyTemplateID != "",
	}
	s.logger.Info("forwarded message %s from %s", receipt.ID, sanitize.MaskEmail(clean.Email))

	if receipt.AutoReply {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.autoReply(context.WithoutCancel(ctx), clean)
		}()
	} else {
		s.logger.Debug("auto-reply template not configured, skipping")
	}
	return receipt, nil
}

func (s *Service) autoReply(ctx context.Context, clean sanitize.Result) {
	ctx, cancel := context.WithTimeout(ctx, autoReplyTimeout)
	defer cancel()
	params := map[string]string{
		"to_name":   clean.Name,
		"to_email":  clean.Email,
		"reply_to":  s.config.ReplyTo,
		"timestamp": s.now().Format(time.RFC1123),
	}
	err := resilience.RetryEmailSend(ctx, s.retry, func(ctx context.Context) error {
		return s.sender.Send(ctx, s.config.AutoReplyTemplateID, params)
	})
	if err != nil {
		s.logger.Warn("auto-reply to %s failed: %s", sanitize.MaskEmail(clean.Email), err)
		s.reportError(errors.WithSafeDetails(errors.Wrap(err, "send auto-reply"), "type=%s", errors.Safe("auto-reply")))
		return
	}
	s.logger.Debug("auto-reply sent to %s", sanitize.MaskEmail(clean.Email))
}

func (s *Service) reportError(err error) {
	if s.report != nil {
		s.report(err)
	}
}

// Wait blocks until every background auto-reply has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}
