package telemetry

import (
	"context"
	"regexp"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/getsentry/sentry-go"
)

// RedactedEmail replaces every address found in an outgoing error event.
const RedactedEmail = "[EMAIL_REDACTED]"

const defaultFlushTimeout = 5 * time.Second

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// InitErrorReporting points the global Sentry hub at dsn. An empty dsn
// leaves reporting disabled. The returned func flushes queued events.
func InitErrorReporting(dsn string, environment string) (ShutdownFunc, error) {
	if dsn == "" {
		return noop, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		BeforeSend:  redactEvent,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error initializing sentry")
	}
	return func(ctx context.Context) error {
		timeout := defaultFlushTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if !sentry.Flush(timeout) {
			return errors.New("sentry flush timed out")
		}
		return nil
	}, nil
}

// ReportError sends err to the error tracker. It is a no-op until
// InitErrorReporting has installed a client.
func ReportError(err error) {
	errors.ReportError(err)
}

func redactEmails(s string) string {
	return emailPattern.ReplaceAllString(s, RedactedEmail)
}

func redactEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.Message = redactEmails(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = redactEmails(event.Exception[i].Value)
	}
	for _, crumb := range event.Breadcrumbs {
		crumb.Message = redactEmails(crumb.Message)
	}
	if event.Request != nil {
		event.Request.URL = redactEmails(event.Request.URL)
		event.Request.QueryString = redactEmails(event.Request.QueryString)
	}
	return event
}
