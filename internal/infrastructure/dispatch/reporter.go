package dispatch

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

// NoopReporter discards reports.
type NoopReporter struct{}

func (NoopReporter) Report(context.Context, string, error) {}

// SentryReporter forwards side-effect failures to Sentry tagged with their kind.
type SentryReporter struct{}

// InitSentry configures the global Sentry client. It returns nil when dsn is empty.
func InitSentry(dsn, environment, release string) (*SentryReporter, error) {
	if dsn == "" {
		return nil, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	}); err != nil {
		return nil, err
	}
	return &SentryReporter{}, nil
}

func (SentryReporter) Report(_ context.Context, kind string, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("side_effect", kind)
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events to be delivered.
func (SentryReporter) Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
