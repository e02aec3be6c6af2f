package errtrack

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// Init configures Sentry. An empty DSN leaves reporting disabled; Capture
// calls are then no-ops.
func Init(dsn, environment string) error {
	if dsn == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
}

func Capture(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}

// CaptureWithExtra reports err with one extra key attached to the scope.
func CaptureWithExtra(err error, key string, value any) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		if key != "" {
			scope.SetExtra(key, value)
		}
		sentry.CaptureException(err)
	})
}

func Flush() {
	sentry.Flush(2 * time.Second)
}
