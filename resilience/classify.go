package resilience

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// Classifier decides whether an error is worth another attempt.
type Classifier func(error) bool

// RetryOnKinds matches errors marked with any of kinds.
func RetryOnKinds(kinds ...Kind) Classifier {
	return func(err error) bool {
		for _, k := range kinds {
			if IsKind(err, k) {
				return true
			}
		}
		return false
	}
}

// RetryOnPatterns matches errors whose message contains any of patterns,
// ignoring case.
func RetryOnPatterns(patterns ...string) Classifier {
	upper := make([]string, len(patterns))
	for i, p := range patterns {
		upper[i] = strings.ToUpper(p)
	}
	return func(err error) bool {
		msg := strings.ToUpper(err.Error())
		for _, p := range upper {
			if strings.Contains(msg, p) {
				return true
			}
		}
		return false
	}
}

// AnyOf matches when any classifier matches.
func AnyOf(classifiers ...Classifier) Classifier {
	return func(err error) bool {
		for _, c := range classifiers {
			if c(err) {
				return true
			}
		}
		return false
	}
}

var defaultRetryable = AnyOf(
	RetryOnKinds(KindNetwork, KindTimeout, KindRateLimited),
	RetryOnPatterns(KindNetwork.String(), KindTimeout.String(), KindRateLimited.String()),
)

// DefaultRetryableErrors retries network, timeout and rate limit failures,
// whether marked with a Kind or only named in the message. Cancellation and
// an open circuit are never retried.
func DefaultRetryableErrors(err error) bool {
	return !isTerminal(err) && defaultRetryable(err)
}

func isTerminal(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrCircuitOpen)
}
