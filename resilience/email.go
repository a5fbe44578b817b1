package resilience

import "context"

// EmailRetryableErrors retries every Kind plus the transient HTTP statuses an
// email relay reports in its messages.
var EmailRetryableErrors = AnyOf(
	RetryOnKinds(KindNetwork, KindTimeout, KindRateLimited, KindUnavailable, KindServer),
	RetryOnPatterns("NETWORK_ERROR", "TIMEOUT", "RATE_LIMIT", "SERVICE_UNAVAILABLE", "500", "502", "503", "504"),
)

// RetryEmailSend is Retry with EmailRetryableErrors, for outbound mail.
func RetryEmailSend(ctx context.Context, config RetryConfig, fn RetryableFunc) error {
	config.RetryableErrors = func(err error) bool {
		return !isTerminal(err) && EmailRetryableErrors(err)
	}
	return Retry(ctx, config, fn)
}
