package resilience

import (
	"github.com/cockroachdb/errors"
)

// Kind classifies a failure at the point where it happened so callers can
// decide whether to retry without inspecting message text.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNetwork is a transport failure: refused, reset, DNS.
	KindNetwork
	// KindTimeout is an operation that did not answer in time.
	KindTimeout
	// KindRateLimited is an upstream refusal asking the caller to slow down.
	KindRateLimited
	// KindUnavailable is an upstream that is temporarily out of service.
	KindUnavailable
	// KindServer is any other upstream 5xx.
	KindServer
)

var kindMarkers = map[Kind]error{
	KindNetwork:     errors.New("resilience: network error"),
	KindTimeout:     errors.New("resilience: timeout"),
	KindRateLimited: errors.New("resilience: rate limited"),
	KindUnavailable: errors.New("resilience: service unavailable"),
	KindServer:      errors.New("resilience: server error"),
}

var kindOrder = []Kind{KindNetwork, KindTimeout, KindRateLimited, KindUnavailable, KindServer}

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "NETWORK_ERROR"
	case KindTimeout:
		return "TIMEOUT"
	case KindRateLimited:
		return "RATE_LIMIT"
	case KindUnavailable:
		return "SERVICE_UNAVAILABLE"
	case KindServer:
		return "SERVER_ERROR"
	default:
		return "UNKNOWN"
	}
}

// MarkKind tags err with kind. The message is unchanged. A nil error or
// KindUnknown returns err as-is.
func MarkKind(err error, kind Kind) error {
	marker, ok := kindMarkers[kind]
	if err == nil || !ok {
		return err
	}
	return errors.Mark(err, marker)
}

// IsKind reports whether err, or anything it wraps, was marked with kind.
func IsKind(err error, kind Kind) bool {
	marker, ok := kindMarkers[kind]
	return ok && err != nil && errors.Is(err, marker)
}

// KindOf returns the first kind err was marked with, or KindUnknown.
func KindOf(err error) Kind {
	for _, k := range kindOrder {
		if IsKind(err, k) {
			return k
		}
	}
	return KindUnknown
}
