package ratelimit

import "github.com/google/uuid"

// IdentifierPrefix starts every identifier minted by NewIdentifier.
const IdentifierPrefix = "visitor_"

// NewIdentifier returns a random identifier for an anonymous visitor.
func NewIdentifier() string {
	return IdentifierPrefix + uuid.NewString()
}
