package models

import (
	"fmt"
	"time"

	dErrors "teamreg/pkg/domain-errors"
)

// EndpointClass categorizes endpoints for differentiated rate limiting.
type EndpointClass string

const (
	// ClassSubmit: registration submissions - POST /registrations
	ClassSubmit EndpointClass = "submit"
	// ClassLookup: advisory checks - POST /validate-email
	ClassLookup EndpointClass = "lookup"
	// ClassAdmin: operator endpoints - /admin/*
	ClassAdmin EndpointClass = "admin"
)

// IsValid checks if the endpoint class is one of the supported enum values.
func (c EndpointClass) IsValid() bool {
	switch c {
	case ClassSubmit, ClassLookup, ClassAdmin:
		return true
	}
	return false
}

// ParseEndpointClass validates a configured class name.
func ParseEndpointClass(s string) (EndpointClass, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "endpoint class cannot be empty")
	}
	c := EndpointClass(s)
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid endpoint class: must be 'submit', 'lookup' or 'admin'")
	}
	return c, nil
}

// Limit is the number of requests allowed per sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// DefaultLimits are per client IP.
func DefaultLimits() map[EndpointClass]Limit {
	return map[EndpointClass]Limit{
		ClassSubmit: {Requests: 10, Window: time.Minute},
		ClassLookup: {Requests: 60, Window: time.Minute},
		ClassAdmin:  {Requests: 120, Window: time.Minute},
	}
}

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// KeyPrefix namespaces bucket keys.
type KeyPrefix string

const KeyPrefixIP KeyPrefix = "ip"

// RateLimitKey identifies one bucket: prefix, identifier and class.
type RateLimitKey struct {
	Prefix     KeyPrefix
	Identifier string
	Class      EndpointClass
}

func NewRateLimitKey(prefix KeyPrefix, identifier string, class EndpointClass) RateLimitKey {
	return RateLimitKey{Prefix: prefix, Identifier: identifier, Class: class}
}

func (k RateLimitKey) String() string {
	return fmt.Sprintf("ratelimit:%s:%s:%s", k.Prefix, SanitizeKeySegment(k.Identifier), k.Class)
}
