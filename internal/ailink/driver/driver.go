package driver

import (
	"context"
	"encoding/json"
	"time"
)

// Poster sends a JSON payload to an endpoint and returns the decoded-as-raw
// JSON response body.
type Poster interface {
	PostJSON(ctx context.Context, url string, payload any, policy Policy) (json.RawMessage, error)
}

// Policy controls retries for a single outbound call.
type Policy struct {
	// MaxRetries is the total number of attempts, including the first one.
	MaxRetries int
	// BaseDelay is the wait before the second attempt; it doubles afterwards.
	BaseDelay time.Duration
}

// DefaultPolicy is five attempts with waits of 1s, 2s, 4s and 8s.
var DefaultPolicy = Policy{MaxRetries: 5, BaseDelay: time.Second}

// Budget is the longest a call under p can run when every attempt takes
// perAttempt: all attempts plus the waits between them.
func (p Policy) Budget(perAttempt time.Duration) time.Duration {
	p = p.normalized()
	if perAttempt <= 0 {
		perAttempt = defaultAttemptTimeout
	}
	waits := p.BaseDelay * time.Duration((1<<uint(p.MaxRetries-1))-1)
	return time.Duration(p.MaxRetries)*perAttempt + waits
}

func (p Policy) normalized() Policy {
	if p.MaxRetries < 1 {
		p.MaxRetries = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultPolicy.BaseDelay
	}
	return p
}
