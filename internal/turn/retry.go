package turn

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/user/secretary/internal/types"
)

// RetryPolicy controls how transient calendar failures are retried with
// exponential backoff.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns a RetryPolicy with sensible defaults:
// 3 attempts, 1s initial delay, 2x multiplier, 30s max delay.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
	}
}

// isRetryable classifies errors by message. Transient errors (connection,
// timeout) are retryable; auth and validation errors are not. Unknown
// errors default to retryable.
func (p *RetryPolicy) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporary failure") {
		return true
	}

	if strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "not found") ||
		strings.Contains(msg, "required") ||
		strings.Contains(msg, "must be") {
		return false
	}

	return true
}

// NextDelay returns the backoff delay for the given attempt (1-indexed).
func (p *RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Execute runs fn up to MaxAttempts times, sleeping between retries.
// Returns nil on success or the last error if all attempts fail or the
// error is non-retryable.
func (p *RetryPolicy) Execute(fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !p.isRetryable(err) {
			return err
		}
		if attempt < p.MaxAttempts {
			time.Sleep(p.NextDelay(attempt))
		}
	}
	return lastErr
}

// RetryGateway wraps a types.Gateway so every operation retries transient
// failures before the error surfaces to the resolver.
type RetryGateway struct {
	inner  types.Gateway
	policy *RetryPolicy
}

// WithRetry wraps a gateway with the given policy (DefaultRetryPolicy
// when nil).
func WithRetry(inner types.Gateway, policy *RetryPolicy) *RetryGateway {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	return &RetryGateway{inner: inner, policy: policy}
}

func (g *RetryGateway) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*types.Event, error) {
	var out []*types.Event
	err := g.policy.Execute(func() error {
		var err error
		out, err = g.inner.ListEvents(ctx, calendarID, timeMin, timeMax)
		return err
	})
	return out, err
}

func (g *RetryGateway) CreateEvent(ctx context.Context, create *types.EventCreate) (*types.Event, error) {
	var out *types.Event
	err := g.policy.Execute(func() error {
		var err error
		out, err = g.inner.CreateEvent(ctx, create)
		return err
	})
	return out, err
}

func (g *RetryGateway) UpdateEvent(ctx context.Context, calendarID, eventID string, update *types.EventUpdate) (*types.Event, error) {
	var out *types.Event
	err := g.policy.Execute(func() error {
		var err error
		out, err = g.inner.UpdateEvent(ctx, calendarID, eventID, update)
		return err
	})
	return out, err
}

func (g *RetryGateway) SearchEvents(ctx context.Context, calendarID, query string) ([]*types.Event, error) {
	var out []*types.Event
	err := g.policy.Execute(func() error {
		var err error
		out, err = g.inner.SearchEvents(ctx, calendarID, query)
		return err
	})
	return out, err
}

func (g *RetryGateway) FreeBusy(ctx context.Context, calendarIDs []string, timeMin, timeMax time.Time) (*types.FreeBusy, error) {
	var out *types.FreeBusy
	err := g.policy.Execute(func() error {
		var err error
		out, err = g.inner.FreeBusy(ctx, calendarIDs, timeMin, timeMax)
		return err
	})
	return out, err
}
