// Package retry wraps transcription and classification oracle calls with
// exponential backoff. Only errors marked or detected as transient are
// retried; a 400 from a malformed upload fails immediately.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Policy controls backoff between attempts.
type Policy struct {
	// Attempts is the total number of tries, including the first. Zero
	// means the default of 3.
	Attempts int

	// BaseDelay seeds the exponential backoff. Default 500ms.
	BaseDelay time.Duration

	// MaxDelay caps a single sleep. Default 15s.
	MaxDelay time.Duration

	// Operation names the call in retry log lines.
	Operation string
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 15 * time.Second
	}
	return p
}

// Do runs fn until it succeeds, the error is not transient, the attempts are
// exhausted, or ctx is done.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) || attempt == p.Attempts-1 {
			return zero, lastErr
		}

		zap.L().Warn("retrying after transient failure",
			zap.String("operation", p.Operation),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		timer := time.NewTimer(delay(attempt, p))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// delay doubles per attempt with up to 25% random jitter.
func delay(attempt int, p Policy) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	d += d * 0.25 * (rand.Float64()*2 - 1)
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// transientError marks an error as retryable.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as safe to retry. HTTP clients call this for 408, 429,
// and 5xx responses.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// TransientStatus reports whether an HTTP status code is worth retrying.
func TransientStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// IsTransient reports whether err was marked Transient or looks like a
// network-level hiccup.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *transientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
