package agent

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"
)

// RetryPolicy controls how failed model calls are retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 30 * time.Second
)

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Backoff returns the wait before retry number n (1-based): the base delay
// doubled per retry and capped at MaxDelay.
func (p RetryPolicy) Backoff(n int) time.Duration {
	p = p.withDefaults()
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// statusPatterns find the HTTP status in provider error text, such as
// "status code: 401" (openai, ollama) or `POST "...": 401 Unauthorized`
// (anthropic).
var statusPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bstatus(?:[ _]?code)?\s*[:=]\s*(\d{3})\b`),
	regexp.MustCompile(`:\s(\d{3})\s[A-Z][a-z]`),
}

// statusCode returns the HTTP status carried by err, or 0 if none is found.
func statusCode(err error) int {
	var coder interface{ StatusCode() int }
	if errors.As(err, &coder) {
		return coder.StatusCode()
	}
	msg := err.Error()
	for _, re := range statusPatterns {
		if m := re.FindStringSubmatch(msg); m != nil {
			code, _ := strconv.Atoi(m[1])
			return code
		}
	}
	return 0
}

// retryable reports whether a failed model call may succeed when repeated.
// Client errors other than timeouts, conflicts and rate limits never do.
func retryable(err error) bool {
	code := statusCode(err)
	if code < 400 || code >= 500 {
		return true
	}
	switch code {
	case 408, 409, 425, 429:
		return true
	}
	return false
}
