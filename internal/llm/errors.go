package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FailureKind tags a provider failure so retry and fallback logic can branch
// on it instead of on error text.
type FailureKind int

const (
	FailureProvider FailureKind = iota
	FailureRateLimited
	FailureTransport
)

func (k FailureKind) String() string {
	switch k {
	case FailureRateLimited:
		return "rate_limited"
	case FailureTransport:
		return "transport"
	default:
		return "provider"
	}
}

// CallError is the classified result of a failed provider call. RetryAfter is
// zero when the provider did not suggest a wait.
type CallError struct {
	Kind       FailureKind
	Model      string
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s call to %s: %v", e.Kind, e.Model, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is a rate-limited provider failure.
func IsRateLimited(err error) bool {
	var ce *CallError
	return errors.As(err, &ce) && ce.Kind == FailureRateLimited
}

var (
	rateLimitText = regexp.MustCompile(`(?i)rate\s*limit`)
	waitSeconds   = regexp.MustCompile(`(?i)wait\s+(\d+)\s*seconds?`)
)

// classify turns an SDK error into a CallError. status and header come from
// the SDK's typed error when there is one; the message patterns are only a
// fallback for providers that report throttling in the body.
func classify(model string, err error, status int, header http.Header) *CallError {
	ce := &CallError{Kind: FailureProvider, Model: model, StatusCode: status, Err: err}

	switch {
	case status == http.StatusTooManyRequests:
		ce.Kind = FailureRateLimited
	case status == 0 && isTransport(err):
		ce.Kind = FailureTransport
	case rateLimitText.MatchString(err.Error()):
		ce.Kind = FailureRateLimited
	}

	if ce.Kind == FailureRateLimited {
		ce.RetryAfter = retryAfter(header, err.Error())
	}
	return ce
}

func isTransport(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// retryAfter reads the suggested wait from Retry-After style headers, then
// from "wait N seconds" in the message.
func retryAfter(header http.Header, msg string) time.Duration {
	if header != nil {
		if v := strings.TrimSpace(header.Get("retry-after-ms")); v != "" {
			if ms, err := strconv.ParseFloat(v, 64); err == nil && ms > 0 {
				return time.Duration(ms * float64(time.Millisecond))
			}
		}
		if v := strings.TrimSpace(header.Get("Retry-After")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				return time.Duration(n) * time.Second
			}
			if at, err := http.ParseTime(v); err == nil {
				if d := time.Until(at); d > 0 {
					return d
				}
			}
		}
	}
	if m := waitSeconds.FindStringSubmatch(msg); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 0
}
