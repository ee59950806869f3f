package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/chris/tasky/internal/metrics"
	"github.com/chris/tasky/internal/ratelimit"
)

const (
	// DefaultMaxRetries is the number of extra attempts per model after a
	// provider rate-limit response.
	DefaultMaxRetries = 1
	// DefaultMaxWait caps how long a single retry may wait.
	DefaultMaxWait = 8 * time.Second
	// samplingFreeMarker names models that reject a temperature parameter.
	samplingFreeMarker = "nano"
)

// ErrAllModelsExhausted matches the error returned when neither the primary
// nor any fallback model produced a completion.
var ErrAllModelsExhausted = errors.New("all models exhausted")

// ExhaustedError carries the last failure seen and how long the caller should
// wait before trying again.
type ExhaustedError struct {
	Last       error
	RetryAfter time.Duration
}

func (e *ExhaustedError) Error() string {
	if e.Last == nil {
		return ErrAllModelsExhausted.Error()
	}
	return fmt.Sprintf("%s: %v", ErrAllModelsExhausted, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

func (e *ExhaustedError) Is(target error) bool { return target == ErrAllModelsExhausted }

// Result is a completion together with the model that produced it.
type Result struct {
	*Response
	ModelUsed string
}

// InvokerConfig configures an Invoker. Zero values pick the defaults.
type InvokerConfig struct {
	Fallbacks  []string
	MaxRetries int
	MaxWait    time.Duration
}

// Invoker wraps a Client with per-caller local rate limiting, retry on
// provider throttling and ordered model fallback.
type Invoker struct {
	client     Client
	limiter    *ratelimit.Limiter
	fallbacks  []string
	maxRetries int
	maxWait    time.Duration
	metrics    *metrics.Metrics
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewInvoker(client Client, limiter *ratelimit.Limiter, cfg InvokerConfig, m *metrics.Metrics) *Invoker {
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.DefaultMax, ratelimit.DefaultWindow)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	return &Invoker{
		client:     client,
		limiter:    limiter,
		fallbacks:  cfg.Fallbacks,
		maxRetries: cfg.MaxRetries,
		maxWait:    cfg.MaxWait,
		metrics:    m,
		sleep:      sleepCtx,
	}
}

// WithSleep replaces the wait between retries. Tests use it to avoid real delays.
func (inv *Invoker) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Invoker {
	inv.sleep = fn
	return inv
}

// Limiter returns the limiter guarding provider calls.
func (inv *Invoker) Limiter() *ratelimit.Limiter { return inv.limiter }

// Invoke runs req against req.Model and then each fallback in order. A model
// whose caller window is full is skipped without a call. A rate-limited model
// is retried, then abandoned for the next one; any other provider failure
// ends the invocation.
func (inv *Invoker) Invoke(ctx context.Context, callerKey string, req Request) (*Result, error) {
	models := ModelOrder(req.Model, inv.fallbacks)

	var last error
	var wait time.Duration
	for _, model := range models {
		decision := inv.limiter.Check(callerKey + ":" + model)
		if !decision.Admitted {
			log.Printf("llm: local limit for %s on %s, retry in %ds", callerKey, model, decision.RetryAfterSeconds())
			inv.metrics.LocalLimited(model)
			last = fmt.Errorf("local rate limit for %s", model)
			wait = minPositive(wait, decision.RetryAfter)
			continue
		}

		attempt := req
		attempt.Model = model
		if strings.Contains(model, samplingFreeMarker) {
			attempt.Temperature = nil
		}

		resp, err := inv.callWithRetries(ctx, attempt)
		if err == nil {
			return &Result{Response: resp, ModelUsed: model}, nil
		}
		if !IsRateLimited(err) {
			return nil, err
		}
		last = err
		var ce *CallError
		if errors.As(err, &ce) {
			wait = minPositive(wait, ce.RetryAfter)
		}
		log.Printf("llm: %s rate limited, trying next model", model)
	}

	if wait <= 0 {
		wait = inv.limiter.Window()
	}
	return nil, &ExhaustedError{Last: last, RetryAfter: wait}
}

// callWithRetries performs one call plus up to maxRetries retries on
// provider throttling.
func (inv *Invoker) callWithRetries(ctx context.Context, req Request) (*Response, error) {
	for attempt := 0; ; attempt++ {
		start := time.Now()
		resp, err := inv.client.Complete(ctx, req)
		if err == nil {
			inv.metrics.ProviderCall(req.Model, "ok", time.Since(start))
			return resp, nil
		}

		var ce *CallError
		if !errors.As(err, &ce) {
			ce = &CallError{Kind: FailureProvider, Model: req.Model, Err: err}
		}
		inv.metrics.ProviderCall(req.Model, ce.Kind.String(), time.Since(start))

		if ce.Kind != FailureRateLimited || attempt >= inv.maxRetries {
			return nil, ce
		}
		if ce.RetryAfter > inv.maxWait {
			return nil, ce
		}

		wait := ce.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}
		log.Printf("llm: %s rate limited, retrying in %s", req.Model, wait)
		if err := inv.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// ModelOrder returns primary followed by the fallbacks, blanks and duplicates
// removed.
func ModelOrder(primary string, fallbacks []string) []string {
	seen := make(map[string]bool, len(fallbacks)+1)
	var out []string
	for _, m := range append([]string{primary}, fallbacks...) {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// ParseModelList splits a comma-separated model list.
func ParseModelList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func minPositive(a, b time.Duration) time.Duration {
	if a <= 0 {
		return b
	}
	if b > 0 && b < a {
		return b
	}
	return a
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
