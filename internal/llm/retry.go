package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"voice-intake/internal/shared/metrics"
	"voice-intake/internal/shared/telemetry"
)

const retryBaseDelay = 300 * time.Millisecond

type retrying struct {
	base    Client
	timeout time.Duration
	delay   time.Duration
}

// WithRetry bounds every call to base by timeout and retries transient failures once.
// A non-positive timeout leaves calls bounded only by the caller's context.
func WithRetry(base Client, timeout time.Duration) Client {
	if base == nil {
		return nil
	}
	return retrying{base: base, timeout: timeout, delay: retryBaseDelay}
}

func (r retrying) Extract(ctx context.Context, req ExtractionRequest) (ExtractionResult, error) {
	var out ExtractionResult
	err := r.do(ctx, "extract", func(ctx context.Context) error {
		res, err := r.base.Extract(ctx, req)
		out = res
		return err
	})
	return out, err
}

func (r retrying) Interpret(ctx context.Context, req InterpretRequest) (Interpretation, error) {
	var out Interpretation
	err := r.do(ctx, "interpret", func(ctx context.Context) error {
		res, err := r.base.Interpret(ctx, req)
		out = res
		return err
	})
	return out, err
}

func (r retrying) do(ctx context.Context, op string, call func(context.Context) error) error {
	err := r.attempt(ctx, call)
	if err == nil || !shouldRetry(err) || ctx.Err() != nil {
		return err
	}

	metrics.IncRemoteRetry()
	telemetry.Warn("llm retry", map[string]any{"op": op, "attempt": 1, "error": err})
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return r.attempt(ctx, call)
}

func (r retrying) attempt(ctx context.Context, call func(context.Context) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	start := time.Now()
	err := call(ctx)
	metrics.ObserveRemoteCallMs(metrics.Since(start))
	return err
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrNotConfigured) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "timeout") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "eof") {
		return true
	}
	return false
}
