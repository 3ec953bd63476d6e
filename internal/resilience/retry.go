// Package resilience wraps provider and store calls with retries. The
// pipelines themselves never retry; callers that want backoff run
// operations through Retry.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// permanentErrors are validation and configuration failures that retrying
// can never fix.
var permanentErrors = []error{
	vectorstore.ErrInvalidConfig,
	vectorstore.ErrIsolationViolation,
	vectorstore.ErrInvalidRecord,
	vectorstore.ErrInvalidQuery,
	vectorstore.ErrInvalidCollectionName,
	vectorstore.ErrCollectionNotFound,
	embeddings.ErrInvalidConfig,
	embeddings.ErrEmptyInput,
}

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the total number of tries, including the first.
	// Default: 3.
	MaxAttempts int `koanf:"max_attempts"`

	// BaseDelay is the backoff before the first retry. Default: 100ms.
	BaseDelay time.Duration `koanf:"base_delay"`

	// MaxDelay caps the backoff. Default: 30s.
	MaxDelay time.Duration `koanf:"max_delay"`

	// RetryableStatusCodes, when set, replaces the default HTTP
	// classification: only the listed codes are retried.
	RetryableStatusCodes []int `koanf:"retryable_status_codes"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
}

// statusCoder is satisfied by transport errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// Retryer retries operations with exponential backoff and jitter.
type Retryer struct {
	config Config
	logger *zap.Logger
	// rand is the jitter source, swappable in tests.
	rand func() float64
}

// New creates a Retryer.
func New(config Config, logger *zap.Logger) *Retryer {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retryer{config: config, logger: logger, rand: rand.Float64}
}

// Do runs op until it succeeds, fails non-retryably, or attempts run out.
// Backoff before retry n is min(maxDelay, base*2^n) scaled by a random
// factor in [0.5, 1.0).
func (r *Retryer) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				r.logger.Info("operation recovered after retries",
					zap.String("operation", name),
					zap.Int("attempts", attempt+1))
			}
			return nil
		}
		lastErr = err

		if !r.retryable(err) {
			r.logger.Debug("error is not retryable",
				zap.String("operation", name),
				zap.Error(err))
			return err
		}
		if attempt == r.config.MaxAttempts-1 {
			break
		}

		delay := r.backoff(attempt)
		r.logger.Info("retrying after transient error",
			zap.String("operation", name),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", r.config.MaxAttempts),
			zap.Duration("backoff", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation canceled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("operation %s failed after %d attempts: %w", name, r.config.MaxAttempts, lastErr)
}

// backoff computes the delay before retry number attempt (zero-based).
func (r *Retryer) backoff(attempt int) time.Duration {
	delay := r.config.BaseDelay << uint(attempt)
	if delay > r.config.MaxDelay || delay <= 0 {
		delay = r.config.MaxDelay
	}
	// Jitter in [0.5, 1.0) spreads concurrent retriers apart.
	return time.Duration(float64(delay) * (0.5 + r.rand()/2))
}

// retryable classifies an error. Context cancellation is never retried.
// HTTP: 4xx client errors are never retried; 5xx and 429 are, unless an
// explicit allowlist replaces the default. gRPC: only transient codes.
// Everything else is treated as a transport-level failure and retried.
func (r *Retryer) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	for _, permanent := range permanentErrors {
		if errors.Is(err, permanent) {
			return false
		}
	}

	var coder statusCoder
	if errors.As(err, &coder) {
		return r.retryableStatus(coder.StatusCode())
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return true
		default:
			return false
		}
	}

	return true
}

func (r *Retryer) retryableStatus(code int) bool {
	if len(r.config.RetryableStatusCodes) > 0 {
		for _, allowed := range r.config.RetryableStatusCodes {
			if code == allowed {
				return true
			}
		}
		return false
	}
	if code == 429 {
		return true
	}
	return code >= 500 && code < 600
}
