package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	apperrors "genstudio/internal/errors"
	"genstudio/internal/model"
)

const (
	// DefaultMaxAttempts bounds the attempts of one Generate call.
	DefaultMaxAttempts = 3
	// DefaultRetryDelay is the base of the linear backoff between attempts.
	DefaultRetryDelay = 500 * time.Millisecond
)

// ErrRetryLimitReached is returned, wrapping the last overload error, when
// every attempt was rejected as overloaded.
var ErrRetryLimitReached = errors.New("retry limit reached")

// GenerateFunc performs one generation attempt.
type GenerateFunc func(ctx context.Context, req GenerationRequest) (*model.GenerationResult, error)

// AttemptObserver is told about every attempt as it starts.
type AttemptObserver func(attempt, maxAttempts int)

// Controller retries generation attempts that were rejected as overloaded.
// Every other outcome settles the call immediately. A Controller runs one call
// at a time: starting a new one aborts the previous.
type Controller struct {
	generate    GenerateFunc
	maxAttempts int
	retryDelay  time.Duration
	observer    AttemptObserver

	mu        sync.Mutex
	seq       uint64
	attempt   int
	exhausted bool
	cancel    context.CancelFunc
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRetryDelay overrides DefaultRetryDelay.
func WithRetryDelay(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// WithAttemptObserver registers fn to be called as each attempt starts.
func WithAttemptObserver(fn AttemptObserver) ControllerOption {
	return func(c *Controller) { c.observer = fn }
}

// NewController wraps generate with the retry policy.
func NewController(generate GenerateFunc, opts ...ControllerOption) *Controller {
	c := &Controller{
		generate:    generate,
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attempt returns the current attempt number, 0 when idle.
func (c *Controller) Attempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// Retrying reports whether a call is in flight past its first attempt.
func (c *Controller) Retrying() bool {
	return c.Attempt() > 1
}

// Exhausted reports whether the last call used every attempt and was still
// overloaded. It stays set until the next Generate.
func (c *Controller) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}

// Cancel aborts the in-flight call, if any, including a pending backoff, and
// leaves the controller idle.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abortLocked()
}

// Generate runs req with up to MaxAttempts attempts. Only overload rejections
// are retried, after RetryDelay*attempt.
func (c *Controller) Generate(ctx context.Context, req GenerationRequest) (*model.GenerationResult, error) {
	c.mu.Lock()
	c.abortLocked()
	callCtx, cancel := context.WithCancel(ctx)
	seq := c.seq
	c.cancel = cancel
	c.exhausted = false
	c.mu.Unlock()
	defer c.settle(seq, cancel)

	attempt := 0
	backoff := retry.WithMaxRetries(uint64(c.maxAttempts-1), retry.BackoffFunc(func() (time.Duration, bool) {
		return c.retryDelay * time.Duration(attempt), false
	}))

	result, err := retry.DoValue(callCtx, backoff, func(ctx context.Context) (*model.GenerationResult, error) {
		attempt++
		if !c.begin(seq, attempt) {
			return nil, context.Canceled
		}

		res, err := c.generate(ctx, req)
		switch {
		case err == nil:
			return res, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case apperrors.IsOverloaded(err):
			return nil, retry.RetryableError(err)
		default:
			return nil, err
		}
	})
	if err == nil {
		return result, nil
	}

	if apperrors.IsOverloaded(err) && attempt >= c.maxAttempts {
		c.markExhausted(seq)
		return nil, fmt.Errorf("%w: %w", ErrRetryLimitReached, err)
	}
	return nil, err
}

// begin records attempt n for call seq. It returns false when the call has
// been superseded or cancelled.
func (c *Controller) begin(seq uint64, n int) bool {
	c.mu.Lock()
	if c.seq != seq {
		c.mu.Unlock()
		return false
	}
	c.attempt = n
	observer, limit := c.observer, c.maxAttempts
	c.mu.Unlock()

	if observer != nil {
		observer(n, limit)
	}
	return true
}

func (c *Controller) markExhausted(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq == seq {
		c.exhausted = true
	}
}

func (c *Controller) settle(seq uint64, cancel context.CancelFunc) {
	cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq == seq {
		c.attempt = 0
		c.cancel = nil
	}
}

// abortLocked cancels the current call and invalidates its sequence number so
// its late bookkeeping is ignored.
func (c *Controller) abortLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.seq++
	c.attempt = 0
}
