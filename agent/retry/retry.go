// Package retry tracks failed tool calls and decides whether the model should
// be told to try again. It never sleeps: delays are advisory.
package retry

import (
	"math/rand"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/tanpawarit/Chative-Sales-Interceptor/agent/callkey"
)

const jitterFraction = 0.1

// terminalMarkers identify failures that no retry can fix.
var terminalMarkers = []string{
	"invalid",
	"not found",
	"cannot divide",
	"out of stock",
	"out_of_stock",
	"negative quantity",
	"cannot be negative",
	"unsupported item",
	"not valid",
	"do not carry",
}

// IsTerminal reports whether msg describes a non-retryable failure.
func IsTerminal(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range terminalMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Decision is the outcome of recording one failed call.
type Decision struct {
	Retry     bool
	Attempt   int
	Terminal  bool
	Exhausted bool
}

type Coordinator struct {
	attempts *xsync.MapOf[string, int]
	cfg      Config
	jitter   func() float64
}

type Option func(*Coordinator)

// WithJitterSource replaces the uniform [0, 1) source used for jitter.
func WithJitterSource(src func() float64) Option {
	return func(c *Coordinator) {
		if src != nil {
			c.jitter = src
		}
	}
}

func New(cfg Config, opts ...Option) *Coordinator {
	def := DefaultConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}

	c := &Coordinator{
		attempts: xsync.NewMapOf[string, int](),
		cfg:      cfg,
		jitter:   rand.Float64,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Coordinator) MaxRetries() int {
	return c.cfg.MaxRetries
}

// ShouldRetry is false for terminal messages and once the attempt budget is
// spent.
func (c *Coordinator) ShouldRetry(tool string, args map[string]any, msg string) bool {
	if IsTerminal(msg) {
		return false
	}
	return c.Attempts(tool, args) < c.cfg.MaxRetries
}

// Backoff is min(base * 2^attempts, max) without jitter.
func (c *Coordinator) Backoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	delay := c.cfg.BaseDelay
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= c.cfg.MaxDelay {
			return c.cfg.MaxDelay
		}
	}
	return min(delay, c.cfg.MaxDelay)
}

// Delay is the advisory wait before the next attempt of (tool, args), jittered
// by up to 10%.
func (c *Coordinator) Delay(tool string, args map[string]any) time.Duration {
	backoff := c.Backoff(c.Attempts(tool, args))
	return backoff + time.Duration(float64(backoff)*jitterFraction*c.jitter())
}

func (c *Coordinator) Attempts(tool string, args map[string]any) int {
	n, _ := c.attempts.Load(callkey.Key(tool, args))
	return n
}

func (c *Coordinator) Increment(tool string, args map[string]any) int {
	n, _ := c.attempts.Compute(callkey.Key(tool, args), func(old int, _ bool) (int, bool) {
		return old + 1, false
	})
	return n
}

func (c *Coordinator) Reset(tool string, args map[string]any) {
	c.attempts.Delete(callkey.Key(tool, args))
}

// Record classifies a failure and updates the counter in one step. A terminal
// failure leaves the counter untouched; an exhausted budget clears it.
func (c *Coordinator) Record(tool string, args map[string]any, msg string) Decision {
	if IsTerminal(msg) {
		return Decision{Terminal: true, Attempt: c.Attempts(tool, args)}
	}

	var d Decision
	c.attempts.Compute(callkey.Key(tool, args), func(old int, _ bool) (int, bool) {
		if old < c.cfg.MaxRetries {
			d = Decision{Retry: true, Attempt: old + 1}
			return old + 1, false
		}
		d = Decision{Exhausted: true, Attempt: old}
		return 0, true
	})
	return d
}
