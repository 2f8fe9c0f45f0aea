// Package cache memoizes tool results for a bounded time.
package cache

import (
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mohae/deepcopy"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Sales-Interceptor/agent/callkey"
	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
)

const DefaultTTL = 5 * time.Minute

type entry struct {
	value     contractx.ToolResult
	expiresAt time.Time
}

// Cache is a process-wide TTL memo keyed by the canonical tool call. Values are
// copied on the way in and on the way out, so callers never share state with
// the cache.
type Cache struct {
	entries    *xsync.MapOf[string, entry]
	hits       atomic.Int64
	misses     atomic.Int64
	defaultTTL time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

type Stats struct {
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	HitRatePercent float64 `json:"hit_rate_percent"`
	Size           int     `json:"current_size"`
}

type Option func(*Cache)

func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries:    xsync.NewMapOf[string, entry](),
		defaultTTL: DefaultTTL,
		now:        time.Now,
		logger:     log.Logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Get returns a copy of the live entry for (tool, args). An expired entry is
// evicted and reported as a miss.
func (c *Cache) Get(tool string, args map[string]any) (contractx.ToolResult, bool) {
	key := callkey.Key(tool, args)
	now := c.now()

	var (
		found contractx.ToolResult
		hit   bool
	)
	c.entries.Compute(key, func(old entry, loaded bool) (entry, bool) {
		if !loaded {
			return old, true
		}
		if !now.Before(old.expiresAt) {
			return old, true
		}
		found, hit = old.value, true
		return old, false
	})

	if !hit {
		c.misses.Add(1)
		return contractx.ToolResult{}, false
	}
	c.hits.Add(1)
	return clone(found), true
}

// Set stores a copy of value for ttl; ttl <= 0 uses the default. Values with a
// status outside the result taxonomy are not stored.
func (c *Cache) Set(tool string, args map[string]any, value contractx.ToolResult, ttl time.Duration) bool {
	if !value.Status.Valid() {
		c.logger.Warn().
			Str("tool", tool).
			Str("status", string(value.Status)).
			Msg("cache: refusing to store result with unknown status")
		return false
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.entries.Store(callkey.Key(tool, args), entry{
		value:     clone(value),
		expiresAt: c.now().Add(ttl),
	})
	return true
}

func (c *Cache) Delete(tool string, args map[string]any) {
	c.entries.Delete(callkey.Key(tool, args))
}

// DeleteTool evicts every entry of tool and reports how many were removed.
func (c *Cache) DeleteTool(tool string) int {
	prefix := tool + ":"
	n := 0
	c.entries.Range(func(key string, _ entry) bool {
		if strings.HasPrefix(key, prefix) {
			c.entries.Delete(key)
			n++
		}
		return true
	})
	return n
}

func (c *Cache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	s := Stats{Hits: hits, Misses: misses, Size: c.entries.Size()}
	if total := hits + misses; total > 0 {
		s.HitRatePercent = math.Round(float64(hits)/float64(total)*10000) / 100
	}
	return s
}

func clone(v contractx.ToolResult) contractx.ToolResult {
	return deepcopy.Copy(v).(contractx.ToolResult)
}
