package cache

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache() (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(WithClock(clock.Now), WithLogger(zerolog.Nop())), clock
}

func productResult() contractx.ToolResult {
	return contractx.Success("found", map[string]any{
		"product": map[string]any{"name": "Coca Cola", "price": 1.5},
	})
}

func TestGetAfterSet(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache()
	args := map[string]any{"product_name": "coca"}
	if !c.Set("search_product", args, productResult(), time.Minute) {
		t.Fatal("expected value to be stored")
	}

	got, ok := c.Get("search_product", map[string]any{"product_name": "coca"})
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Status != contractx.StatusSuccess || got.Message != "found" {
		t.Fatalf("unexpected value: %+v", got)
	}
	if _, ok := c.Get("search_product", map[string]any{"product_name": "pepsi"}); ok {
		t.Fatal("different args must miss")
	}
	if _, ok := c.Get("view_cart", args); ok {
		t.Fatal("different tool must miss")
	}
}

func TestExpiredEntryIsEvicted(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache()
	args := map[string]any{"q": "x"}
	c.Set("search_product", args, productResult(), time.Second)

	clock.Advance(999 * time.Millisecond)
	if _, ok := c.Get("search_product", args); !ok {
		t.Fatal("entry must be live before its ttl")
	}
	clock.Advance(time.Millisecond)
	if _, ok := c.Get("search_product", args); ok {
		t.Fatal("entry must expire at its ttl")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Size != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.HitRatePercent != 50 {
		t.Fatalf("unexpected hit rate: %v", stats.HitRatePercent)
	}
}

func TestNonPositiveTTLUsesDefault(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache()
	c.Set("search_product", nil, productResult(), 0)

	clock.Advance(DefaultTTL - time.Second)
	if _, ok := c.Get("search_product", nil); !ok {
		t.Fatal("expected hit inside default ttl")
	}
	clock.Advance(time.Second)
	if _, ok := c.Get("search_product", nil); ok {
		t.Fatal("expected miss after default ttl")
	}
}

func TestValuesAreIsolated(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache()
	original := productResult()
	c.Set("search_product", nil, original, time.Minute)

	original.Payload["product"].(map[string]any)["price"] = 99.0

	first, _ := c.Get("search_product", nil)
	if got := first.Payload["product"].(map[string]any)["price"]; got != 1.5 {
		t.Fatalf("cache must not observe caller mutation, got %v", got)
	}

	first.Payload["product"].(map[string]any)["name"] = "changed"
	second, _ := c.Get("search_product", nil)
	if got := second.Payload["product"].(map[string]any)["name"]; got != "Coca Cola" {
		t.Fatalf("cache must not observe reader mutation, got %v", got)
	}
}

func TestSetRejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	c := New(WithLogger(zerolog.New(&buf)))
	if c.Set("search_product", nil, contractx.ToolResult{Message: "no status"}, time.Minute) {
		t.Fatal("empty status must be rejected")
	}
	if c.Set("search_product", nil, contractx.ToolResult{Status: "weird"}, time.Minute) {
		t.Fatal("unknown status must be rejected")
	}
	if c.Stats().Size != 0 {
		t.Fatal("nothing must be written")
	}
	if !strings.Contains(buf.String(), "refusing to store") {
		t.Fatalf("expected warning, got %s", buf.String())
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache()
	args := map[string]any{"__business_id": int64(1), "__customer": "555"}
	c.Set("view_cart", args, contractx.ToolResult{Status: contractx.StatusEmpty, Message: "empty"}, time.Minute)
	c.Delete("view_cart", args)
	if _, ok := c.Get("view_cart", args); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestDeleteTool(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache()
	c.Set("search_product", map[string]any{"product_name": "coca"}, productResult(), 0)
	c.Set("search_product", map[string]any{"product_name": "fanta"}, productResult(), 0)
	c.Set("search_product_v2", map[string]any{"product_name": "coca"}, productResult(), 0)

	if n := c.DeleteTool("search_product"); n != 2 {
		t.Fatalf("expected 2 entries removed, got %d", n)
	}
	if _, ok := c.Get("search_product", map[string]any{"product_name": "coca"}); ok {
		t.Fatal("entry survived DeleteTool")
	}
	if _, ok := c.Get("search_product_v2", map[string]any{"product_name": "coca"}); !ok {
		t.Fatal("other tools must keep their entries")
	}
}

func TestStatsWithoutLookups(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache()
	if s := c.Stats(); s.HitRatePercent != 0 || s.Hits != 0 || s.Misses != 0 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}
