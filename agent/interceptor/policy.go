package interceptor

import (
	"time"

	toolx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/tool"
)

// Policy decides which tools are memoized, how their keys are scoped and which
// entries a successful call makes stale.
type Policy struct {
	// TTL lists the cache-eligible tools.
	TTL map[string]time.Duration
	// CustomerScoped tools are keyed per customer as well as per business.
	CustomerScoped map[string]bool
	// Invalidates maps a tool to the cached tools its success makes stale.
	Invalidates map[string][]string
}

func DefaultPolicy() Policy {
	return Policy{
		TTL: map[string]time.Duration{
			toolx.SearchProduct: 10 * time.Minute,
			toolx.ViewCart:      30 * time.Second,
		},
		CustomerScoped: map[string]bool{
			toolx.AddToCart:      true,
			toolx.ViewCart:       true,
			toolx.RemoveFromCart: true,
			toolx.UpdateQuantity: true,
		},
		Invalidates: map[string][]string{
			toolx.AddToCart:      {toolx.ViewCart},
			toolx.RemoveFromCart: {toolx.ViewCart},
			toolx.UpdateQuantity: {toolx.ViewCart},
		},
	}
}

func (p Policy) cacheTTL(tool string) (time.Duration, bool) {
	ttl, ok := p.TTL[tool]
	return ttl, ok
}
