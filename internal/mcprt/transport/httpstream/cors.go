package httpstream

import (
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// corsHeaders is a pre-built block of CORS response headers, cached by
// a hash of its inputs so repeated requests for the same allowed
// origin don't re-render the header set.
type corsHeaders struct {
	allowOrigin  string
	allowMethods string
	allowHeaders string
	maxAge       string
}

// corsCache holds up to capacity pre-built header blocks, replaced
// round-robin as new (origin) combinations are seen.
type corsCache struct {
	mu       sync.Mutex
	capacity int
	byHash   map[uint64]*corsHeaders
	order    []uint64
	next     int
}

func newCORSCache(capacity int) *corsCache {
	if capacity <= 0 {
		capacity = 8
	}
	return &corsCache{capacity: capacity, byHash: make(map[uint64]*corsHeaders)}
}

func corsHash(origin, methods, headers, maxAge string) uint64 {
	h := xxhash.New()
	h.WriteString(origin)
	h.WriteString("\x00")
	h.WriteString(methods)
	h.WriteString("\x00")
	h.WriteString(headers)
	h.WriteString("\x00")
	h.WriteString(maxAge)
	return h.Sum64()
}

const (
	corsMethods = "GET, POST, DELETE, OPTIONS"
	corsHeaderAllow = "Content-Type, Mcp-Session-Id, Last-Event-ID"
	corsMaxAge      = "600"
)

// getOrBuild returns the cached header block for origin, building and
// inserting one if it isn't present yet.
func (c *corsCache) getOrBuild(origin string) *corsHeaders {
	hash := corsHash(origin, corsMethods, corsHeaderAllow, corsMaxAge)

	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.byHash[hash]; ok {
		return h
	}

	h := &corsHeaders{
		allowOrigin:  origin,
		allowMethods: corsMethods,
		allowHeaders: corsHeaderAllow,
		maxAge:       corsMaxAge,
	}

	if len(c.order) >= c.capacity {
		evict := c.order[c.next]
		delete(c.byHash, evict)
		c.order[c.next] = hash
		c.next = (c.next + 1) % c.capacity
	} else {
		c.order = append(c.order, hash)
	}
	c.byHash[hash] = h

	return h
}

// Len reports the number of cached header blocks, for metrics.
func (c *corsCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byHash)
}

// originAllowed reports whether origin is permitted by allowlist. An
// empty allowlist permits every origin, including an absent header
// (spec's "absent origin permitted only if allowlist omitted").
func originAllowed(origin string, allowlist []string) bool {
	if len(allowlist) == 0 {
		return true
	}
	if origin == "" {
		return false
	}
	for _, allowed := range allowlist {
		if strings.EqualFold(allowed, origin) || allowed == "*" {
			return true
		}
	}
	return false
}
