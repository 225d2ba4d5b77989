// Package schema validates tool input schemas for syntactic
// wellformedness only — no full JSON-Schema semantics, per spec's
// Non-goals — and caches the validation result so a schema registered
// once is never re-parsed on every "tools/list" call.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/edgecomet/mcprt/internal/mcprt/cache"
	"github.com/edgecomet/mcprt/internal/mcprt/metrics"
)

// Cache validates and caches schema wellformedness by content hash.
type Cache struct {
	results *cache.Cache[uint64, error]
}

// New returns a schema Cache with the given capacity. m may be nil to
// disable metrics recording.
func New(capacity int, m *metrics.Metrics) *Cache {
	return &Cache{results: cache.New[uint64, error](capacity, "schema", m)}
}

// Validate reports whether raw is a syntactically well-formed JSON
// Schema object: valid JSON, top-level object, and (if present) a
// "type" property that is a JSON Schema primitive type name. Anything
// beyond that — required/properties/pattern semantics — is left to the
// embedding application; this runtime never evaluates values against
// the schema. An empty raw (no schema at all) is accepted.
func (c *Cache) Validate(raw []byte) error {
	key := xxhash.Sum64(raw)

	if err, ok := c.results.Get(key); ok {
		return err
	}

	err := validate(raw)
	c.results.Put(key, err)
	return err
}

func validate(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("mcprt/schema: not a JSON object: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("mcprt/schema: not a JSON object: null")
	}

	t, ok := doc["type"]
	if !ok {
		return nil
	}
	name, ok := t.(string)
	if !ok {
		return fmt.Errorf("mcprt/schema: \"type\" must be a string")
	}
	switch name {
	case "object", "array", "string", "number", "integer", "boolean", "null":
		return nil
	default:
		return fmt.Errorf("mcprt/schema: unknown type %q", name)
	}
}

// Stats exposes the underlying cache's hit/miss counters for metrics.
func (c *Cache) Stats() (hits, misses int64) {
	return c.results.Stats()
}
