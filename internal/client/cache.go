package client

import (
	"encoding/json"
	"fmt"
	"sync"
)

const (
	refKey      = "__ref"
	typenameKey = "__typename"
	maxDepth    = 16
)

// Cache stores every object that has both __typename and id under the key
// "Typename:id". References between entities are stored as {"__ref": key}
// and resolved again on read. Nothing is evicted unless asked to.
type Cache struct {
	mu       sync.RWMutex
	entities map[string]map[string]any
}

func NewCache() *Cache {
	return &Cache{entities: make(map[string]map[string]any)}
}

func Key(typename, id string) string { return typename + ":" + id }

// Write normalizes a response data payload into the cache.
func (c *Cache) Write(data json.RawMessage) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.normalize(v)
	return nil
}

func (c *Cache) normalize(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = c.normalize(e)
		}
		return out
	case map[string]any:
		fields := make(map[string]any, len(t))
		for k, e := range t {
			fields[k] = c.normalize(e)
		}
		key, ok := entityKey(t)
		if !ok {
			return fields
		}
		// later responses refine earlier ones field by field
		cur := c.entities[key]
		if cur == nil {
			cur = make(map[string]any, len(fields))
			c.entities[key] = cur
		}
		for k, e := range fields {
			cur[k] = e
		}
		return map[string]any{refKey: key}
	default:
		return v
	}
}

func entityKey(m map[string]any) (string, bool) {
	tn, _ := m[typenameKey].(string)
	id, _ := m["id"].(string)
	if tn == "" || id == "" {
		return "", false
	}
	return Key(tn, id), true
}

// Entity decodes the cached entity into out and reports whether it was present.
func (c *Cache) Entity(typename, id string, out any) (bool, error) {
	return c.Lookup(typename, id, nil, out)
}

// Lookup is Entity for an entity that must carry every one of fields. An
// entity cached with fewer fields counts as missing.
func (c *Cache) Lookup(typename, id string, fields []string, out any) (bool, error) {
	c.mu.RLock()
	ent, ok := c.entities[Key(typename, id)]
	for _, f := range fields {
		if !ok {
			break
		}
		_, ok = ent[f]
	}
	var v any
	if ok {
		v = c.denormalize(ent, 0)
	}
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return true, err
	}
	return true, json.Unmarshal(b, out)
}

func (c *Cache) denormalize(v any, depth int) any {
	if depth > maxDepth {
		return nil
	}
	switch t := v.(type) {
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			if r, ok := isRef(e); ok && c.entities[r] == nil {
				continue // evicted
			}
			out = append(out, c.denormalize(e, depth+1))
		}
		return out
	case map[string]any:
		if r, ok := isRef(t); ok {
			ent := c.entities[r]
			if ent == nil {
				return nil
			}
			return c.denormalize(ent, depth+1)
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = c.denormalize(e, depth+1)
		}
		return out
	default:
		return v
	}
}

func isRef(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", false
	}
	r, ok := m[refKey].(string)
	return r, ok
}

// Evict drops one entity. Lists that referenced it skip it on later reads.
func (c *Cache) Evict(typename, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := Key(typename, id)
	_, ok := c.entities[key]
	delete(c.entities, key)
	return ok
}

func (c *Cache) Reset() {
	c.mu.Lock()
	c.entities = make(map[string]map[string]any)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entities)
}
