package llm

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// MaxKeys is the highest numbered key variable consulted (BASE, BASE_2 .. BASE_9)
const MaxKeys = 9

// ClientPool maps scheduler resource ids to clients. It is built eagerly and
// never mutated afterwards, so lookups need no locking.
type ClientPool struct {
	ids     []string
	clients map[string]Client
}

// ResourceID returns the label of the i-th key (zero-based). Keys themselves
// never leave the pool.
func ResourceID(i int) string {
	return fmt.Sprintf("key_%d", i+1)
}

// NewClientPool builds one client per key. Providers without keys (ollama)
// get a single resource.
func NewClientPool(cfg Config, keys []string) (*ClientPool, error) {
	if len(keys) == 0 {
		if NeedsKey(cfg.Provider) {
			return nil, errors.New("no API keys configured")
		}
		keys = []string{""}
	}

	clients := make([]Client, 0, len(keys))
	for i, key := range keys {
		c := cfg
		c.APIKey = key
		client, err := NewClient(c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ResourceID(i), err)
		}
		clients = append(clients, client)
	}
	return NewClientPoolFrom(clients...), nil
}

// NewClientPoolFrom wraps ready-made clients, labelled key_1..key_n in order
func NewClientPoolFrom(clients ...Client) *ClientPool {
	p := &ClientPool{
		ids:     make([]string, 0, len(clients)),
		clients: make(map[string]Client, len(clients)),
	}
	for i, c := range clients {
		id := ResourceID(i)
		p.ids = append(p.ids, id)
		p.clients[id] = c
	}
	return p
}

// IDs returns resource ids in key order
func (p *ClientPool) IDs() []string {
	out := make([]string, len(p.ids))
	copy(out, p.ids)
	return out
}

// Len returns the number of clients
func (p *ClientPool) Len() int {
	return len(p.ids)
}

// Get returns the client for a resource id
func (p *ClientPool) Get(id string) (Client, bool) {
	c, ok := p.clients[id]
	return c, ok
}

// Tokens returns tokens reported by the client behind id, or 0
func (p *ClientPool) Tokens(id string) int64 {
	if tc, ok := p.clients[id].(TokenCounter); ok {
		return tc.Tokens()
	}
	return 0
}

// KeysFromEnv reads base, base_2 .. base_9 and returns the non-empty values
// in that order. Duplicate keys are dropped.
func KeysFromEnv(base string) []string {
	return keysFrom(base, os.LookupEnv)
}

func keysFrom(base string, lookup func(string) (string, bool)) []string {
	if base == "" {
		return nil
	}
	var keys []string
	seen := make(map[string]bool)
	for i := 1; i <= MaxKeys; i++ {
		name := base
		if i > 1 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		v, ok := lookup(name)
		v = strings.TrimSpace(v)
		if !ok || v == "" || seen[v] {
			continue
		}
		seen[v] = true
		keys = append(keys, v)
	}
	return keys
}
