// Package tokencache holds exchanged access tokens in process memory for a
// short TTL so repeated delegated calls for the same subject do not redo the
// credential exchange. Entries are never persisted; losing them on restart
// only costs one extra exchange.
package tokencache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

type entry struct {
	token      string
	insertedAt time.Time
}

// Cache is a TTL-bounded map from (subject, permission set) to an access
// token. Safe for concurrent use. Two callers missing simultaneously may both
// exchange; last write wins and both tokens are valid.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry

	now func() time.Time // injectable for tests
}

// New creates a cache with the given TTL.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// key builds a stable cache key: scope order must not matter.
func key(subject string, scopes []string) string {
	sorted := make([]string, len(scopes))
	copy(sorted, scopes)
	sort.Strings(sorted)
	return strings.ToLower(subject) + "|" + strings.Join(sorted, " ")
}

// Get returns a live cached token for the subject and permission set, or
// ("", false) on a miss. Expired entries are evicted on access.
func (c *Cache) Get(subject string, scopes []string) (string, bool) {
	k := key(subject, scopes)

	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()

	if !ok {
		return "", false
	}
	if c.now().Sub(e.insertedAt) >= c.ttl {
		c.mu.Lock()
		// Re-check under the write lock; another writer may have refreshed it
		if cur, ok := c.entries[k]; ok && c.now().Sub(cur.insertedAt) >= c.ttl {
			delete(c.entries, k)
		}
		c.mu.Unlock()
		return "", false
	}
	return e.token, true
}

// Put stores a token for the subject and permission set.
func (c *Cache) Put(subject string, scopes []string, token string) {
	k := key(subject, scopes)

	c.mu.Lock()
	c.entries[k] = entry{token: token, insertedAt: c.now()}
	c.mu.Unlock()
}

// Delete removes the token for the subject and permission set, if any. Used
// when the sessions behind a token are revoked; the cached token must not
// outlive them.
func (c *Cache) Delete(subject string, scopes []string) {
	k := key(subject, scopes)

	c.mu.Lock()
	delete(c.entries, k)
	c.mu.Unlock()
}

// Len returns the number of entries, including any not yet evicted.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
