package cache

import (
	"strings"
	"sync"
	"time"
)

const defaultOwnerTTL = 5 * time.Minute

// OwnerCache stores account-to-wallet-owner lookups for ledger runs.
//
// Readers that load owners from the database take Generation first and
// store results with FillOwner, which drops them if an Invalidate ran in
// between.
type OwnerCache interface {
	GetOwner(accountID string) (string, bool)
	SetOwner(accountID, userID string)
	Generation() uint64
	FillOwner(accountID, userID string, generation uint64) bool
	Invalidate(accountID string)
}

type ownerCache struct {
	mu         sync.Mutex
	generation uint64
	owners     Cache[string, string]
	ttl        time.Duration
}

// NewOwnerCache returns an in-memory owner cache.
func NewOwnerCache() OwnerCache {
	return &ownerCache{
		owners: NewTTLCache[string, string](),
		ttl:    defaultOwnerTTL,
	}
}

func (c *ownerCache) GetOwner(accountID string) (string, bool) {
	return c.owners.Get(cacheKey(accountID))
}

func (c *ownerCache) SetOwner(accountID, userID string) {
	if strings.TrimSpace(userID) == "" {
		return
	}
	c.owners.Set(cacheKey(accountID), userID, c.ttl)
}

func (c *ownerCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *ownerCache) FillOwner(accountID, userID string, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return false
	}
	c.SetOwner(accountID, userID)
	return true
}

func (c *ownerCache) Invalidate(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.owners.Delete(cacheKey(accountID))
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, trimmed)
	}
	return strings.Join(values, "|")
}
