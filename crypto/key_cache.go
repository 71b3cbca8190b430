package crypto

import (
	"crypto/sha256"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// KeyCacheConfig holds configuration for the imported key cache
type KeyCacheConfig struct {
	MaxKeys int
	MaxAge  time.Duration
}

// KeyCache keeps imported key handles so repeated calls skip PEM and DER parsing.
// Handles are never mutated after import; entries are replaced, not updated.
type KeyCache struct {
	cache  *lru.Cache
	maxAge time.Duration
}

type cachedHandle struct {
	handle    interface{}
	createdAt time.Time
}

// NewKeyCache creates a cache holding up to config.MaxKeys handles.
// A zero MaxAge keeps entries until they are evicted.
func NewKeyCache(config KeyCacheConfig) (*KeyCache, error) {
	cache, err := lru.New(config.MaxKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to create key cache: %w", err)
	}

	return &KeyCache{
		cache:  cache,
		maxAge: config.MaxAge,
	}, nil
}

// PublicKey returns the cached handle for pemText or imports and caches it
func (c *KeyCache) PublicKey(pemText string, alg Algorithm, h Hash) (*PublicKeyHandle, error) {
	cacheKey := c.createCacheKey(KeyKindPublic, pemText, alg, h)
	if handle, ok := c.get(cacheKey).(*PublicKeyHandle); ok {
		return handle, nil
	}

	handle, err := ImportPublicKey(pemText, alg, h)
	if err != nil {
		return nil, err
	}
	c.add(cacheKey, handle)

	return handle, nil
}

// PrivateKey returns the cached handle for pemText or imports and caches it
func (c *KeyCache) PrivateKey(pemText string, alg Algorithm, h Hash) (*PrivateKeyHandle, error) {
	cacheKey := c.createCacheKey(KeyKindPrivate, pemText, alg, h)
	if handle, ok := c.get(cacheKey).(*PrivateKeyHandle); ok {
		return handle, nil
	}

	handle, err := ImportPrivateKey(pemText, alg, h)
	if err != nil {
		return nil, err
	}
	c.add(cacheKey, handle)

	return handle, nil
}

// Len returns the number of cached handles
func (c *KeyCache) Len() int {
	return c.cache.Len()
}

func (c *KeyCache) get(cacheKey string) interface{} {
	value, found := c.cache.Get(cacheKey)
	if !found {
		return nil
	}

	entry := value.(*cachedHandle)
	if c.maxAge > 0 && time.Since(entry.createdAt) > c.maxAge {
		c.cache.Remove(cacheKey)
		return nil
	}

	return entry.handle
}

func (c *KeyCache) add(cacheKey string, handle interface{}) {
	c.cache.Add(cacheKey, &cachedHandle{
		handle:    handle,
		createdAt: time.Now(),
	})
}

// createCacheKey hashes the key material so PEM text is not kept as a map key
func (c *KeyCache) createCacheKey(kind KeyKind, pemText string, alg Algorithm, h Hash) string {
	hasher := sha256.New()
	hasher.Write([]byte(kind))
	hasher.Write([]byte{';'})
	hasher.Write([]byte(alg))
	hasher.Write([]byte{';'})
	hasher.Write([]byte(h))
	hasher.Write([]byte{';'})
	hasher.Write([]byte(pemText))

	return fmt.Sprintf("%x", hasher.Sum(nil))
}
