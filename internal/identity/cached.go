package identity

import (
	"context"
	"time"

	"fintrack/internal/cache"
)

// CachedVerifier memoises successful verifications until the token expires
// or the cache TTL elapses, whichever comes first.
type CachedVerifier struct {
	next  Verifier
	cache *cache.LRUCache[User]
	now   func() time.Time
}

func NewCachedVerifier(next Verifier, size int, ttl time.Duration) *CachedVerifier {
	return &CachedVerifier{
		next:  next,
		cache: cache.NewLRUCache[User](size, ttl),
		now:   time.Now,
	}
}

// Cache exposes the underlying cache for periodic cleanup.
func (v *CachedVerifier) Cache() *cache.LRUCache[User] {
	return v.cache
}

func (v *CachedVerifier) Verify(ctx context.Context, idToken string) (User, error) {
	if u, ok := v.cache.Get(idToken); ok && !u.Expired(v.now()) {
		return u, nil
	}
	u, err := v.next.Verify(ctx, idToken)
	if err != nil {
		v.cache.Delete(idToken)
		return User{}, err
	}
	ttl := time.Duration(0)
	if !u.ExpiresAt.IsZero() {
		ttl = u.ExpiresAt.Sub(v.now())
		if ttl <= 0 {
			return User{}, ErrInvalidToken
		}
	}
	v.cache.SetWithTTL(idToken, u, ttl)
	return u, nil
}
