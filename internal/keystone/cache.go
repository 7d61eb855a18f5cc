package keystone

import "time"

// refreshBuffer is subtracted from a token's lifetime so it is
// refreshed slightly before the identity service expires it.
const refreshBuffer = 30 * time.Second

// tokenCache holds the session's current token in memory. Tokens are
// never written to disk by this cache; persistent storage is opt-in via
// TokenStore. Callers synchronize externally (the Session holds a lock).
type tokenCache struct {
	token *Token
}

func newTokenCache() *tokenCache {
	return &tokenCache{}
}

// get returns the cached token if present and comfortably unexpired.
func (c *tokenCache) get() (*Token, bool) {
	if c.token == nil || c.token.ID == "" {
		return nil, false
	}
	if !c.token.ExpiresAt.IsZero() &&
		time.Now().After(c.token.ExpiresAt.Add(-refreshBuffer)) {
		return nil, false
	}
	return c.token, true
}

func (c *tokenCache) set(tok *Token) {
	c.token = tok
}

func (c *tokenCache) clear() {
	c.token = nil
}
