package keystone

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCredential counts how many tokens it issues.
type fakeCredential struct {
	issued  atomic.Int32
	token   *Token
	err     error
	withCat bool
}

func (c *fakeCredential) AuthURL() string  { return "https://keystone.example.com/v3" }
func (c *fakeCredential) CacheKey() string { return "fake-credential" }

func (c *fakeCredential) IssueToken(ctx context.Context, client *http.Client) (*Token, error) {
	c.issued.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	tok := *c.token
	if !c.withCat {
		tok.Catalog = nil
	}
	return &tok, nil
}

// memoryStore is an in-process TokenStore standing in for the keyring.
type memoryStore struct {
	tokens map[string]*Token
	saves  int
	clears int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{tokens: map[string]*Token{}}
}

func (s *memoryStore) Load(key string) (*Token, bool) {
	tok, ok := s.tokens[key]
	return tok, ok
}

func (s *memoryStore) Save(key string, tok *Token) {
	s.saves++
	s.tokens[key] = &Token{ID: tok.ID, ExpiresAt: tok.ExpiresAt}
}

func (s *memoryStore) Clear(key string) {
	s.clears++
	delete(s.tokens, key)
}

func validToken() *Token {
	return &Token{
		ID:        "tok-1",
		ExpiresAt: time.Now().Add(time.Hour),
		Catalog: []CatalogEntry{
			{
				Type: ServiceTypeKeyManager,
				Endpoints: []Endpoint{
					{Interface: InterfacePublic, URL: "https://barbican.example.com:9311"},
				},
			},
		},
	}
}

func TestSession_TokenIsCachedInMemory(t *testing.T) {
	cred := &fakeCredential{token: validToken(), withCat: true}
	sess := NewSession(cred, true)

	for i := 0; i < 3; i++ {
		tok, err := sess.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok.ID)
	}
	assert.Equal(t, int32(1), cred.issued.Load())
}

func TestSession_ExpiringTokenIsReissued(t *testing.T) {
	cred := &fakeCredential{
		token: &Token{ID: "tok-short", ExpiresAt: time.Now().Add(5 * time.Second)},
	}
	sess := NewSession(cred, true)

	_, err := sess.Token(context.Background())
	require.NoError(t, err)
	_, err = sess.Token(context.Background())
	require.NoError(t, err)

	// Within the refresh buffer of expiry the cache refuses the hit.
	assert.Equal(t, int32(2), cred.issued.Load())
}

func TestSession_PersistedTokenSkipsIssue(t *testing.T) {
	store := newMemoryStore()
	store.tokens["fake-credential"] = &Token{
		ID:        "tok-persisted",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	cred := &fakeCredential{token: validToken(), withCat: true}
	sess := NewSession(cred, true, WithTokenStore(store))

	tok, err := sess.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-persisted", tok.ID)
	assert.Equal(t, int32(0), cred.issued.Load())
}

func TestSession_ExpiredPersistedTokenIsReplaced(t *testing.T) {
	store := newMemoryStore()
	store.tokens["fake-credential"] = &Token{
		ID:        "tok-stale",
		ExpiresAt: time.Now().Add(-time.Minute),
	}

	cred := &fakeCredential{token: validToken(), withCat: true}
	sess := NewSession(cred, true, WithTokenStore(store))

	tok, err := sess.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.ID)
	assert.Equal(t, int32(1), cred.issued.Load())
	assert.Equal(t, 1, store.saves)
}

func TestSession_EndpointBypassesCatalogLessToken(t *testing.T) {
	// Persisted tokens carry no catalog, so endpoint discovery must go
	// back to the identity service even when the store has a live token.
	store := newMemoryStore()
	store.tokens["fake-credential"] = &Token{
		ID:        "tok-persisted",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	cred := &fakeCredential{token: validToken(), withCat: true}
	sess := NewSession(cred, true, WithTokenStore(store))

	url, err := sess.Endpoint(context.Background(), ServiceTypeKeyManager, InterfacePublic)
	require.NoError(t, err)
	assert.Equal(t, "https://barbican.example.com:9311", url)
	assert.Equal(t, int32(1), cred.issued.Load())
}

func TestSession_EndpointMissingService(t *testing.T) {
	cred := &fakeCredential{token: validToken(), withCat: true}
	sess := NewSession(cred, true)

	_, err := sess.Endpoint(context.Background(), "object-store", InterfacePublic)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object-store")
}

func TestSession_DoSetsAuthToken(t *testing.T) {
	var gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Auth-Token")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cred := &fakeCredential{token: validToken(), withCat: true}
	sess := NewSession(cred, true, WithHTTPClient(server.Client()))

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := sess.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "tok-1", gotToken)
}

func TestSession_InvalidateForcesReissue(t *testing.T) {
	store := newMemoryStore()
	cred := &fakeCredential{token: validToken(), withCat: true}
	sess := NewSession(cred, true, WithTokenStore(store))

	_, err := sess.Token(context.Background())
	require.NoError(t, err)

	sess.Invalidate()
	assert.Equal(t, 1, store.clears)

	_, err = sess.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), cred.issued.Load())
}

func TestTokenCache(t *testing.T) {
	c := newTokenCache()

	_, ok := c.get()
	assert.False(t, ok)

	c.set(&Token{ID: "tok", ExpiresAt: time.Now().Add(time.Hour)})
	tok, ok := c.get()
	require.True(t, ok)
	assert.Equal(t, "tok", tok.ID)

	// Inside the refresh buffer the cache treats the token as gone.
	c.set(&Token{ID: "tok", ExpiresAt: time.Now().Add(10 * time.Second)})
	_, ok = c.get()
	assert.False(t, ok)

	// A token without expiry never ages out.
	c.set(&Token{ID: "tok"})
	_, ok = c.get()
	assert.True(t, ok)

	c.clear()
	_, ok = c.get()
	assert.False(t, ok)
}

func TestTokenExpired(t *testing.T) {
	var nilToken *Token
	assert.True(t, nilToken.Expired())
	assert.True(t, (&Token{}).Expired())
	assert.True(t, (&Token{ID: "tok", ExpiresAt: time.Now().Add(-time.Second)}).Expired())
	assert.False(t, (&Token{ID: "tok", ExpiresAt: time.Now().Add(time.Hour)}).Expired())
	assert.False(t, (&Token{ID: "tok"}).Expired())
}
