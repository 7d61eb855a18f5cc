package keystone

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/openstack-tools/barbican-cli/internal/logging"
)

// DefaultTimeout bounds every identity and API request.
const DefaultTimeout = 30 * time.Second

// Session wraps a credential with an HTTP transport. It obtains a token
// lazily on first use, caches it in memory for the life of the process,
// and decorates outgoing requests with X-Auth-Token. A session is safe
// for concurrent use.
type Session struct {
	cred    Credential
	verify  bool
	timeout time.Duration
	logger  *logging.Logger
	store   TokenStore
	httpc   *http.Client

	mu    sync.Mutex
	cache *tokenCache
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.timeout = d }
}

// WithLogger attaches a logger for debug output.
func WithLogger(logger *logging.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// WithTokenStore attaches a persistent token store (e.g. the OS
// keyring) consulted before issuing a fresh token.
func WithTokenStore(store TokenStore) SessionOption {
	return func(s *Session) { s.store = store }
}

// WithHTTPClient overrides the HTTP client, for tests.
func WithHTTPClient(client *http.Client) SessionOption {
	return func(s *Session) { s.httpc = client }
}

// NewSession creates a session around cred. verify controls TLS
// certificate verification of both the identity and API endpoints.
func NewSession(cred Credential, verify bool, opts ...SessionOption) *Session {
	s := &Session{
		cred:    cred,
		verify:  verify,
		timeout: DefaultTimeout,
		logger:  logging.New(false, false),
		cache:   newTokenCache(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.httpc == nil {
		s.httpc = newHTTPClient(s.verify, s.timeout)
	}
	return s
}

// Verify reports whether TLS certificates are verified.
func (s *Session) Verify() bool { return s.verify }

// HTTPClient returns the transport shared with API clients riding this
// session, so no-auth and authenticated calls get the same TLS policy.
func (s *Session) HTTPClient() *http.Client { return s.httpc }

// Token returns a valid token, consulting the in-memory cache, then the
// persistent store, then the identity service.
func (s *Session) Token(ctx context.Context) (*Token, error) {
	return s.token(ctx, false)
}

// token fetches a valid token. Persisted tokens are stored without
// their service catalog, so callers that need the catalog set
// needCatalog to bypass any catalog-less cache hit.
func (s *Session) token(ctx context.Context, needCatalog bool) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tok, ok := s.cache.get(); ok {
		if !needCatalog || len(tok.Catalog) > 0 {
			return tok, nil
		}
	}

	key := s.cred.CacheKey()
	if s.store != nil && !needCatalog {
		if tok, ok := s.store.Load(key); ok && !tok.Expired() {
			s.logger.Debug("Using persisted token for %s", s.cred.AuthURL())
			s.cache.set(tok)
			return tok, nil
		}
	}

	s.logger.Debug("Issuing token against %s", s.cred.AuthURL())
	tok, err := s.cred.IssueToken(ctx, s.httpc)
	if err != nil {
		return nil, err
	}

	s.cache.set(tok)
	if s.store != nil {
		s.store.Save(key, tok)
	}
	return tok, nil
}

// Invalidate drops any cached token so the next request re-authenticates.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.clear()
	if s.store != nil {
		s.store.Clear(s.cred.CacheKey())
	}
}

// Do authenticates and sends req with the token attached.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	tok, err := s.Token(req.Context())
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Auth-Token", tok.ID)
	return s.httpc.Do(req)
}

// Endpoint resolves a service endpoint from the token's catalog.
func (s *Session) Endpoint(ctx context.Context, serviceType, iface string) (string, error) {
	tok, err := s.token(ctx, true)
	if err != nil {
		return "", err
	}
	url, ok := tok.EndpointFor(serviceType, iface)
	if !ok {
		return "", fmt.Errorf("no '%s' endpoint with interface '%s' in the service catalog", serviceType, iface)
	}
	return url, nil
}

// newHTTPClient builds the transport, disabling certificate checks only
// when verification was explicitly turned off.
func newHTTPClient(verify bool, timeout time.Duration) *http.Client {
	client := &http.Client{Timeout: timeout}
	if !verify {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return client
}
