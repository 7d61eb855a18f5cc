// Package keystone implements the small slice of the OpenStack Identity
// API this client needs: issuing scoped tokens (v2.0 and v3) and reading
// the service catalog out of the token response.
package keystone

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// ServiceTypeKeyManager is the catalog service type for Barbican.
	ServiceTypeKeyManager = "key-manager"

	// InterfacePublic is the default endpoint interface to select from
	// the catalog.
	InterfacePublic = "public"
)

// Credential issues tokens against an identity endpoint. Implementations
// exist for the v3 and v2.0 token and password flows.
type Credential interface {
	// AuthURL returns the identity endpoint this credential targets.
	AuthURL() string

	// CacheKey returns a stable identifier for this credential, used to
	// key persisted token caches. It must not contain secret material.
	CacheKey() string

	// IssueToken requests a scoped token from the identity service.
	IssueToken(ctx context.Context, client *http.Client) (*Token, error)
}

// Token is a scoped identity token plus the service catalog that came
// with it.
type Token struct {
	ID        string         `json:"id"`
	ExpiresAt time.Time      `json:"expires_at"`
	Catalog   []CatalogEntry `json:"catalog,omitempty"`
}

// CatalogEntry is one service in the token's service catalog.
type CatalogEntry struct {
	Type      string     `json:"type"`
	Name      string     `json:"name"`
	Endpoints []Endpoint `json:"endpoints"`
}

// Endpoint is one interface of a catalog service.
type Endpoint struct {
	Interface string `json:"interface"`
	Region    string `json:"region"`
	URL       string `json:"url"`
}

// Expired reports whether the token is past (or has no) expiry.
func (t *Token) Expired() bool {
	if t == nil || t.ID == "" {
		return true
	}
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(t.ExpiresAt)
}

// EndpointFor returns the catalog URL for the given service type and
// endpoint interface.
func (t *Token) EndpointFor(serviceType, iface string) (string, bool) {
	for _, entry := range t.Catalog {
		if entry.Type != serviceType {
			continue
		}
		for _, ep := range entry.Endpoints {
			if ep.Interface == iface && ep.URL != "" {
				return ep.URL, true
			}
		}
	}
	return "", false
}

// cacheKey derives a stable, secret-free identifier from credential
// fields for use as a token-store key.
func cacheKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:16])
}

// postJSON issues a JSON POST and returns the response. The caller owns
// closing the body.
func postJSON(ctx context.Context, client *http.Client, url string, body interface{}) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach identity endpoint: %w", err)
	}
	return resp, nil
}

func decodeJSON(resp *http.Response, v interface{}) error {
	return json.NewDecoder(resp.Body).Decode(v)
}

// authFailure drains a failed auth response into an error message.
func authFailure(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("authentication failed with status %d: %s",
		resp.StatusCode, strings.TrimSpace(string(body)))
}
