package keystone

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openstack-tools/barbican-cli/internal/secure"
)

// v2Scope carries the tenant scope fields a v2.0 credential may be
// scoped with.
type v2Scope struct {
	TenantID   string
	TenantName string
}

func v2ScopeFromSet(set map[string]string) v2Scope {
	return v2Scope{
		TenantID:   set["tenant_id"],
		TenantName: set["tenant_name"],
	}
}

// apply adds the scope to a v2.0 auth body. Tenant id wins over name.
func (s v2Scope) apply(auth map[string]interface{}) {
	if s.TenantID != "" {
		auth["tenantId"] = s.TenantID
	} else if s.TenantName != "" {
		auth["tenantName"] = s.TenantName
	}
}

// V2Token authenticates by re-scoping an existing v2.0 token.
type V2Token struct {
	authURL string
	token   string
	scope   v2Scope
}

// NewV2Token builds a v2.0 token credential from a credential set.
func NewV2Token(set map[string]string) (*V2Token, error) {
	if set["auth_url"] == "" {
		return nil, fmt.Errorf("v2.0 token credential requires auth_url")
	}
	if set["token"] == "" {
		return nil, fmt.Errorf("v2.0 token credential requires a token")
	}
	return &V2Token{
		authURL: set["auth_url"],
		token:   set["token"],
		scope:   v2ScopeFromSet(set),
	}, nil
}

func (c *V2Token) AuthURL() string { return c.authURL }

func (c *V2Token) CacheKey() string {
	return cacheKey("v2", "token", c.authURL, c.scope.TenantID, c.scope.TenantName)
}

func (c *V2Token) IssueToken(ctx context.Context, client *http.Client) (*Token, error) {
	auth := map[string]interface{}{
		"token": map[string]interface{}{"id": c.token},
	}
	c.scope.apply(auth)
	return issueV2(ctx, client, c.authURL, auth)
}

// V2Password authenticates with v2.0 password credentials.
type V2Password struct {
	authURL  string
	username string
	password *secure.Buffer
	scope    v2Scope
}

// NewV2Password builds a v2.0 password credential from a credential set.
// The v2.0 API has no user-id or domain concepts; only username is used.
func NewV2Password(set map[string]string) (*V2Password, error) {
	if set["auth_url"] == "" {
		return nil, fmt.Errorf("v2.0 password credential requires auth_url")
	}
	if set["username"] == "" {
		return nil, fmt.Errorf("v2.0 password credential requires a username")
	}
	if set["password"] == "" {
		return nil, fmt.Errorf("v2.0 password credential requires a password")
	}
	return &V2Password{
		authURL:  set["auth_url"],
		username: set["username"],
		password: secure.NewBuffer(set["password"]),
		scope:    v2ScopeFromSet(set),
	}, nil
}

func (c *V2Password) AuthURL() string { return c.authURL }

func (c *V2Password) CacheKey() string {
	return cacheKey("v2", "password", c.authURL, c.username,
		c.scope.TenantID, c.scope.TenantName)
}

func (c *V2Password) IssueToken(ctx context.Context, client *http.Client) (*Token, error) {
	var token *Token
	err := c.password.Open(func(password string) error {
		auth := map[string]interface{}{
			"passwordCredentials": map[string]interface{}{
				"username": c.username,
				"password": password,
			},
		}
		c.scope.apply(auth)
		issued, err := issueV2(ctx, client, c.authURL, auth)
		if err != nil {
			return err
		}
		token = issued
		return nil
	})
	return token, err
}

// issueV2 performs the POST /tokens exchange. Everything, including the
// token id, arrives in the body.
func issueV2(ctx context.Context, client *http.Client, authURL string, auth map[string]interface{}) (*Token, error) {
	body := map[string]interface{}{"auth": auth}

	url := strings.TrimSuffix(authURL, "/") + "/tokens"
	resp, err := postJSON(ctx, client, url, body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, authFailure(resp)
	}

	var parsed struct {
		Access struct {
			Token struct {
				ID      string    `json:"id"`
				Expires time.Time `json:"expires"`
			} `json:"token"`
			ServiceCatalog []struct {
				Type      string `json:"type"`
				Name      string `json:"name"`
				Endpoints []struct {
					PublicURL   string `json:"publicURL"`
					InternalURL string `json:"internalURL"`
					Region      string `json:"region"`
				} `json:"endpoints"`
			} `json:"serviceCatalog"`
		} `json:"access"`
	}
	if err := decodeJSON(resp, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	if parsed.Access.Token.ID == "" {
		return nil, fmt.Errorf("no token received from identity service")
	}

	token := &Token{
		ID:        parsed.Access.Token.ID,
		ExpiresAt: parsed.Access.Token.Expires,
	}
	for _, entry := range parsed.Access.ServiceCatalog {
		catalogEntry := CatalogEntry{Type: entry.Type, Name: entry.Name}
		for _, ep := range entry.Endpoints {
			// v2.0 catalogs have no interface field; expose the public
			// URL under the public interface and fall back to internal.
			if ep.PublicURL != "" {
				catalogEntry.Endpoints = append(catalogEntry.Endpoints, Endpoint{
					Interface: InterfacePublic,
					Region:    ep.Region,
					URL:       ep.PublicURL,
				})
			} else if ep.InternalURL != "" {
				catalogEntry.Endpoints = append(catalogEntry.Endpoints, Endpoint{
					Interface: "internal",
					Region:    ep.Region,
					URL:       ep.InternalURL,
				})
			}
		}
		token.Catalog = append(token.Catalog, catalogEntry)
	}
	return token, nil
}
