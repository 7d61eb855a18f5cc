package keystone

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openstack-tools/barbican-cli/internal/secure"
)

// v3Scope carries the project scope fields a v3 credential may be
// scoped with. Only non-empty fields end up in the request body.
type v3Scope struct {
	ProjectID         string
	ProjectName       string
	ProjectDomainID   string
	ProjectDomainName string
}

func v3ScopeFromSet(set map[string]string) v3Scope {
	return v3Scope{
		ProjectID:         set["project_id"],
		ProjectName:       set["project_name"],
		ProjectDomainID:   set["project_domain_id"],
		ProjectDomainName: set["project_domain_name"],
	}
}

// body renders the "scope" member of a v3 auth request, or nil when the
// credential carries no scope.
func (s v3Scope) body() map[string]interface{} {
	switch {
	case s.ProjectID != "":
		return map[string]interface{}{
			"project": map[string]interface{}{"id": s.ProjectID},
		}
	case s.ProjectName != "":
		project := map[string]interface{}{"name": s.ProjectName}
		if s.ProjectDomainID != "" {
			project["domain"] = map[string]interface{}{"id": s.ProjectDomainID}
		} else if s.ProjectDomainName != "" {
			project["domain"] = map[string]interface{}{"name": s.ProjectDomainName}
		}
		return map[string]interface{}{"project": project}
	}
	return nil
}

// V3Token authenticates by re-scoping an existing v3 token.
type V3Token struct {
	authURL string
	token   string
	scope   v3Scope
}

// NewV3Token builds a v3 token credential from a credential set. The
// set must carry auth_url and token; project scope fields are optional.
func NewV3Token(set map[string]string) (*V3Token, error) {
	if set["auth_url"] == "" {
		return nil, fmt.Errorf("v3 token credential requires auth_url")
	}
	if set["token"] == "" {
		return nil, fmt.Errorf("v3 token credential requires a token")
	}
	return &V3Token{
		authURL: set["auth_url"],
		token:   set["token"],
		scope:   v3ScopeFromSet(set),
	}, nil
}

func (c *V3Token) AuthURL() string { return c.authURL }

func (c *V3Token) CacheKey() string {
	return cacheKey("v3", "token", c.authURL, c.scope.ProjectID, c.scope.ProjectName)
}

func (c *V3Token) IssueToken(ctx context.Context, client *http.Client) (*Token, error) {
	identity := map[string]interface{}{
		"methods": []string{"token"},
		"token":   map[string]interface{}{"id": c.token},
	}
	return issueV3(ctx, client, c.authURL, identity, c.scope)
}

// V3Password authenticates with a v3 username (or user id) and password.
type V3Password struct {
	authURL        string
	userID         string
	username       string
	userDomainID   string
	userDomainName string
	password       *secure.Buffer
	scope          v3Scope
}

// NewV3Password builds a v3 password credential from a credential set.
// The password is moved into a protected buffer immediately.
func NewV3Password(set map[string]string) (*V3Password, error) {
	if set["auth_url"] == "" {
		return nil, fmt.Errorf("v3 password credential requires auth_url")
	}
	if set["user_id"] == "" && set["username"] == "" {
		return nil, fmt.Errorf("v3 password credential requires a user id or username")
	}
	if set["password"] == "" {
		return nil, fmt.Errorf("v3 password credential requires a password")
	}
	return &V3Password{
		authURL:        set["auth_url"],
		userID:         set["user_id"],
		username:       set["username"],
		userDomainID:   set["user_domain_id"],
		userDomainName: set["user_domain_name"],
		password:       secure.NewBuffer(set["password"]),
		scope:          v3ScopeFromSet(set),
	}, nil
}

func (c *V3Password) AuthURL() string { return c.authURL }

func (c *V3Password) CacheKey() string {
	return cacheKey("v3", "password", c.authURL, c.userID, c.username,
		c.scope.ProjectID, c.scope.ProjectName)
}

func (c *V3Password) IssueToken(ctx context.Context, client *http.Client) (*Token, error) {
	user := map[string]interface{}{}
	if c.userID != "" {
		user["id"] = c.userID
	} else {
		user["name"] = c.username
		if c.userDomainID != "" {
			user["domain"] = map[string]interface{}{"id": c.userDomainID}
		} else if c.userDomainName != "" {
			user["domain"] = map[string]interface{}{"name": c.userDomainName}
		}
	}

	var token *Token
	err := c.password.Open(func(password string) error {
		user["password"] = password
		identity := map[string]interface{}{
			"methods":  []string{"password"},
			"password": map[string]interface{}{"user": user},
		}
		issued, err := issueV3(ctx, client, c.authURL, identity, c.scope)
		delete(user, "password")
		if err != nil {
			return err
		}
		token = issued
		return nil
	})
	return token, err
}

// issueV3 performs the POST /auth/tokens exchange. The token id arrives
// in the X-Subject-Token header, expiry and catalog in the body.
func issueV3(ctx context.Context, client *http.Client, authURL string, identity map[string]interface{}, scope v3Scope) (*Token, error) {
	auth := map[string]interface{}{"identity": identity}
	if scopeBody := scope.body(); scopeBody != nil {
		auth["scope"] = scopeBody
	}
	body := map[string]interface{}{"auth": auth}

	url := strings.TrimSuffix(authURL, "/") + "/auth/tokens"
	resp, err := postJSON(ctx, client, url, body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, authFailure(resp)
	}

	tokenID := resp.Header.Get("X-Subject-Token")
	if tokenID == "" {
		return nil, fmt.Errorf("no token received from identity service")
	}

	var parsed struct {
		Token struct {
			ExpiresAt time.Time `json:"expires_at"`
			Catalog   []struct {
				Type      string `json:"type"`
				Name      string `json:"name"`
				Endpoints []struct {
					Interface string `json:"interface"`
					Region    string `json:"region"`
					URL       string `json:"url"`
				} `json:"endpoints"`
			} `json:"catalog"`
		} `json:"token"`
	}
	if err := decodeJSON(resp, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	token := &Token{
		ID:        tokenID,
		ExpiresAt: parsed.Token.ExpiresAt,
	}
	for _, entry := range parsed.Token.Catalog {
		catalogEntry := CatalogEntry{Type: entry.Type, Name: entry.Name}
		for _, ep := range entry.Endpoints {
			catalogEntry.Endpoints = append(catalogEntry.Endpoints, Endpoint{
				Interface: ep.Interface,
				Region:    ep.Region,
				URL:       ep.URL,
			})
		}
		token.Catalog = append(token.Catalog, catalogEntry)
	}
	return token, nil
}
