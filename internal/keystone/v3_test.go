package keystone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func v3TokenResponse(t *testing.T, w http.ResponseWriter, tokenID string, expires time.Time) {
	t.Helper()
	w.Header().Set("X-Subject-Token", tokenID)
	w.WriteHeader(http.StatusCreated)
	require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
		"token": map[string]interface{}{
			"expires_at": expires.Format(time.RFC3339),
			"catalog": []map[string]interface{}{
				{
					"type": "key-manager",
					"name": "barbican",
					"endpoints": []map[string]interface{}{
						{"interface": "public", "region": "RegionOne", "url": "https://barbican.example.com:9311"},
						{"interface": "admin", "region": "RegionOne", "url": "https://barbican-admin.example.com:9311"},
					},
				},
			},
		},
	}))
}

func TestV3Password_IssueToken(t *testing.T) {
	expires := time.Now().Add(time.Hour).Truncate(time.Second).UTC()

	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/auth/tokens", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		v3TokenResponse(t, w, "tok-abc123", expires)
	}))
	defer server.Close()

	cred, err := NewV3Password(map[string]string{
		"auth_url":            server.URL + "/v3",
		"username":            "alice",
		"password":            "hunter2",
		"user_domain_name":    "Default",
		"project_name":        "demo",
		"project_domain_name": "Default",
	})
	require.NoError(t, err)

	tok, err := cred.IssueToken(context.Background(), server.Client())
	require.NoError(t, err)

	assert.Equal(t, "tok-abc123", tok.ID)
	assert.Equal(t, expires, tok.ExpiresAt.UTC())

	url, ok := tok.EndpointFor(ServiceTypeKeyManager, InterfacePublic)
	require.True(t, ok)
	assert.Equal(t, "https://barbican.example.com:9311", url)

	// The request body carries the password method, the domain-scoped
	// user, and the project scope.
	auth := captured["auth"].(map[string]interface{})
	identity := auth["identity"].(map[string]interface{})
	assert.Equal(t, []interface{}{"password"}, identity["methods"])

	user := identity["password"].(map[string]interface{})["user"].(map[string]interface{})
	assert.Equal(t, "alice", user["name"])
	assert.Equal(t, "hunter2", user["password"])
	assert.Equal(t, map[string]interface{}{"name": "Default"}, user["domain"])

	scope := auth["scope"].(map[string]interface{})["project"].(map[string]interface{})
	assert.Equal(t, "demo", scope["name"])
	assert.Equal(t, map[string]interface{}{"name": "Default"}, scope["domain"])
}

func TestV3Password_UserIDWinsOverUsername(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		v3TokenResponse(t, w, "tok-abc123", time.Now().Add(time.Hour))
	}))
	defer server.Close()

	cred, err := NewV3Password(map[string]string{
		"auth_url":   server.URL + "/v3",
		"user_id":    "u-123",
		"username":   "alice",
		"password":   "hunter2",
		"project_id": "5d2b4f3a",
	})
	require.NoError(t, err)

	_, err = cred.IssueToken(context.Background(), server.Client())
	require.NoError(t, err)

	auth := captured["auth"].(map[string]interface{})
	identity := auth["identity"].(map[string]interface{})
	user := identity["password"].(map[string]interface{})["user"].(map[string]interface{})
	assert.Equal(t, "u-123", user["id"])
	_, hasName := user["name"]
	assert.False(t, hasName)

	scope := auth["scope"].(map[string]interface{})["project"].(map[string]interface{})
	assert.Equal(t, "5d2b4f3a", scope["id"])
}

func TestV3Token_IssueToken(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		v3TokenResponse(t, w, "tok-rescoped", time.Now().Add(time.Hour))
	}))
	defer server.Close()

	cred, err := NewV3Token(map[string]string{
		"auth_url":   server.URL + "/v3",
		"token":      "tok-original",
		"project_id": "5d2b4f3a",
	})
	require.NoError(t, err)

	tok, err := cred.IssueToken(context.Background(), server.Client())
	require.NoError(t, err)
	assert.Equal(t, "tok-rescoped", tok.ID)

	identity := captured["auth"].(map[string]interface{})["identity"].(map[string]interface{})
	assert.Equal(t, []interface{}{"token"}, identity["methods"])
	assert.Equal(t, "tok-original",
		identity["token"].(map[string]interface{})["id"])
}

func TestV3_AuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "The request you have made requires authentication."}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	cred, err := NewV3Password(map[string]string{
		"auth_url":   server.URL + "/v3",
		"username":   "alice",
		"password":   "wrong",
		"project_id": "5d2b4f3a",
	})
	require.NoError(t, err)

	_, err = cred.IssueToken(context.Background(), server.Client())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestV3_MissingSubjectToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"token": {}}`))
	}))
	defer server.Close()

	cred, err := NewV3Token(map[string]string{
		"auth_url":   server.URL + "/v3",
		"token":      "tok",
		"project_id": "5d2b4f3a",
	})
	require.NoError(t, err)

	_, err = cred.IssueToken(context.Background(), server.Client())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no token received")
}

func TestNewV3Credentials_Validation(t *testing.T) {
	_, err := NewV3Token(map[string]string{"token": "tok"})
	assert.Error(t, err, "auth_url is required")

	_, err = NewV3Token(map[string]string{"auth_url": "https://keystone.example.com"})
	assert.Error(t, err, "token is required")

	_, err = NewV3Password(map[string]string{
		"auth_url": "https://keystone.example.com",
		"password": "hunter2",
	})
	assert.Error(t, err, "a user id or username is required")

	_, err = NewV3Password(map[string]string{
		"auth_url": "https://keystone.example.com",
		"username": "alice",
	})
	assert.Error(t, err, "a password is required")
}

func TestV3CacheKey_OmitsSecrets(t *testing.T) {
	cred, err := NewV3Password(map[string]string{
		"auth_url":   "https://keystone.example.com:5000/v3",
		"username":   "alice",
		"password":   "hunter2",
		"project_id": "5d2b4f3a",
	})
	require.NoError(t, err)

	assert.NotContains(t, cred.CacheKey(), "hunter2")
	assert.Len(t, cred.CacheKey(), 32)
}
