package commands

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearAuthEnv blanks every recognized credential variable so the
// machine running the tests cannot leak defaults into them.
func clearAuthEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OS_IDENTITY_API_VERSION", "OS_AUTH_URL", "OS_USERNAME", "OS_USER_ID",
		"OS_PASSWORD", "OS_USER_DOMAIN_ID", "OS_USER_DOMAIN_NAME",
		"OS_TENANT_NAME", "OS_TENANT_ID", "OS_PROJECT_ID", "OS_PROJECT_NAME",
		"OS_PROJECT_DOMAIN_ID", "OS_PROJECT_DOMAIN_NAME", "OS_AUTH_TOKEN",
		"BARBICAN_ENDPOINT", "OS_CLOUD", "OS_INSECURE", "OS_KEYRING_TOKEN_CACHE",
	} {
		t.Setenv(key, "")
	}
}

// chdir switches to dir for the duration of the test, restoring the
// previous working directory on cleanup (t.Chdir needs Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWD) })
}

type recordedRequest struct {
	Method    string
	Path      string
	ProjectID string
	AuthToken string
}

// newBarbicanServer records every request and answers with canned
// success responses for the routes the tests exercise.
func newBarbicanServer(t *testing.T, requests *[]recordedRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*requests = append(*requests, recordedRequest{
			Method:    r.Method,
			Path:      r.URL.Path,
			ProjectID: r.Header.Get("X-Project-Id"),
			AuthToken: r.Header.Get("X-Auth-Token"),
		})
		switch {
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet:
			require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
				"secrets": []interface{}{}, "total": 0,
			}))
		default:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"secret_ref": "https://b/v1/secrets/s-new"}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRoot_NoAuthSecretDelete(t *testing.T) {
	clearAuthEnv(t)

	var requests []recordedRequest
	server := newBarbicanServer(t, &requests)

	cmd := NewRootCommand("test")
	cmd.SetArgs([]string{
		"secret", "delete", "s-1",
		"--no-auth", "--endpoint", server.URL, "--os-project-id", "p-123",
	})
	require.NoError(t, cmd.Execute())

	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodDelete, requests[0].Method)
	assert.Equal(t, "/v1/secrets/s-1", requests[0].Path)
	assert.Equal(t, "p-123", requests[0].ProjectID)
	assert.Empty(t, requests[0].AuthToken)
}

func TestRoot_NoAuthShortFlags(t *testing.T) {
	clearAuthEnv(t)

	var requests []recordedRequest
	server := newBarbicanServer(t, &requests)

	cmd := NewRootCommand("test")
	cmd.SetArgs([]string{
		"secret", "list",
		"-N", "-E", server.URL, "-I", "t-123",
	})
	require.NoError(t, cmd.Execute())

	require.Len(t, requests, 1)
	assert.Equal(t, "/v1/secrets", requests[0].Path)
	assert.Equal(t, "t-123", requests[0].ProjectID)
}

func TestRoot_PasswordFlowEndToEnd(t *testing.T) {
	clearAuthEnv(t)

	var requests []recordedRequest
	server := newBarbicanServer(t, &requests)

	var authCalls int
	identity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCalls++
		assert.Equal(t, "/v3/auth/tokens", r.URL.Path)
		w.Header().Set("X-Subject-Token", "tok-e2e")
		w.WriteHeader(http.StatusCreated)
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
			"token": map[string]interface{}{
				"expires_at": time.Now().Add(time.Hour).Format(time.RFC3339),
			},
		}))
	}))
	defer identity.Close()

	cmd := NewRootCommand("test")
	cmd.SetArgs([]string{
		"secret", "delete", "s-1",
		"-A", identity.URL + "/v3",
		"-U", "alice",
		"-P", "hunter2",
		"--os-project-id", "p-123",
		"-E", server.URL,
	})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, 1, authCalls)
	require.Len(t, requests, 1)
	assert.Equal(t, "tok-e2e", requests[0].AuthToken)
	assert.Empty(t, requests[0].ProjectID)
}

func TestRoot_ConflictingModeFlags(t *testing.T) {
	clearAuthEnv(t)

	cmd := NewRootCommand("test")
	cmd.SetArgs([]string{
		"secret", "list",
		"--no-auth", "--os-auth-url", "https://keystone.example.com:5000/v3",
	})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed with")
}

func TestRoot_MissingCredentials(t *testing.T) {
	clearAuthEnv(t)

	cmd := NewRootCommand("test")
	cmd.SetArgs([]string{"secret", "list"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "please specify authentication credentials")
}

func TestRoot_EnvironmentDefaults(t *testing.T) {
	clearAuthEnv(t)

	var requests []recordedRequest
	server := newBarbicanServer(t, &requests)

	t.Setenv("BARBICAN_ENDPOINT", server.URL)
	t.Setenv("OS_PROJECT_ID", "p-env")

	cmd := NewRootCommand("test")
	cmd.SetArgs([]string{"secret", "list", "--no-auth"})
	require.NoError(t, cmd.Execute())

	require.Len(t, requests, 1)
	assert.Equal(t, "p-env", requests[0].ProjectID)
}

func TestRoot_CloudProfileFillsOptions(t *testing.T) {
	clearAuthEnv(t)

	var requests []recordedRequest
	server := newBarbicanServer(t, &requests)

	dir := t.TempDir()
	cloudsYAML := "clouds:\n  devstack:\n    auth:\n      project_id: p-cloud\n    key_manager_endpoint_override: " + server.URL + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clouds.yaml"), []byte(cloudsYAML), 0o600))
	chdir(t, dir)

	cmd := NewRootCommand("test")
	cmd.SetArgs([]string{"secret", "list", "--no-auth", "--os-cloud", "devstack"})
	require.NoError(t, cmd.Execute())

	require.Len(t, requests, 1)
	assert.Equal(t, "p-cloud", requests[0].ProjectID)
}

func TestRoot_UnknownCloudFails(t *testing.T) {
	clearAuthEnv(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clouds.yaml"),
		[]byte("clouds:\n  devstack:\n    auth:\n      project_id: p-cloud\n"), 0o600))
	chdir(t, dir)

	cmd := NewRootCommand("test")
	cmd.SetArgs([]string{"secret", "list", "--no-auth", "--os-cloud", "prod"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not defined")
}
