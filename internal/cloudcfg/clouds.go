// Package cloudcfg loads named cloud profiles from clouds.yaml, the
// conventional OpenStack client configuration file. A profile supplies
// defaults for any credential option not given by flag or environment.
package cloudcfg

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	cerrors "github.com/openstack-tools/barbican-cli/internal/errors"
)

// Cloud is one named profile from clouds.yaml.
type Cloud struct {
	Auth               CloudAuth `yaml:"auth" json:"auth"`
	IdentityAPIVersion string    `yaml:"identity_api_version,omitempty" json:"identity_api_version,omitempty"`
	Verify             *bool     `yaml:"verify,omitempty" json:"verify,omitempty"`
	// KeyManagerEndpoint overrides catalog discovery of the Barbican
	// endpoint, matching the <service>_endpoint_override convention.
	KeyManagerEndpoint string `yaml:"key_manager_endpoint_override,omitempty" json:"key_manager_endpoint_override,omitempty"`
}

// CloudAuth carries the credential fields of a profile.
type CloudAuth struct {
	AuthURL           string `yaml:"auth_url,omitempty" json:"auth_url,omitempty"`
	Username          string `yaml:"username,omitempty" json:"username,omitempty"`
	UserID            string `yaml:"user_id,omitempty" json:"user_id,omitempty"`
	Password          string `yaml:"password,omitempty" json:"password,omitempty"`
	Token             string `yaml:"token,omitempty" json:"token,omitempty"`
	UserDomainID      string `yaml:"user_domain_id,omitempty" json:"user_domain_id,omitempty"`
	UserDomainName    string `yaml:"user_domain_name,omitempty" json:"user_domain_name,omitempty"`
	ProjectID         string `yaml:"project_id,omitempty" json:"project_id,omitempty"`
	ProjectName       string `yaml:"project_name,omitempty" json:"project_name,omitempty"`
	ProjectDomainID   string `yaml:"project_domain_id,omitempty" json:"project_domain_id,omitempty"`
	ProjectDomainName string `yaml:"project_domain_name,omitempty" json:"project_domain_name,omitempty"`
	TenantID          string `yaml:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	TenantName        string `yaml:"tenant_name,omitempty" json:"tenant_name,omitempty"`
}

// cloudsFile is the clouds.yaml document root.
type cloudsFile struct {
	Clouds map[string]Cloud `yaml:"clouds" json:"clouds"`
}

// SearchPaths returns the locations probed for clouds.yaml, in order.
func SearchPaths() []string {
	paths := []string{"clouds.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "openstack", "clouds.yaml"))
	}
	paths = append(paths, filepath.Join("/etc", "openstack", "clouds.yaml"))
	return paths
}

// Load finds clouds.yaml on the search path and returns the named
// profile.
func Load(name string) (*Cloud, error) {
	for _, path := range SearchPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return LoadFrom(path, name)
	}
	return nil, cerrors.ConfigError{
		Option:     "os-cloud",
		Value:      name,
		Message:    "no clouds.yaml found",
		Suggestion: fmt.Sprintf("Create one of: %s", strings.Join(SearchPaths(), ", ")),
	}
}

// LoadFrom reads the named profile from a specific clouds.yaml file.
func LoadFrom(path, name string) (*Cloud, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.UserError{
			Message:    fmt.Sprintf("Failed to read %s", path),
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	// Validate the raw document so unknown keys are caught before the
	// typed unmarshal silently drops them.
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, cerrors.ConfigError{
			Option:     "os-cloud",
			Message:    fmt.Sprintf("invalid YAML in %s: %v", path, err),
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if err := validate(raw); err != nil {
		return nil, cerrors.ConfigError{
			Option:  "os-cloud",
			Message: fmt.Sprintf("%s does not match the clouds.yaml schema: %v", path, err),
		}
	}

	var doc cloudsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, cerrors.ConfigError{
			Option:  "os-cloud",
			Message: fmt.Sprintf("invalid clouds.yaml in %s: %v", path, err),
		}
	}

	cloud, ok := doc.Clouds[name]
	if !ok {
		var available []string
		for cloudName := range doc.Clouds {
			available = append(available, cloudName)
		}
		return nil, cerrors.ConfigError{
			Option:     "os-cloud",
			Value:      name,
			Message:    fmt.Sprintf("cloud not defined in %s", path),
			Suggestion: fmt.Sprintf("Defined clouds: %s", strings.Join(available, ", ")),
		}
	}
	return &cloud, nil
}

// validate checks the parsed document against the embedded JSON schema.
func validate(doc interface{}) error {
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document for validation: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(cloudsSchema)
	documentLoader := gojsonschema.NewBytesLoader(jsonData)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return fmt.Errorf("schema validation failed:\n  - %s", strings.Join(errorMessages, "\n  - "))
	}

	return nil
}
