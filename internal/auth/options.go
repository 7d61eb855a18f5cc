// Package auth turns the flat set of --os-* command-line options into
// an authenticated (or deliberately unauthenticated) Barbican client.
package auth

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/openstack-tools/barbican-cli/internal/cloudcfg"
)

// Options is the flat option record the resolver works from. Each field
// is populated once at flag-registration time with an environment
// fallback; the resolver never consults the environment itself.
type Options struct {
	NoAuth             bool
	IdentityAPIVersion string
	AuthURL            string
	Username           string
	UserID             string
	Password           string
	UserDomainID       string
	UserDomainName     string
	TenantName         string
	TenantID           string
	ProjectID          string
	ProjectName        string
	ProjectDomainID    string
	ProjectDomainName  string
	AuthToken          string
	Endpoint           string
	CloudName          string
	Insecure           bool
	KeyringTokenCache  bool
}

func env(key string) string {
	return os.Getenv(key)
}

func envBool(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "True", "yes":
		return true
	}
	return false
}

// Register binds the recognized authentication options onto fs and
// returns the record they populate. Defaults come from the conventional
// OS_* environment variables; a flag given on the command line wins.
func Register(fs *pflag.FlagSet) *Options {
	o := &Options{}

	fs.BoolVarP(&o.NoAuth, "no-auth", "N", false,
		"Do not use authentication")
	fs.StringVar(&o.IdentityAPIVersion, "os-identity-api-version", env("OS_IDENTITY_API_VERSION"),
		"Identity API version to use. Defaults to env[OS_IDENTITY_API_VERSION] or 3.0")
	fs.StringVarP(&o.AuthURL, "os-auth-url", "A", env("OS_AUTH_URL"),
		"Defaults to env[OS_AUTH_URL]")
	fs.StringVarP(&o.Username, "os-username", "U", env("OS_USERNAME"),
		"Defaults to env[OS_USERNAME]")
	fs.StringVar(&o.UserID, "os-user-id", env("OS_USER_ID"),
		"Defaults to env[OS_USER_ID]")
	fs.StringVarP(&o.Password, "os-password", "P", env("OS_PASSWORD"),
		"Defaults to env[OS_PASSWORD]")
	fs.StringVar(&o.UserDomainID, "os-user-domain-id", env("OS_USER_DOMAIN_ID"),
		"Defaults to env[OS_USER_DOMAIN_ID]")
	fs.StringVar(&o.UserDomainName, "os-user-domain-name", env("OS_USER_DOMAIN_NAME"),
		"Defaults to env[OS_USER_DOMAIN_NAME]")
	fs.StringVarP(&o.TenantName, "os-tenant-name", "T", env("OS_TENANT_NAME"),
		"Defaults to env[OS_TENANT_NAME]")
	fs.StringVarP(&o.TenantID, "os-tenant-id", "I", env("OS_TENANT_ID"),
		"Defaults to env[OS_TENANT_ID]")
	// The historical client read env[OS_PROJECT__ID] here (double
	// underscore); that was a typo and the documented single-underscore
	// variable is honored instead.
	fs.StringVar(&o.ProjectID, "os-project-id", env("OS_PROJECT_ID"),
		"Another way to specify tenant id. Defaults to env[OS_PROJECT_ID]")
	fs.StringVar(&o.ProjectName, "os-project-name", env("OS_PROJECT_NAME"),
		"Another way to specify tenant name. Defaults to env[OS_PROJECT_NAME]")
	fs.StringVar(&o.ProjectDomainID, "os-project-domain-id", env("OS_PROJECT_DOMAIN_ID"),
		"Defaults to env[OS_PROJECT_DOMAIN_ID]")
	fs.StringVar(&o.ProjectDomainName, "os-project-domain-name", env("OS_PROJECT_DOMAIN_NAME"),
		"Defaults to env[OS_PROJECT_DOMAIN_NAME]")
	fs.StringVar(&o.AuthToken, "os-auth-token", env("OS_AUTH_TOKEN"),
		"Defaults to env[OS_AUTH_TOKEN]")
	fs.StringVarP(&o.Endpoint, "endpoint", "E", env("BARBICAN_ENDPOINT"),
		"Barbican endpoint URL. Defaults to env[BARBICAN_ENDPOINT]")
	fs.StringVar(&o.CloudName, "os-cloud", env("OS_CLOUD"),
		"Named cloud profile from clouds.yaml. Defaults to env[OS_CLOUD]")
	fs.BoolVar(&o.Insecure, "insecure", envBool("OS_INSECURE"),
		"Explicitly allow TLS connections without certificate verification")
	fs.BoolVar(&o.KeyringTokenCache, "keyring-token-cache", envBool("OS_KEYRING_TOKEN_CACHE"),
		"Cache issued tokens in the OS keyring across invocations")

	return o
}

// ApplyCloud fills any still-empty option from a clouds.yaml profile.
// Precedence stays flag > environment > profile.
func (o *Options) ApplyCloud(cloud *cloudcfg.Cloud) {
	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
		}
	}

	fill(&o.AuthURL, cloud.Auth.AuthURL)
	fill(&o.Username, cloud.Auth.Username)
	fill(&o.UserID, cloud.Auth.UserID)
	fill(&o.Password, cloud.Auth.Password)
	fill(&o.AuthToken, cloud.Auth.Token)
	fill(&o.UserDomainID, cloud.Auth.UserDomainID)
	fill(&o.UserDomainName, cloud.Auth.UserDomainName)
	fill(&o.ProjectID, cloud.Auth.ProjectID)
	fill(&o.ProjectName, cloud.Auth.ProjectName)
	fill(&o.ProjectDomainID, cloud.Auth.ProjectDomainID)
	fill(&o.ProjectDomainName, cloud.Auth.ProjectDomainName)
	fill(&o.TenantID, cloud.Auth.TenantID)
	fill(&o.TenantName, cloud.Auth.TenantName)
	fill(&o.IdentityAPIVersion, cloud.IdentityAPIVersion)
	fill(&o.Endpoint, cloud.KeyManagerEndpoint)

	if cloud.Verify != nil && !*cloud.Verify {
		o.Insecure = true
	}
}
