package auth

import (
	"fmt"
	"io"
	"os"

	"github.com/openstack-tools/barbican-cli/internal/barbican"
	cerrors "github.com/openstack-tools/barbican-cli/internal/errors"
	"github.com/openstack-tools/barbican-cli/internal/keystone"
	"github.com/openstack-tools/barbican-cli/internal/logging"
)

// DefaultIdentityAPIVersion is assumed when --os-identity-api-version
// is unset.
const DefaultIdentityAPIVersion = "3.0"

// Mode is the authentication strategy resolved from an option record.
// Exactly one mode is selected per run.
type Mode int

const (
	ModeInvalid Mode = iota
	ModeNoAuth
	ModeToken
	ModePassword
)

func (m Mode) String() string {
	switch m {
	case ModeNoAuth:
		return "no-auth"
	case ModeToken:
		return "token"
	case ModePassword:
		return "password"
	}
	return "invalid"
}

// isV3 reports whether the given identity API version selects the v3
// credential model. Unset defaults to v3.
func isV3(version string) bool {
	return version == "" || version == DefaultIdentityAPIVersion
}

// Resolver validates an option record and constructs the client handle.
// It is stateless: each invocation classifies the options once and
// either produces a client or fails with a ConfigError.
type Resolver struct {
	opts   *Options
	logger *logging.Logger
	errOut io.Writer
	usage  func() string
	store  keystone.TokenStore
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithLogger attaches a logger for debug output.
func WithLogger(logger *logging.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

// WithUsage supplies the usage text written to the error stream when
// no authentication mode matches.
func WithUsage(usage func() string) ResolverOption {
	return func(r *Resolver) { r.usage = usage }
}

// WithErrorStream redirects the usage output, for tests.
func WithErrorStream(w io.Writer) ResolverOption {
	return func(r *Resolver) { r.errOut = w }
}

// WithTokenStore overrides the persistent token store used when the
// keyring cache is enabled, for tests.
func WithTokenStore(store keystone.TokenStore) ResolverOption {
	return func(r *Resolver) { r.store = store }
}

// NewResolver creates a resolver over a fully-populated option record.
func NewResolver(opts *Options, resolverOpts ...ResolverOption) *Resolver {
	r := &Resolver{
		opts:   opts,
		logger: logging.New(false, false),
		errOut: os.Stderr,
		usage:  func() string { return "" },
	}
	for _, opt := range resolverOpts {
		opt(r)
	}
	return r
}

// Mode classifies the option record. First match wins: no-auth, then
// token, then password; anything else is invalid.
func (r *Resolver) Mode() Mode {
	o := r.opts
	switch {
	case o.NoAuth:
		return ModeNoAuth
	case o.AuthToken != "":
		return ModeToken
	case o.AuthURL != "" &&
		(o.UserID != "" || o.Username != "") &&
		o.Password != "" &&
		(o.TenantName != "" || o.TenantID != "" || o.ProjectName != "" || o.ProjectID != ""):
		return ModePassword
	}
	return ModeInvalid
}

// Resolve validates the options and constructs the client handle. All
// failures are ConfigErrors; none are retryable.
func (r *Resolver) Resolve() (*barbican.Client, error) {
	o := r.opts

	// --no-auth and --os-auth-url contradict each other; reject the
	// combination before any mode is considered.
	if o.NoAuth && o.AuthURL != "" {
		return nil, cerrors.ConfigError{
			Option:  "os-auth-url",
			Message: "argument --os-auth-url/-A: not allowed with argument --no-auth/-N",
		}
	}

	mode := r.Mode()
	r.logger.Debug("Resolved authentication mode: %s", mode)

	switch mode {
	case ModeNoAuth:
		return r.resolveNoAuth()
	case ModeToken:
		return r.resolveToken()
	case ModePassword:
		return r.resolvePassword()
	}

	fmt.Fprint(r.errOut, r.usage())
	return nil, cerrors.ConfigError{
		Message:    "please specify authentication credentials",
		Suggestion: "Provide --os-auth-token, or --os-auth-url with user and password options, or --no-auth with --endpoint",
	}
}

func (r *Resolver) resolveNoAuth() (*barbican.Client, error) {
	o := r.opts
	if o.Endpoint == "" || (o.TenantID == "" && o.ProjectID == "") {
		return nil, cerrors.ConfigError{
			Option:  "no-auth",
			Message: "please specify --endpoint and --os-project-id (or --os-tenant-id)",
		}
	}
	projectID := o.TenantID
	if projectID == "" {
		projectID = o.ProjectID
	}
	return barbican.New(barbican.Options{
		Endpoint:  o.Endpoint,
		ProjectID: projectID,
		Verify:    !o.Insecure,
		Logger:    r.logger,
	})
}

func (r *Resolver) resolveToken() (*barbican.Client, error) {
	o := r.opts
	if o.AuthURL == "" {
		return nil, cerrors.ConfigError{
			Option:  "os-auth-token",
			Message: "please specify --os-auth-url",
		}
	}
	if err := checkIdentityArgs(o, o.IdentityAPIVersion); err != nil {
		return nil, err
	}

	set := tokenCredentialSet(o, o.IdentityAPIVersion)

	var cred keystone.Credential
	var err error
	if isV3(o.IdentityAPIVersion) {
		cred, err = keystone.NewV3Token(set)
	} else {
		cred, err = keystone.NewV2Token(set)
	}
	if err != nil {
		return nil, cerrors.ConfigError{Message: err.Error()}
	}
	return r.clientFromCredential(cred)
}

func (r *Resolver) resolvePassword() (*barbican.Client, error) {
	o := r.opts

	set := passwordCredentialSet(o, o.IdentityAPIVersion)

	var cred keystone.Credential
	var err error
	if isV3(o.IdentityAPIVersion) {
		cred, err = keystone.NewV3Password(set)
	} else {
		cred, err = keystone.NewV2Password(set)
	}
	if err != nil {
		return nil, cerrors.ConfigError{Message: err.Error()}
	}
	return r.clientFromCredential(cred)
}

// clientFromCredential wraps the credential in a session and builds the
// session-shaped client.
func (r *Resolver) clientFromCredential(cred keystone.Credential) (*barbican.Client, error) {
	o := r.opts

	sessionOpts := []keystone.SessionOption{keystone.WithLogger(r.logger)}
	if o.KeyringTokenCache {
		store := r.store
		if store == nil {
			store = keystone.NewKeyringStore(r.logger)
		}
		sessionOpts = append(sessionOpts, keystone.WithTokenStore(store))
	}

	session := keystone.NewSession(cred, !o.Insecure, sessionOpts...)
	return barbican.New(barbican.Options{
		Session:  session,
		Endpoint: o.Endpoint,
		Logger:   r.logger,
	})
}

// checkIdentityArgs verifies that the options carry a usable project or
// tenant identification for the resolved identity version.
//
// Supported v3 combinations: project id; project name + project domain
// name; project name + project domain id. Supported v2 combinations:
// tenant id; tenant name.
func checkIdentityArgs(o *Options, version string) error {
	if isV3(version) {
		ok := o.ProjectID != "" ||
			(o.ProjectName != "" && o.ProjectDomainName != "") ||
			(o.ProjectName != "" && o.ProjectDomainID != "")
		if !ok {
			return cerrors.ConfigError{
				Message: "please specify --os-project-id, or --os-project-name with --os-project-domain-name, " +
					"or --os-project-name with --os-project-domain-id",
			}
		}
		return nil
	}
	if o.TenantID == "" && o.TenantName == "" {
		return cerrors.ConfigError{
			Message: "please specify --os-tenant-id or --os-tenant-name",
		}
	}
	return nil
}

// tokenCredentialSet builds the keyword set for token authentication:
// the version-appropriate scope fields plus auth_url and the token.
func tokenCredentialSet(o *Options, version string) map[string]string {
	set := credentialSet(o, version)
	set["auth_url"] = o.AuthURL
	set["token"] = o.AuthToken
	return set
}

// passwordCredentialSet builds the keyword set for password
// authentication: auth_url, password, whichever of user id/username is
// present, plus the version-appropriate scope fields. Only non-empty
// fields appear.
func passwordCredentialSet(o *Options, version string) map[string]string {
	set := credentialSet(o, version)
	set["auth_url"] = o.AuthURL
	set["password"] = o.Password
	if o.UserID != "" {
		set["user_id"] = o.UserID
	}
	if o.Username != "" {
		set["username"] = o.Username
	}
	return set
}

// credentialSet builds the version-appropriate field map, filtered to
// non-empty values.
func credentialSet(o *Options, version string) map[string]string {
	if isV3(version) {
		return credentialSetV3(o)
	}
	return credentialSetV2(o)
}

func credentialSetV3(o *Options) map[string]string {
	return nonEmpty(map[string]string{
		"project_id":          o.ProjectID,
		"project_name":        o.ProjectName,
		"user_domain_id":      o.UserDomainID,
		"user_domain_name":    o.UserDomainName,
		"project_domain_id":   o.ProjectDomainID,
		"project_domain_name": o.ProjectDomainName,
	})
}

func credentialSetV2(o *Options) map[string]string {
	return nonEmpty(map[string]string{
		"tenant_id":   o.TenantID,
		"tenant_name": o.TenantName,
	})
}

func nonEmpty(set map[string]string) map[string]string {
	filtered := make(map[string]string, len(set))
	for key, value := range set {
		if value != "" {
			filtered[key] = value
		}
	}
	return filtered
}
