// Package barbican is a client for the Barbican v1 key-manager REST
// API. A client is constructed in one of two shapes: unauthenticated
// (endpoint + project id + TLS-verify flag) or authenticated (an
// established Keystone session + optional endpoint override).
package barbican

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	cerrors "github.com/openstack-tools/barbican-cli/internal/errors"
	"github.com/openstack-tools/barbican-cli/internal/keystone"
	"github.com/openstack-tools/barbican-cli/internal/logging"
)

const apiVersion = "v1"

// DefaultTimeout bounds every API request of an unauthenticated client.
// Session-backed clients inherit the session's timeout.
const DefaultTimeout = 30 * time.Second

// Options selects one of the two construction shapes.
type Options struct {
	// Endpoint is the Barbican URL. Required without a session;
	// optional with one (the service catalog is consulted otherwise).
	Endpoint string

	// ProjectID scopes unauthenticated requests via the X-Project-Id
	// header. Required without a session.
	ProjectID string

	// Verify controls TLS certificate verification for
	// unauthenticated clients. Session-backed clients inherit the
	// session's setting.
	Verify bool

	// Session is nil for the unauthenticated shape.
	Session *keystone.Session

	Timeout    time.Duration
	Logger     *logging.Logger
	HTTPClient *http.Client // test hook
}

// Client talks to one Barbican deployment.
type Client struct {
	endpoint  string
	projectID string
	session   *keystone.Session
	httpc     *http.Client
	logger    *logging.Logger
}

// New constructs a client from either initialization shape.
func New(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.New(false, false)
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	if opts.Session == nil {
		if opts.Endpoint == "" || opts.ProjectID == "" {
			return nil, cerrors.ConfigError{
				Message:    "an unauthenticated client requires an endpoint and a project id",
				Suggestion: "Pass --endpoint and --os-project-id (or --os-tenant-id), or authenticate instead",
			}
		}
		httpc := opts.HTTPClient
		if httpc == nil {
			httpc = &http.Client{Timeout: timeout}
			if !opts.Verify {
				httpc.Transport = &http.Transport{
					TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
				}
			}
		}
		return &Client{
			endpoint:  opts.Endpoint,
			projectID: opts.ProjectID,
			httpc:     httpc,
			logger:    logger,
		}, nil
	}

	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = opts.Session.HTTPClient()
	}
	return &Client{
		endpoint: opts.Endpoint,
		session:  opts.Session,
		httpc:    httpc,
		logger:   logger,
	}, nil
}

// Authenticated reports whether the client rides a Keystone session.
func (c *Client) Authenticated() bool { return c.session != nil }

// Endpoint returns the Barbican endpoint, consulting the session's
// service catalog when none was given explicitly.
func (c *Client) Endpoint(ctx context.Context) (string, error) {
	if c.endpoint != "" {
		return c.endpoint, nil
	}
	if c.session == nil {
		return "", cerrors.ConfigError{
			Option:  "endpoint",
			Message: "no endpoint configured",
		}
	}
	discovered, err := c.session.Endpoint(ctx, keystone.ServiceTypeKeyManager, keystone.InterfacePublic)
	if err != nil {
		return "", err
	}
	c.endpoint = discovered
	c.logger.Debug("Discovered key-manager endpoint %s", discovered)
	return discovered, nil
}

// resourceURL joins the endpoint, API version, and path segments.
// Endpoints configured with a trailing /v1 are not doubled.
func (c *Client) resourceURL(ctx context.Context, segments ...string) (string, error) {
	endpoint, err := c.Endpoint(ctx)
	if err != nil {
		return "", err
	}
	base := strings.TrimSuffix(endpoint, "/")
	if !strings.HasSuffix(base, "/"+apiVersion) {
		base += "/" + apiVersion
	}
	for _, segment := range segments {
		base += "/" + url.PathEscape(segment)
	}
	return base, nil
}

// do sends one JSON API request and decodes the response into out when
// out is non-nil.
func (c *Client) do(ctx context.Context, method, rawURL string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.apiError(method, rawURL, resp)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// doRaw fetches a non-JSON resource (secret payloads) with the given
// Accept header and returns the body and its content type.
func (c *Client) doRaw(ctx context.Context, rawURL, accept string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.send(req)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", c.apiError(http.MethodGet, rawURL, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read payload: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// send dispatches the request through the session when present,
// otherwise directly with the project-id header.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	if c.session != nil {
		return c.session.Do(req)
	}
	req.Header.Set("X-Project-Id", c.projectID)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) apiError(method, rawURL string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return cerrors.APIError{
		Method:     method,
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}

// refID extracts the resource id from a full href, accepting bare ids
// unchanged. Barbican returns hrefs; commands accept either.
func refID(ref string) string {
	trimmed := strings.TrimSuffix(ref, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
