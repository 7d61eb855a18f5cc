package barbican

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Secret is a stored secret's metadata. The payload travels separately
// (see GetSecretPayload) unless it was inlined at store time.
type Secret struct {
	SecretRef              string            `json:"secret_ref,omitempty"`
	Name                   string            `json:"name,omitempty"`
	Status                 string            `json:"status,omitempty"`
	SecretType             string            `json:"secret_type,omitempty"`
	Algorithm              string            `json:"algorithm,omitempty"`
	BitLength              int               `json:"bit_length,omitempty"`
	Mode                   string            `json:"mode,omitempty"`
	ContentTypes           map[string]string `json:"content_types,omitempty"`
	Expiration             *time.Time        `json:"expiration,omitempty"`
	Created                *time.Time        `json:"created,omitempty"`
	Updated                *time.Time        `json:"updated,omitempty"`
	Payload                string            `json:"payload,omitempty"`
	PayloadContentType     string            `json:"payload_content_type,omitempty"`
	PayloadContentEncoding string            `json:"payload_content_encoding,omitempty"`
}

// ListOptions narrows list calls. Zero values are omitted.
type ListOptions struct {
	Name   string
	Limit  int
	Offset int
}

func (o ListOptions) query() string {
	values := url.Values{}
	if o.Name != "" {
		values.Set("name", o.Name)
	}
	if o.Limit > 0 {
		values.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		values.Set("offset", strconv.Itoa(o.Offset))
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

// GetSecret fetches a secret's metadata by href or id.
func (c *Client) GetSecret(ctx context.Context, ref string) (*Secret, error) {
	u, err := c.resourceURL(ctx, "secrets", refID(ref))
	if err != nil {
		return nil, err
	}
	var secret Secret
	if err := c.do(ctx, http.MethodGet, u, nil, &secret); err != nil {
		return nil, err
	}
	return &secret, nil
}

// GetSecretPayload fetches the decrypted payload of a secret. accept
// may be empty, in which case the stored content type is requested.
func (c *Client) GetSecretPayload(ctx context.Context, ref, accept string) ([]byte, string, error) {
	u, err := c.resourceURL(ctx, "secrets", refID(ref), "payload")
	if err != nil {
		return nil, "", err
	}
	if accept == "" {
		accept = "text/plain"
	}
	return c.doRaw(ctx, u, accept)
}

// ListSecrets pages through stored secrets.
func (c *Client) ListSecrets(ctx context.Context, opts ListOptions) ([]Secret, int, error) {
	u, err := c.resourceURL(ctx, "secrets")
	if err != nil {
		return nil, 0, err
	}
	var page struct {
		Secrets []Secret `json:"secrets"`
		Total   int      `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, u+opts.query(), nil, &page); err != nil {
		return nil, 0, err
	}
	return page.Secrets, page.Total, nil
}

// StoreSecret uploads a new secret and returns its href.
func (c *Client) StoreSecret(ctx context.Context, secret *Secret) (string, error) {
	if secret.Payload != "" && secret.PayloadContentType == "" {
		secret.PayloadContentType = "text/plain"
	}
	u, err := c.resourceURL(ctx, "secrets")
	if err != nil {
		return "", err
	}
	var created struct {
		SecretRef string `json:"secret_ref"`
	}
	if err := c.do(ctx, http.MethodPost, u, secret, &created); err != nil {
		return "", err
	}
	if created.SecretRef == "" {
		return "", fmt.Errorf("no secret_ref in store response")
	}
	return created.SecretRef, nil
}

// DeleteSecret removes a secret by href or id.
func (c *Client) DeleteSecret(ctx context.Context, ref string) error {
	u, err := c.resourceURL(ctx, "secrets", refID(ref))
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, u, nil, nil)
}
