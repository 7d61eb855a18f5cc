package barbican

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Container groups related secret references (generic, rsa, or
// certificate typed).
type Container struct {
	ContainerRef string               `json:"container_ref,omitempty"`
	Name         string               `json:"name,omitempty"`
	Type         string               `json:"type,omitempty"`
	Status       string               `json:"status,omitempty"`
	SecretRefs   []ContainerSecretRef `json:"secret_refs,omitempty"`
	Created      *time.Time           `json:"created,omitempty"`
	Updated      *time.Time           `json:"updated,omitempty"`
}

// ContainerSecretRef names one secret inside a container.
type ContainerSecretRef struct {
	Name      string `json:"name,omitempty"`
	SecretRef string `json:"secret_ref"`
}

// GetContainer fetches a container by href or id.
func (c *Client) GetContainer(ctx context.Context, ref string) (*Container, error) {
	u, err := c.resourceURL(ctx, "containers", refID(ref))
	if err != nil {
		return nil, err
	}
	var container Container
	if err := c.do(ctx, http.MethodGet, u, nil, &container); err != nil {
		return nil, err
	}
	return &container, nil
}

// ListContainers pages through containers.
func (c *Client) ListContainers(ctx context.Context, opts ListOptions) ([]Container, int, error) {
	u, err := c.resourceURL(ctx, "containers")
	if err != nil {
		return nil, 0, err
	}
	var page struct {
		Containers []Container `json:"containers"`
		Total      int         `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, u+opts.query(), nil, &page); err != nil {
		return nil, 0, err
	}
	return page.Containers, page.Total, nil
}

// CreateContainer creates a container and returns its href.
func (c *Client) CreateContainer(ctx context.Context, container *Container) (string, error) {
	if container.Type == "" {
		container.Type = "generic"
	}
	u, err := c.resourceURL(ctx, "containers")
	if err != nil {
		return "", err
	}
	var created struct {
		ContainerRef string `json:"container_ref"`
	}
	if err := c.do(ctx, http.MethodPost, u, container, &created); err != nil {
		return "", err
	}
	if created.ContainerRef == "" {
		return "", fmt.Errorf("no container_ref in create response")
	}
	return created.ContainerRef, nil
}

// DeleteContainer removes a container by href or id. The referenced
// secrets are untouched.
func (c *Client) DeleteContainer(ctx context.Context, ref string) error {
	u, err := c.resourceURL(ctx, "containers", refID(ref))
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, u, nil, nil)
}
