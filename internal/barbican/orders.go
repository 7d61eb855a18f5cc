package barbican

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Order asks Barbican to generate a secret server-side (keys, asymmetric
// pairs). The generated secret is linked once the order reaches ACTIVE.
type Order struct {
	OrderRef     string     `json:"order_ref,omitempty"`
	Type         string     `json:"type"`
	Status       string     `json:"status,omitempty"`
	SecretRef    string     `json:"secret_ref,omitempty"`
	ContainerRef string     `json:"container_ref,omitempty"`
	ErrorReason  string     `json:"error_status_reason,omitempty"`
	Meta         OrderMeta  `json:"meta"`
	Created      *time.Time `json:"created,omitempty"`
	Updated      *time.Time `json:"updated,omitempty"`
}

// OrderMeta describes the secret to generate.
type OrderMeta struct {
	Name               string `json:"name,omitempty"`
	Algorithm          string `json:"algorithm,omitempty"`
	BitLength          int    `json:"bit_length,omitempty"`
	Mode               string `json:"mode,omitempty"`
	PayloadContentType string `json:"payload_content_type,omitempty"`
	Expiration         string `json:"expiration,omitempty"`
}

// GetOrder fetches an order by href or id.
func (c *Client) GetOrder(ctx context.Context, ref string) (*Order, error) {
	u, err := c.resourceURL(ctx, "orders", refID(ref))
	if err != nil {
		return nil, err
	}
	var order Order
	if err := c.do(ctx, http.MethodGet, u, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders pages through orders.
func (c *Client) ListOrders(ctx context.Context, opts ListOptions) ([]Order, int, error) {
	u, err := c.resourceURL(ctx, "orders")
	if err != nil {
		return nil, 0, err
	}
	var page struct {
		Orders []Order `json:"orders"`
		Total  int     `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, u+opts.query(), nil, &page); err != nil {
		return nil, 0, err
	}
	return page.Orders, page.Total, nil
}

// CreateOrder submits a generation order and returns its href.
func (c *Client) CreateOrder(ctx context.Context, order *Order) (string, error) {
	if order.Type == "" {
		order.Type = "key"
	}
	u, err := c.resourceURL(ctx, "orders")
	if err != nil {
		return "", err
	}
	var created struct {
		OrderRef string `json:"order_ref"`
	}
	if err := c.do(ctx, http.MethodPost, u, order, &created); err != nil {
		return "", err
	}
	if created.OrderRef == "" {
		return "", fmt.Errorf("no order_ref in create response")
	}
	return created.OrderRef, nil
}

// DeleteOrder removes an order by href or id.
func (c *Client) DeleteOrder(ctx context.Context, ref string) error {
	u, err := c.resourceURL(ctx, "orders", refID(ref))
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, u, nil, nil)
}
