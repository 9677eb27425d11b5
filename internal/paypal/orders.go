package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Order is a gateway checkout order.
type Order struct {
	ID         string
	Status     string
	ApproveURL string
}

// Capture is the result of capturing a checkout order.
type Capture struct {
	ID     string
	Status string
}

// CreateOrderParams describes a single-purchase checkout order.
type CreateOrderParams struct {
	AmountCents int64
	Description string
	// CustomID is carried through to capture webhooks for correlation.
	CustomID  string
	BrandName string
	ReturnURL string
	CancelURL string
}

// CreateOrder creates a checkout order with CAPTURE intent and returns the
// order id plus the buyer approval URL.
func (c *Client) CreateOrder(ctx context.Context, params CreateOrderParams) (Order, error) {
	reqBody := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount": map[string]string{
				"currency_code": "USD",
				"value":         centsValue(params.AmountCents),
			},
			"description": params.Description,
			"custom_id":   params.CustomID,
		}},
		"application_context": map[string]string{
			"brand_name":   params.BrandName,
			"landing_page": "NO_PREFERENCE",
			"user_action":  "PAY_NOW",
			"return_url":   params.ReturnURL,
			"cancel_url":   params.CancelURL,
		},
	}

	body, err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", reqBody)
	if err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Links  []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Order{}, fmt.Errorf("paypal: decode order: %w", err)
	}

	order := Order{ID: resp.ID, Status: resp.Status}
	for _, link := range resp.Links {
		if link.Rel == "approve" {
			order.ApproveURL = link.Href
		}
	}
	if order.ApproveURL == "" {
		return Order{}, fmt.Errorf("paypal: order %s created but no approve URL returned", resp.ID)
	}
	return order, nil
}

// CaptureOrder captures an approved checkout order. This is the raw
// gateway call; local idempotency lives in the reconciler, which never
// calls here for an order it already holds a capture id for.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (Capture, error) {
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", url.PathEscape(orderID))
	body, err := c.do(ctx, http.MethodPost, path, struct{}{})
	if err != nil {
		return Capture{}, fmt.Errorf("capture order %s: %w", orderID, err)
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Capture{}, fmt.Errorf("paypal: decode capture: %w", err)
	}
	return Capture{ID: resp.ID, Status: resp.Status}, nil
}
