// Package minibc loads membership subscriptions from the MiniBC recurring
// subscriptions API.
package minibc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://apps.minibc.com/api/apps/recurring/v1"

var (
	ErrUnauthorized = errors.New("minibc: api token rejected")
	ErrUpstream     = errors.New("minibc: upstream unavailable")
)

// ErrNoResults is returned for the API's 404-on-empty-search behavior.
var ErrNoResults = errors.New("minibc: no results")

// Client is an X-MBC-TOKEN client for the MiniBC API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("minibc: api key is required")
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// SetBaseURL points the client at a different API host. Used by tests.
func (c *Client) SetBaseURL(baseURL string) { c.baseURL = baseURL }

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-MBC-TOKEN", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(out)
	case resp.StatusCode == http.StatusNotFound:
		return ErrNoResults
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
}

// Subscription is the raw MiniBC subscription shape (subset).
type Subscription struct {
	ID           int64     `json:"id"`
	OrderID      int64     `json:"order_id"`
	Status       string    `json:"status"`
	CreatedTime  string    `json:"created_time"`
	LastModified string    `json:"last_modified"`
	SignupDate   string    `json:"signup_date"`
	Customer     Customer  `json:"customer"`
	Products     []Product `json:"products"`
}

type Customer struct {
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	StoreCustomerID int64  `json:"store_customer_id"`
}

type Product struct {
	OrderProductID int64  `json:"order_product_id"`
	StoreProductID int64  `json:"store_product_id"`
	SKU            string `json:"sku"`
	Name           string `json:"name"`
}

type searchRequest struct {
	ProductSKU string `json:"product_sku,omitempty"`
	OrderID    int64  `json:"order_id,omitempty"`
	Page       int    `json:"page"`
}

// SearchSubscriptionsPage fetches one page of subscriptions matching the SKU.
func (c *Client) SearchSubscriptionsPage(ctx context.Context, productSKU string, page int) ([]Subscription, error) {
	var subscriptions []Subscription
	err := c.post(ctx, "subscriptions/search", searchRequest{ProductSKU: productSKU, Page: page}, &subscriptions)
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

// SearchSubscriptionsByOrderID looks up the subscriptions behind one store order.
func (c *Client) SearchSubscriptionsByOrderID(ctx context.Context, orderID int64) ([]Subscription, error) {
	var subscriptions []Subscription
	err := c.post(ctx, "subscriptions/search", searchRequest{OrderID: orderID, Page: 1}, &subscriptions)
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}
