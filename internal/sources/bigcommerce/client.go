// Package bigcommerce loads membership orders from the BigCommerce store
// API (v2 orders endpoints).
package bigcommerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultBaseURL = "https://api.bigcommerce.com/stores"

var (
	ErrUnauthorized = errors.New("bigcommerce: access token rejected")
	ErrBadRequest   = errors.New("bigcommerce: request rejected")
	ErrUpstream     = errors.New("bigcommerce: upstream unavailable")
)

// Client is an X-Auth-Token client scoped to one store.
type Client struct {
	storeHash   string
	clientID    string
	accessToken string
	baseURL     string
	http        *http.Client
}

func NewClient(storeHash, clientID, accessToken string) (*Client, error) {
	if storeHash == "" || accessToken == "" {
		return nil, errors.New("bigcommerce: store hash and access token are required")
	}
	return &Client{
		storeHash:   storeHash,
		clientID:    clientID,
		accessToken: accessToken,
		baseURL:     defaultBaseURL,
		http:        &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// SetBaseURL points the client at a different API host. Used by tests.
func (c *Client) SetBaseURL(baseURL string) { c.baseURL = baseURL }

// StoreHash identifies the store this client is bound to.
func (c *Client) StoreHash() string { return c.storeHash }

// ClientID identifies the app registration this client belongs to.
func (c *Client) ClientID() string { return c.clientID }

func (c *Client) get(ctx context.Context, route string, query url.Values, out any) (int, error) {
	endpoint := fmt.Sprintf("%s/%s/v2/%s", c.baseURL, c.storeHash, route)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Auth-Token", c.accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusOK:
		return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
	case resp.StatusCode == http.StatusUnauthorized:
		return resp.StatusCode, ErrUnauthorized
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return resp.StatusCode, fmt.Errorf("%w: status %d", ErrBadRequest, resp.StatusCode)
	default:
		return resp.StatusCode, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
}

// Order is the raw BigCommerce v2 order shape (subset).
type Order struct {
	ID             int64          `json:"id"`
	CartID         string         `json:"cart_id"`
	ChannelID      int64          `json:"channel_id"`
	OrderSource    string         `json:"order_source"`
	ExternalID     string         `json:"external_id"`
	Status         string         `json:"status"`
	DateCreated    string         `json:"date_created"`
	DateModified   string         `json:"date_modified"`
	DateShipped    string         `json:"date_shipped"`
	BillingAddress BillingAddress `json:"billing_address"`
}

type BillingAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// OrderProduct is the raw line-item shape from /orders/{id}/products.
type OrderProduct struct {
	ID             int64           `json:"id"`
	ProductID      int64           `json:"product_id"`
	SKU            string          `json:"sku"`
	Name           string          `json:"name"`
	ProductOptions []ProductOption `json:"product_options"`
}

type ProductOption struct {
	ID int64 `json:"id"`
}

// Orders fetches one page of orders created within the given window. A 204
// response (or empty body) signals an exhausted listing.
func (c *Client) Orders(ctx context.Context, minDateCreated, maxDateCreated string, page int) ([]Order, error) {
	query := url.Values{}
	if minDateCreated != "" {
		query.Set("min_date_created", minDateCreated)
	}
	if maxDateCreated != "" {
		query.Set("max_date_created", maxDateCreated)
	}
	query.Set("sort", "date_created:asc")
	query.Set("page", strconv.Itoa(page))

	var orders []Order
	status, err := c.get(ctx, "orders", query, &orders)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return orders, nil
}

// Order fetches a single order by ID.
func (c *Client) Order(ctx context.Context, orderID int64) (*Order, error) {
	var order Order
	if _, err := c.get(ctx, fmt.Sprintf("orders/%d", orderID), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// OrderProducts fetches the line items for one order.
func (c *Client) OrderProducts(ctx context.Context, orderID int64) ([]OrderProduct, error) {
	var products []OrderProduct
	status, err := c.get(ctx, fmt.Sprintf("orders/%d/products", orderID), nil, &products)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return products, nil
}
