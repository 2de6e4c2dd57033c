// Package squarespace loads membership orders from the Squarespace commerce
// API and manages its webhook subscriptions.
package squarespace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultBaseURL = "https://api.squarespace.com"
	apiVersion     = "1.0"
)

var (
	ErrUnauthorized = errors.New("squarespace: api key rejected")
	ErrBadRequest   = errors.New("squarespace: request rejected")
	ErrUpstream     = errors.New("squarespace: upstream unavailable")
)

// Client is a minimal bearer-token client for the Squarespace API.
type Client struct {
	apiKey    string
	baseURL   string
	userAgent string
	http      *http.Client
}

func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("squarespace: api key is required")
	}
	return &Client{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		userAgent: "membersync",
		http:      &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// SetBaseURL points the client at a different API host. Used by tests.
func (c *Client) SetBaseURL(baseURL string) { c.baseURL = baseURL }

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, apiVersion, path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: status %d", ErrBadRequest, resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
}

// Order is the raw Squarespace commerce order shape.
type Order struct {
	ID                     string     `json:"id"`
	OrderNumber            string     `json:"orderNumber"`
	Channel                string     `json:"channel"`
	ChannelName            string     `json:"channelName"`
	ExternalOrderReference string     `json:"externalOrderReference"`
	CustomerEmail          string     `json:"customerEmail"`
	BillingAddress         Address    `json:"billingAddress"`
	CreatedOn              time.Time  `json:"createdOn"`
	ModifiedOn             time.Time  `json:"modifiedOn"`
	FulfilledOn            *time.Time `json:"fulfilledOn"`
	FulfillmentStatus      string     `json:"fulfillmentStatus"`
	TestMode               bool       `json:"testmode"`
	LineItems              []LineItem `json:"lineItems"`
}

type Address struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type LineItem struct {
	ID          string `json:"id"`
	SKU         string `json:"sku"`
	VariantID   string `json:"variantId"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
}

type ordersResponse struct {
	Result     []Order    `json:"result"`
	Pagination pagination `json:"pagination"`
}

type pagination struct {
	HasNextPage    bool   `json:"hasNextPage"`
	NextPageCursor string `json:"nextPageCursor"`
}

// Orders fetches one page of orders, newest-modified first. An empty cursor
// requests the first page; the returned cursor is empty once exhausted.
func (c *Client) Orders(ctx context.Context, params url.Values, cursor string) ([]Order, string, error) {
	query := url.Values{}
	if cursor != "" {
		// The API rejects requests mixing a cursor with other filters.
		query.Set("cursor", cursor)
	} else {
		for key, values := range params {
			for _, value := range values {
				query.Add(key, value)
			}
		}
	}

	var page ordersResponse
	if err := c.do(ctx, http.MethodGet, "commerce/orders", query, nil, &page); err != nil {
		return nil, "", err
	}
	return page.Result, page.Pagination.NextPageCursor, nil
}

// Order fetches a single order by its Squarespace ID.
func (c *Client) Order(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodGet, "commerce/orders/"+orderID, nil, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// WebhookSubscription is the raw webhook subscription shape.
type WebhookSubscription struct {
	ID          string   `json:"id"`
	WebsiteID   string   `json:"websiteId"`
	EndpointURL string   `json:"endpointUrl"`
	Topics      []string `json:"topics"`
	Secret      string   `json:"secret"`
	CreatedOn   string   `json:"createdOn"`
	UpdatedOn   string   `json:"updatedOn"`
}

type listWebhooksResponse struct {
	WebhookSubscriptions []WebhookSubscription `json:"webhookSubscriptions"`
}

func (c *Client) ListWebhookSubscriptions(ctx context.Context) ([]WebhookSubscription, error) {
	var resp listWebhooksResponse
	if err := c.do(ctx, http.MethodGet, "webhook_subscriptions", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.WebhookSubscriptions, nil
}

func (c *Client) CreateWebhookSubscription(ctx context.Context, endpointURL string, topics []string) (*WebhookSubscription, error) {
	body := map[string]any{
		"endpointUrl": endpointURL,
		"topics":      topics,
	}
	var resp WebhookSubscription
	if err := c.do(ctx, http.MethodPost, "webhook_subscriptions", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteWebhookSubscription(ctx context.Context, webhookID string) error {
	return c.do(ctx, http.MethodDelete, "webhook_subscriptions/"+webhookID, nil, nil, nil)
}

type rotateSecretResponse struct {
	Secret string `json:"secret"`
}

// RotateWebhookSecret asks Squarespace to issue a fresh signing secret. The
// previous secret is invalid once this returns.
func (c *Client) RotateWebhookSecret(ctx context.Context, webhookID string) (string, error) {
	var resp rotateSecretResponse
	path := "webhook_subscriptions/" + webhookID + "/actions/rotateSecret"
	if err := c.do(ctx, http.MethodPost, path, nil, map[string]any{}, &resp); err != nil {
		return "", err
	}
	return resp.Secret, nil
}

func (c *Client) SendTestNotification(ctx context.Context, webhookID, topic string) error {
	path := "webhook_subscriptions/" + webhookID + "/actions/sendTestNotification"
	return c.do(ctx, http.MethodPost, path, nil, map[string]any{"topic": topic}, nil)
}
