package squarespace

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/losverdes/membersync/internal/config"
	membershipdomain "github.com/losverdes/membersync/internal/membership/domain"
	"go.uber.org/zap"
)

// Adapter normalizes Squarespace orders into canonical membership rows.
type Adapter struct {
	client *Client
	skus   map[string]struct{}
	log    *zap.Logger
}

func NewAdapter(cfg config.SquarespaceConfig, log *zap.Logger) (*Adapter, error) {
	if len(cfg.MembershipSKUs) == 0 {
		return nil, errors.New("squarespace: membership skus are required")
	}
	client, err := NewClient(cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return newAdapter(client, cfg.MembershipSKUs, log), nil
}

func newAdapter(client *Client, skus []string, log *zap.Logger) *Adapter {
	skuSet := make(map[string]struct{}, len(skus))
	for _, sku := range skus {
		skuSet[sku] = struct{}{}
	}
	return &Adapter{
		client: client,
		skus:   skuSet,
		log:    log.Named("squarespace"),
	}
}

// Client exposes the underlying API client for webhook provisioning.
func (a *Adapter) Client() *Client { return a.client }

// LoadWindow pages through all orders modified within [after, before].
func (a *Adapter) LoadWindow(ctx context.Context, after, before time.Time) ([]Order, error) {
	params := url.Values{}
	params.Set("modifiedAfter", after.UTC().Format(time.RFC3339))
	params.Set("modifiedBefore", before.UTC().Format(time.RFC3339))
	return a.loadAll(ctx, params)
}

// LoadAll pages through the store's entire order history.
func (a *Adapter) LoadAll(ctx context.Context) ([]Order, error) {
	return a.loadAll(ctx, nil)
}

// LoadOrder fetches a single order, for webhook-triggered syncs.
func (a *Adapter) LoadOrder(ctx context.Context, orderID string) (*Order, error) {
	return a.client.Order(ctx, orderID)
}

func (a *Adapter) loadAll(ctx context.Context, params url.Values) ([]Order, error) {
	var orders []Order
	cursor := ""
	for {
		page, next, err := a.client.Orders(ctx, params, cursor)
		if err != nil {
			return nil, err
		}
		orders = append(orders, page...)
		if next == "" {
			break
		}
		cursor = next
	}
	a.log.Debug("orders loaded", zap.Int("count", len(orders)))
	return orders, nil
}

// Normalize converts one raw order into canonical membership rows, one per
// membership line item. Non-membership line items are dropped and logged.
func (a *Adapter) Normalize(order Order) []membershipdomain.MembershipOrder {
	var rows []membershipdomain.MembershipOrder
	for _, item := range order.LineItems {
		if _, ok := a.skus[item.SKU]; !ok {
			a.log.Debug("ignoring non-membership line item",
				zap.String("order_id", order.ID),
				zap.String("sku", item.SKU),
				zap.String("product_name", item.ProductName),
			)
			continue
		}

		var fulfilledOn *time.Time
		if order.FulfilledOn != nil {
			t := order.FulfilledOn.UTC()
			fulfilledOn = &t
		}

		rows = append(rows, membershipdomain.MembershipOrder{
			// Squarespace order IDs are already globally unique
			// alphanumerics, so they need no source prefix.
			OrderID:                order.ID,
			OrderNumber:            order.OrderNumber,
			Channel:                order.Channel,
			ChannelName:            order.ChannelName,
			ExternalOrderReference: order.ExternalOrderReference,
			CustomerEmail:          strings.ToLower(order.CustomerEmail),
			BillingFirstName:       order.BillingAddress.FirstName,
			BillingLastName:        order.BillingAddress.LastName,
			CreatedOn:              order.CreatedOn.UTC(),
			ModifiedOn:             order.ModifiedOn.UTC(),
			FulfilledOn:            fulfilledOn,
			FulfillmentStatus:      normalizeStatus(order.FulfillmentStatus),
			SKU:                    item.SKU,
			VariantID:              item.VariantID,
			ProductID:              item.ProductID,
			ProductName:            item.ProductName,
			LineItemID:             item.ID,
			TestMode:               order.TestMode,
		})
	}
	return rows
}

func normalizeStatus(status string) membershipdomain.FulfillmentStatus {
	switch status {
	case "FULFILLED":
		return membershipdomain.FulfillmentStatusFulfilled
	case "CANCELED":
		return membershipdomain.FulfillmentStatusCanceled
	default:
		return membershipdomain.FulfillmentStatusPending
	}
}
