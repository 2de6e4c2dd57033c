package bigcommerce

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/losverdes/membersync/internal/config"
	membershipdomain "github.com/losverdes/membersync/internal/membership/domain"
	"go.uber.org/zap"
)

// orderIDSuffix namespaces BigCommerce's numeric order IDs so they can never
// collide with another source's IDs in the canonical table.
const orderIDSuffix = "_bc"

// Adapter normalizes BigCommerce orders into canonical membership rows.
type Adapter struct {
	client *Client
	skus   map[string]struct{}
	log    *zap.Logger
}

func NewAdapter(cfg config.BigCommerceConfig, log *zap.Logger) (*Adapter, error) {
	if len(cfg.MembershipSKUs) == 0 {
		return nil, errors.New("bigcommerce: membership skus are required")
	}
	client, err := NewClient(cfg.StoreHash, cfg.ClientID, cfg.AccessToken)
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
		log:    log.Named("bigcommerce"),
	}
}

// Client exposes the underlying API client.
func (a *Adapter) Client() *Client { return a.client }

// RawOrder pairs an order with its separately fetched line items.
type RawOrder struct {
	Order    Order
	Products []OrderProduct
}

// LoadWindow pages through orders created within [after, before], fetching
// each order's products. An empty page terminates pagination.
func (a *Adapter) LoadWindow(ctx context.Context, after, before time.Time) ([]RawOrder, error) {
	return a.load(ctx, after.UTC().Format(time.RFC3339), before.UTC().Format(time.RFC3339))
}

// LoadAll pages through the store's entire order history.
func (a *Adapter) LoadAll(ctx context.Context) ([]RawOrder, error) {
	return a.load(ctx, "", "")
}

// LoadOrder fetches a single order and its products.
func (a *Adapter) LoadOrder(ctx context.Context, orderID int64) (*RawOrder, error) {
	order, err := a.client.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	products, err := a.client.OrderProducts(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &RawOrder{Order: *order, Products: products}, nil
}

func (a *Adapter) load(ctx context.Context, minCreated, maxCreated string) ([]RawOrder, error) {
	var raws []RawOrder
	for page := 1; ; page++ {
		orders, err := a.client.Orders(ctx, minCreated, maxCreated, page)
		if err != nil {
			return nil, err
		}
		if len(orders) == 0 {
			break
		}
		for _, order := range orders {
			products, err := a.client.OrderProducts(ctx, order.ID)
			if err != nil {
				return nil, err
			}
			raws = append(raws, RawOrder{Order: order, Products: products})
		}
	}
	a.log.Debug("orders loaded", zap.Int("count", len(raws)))
	return raws, nil
}

// Normalize converts one raw order into canonical membership rows, one per
// membership line item. Non-membership line items are dropped and logged.
func (a *Adapter) Normalize(raw RawOrder) []membershipdomain.MembershipOrder {
	order := raw.Order

	createdOn, err := parseDate(order.DateCreated)
	if err != nil || createdOn == nil {
		a.log.Warn("order missing created date, skipping",
			zap.Int64("order_id", order.ID), zap.Error(err))
		return nil
	}
	modifiedOn, err := parseDate(order.DateModified)
	if err != nil || modifiedOn == nil {
		modifiedOn = createdOn
	}
	fulfilledOn, err := parseDate(order.DateShipped)
	if err != nil {
		fulfilledOn = nil
	}

	var rows []membershipdomain.MembershipOrder
	for _, item := range raw.Products {
		if _, ok := a.skus[item.SKU]; !ok {
			a.log.Debug("ignoring non-membership line item",
				zap.Int64("order_id", order.ID),
				zap.String("sku", item.SKU),
				zap.String("product_name", item.Name),
			)
			continue
		}

		// Variant comes from the first product option when present.
		variantID := ""
		if len(item.ProductOptions) > 0 {
			variantID = strconv.FormatInt(item.ProductOptions[0].ID, 10)
		}

		rows = append(rows, membershipdomain.MembershipOrder{
			OrderID:                fmt.Sprintf("%d%s", order.ID, orderIDSuffix),
			OrderNumber:            fmt.Sprintf("%d_%s", order.ID, order.CartID),
			Channel:                strconv.FormatInt(order.ChannelID, 10),
			ChannelName:            "bigcommerce_" + order.OrderSource,
			ExternalOrderReference: order.ExternalID,
			CustomerEmail:          strings.ToLower(order.BillingAddress.Email),
			BillingFirstName:       order.BillingAddress.FirstName,
			BillingLastName:        order.BillingAddress.LastName,
			CreatedOn:              *createdOn,
			ModifiedOn:             *modifiedOn,
			FulfilledOn:            fulfilledOn,
			FulfillmentStatus:      normalizeStatus(order.Status),
			SKU:                    item.SKU,
			VariantID:              variantID,
			ProductID:              strconv.FormatInt(item.ProductID, 10),
			ProductName:            item.Name,
			LineItemID:             strconv.FormatInt(item.ID, 10),
			TestMode:               false,
		})
	}
	return rows
}

// normalizeStatus folds BigCommerce's order statuses into the canonical
// fulfillment states.
func normalizeStatus(status string) membershipdomain.FulfillmentStatus {
	switch strings.ToLower(status) {
	case "shipped", "completed":
		return membershipdomain.FulfillmentStatusFulfilled
	case "cancelled", "declined", "refunded":
		return membershipdomain.FulfillmentStatusCanceled
	default:
		return membershipdomain.FulfillmentStatusPending
	}
}

// dateLayouts covers the RFC-2822 style timestamps the v2 API returns,
// plus RFC3339 for forward compatibility.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
}

func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			utc := t.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("bigcommerce: unparseable date %q", raw)
}
