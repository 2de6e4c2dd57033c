package minibc

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

// orderIDPrefix namespaces MiniBC's numeric subscription IDs so they can
// never collide with another source's IDs in the canonical table.
const orderIDPrefix = "minibc_"

const (
	defaultMaxPagesPerRun = 200
	// MiniBC rate-limits aggressively; consecutive page fetches within a
	// run are spaced at least this far apart.
	interPageDelay = time.Second
)

// Adapter normalizes MiniBC subscriptions into canonical membership rows.
// MiniBC paginates by page number: an empty page (or the API's 404-on-empty
// behavior) terminates the run.
type Adapter struct {
	client    *Client
	skus      []string
	maxPages  int
	pageDelay time.Duration
	log       *zap.Logger
}

func NewAdapter(cfg config.MinibcConfig, log *zap.Logger) (*Adapter, error) {
	if len(cfg.MembershipSKUs) == 0 {
		return nil, errors.New("minibc: membership skus are required")
	}
	client, err := NewClient(cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return newAdapter(client, cfg.MembershipSKUs, log), nil
}

func newAdapter(client *Client, skus []string, log *zap.Logger) *Adapter {
	return &Adapter{
		client:    client,
		skus:      skus,
		maxPages:  defaultMaxPagesPerRun,
		pageDelay: interPageDelay,
		log:       log.Named("minibc"),
	}
}

// Client exposes the underlying API client.
func (a *Adapter) Client() *Client { return a.client }

// SetPageDelay overrides the inter-page wait. Used by tests.
func (a *Adapter) SetPageDelay(d time.Duration) { a.pageDelay = d }

// PageResult is the outcome of one bounded pagination run.
type PageResult struct {
	Subscriptions []Subscription
	// RestartPage is the safe page to resume from on the next run: 1 when
	// the listing was exhausted (a full rescan picks up anything a
	// transient empty page may have hidden), otherwise one page before
	// the last page processed.
	RestartPage int
	Exhausted   bool
}

// SearchSubscriptions pages through subscriptions for the primary membership
// SKU, starting at the given page and bounded by the per-run page budget.
func (a *Adapter) SearchSubscriptions(ctx context.Context, startingPage int) (*PageResult, error) {
	if startingPage < 1 {
		startingPage = 1
	}

	result := &PageResult{RestartPage: 1}
	lastPage := startingPage
	for page := startingPage; page < startingPage+a.maxPages; page++ {
		// The delay spaces out consecutive requests only; neither the first
		// fetch nor the final page of a run pays it.
		if page > startingPage {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.pageDelay):
			}
		}

		subscriptions, err := a.client.SearchSubscriptionsPage(ctx, a.skus[0], page)
		if err != nil {
			if errors.Is(err, ErrNoResults) {
				a.log.Debug("empty search result page", zap.Int("page", page))
				result.Exhausted = true
				break
			}
			return nil, err
		}
		if len(subscriptions) == 0 {
			result.Exhausted = true
			break
		}
		result.Subscriptions = append(result.Subscriptions, subscriptions...)
		lastPage = page
	}

	if !result.Exhausted {
		if restart := lastPage - 1; restart > 1 {
			result.RestartPage = restart
		}
	}

	a.log.Debug("subscriptions loaded",
		zap.Int("count", len(result.Subscriptions)),
		zap.Int("starting_page", startingPage),
		zap.Int("restart_page", result.RestartPage),
		zap.Bool("exhausted", result.Exhausted),
	)
	return result, nil
}

// LoadOrder looks up the subscriptions behind one store order ID.
func (a *Adapter) LoadOrder(ctx context.Context, orderID int64) ([]Subscription, error) {
	return a.client.SearchSubscriptionsByOrderID(ctx, orderID)
}

// Normalize converts one raw subscription into canonical membership rows,
// one per membership line item. Non-membership products are dropped and
// logged.
func (a *Adapter) Normalize(sub Subscription) []membershipdomain.MembershipOrder {
	skuSet := make(map[string]struct{}, len(a.skus))
	for _, sku := range a.skus {
		skuSet[sku] = struct{}{}
	}

	signupDate := parseLooseDate(sub.SignupDate)
	lastModified := parseLooseDate(sub.LastModified)
	if signupDate == nil {
		a.log.Warn("subscription missing signup date, skipping",
			zap.Int64("subscription_id", sub.ID))
		return nil
	}
	if lastModified == nil {
		lastModified = signupDate
	}

	orderRef := sub.OrderID
	if orderRef == 0 {
		orderRef = sub.ID
	}

	var rows []membershipdomain.MembershipOrder
	for _, product := range sub.Products {
		if _, ok := skuSet[product.SKU]; !ok {
			a.log.Debug("ignoring non-membership product",
				zap.Int64("subscription_id", sub.ID),
				zap.String("sku", product.SKU),
				zap.String("product_name", product.Name),
			)
			continue
		}

		rows = append(rows, membershipdomain.MembershipOrder{
			OrderID:                fmt.Sprintf("%s%d", orderIDPrefix, sub.ID),
			OrderNumber:            fmt.Sprintf("%s%d_%d", orderIDPrefix, orderRef, sub.Customer.StoreCustomerID),
			Channel:                "minibc",
			ChannelName:            "minibc",
			ExternalOrderReference: strconv.FormatInt(sub.Customer.StoreCustomerID, 10),
			CustomerEmail:          strings.ToLower(sub.Customer.Email),
			BillingFirstName:       sub.Customer.FirstName,
			BillingLastName:        sub.Customer.LastName,
			CreatedOn:              *signupDate,
			ModifiedOn:             *lastModified,
			FulfillmentStatus:      normalizeStatus(sub.Status),
			SKU:                    product.SKU,
			VariantID:              product.Name,
			ProductID:              strconv.FormatInt(product.StoreProductID, 10),
			ProductName:            product.Name,
			LineItemID:             strconv.FormatInt(product.OrderProductID, 10),
			TestMode:               false,
		})
	}
	return rows
}

func normalizeStatus(status string) membershipdomain.FulfillmentStatus {
	switch strings.ToLower(status) {
	case "active":
		return membershipdomain.FulfillmentStatusFulfilled
	case "cancelled", "inactive":
		return membershipdomain.FulfillmentStatusCanceled
	default:
		return membershipdomain.FulfillmentStatusPending
	}
}

// parseLooseDate handles MiniBC's inconsistent timestamps: values may carry
// stray leading/trailing dashes, and "0" means unset.
func parseLooseDate(raw string) *time.Time {
	raw = strings.Trim(strings.TrimSpace(raw), "-")
	if raw == "" || raw == "0" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
