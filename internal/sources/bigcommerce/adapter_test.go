package bigcommerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	membershipdomain "github.com/losverdes/membersync/internal/membership/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	client, err := NewClient("storehash", "client-id", "token")
	require.NoError(t, err)
	client.SetBaseURL(baseURL)
	return newAdapter(client, []string{"BC-MEMBER"}, zap.NewNop())
}

func rawOrderFixture() RawOrder {
	return RawOrder{
		Order: Order{
			ID:           42,
			CartID:       "cart-9",
			ChannelID:    1,
			OrderSource:  "www",
			ExternalID:   "ext-7",
			Status:       "Awaiting Fulfillment",
			DateCreated:  "Mon, 01 May 2023 12:00:00 +0000",
			DateModified: "Tue, 02 May 2023 12:00:00 +0000",
			BillingAddress: BillingAddress{
				FirstName: "Jo",
				LastName:  "Verde",
				Email:     "Member@Example.com",
			},
		},
		Products: []OrderProduct{
			{ID: 7, ProductID: 100, SKU: "BC-MEMBER", Name: "Annual Membership", ProductOptions: []ProductOption{{ID: 55}}},
			{ID: 8, ProductID: 101, SKU: "BC-HAT", Name: "Hat"},
		},
	}
}

func TestLoadWindowPaginatesUntilEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/storehash/v2/orders":
			if r.URL.Query().Get("page") == "1" {
				order := rawOrderFixture().Order
				_ = json.NewEncoder(w).Encode([]Order{order})
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case "/storehash/v2/orders/42/products":
			_ = json.NewEncoder(w).Encode(rawOrderFixture().Products)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	adapter := testAdapter(t, srv.URL)

	after := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	orders, err := adapter.LoadWindow(context.Background(), after, before)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(42), orders[0].Order.ID)
	assert.Len(t, orders[0].Products, 2)
}

func TestLoadOrderFetchesProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/storehash/v2/orders/42":
			_ = json.NewEncoder(w).Encode(rawOrderFixture().Order)
		case "/storehash/v2/orders/42/products":
			_ = json.NewEncoder(w).Encode(rawOrderFixture().Products)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	adapter := testAdapter(t, srv.URL)
	raw, err := adapter.LoadOrder(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), raw.Order.ID)
	assert.Len(t, raw.Products, 2)
}

func TestNormalizeNamespacesOrderID(t *testing.T) {
	adapter := testAdapter(t, "http://unused")

	rows := adapter.Normalize(rawOrderFixture())
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "42_bc", row.OrderID)
	assert.Equal(t, "42_cart-9", row.OrderNumber)
	assert.Equal(t, "bigcommerce_www", row.ChannelName)
	assert.Equal(t, "ext-7", row.ExternalOrderReference)
	assert.Equal(t, "member@example.com", row.CustomerEmail)
	assert.Equal(t, "55", row.VariantID)
	assert.Equal(t, "7", row.LineItemID)
	assert.Equal(t, membershipdomain.FulfillmentStatusPending, row.FulfillmentStatus)
	assert.Equal(t, time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC), row.CreatedOn)
	assert.Equal(t, time.Date(2023, 5, 2, 12, 0, 0, 0, time.UTC), row.ModifiedOn)
	assert.Nil(t, row.FulfilledOn)
}

func TestNormalizeSkipsOrderWithoutCreatedDate(t *testing.T) {
	adapter := testAdapter(t, "http://unused")

	raw := rawOrderFixture()
	raw.Order.DateCreated = ""
	assert.Empty(t, adapter.Normalize(raw))
}

func TestNormalizeShippedDateBecomesFulfilledOn(t *testing.T) {
	adapter := testAdapter(t, "http://unused")

	raw := rawOrderFixture()
	raw.Order.Status = "Shipped"
	raw.Order.DateShipped = "Wed, 03 May 2023 12:00:00 +0000"

	rows := adapter.Normalize(raw)
	require.Len(t, rows, 1)
	assert.Equal(t, membershipdomain.FulfillmentStatusFulfilled, rows[0].FulfillmentStatus)
	require.NotNil(t, rows[0].FulfilledOn)
	assert.Equal(t, time.Date(2023, 5, 3, 12, 0, 0, 0, time.UTC), *rows[0].FulfilledOn)
}

func TestNormalizeStatusMapping(t *testing.T) {
	tests := []struct {
		upstream string
		want     membershipdomain.FulfillmentStatus
	}{
		{"Shipped", membershipdomain.FulfillmentStatusFulfilled},
		{"Completed", membershipdomain.FulfillmentStatusFulfilled},
		{"Cancelled", membershipdomain.FulfillmentStatusCanceled},
		{"Declined", membershipdomain.FulfillmentStatusCanceled},
		{"Refunded", membershipdomain.FulfillmentStatusCanceled},
		{"Awaiting Payment", membershipdomain.FulfillmentStatusPending},
		{"Pending", membershipdomain.FulfillmentStatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.upstream, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeStatus(tt.upstream))
		})
	}
}

func TestParseDateLayouts(t *testing.T) {
	for _, raw := range []string{
		"Mon, 01 May 2023 12:00:00 +0000",
		"2023-05-01T12:00:00Z",
	} {
		got, err := parseDate(raw)
		require.NoError(t, err, raw)
		require.NotNil(t, got)
		assert.Equal(t, time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC), *got, raw)
	}

	got, err := parseDate("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseDate("yesterday")
	assert.Error(t, err)
}

func TestOrdersRequestCarriesWindowAndSort(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/storehash/v2/orders" {
			query = r.URL.RawQuery
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	adapter := testAdapter(t, srv.URL)
	after := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := adapter.LoadWindow(context.Background(), after, before)
	require.NoError(t, err)

	assert.Contains(t, query, "min_date_created=2023-05-01T00%3A00%3A00Z")
	assert.Contains(t, query, "max_date_created=2023-06-01T00%3A00%3A00Z")
	assert.Contains(t, query, "sort=date_created%3Aasc")
}
