package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/losverdes/membersync/internal/clock"
	"github.com/losverdes/membersync/internal/config"
	"github.com/losverdes/membersync/internal/queue"
	"github.com/losverdes/membersync/internal/sources/squarespace"
	"github.com/losverdes/membersync/internal/webhook/domain"
)

type capturingPublisher struct {
	jobs []queue.OrderSyncJob
}

func (p *capturingPublisher) PublishOrderSync(ctx context.Context, job queue.OrderSyncJob) error {
	p.jobs = append(p.jobs, job)
	return nil
}

const (
	testSecret    = "deadbeefcafe0123"
	testWebhookID = "wh-1"
	testAccountID = "client-1"
	testWebsiteID = "site-1"
)

func newService(t *testing.T, handler http.Handler, allowedWebsites []string) (*Service, *gorm.DB, *capturingPublisher) {
	t.Helper()

	var baseURL string
	if handler != nil {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		baseURL = srv.URL
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.WebhookSubscription{}))

	adapter, err := squarespace.NewAdapter(config.SquarespaceConfig{
		APIKey:         "key",
		MembershipSKUs: []string{"SQ-MEMBER"},
	}, zap.NewNop())
	require.NoError(t, err)
	if baseURL != "" {
		adapter.Client().SetBaseURL(baseURL)
	}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	publisher := &capturingPublisher{}

	svc := NewService(
		config.Config{Squarespace: config.SquarespaceConfig{
			ClientID:          testAccountID,
			AllowedWebsiteIDs: allowedWebsites,
		}},
		db,
		adapter,
		publisher,
		node,
		clock.NewFakeClock(time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)),
		zap.NewNop(),
	)
	return svc, db, publisher
}

func seedSubscription(t *testing.T, db *gorm.DB) {
	t.Helper()
	node, err := snowflake.NewNode(9)
	require.NoError(t, err)
	require.NoError(t, db.Create(&domain.WebhookSubscription{
		ID:        node.Generate(),
		WebhookID: testWebhookID,
		AccountID: testAccountID,
		WebsiteID: testWebsiteID,
		Secret:    testSecret,
	}).Error)
}

func notificationPayload(t *testing.T, topic, orderID string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":             "note-1",
		"subscriptionId": testWebhookID,
		"websiteId":      testWebsiteID,
		"topic":          topic,
		"data":           map[string]any{"orderId": orderID},
	})
	require.NoError(t, err)
	return payload
}

func TestProcessNotificationEnqueuesOrderSync(t *testing.T) {
	svc, db, publisher := newService(t, nil, []string{testWebsiteID})
	seedSubscription(t, db)

	payload := notificationPayload(t, "order.create", "sq-1")
	err := svc.ProcessNotification(context.Background(), sign(t, payload, testSecret), payload)
	require.NoError(t, err)

	require.Len(t, publisher.jobs, 1)
	assert.Equal(t, "squarespace", publisher.jobs[0].Source)
	assert.Equal(t, "sq-1", publisher.jobs[0].OrderID)
	assert.Equal(t, "order.create", publisher.jobs[0].Topic)
}

func TestProcessNotificationRejectsForbiddenWebsite(t *testing.T) {
	svc, db, _ := newService(t, nil, []string{"some-other-site"})
	seedSubscription(t, db)

	payload := notificationPayload(t, "order.create", "sq-1")
	err := svc.ProcessNotification(context.Background(), sign(t, payload, testSecret), payload)
	assert.ErrorIs(t, err, ErrForbiddenWebsite)
}

func TestProcessNotificationRejectsAllWhenAllowlistEmpty(t *testing.T) {
	svc, db, publisher := newService(t, nil, nil)
	seedSubscription(t, db)

	payload := notificationPayload(t, "order.create", "sq-1")
	err := svc.ProcessNotification(context.Background(), sign(t, payload, testSecret), payload)
	assert.ErrorIs(t, err, ErrForbiddenWebsite)
	assert.Empty(t, publisher.jobs)
}

func TestProcessNotificationRejectsUnknownSubscription(t *testing.T) {
	svc, _, _ := newService(t, nil, []string{testWebsiteID})

	payload := notificationPayload(t, "order.create", "sq-1")
	err := svc.ProcessNotification(context.Background(), sign(t, payload, testSecret), payload)
	assert.ErrorIs(t, err, ErrUnknownSubscription)
}

func TestProcessNotificationRejectsBadSignature(t *testing.T) {
	svc, db, publisher := newService(t, nil, []string{testWebsiteID})
	seedSubscription(t, db)

	payload := notificationPayload(t, "order.create", "sq-1")
	err := svc.ProcessNotification(context.Background(), sign(t, payload, "0123cafedeadbeef"), payload)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Empty(t, publisher.jobs)
}

func TestProcessNotificationRejectsUnsupportedTopic(t *testing.T) {
	svc, db, _ := newService(t, nil, []string{testWebsiteID})
	seedSubscription(t, db)

	payload := notificationPayload(t, "inventory.update", "")
	err := svc.ProcessNotification(context.Background(), sign(t, payload, testSecret), payload)
	assert.ErrorIs(t, err, ErrUnsupportedTopic)
}

func TestProcessNotificationUninstallDeletesSubscription(t *testing.T) {
	svc, db, publisher := newService(t, nil, []string{testWebsiteID})
	seedSubscription(t, db)

	payload := notificationPayload(t, "extension.uninstall", "")
	err := svc.ProcessNotification(context.Background(), sign(t, payload, testSecret), payload)
	require.NoError(t, err)
	assert.Empty(t, publisher.jobs)

	var count int64
	require.NoError(t, db.Model(&domain.WebhookSubscription{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEnsureSubscriptionRegistersAndStoresSecret(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/1.0/webhook_subscriptions":
			_ = json.NewEncoder(w).Encode(map[string]any{"webhookSubscriptions": []any{}})
		case r.Method == http.MethodPost && r.URL.Path == "/1.0/webhook_subscriptions":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":          testWebhookID,
				"websiteId":   testWebsiteID,
				"endpointUrl": "https://example.com/squarespace/order-webhook",
				"topics":      OrderTopics,
				"secret":      testSecret,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	svc, db, _ := newService(t, handler, nil)

	sub, err := svc.EnsureSubscription(context.Background(), "https://example.com/squarespace/order-webhook")
	require.NoError(t, err)
	assert.Equal(t, testSecret, sub.Secret)

	var stored domain.WebhookSubscription
	require.NoError(t, db.First(&stored, "webhook_id = ?", testWebhookID).Error)
	assert.Equal(t, testSecret, stored.Secret)
	assert.Equal(t, testAccountID, stored.AccountID)
}

func TestEnsureSubscriptionRotatesExistingSecret(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/1.0/webhook_subscriptions":
			_ = json.NewEncoder(w).Encode(map[string]any{"webhookSubscriptions": []any{
				map[string]any{
					"id":          testWebhookID,
					"websiteId":   testWebsiteID,
					"endpointUrl": "https://example.com/squarespace/order-webhook",
					"topics":      OrderTopics,
				},
			}})
		case r.Method == http.MethodPost && r.URL.Path == "/1.0/webhook_subscriptions/wh-1/actions/rotateSecret":
			_ = json.NewEncoder(w).Encode(map[string]any{"secret": "feedface00"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	svc, db, _ := newService(t, handler, nil)

	sub, err := svc.EnsureSubscription(context.Background(), "https://example.com/squarespace/order-webhook")
	require.NoError(t, err)
	assert.Equal(t, "feedface00", sub.Secret)

	var stored domain.WebhookSubscription
	require.NoError(t, db.First(&stored, "webhook_id = ?", testWebhookID).Error)
	assert.Equal(t, "feedface00", stored.Secret)
}

func TestRotateSecretOverwritesStoredSecret(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/1.0/webhook_subscriptions/wh-1/actions/rotateSecret" {
			_ = json.NewEncoder(w).Encode(map[string]any{"secret": "feedface00"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	svc, db, _ := newService(t, handler, []string{testWebsiteID})
	seedSubscription(t, db)

	require.NoError(t, svc.RotateSecret(context.Background(), testWebhookID))

	var stored domain.WebhookSubscription
	require.NoError(t, db.First(&stored, "webhook_id = ?", testWebhookID).Error)
	assert.Equal(t, "feedface00", stored.Secret)

	// The old secret no longer verifies.
	payload := notificationPayload(t, "order.create", "sq-1")
	err := svc.ProcessNotification(context.Background(), sign(t, payload, testSecret), payload)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
