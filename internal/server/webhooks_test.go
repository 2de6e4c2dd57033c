package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/losverdes/membersync/internal/clock"
	"github.com/losverdes/membersync/internal/config"
	"github.com/losverdes/membersync/internal/queue"
	"github.com/losverdes/membersync/internal/sources/squarespace"
	"github.com/losverdes/membersync/internal/webhook"
	webhookdomain "github.com/losverdes/membersync/internal/webhook/domain"
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
	testWebsiteID = "site-1"
	bcStoreHash   = "storehash"
	bcClientID    = "bc-client"
	bcSecret      = "bc-secret"
)

func bcToken() string {
	return webhook.BigCommerceToken(bcStoreHash, bcClientID, bcSecret)
}

func newTestServer(t *testing.T) (*gin.Engine, *capturingPublisher) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&webhookdomain.WebhookSubscription{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	require.NoError(t, db.Create(&webhookdomain.WebhookSubscription{
		ID:        node.Generate(),
		WebhookID: testWebhookID,
		AccountID: "client-1",
		WebsiteID: testWebsiteID,
		Secret:    testSecret,
	}).Error)

	log := zap.NewNop()
	adapter, err := squarespace.NewAdapter(config.SquarespaceConfig{
		APIKey:         "key",
		MembershipSKUs: []string{"SQ-MEMBER"},
	}, log)
	require.NoError(t, err)

	cfg := config.Config{
		Squarespace: config.SquarespaceConfig{
			ClientID:          "client-1",
			AllowedWebsiteIDs: []string{testWebsiteID},
		},
		BigCommerce: config.BigCommerceConfig{
			StoreHash:     bcStoreHash,
			ClientID:      bcClientID,
			WebhookSecret: bcSecret,
		},
	}
	publisher := &capturingPublisher{}
	webhookSvc := webhook.NewService(cfg, db, adapter, publisher, node,
		clock.NewFakeClock(time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)), log)

	engine := NewEngine(log)
	NewServer(engine, cfg, webhookSvc, publisher, log)
	return engine, publisher
}

func sign(t *testing.T, payload []byte, secretHex string) string {
	t.Helper()
	key, err := hex.DecodeString(secretHex)
	require.NoError(t, err)
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func squarespaceNotification(t *testing.T, websiteID string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"subscriptionId": testWebhookID,
		"websiteId":      websiteID,
		"topic":          "order.create",
		"data":           map[string]any{"orderId": "sq-1"},
	})
	require.NoError(t, err)
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	engine, _ := newTestServer(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSquarespaceWebhookAccepted(t *testing.T) {
	engine, publisher := newTestServer(t)

	payload := squarespaceNotification(t, testWebsiteID)
	req := httptest.NewRequest(http.MethodPost, "/squarespace/order-webhook", bytes.NewReader(payload))
	req.Header.Set("Squarespace-Signature", sign(t, payload, testSecret))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, publisher.jobs, 1)
	assert.Equal(t, "sq-1", publisher.jobs[0].OrderID)
}

func TestSquarespaceWebhookBadSignatureIsUnauthorized(t *testing.T) {
	engine, publisher := newTestServer(t)

	payload := squarespaceNotification(t, testWebsiteID)
	req := httptest.NewRequest(http.MethodPost, "/squarespace/order-webhook", bytes.NewReader(payload))
	req.Header.Set("Squarespace-Signature", "0000")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, publisher.jobs)
}

func TestSquarespaceWebhookForbiddenWebsite(t *testing.T) {
	engine, _ := newTestServer(t)

	payload := squarespaceNotification(t, "rogue-site")
	req := httptest.NewRequest(http.MethodPost, "/squarespace/order-webhook", bytes.NewReader(payload))
	req.Header.Set("Squarespace-Signature", sign(t, payload, testSecret))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBigCommerceWebhookAccepted(t *testing.T) {
	engine, publisher := newTestServer(t)

	payload := []byte(`{"scope":"store/order/updated","data":{"id":42}}`)
	req := httptest.NewRequest(http.MethodPost, "/bigcommerce/order-webhook", bytes.NewReader(payload))
	req.Header.Set("X-Webhook-Token", bcToken())

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, publisher.jobs, 1)
	assert.Equal(t, "bigcommerce", publisher.jobs[0].Source)
	assert.Equal(t, "42", publisher.jobs[0].OrderID)
	assert.Equal(t, "store/order/updated", publisher.jobs[0].Topic)
}

func TestBigCommerceWebhookRejectsBadToken(t *testing.T) {
	engine, publisher := newTestServer(t)

	payload := []byte(`{"scope":"store/order/updated","data":{"id":42}}`)
	req := httptest.NewRequest(http.MethodPost, "/bigcommerce/order-webhook", bytes.NewReader(payload))
	req.Header.Set("X-Webhook-Token", "wrong")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, publisher.jobs)
}

func TestBigCommerceWebhookRejectsMalformedPayload(t *testing.T) {
	engine, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/bigcommerce/order-webhook", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-Webhook-Token", bcToken())

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
