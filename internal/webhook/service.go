// Package webhook manages Squarespace webhook subscriptions and processes
// their order notifications.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/losverdes/membersync/internal/clock"
	"github.com/losverdes/membersync/internal/config"
	"github.com/losverdes/membersync/internal/queue"
	"github.com/losverdes/membersync/internal/sources/squarespace"
	"github.com/losverdes/membersync/internal/webhook/domain"
)

var (
	// ErrForbiddenWebsite means the notification came from a website not
	// on the allowlist.
	ErrForbiddenWebsite = errors.New("webhook: website not allowed")

	// ErrUnknownSubscription means no stored secret exists for the
	// notification's subscription, so it cannot be verified.
	ErrUnknownSubscription = errors.New("webhook: unknown subscription")

	ErrUnsupportedTopic = errors.New("webhook: unsupported topic")
)

// OrderTopics are the notification topics subscribed to on registration.
var OrderTopics = []string{"order.create", "order.update"}

// Notification is the Squarespace webhook notification envelope.
type Notification struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscriptionId"`
	WebsiteID      string `json:"websiteId"`
	Topic          string `json:"topic"`
	Data           struct {
		OrderID string `json:"orderId"`
		Update  bool   `json:"update"`
	} `json:"data"`
	CreatedOn string `json:"createdOn"`
}

// Service verifies and routes webhook notifications, and keeps the local
// subscription table in step with Squarespace.
type Service struct {
	db        *gorm.DB
	client    *squarespace.Client
	publisher queue.Publisher
	genID     *snowflake.Node
	clock     clock.Clock

	allowedWebsiteIDs map[string]struct{}
	accountID         string

	log *zap.Logger
}

func NewService(
	cfg config.Config,
	db *gorm.DB,
	adapter *squarespace.Adapter,
	publisher queue.Publisher,
	genID *snowflake.Node,
	clk clock.Clock,
	log *zap.Logger,
) *Service {
	allowed := make(map[string]struct{}, len(cfg.Squarespace.AllowedWebsiteIDs))
	for _, id := range cfg.Squarespace.AllowedWebsiteIDs {
		allowed[id] = struct{}{}
	}
	return &Service{
		db:                db,
		client:            adapter.Client(),
		publisher:         publisher,
		genID:             genID,
		clock:             clk,
		allowedWebsiteIDs: allowed,
		accountID:         cfg.Squarespace.ClientID,
		log:               log.Named("webhook"),
	}
}

// ProcessNotification verifies and routes one notification. Order topics are
// enqueued for the sync worker rather than processed inline so the endpoint
// responds fast and Squarespace does not retry slow deliveries.
func (s *Service) ProcessNotification(ctx context.Context, signature string, payload []byte) error {
	var note Notification
	if err := json.Unmarshal(payload, &note); err != nil {
		return fmt.Errorf("webhook: malformed notification: %w", err)
	}

	// An empty allowlist trusts no website, so an unconfigured deployment
	// rejects every notification instead of accepting all of them.
	if _, ok := s.allowedWebsiteIDs[note.WebsiteID]; !ok {
		return fmt.Errorf("%w: %s", ErrForbiddenWebsite, note.WebsiteID)
	}

	sub, err := s.findSubscription(ctx, note.SubscriptionID)
	if err != nil {
		return err
	}
	if err := VerifySignature(signature, payload, sub.Secret); err != nil {
		return err
	}

	switch {
	case note.Topic == "extension.uninstall":
		// The merchant removed the extension; the subscription and its
		// secret are gone on the Squarespace side too.
		s.log.Info("extension uninstalled, removing subscription",
			zap.String("subscription_id", sub.WebhookID),
			zap.String("website_id", note.WebsiteID),
		)
		return s.db.WithContext(ctx).
			Where("webhook_id = ? AND account_id = ?", sub.WebhookID, sub.AccountID).
			Delete(&domain.WebhookSubscription{}).Error

	case strings.HasPrefix(note.Topic, "order."):
		return s.publisher.PublishOrderSync(ctx, queue.OrderSyncJob{
			Source:  "squarespace",
			OrderID: note.Data.OrderID,
			Topic:   note.Topic,
		})

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedTopic, note.Topic)
	}
}

// EnsureSubscription registers the order webhook with Squarespace if no
// subscription for the endpoint exists yet, and stores the signing secret.
func (s *Service) EnsureSubscription(ctx context.Context, endpointURL string) (*domain.WebhookSubscription, error) {
	existing, err := s.client.ListWebhookSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	for _, remote := range existing {
		if remote.EndpointURL != endpointURL {
			continue
		}
		// Already registered remotely. Rotate the secret so we hold a
		// known-good one, then record it.
		secret, err := s.client.RotateWebhookSecret(ctx, remote.ID)
		if err != nil {
			return nil, err
		}
		remote.Secret = secret
		return s.saveSubscription(ctx, remote)
	}

	created, err := s.client.CreateWebhookSubscription(ctx, endpointURL, OrderTopics)
	if err != nil {
		return nil, err
	}
	saved, err := s.saveSubscription(ctx, *created)
	if err != nil {
		return nil, err
	}
	// Fire a test notification so a misconfigured endpoint surfaces at
	// provisioning time rather than on the first real order.
	if err := s.client.SendTestNotification(ctx, created.ID, "order.create"); err != nil {
		s.log.Warn("test notification failed", zap.String("webhook_id", created.ID), zap.Error(err))
	}
	return saved, nil
}

// RotateSecret asks Squarespace for a fresh signing secret and overwrites the
// stored one.
func (s *Service) RotateSecret(ctx context.Context, webhookID string) error {
	secret, err := s.client.RotateWebhookSecret(ctx, webhookID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(&domain.WebhookSubscription{}).
		Where("webhook_id = ? AND account_id = ?", webhookID, s.accountID).
		Updates(map[string]any{
			"secret":     secret,
			"updated_on": s.clock.Now().UTC(),
		}).Error
}

// DeleteSubscription removes the webhook both remotely and locally.
func (s *Service) DeleteSubscription(ctx context.Context, webhookID string) error {
	if err := s.client.DeleteWebhookSubscription(ctx, webhookID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Where("webhook_id = ? AND account_id = ?", webhookID, s.accountID).
		Delete(&domain.WebhookSubscription{}).Error
}

func (s *Service) findSubscription(ctx context.Context, webhookID string) (*domain.WebhookSubscription, error) {
	var sub domain.WebhookSubscription
	err := s.db.WithContext(ctx).
		Where("webhook_id = ? AND account_id = ?", webhookID, s.accountID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSubscription, webhookID)
		}
		return nil, err
	}
	return &sub, nil
}

func (s *Service) saveSubscription(ctx context.Context, remote squarespace.WebhookSubscription) (*domain.WebhookSubscription, error) {
	topics, err := json.Marshal(remote.Topics)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	row := domain.WebhookSubscription{
		ID:          s.genID.Generate(),
		WebhookID:   remote.ID,
		AccountID:   s.accountID,
		WebsiteID:   remote.WebsiteID,
		EndpointURL: remote.EndpointURL,
		Topics:      datatypes.JSON(topics),
		Secret:      remote.Secret,
		CreatedOn:   now,
		UpdatedOn:   now,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "webhook_id"}, {Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"website_id", "endpoint_url", "topics", "secret", "updated_on",
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}
