package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// WebhookSubscription mirrors one registered Squarespace webhook and the
// signing secret it was issued.
type WebhookSubscription struct {
	ID          snowflake.ID   `gorm:"column:id;primaryKey"`
	WebhookID   string         `gorm:"column:webhook_id;uniqueIndex:ux_squarespace_webhooks_webhook_account"`
	AccountID   string         `gorm:"column:account_id;uniqueIndex:ux_squarespace_webhooks_webhook_account"`
	WebsiteID   string         `gorm:"column:website_id"`
	EndpointURL string         `gorm:"column:endpoint_url"`
	Topics      datatypes.JSON `gorm:"column:topics"`
	Secret      string         `gorm:"column:secret"`
	CreatedOn   time.Time      `gorm:"column:created_on"`
	UpdatedOn   time.Time      `gorm:"column:updated_on"`
}

func (WebhookSubscription) TableName() string { return "squarespace_webhooks" }
