// Package domain contains the canonical membership order model and the
// lifecycle rules derived from it.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// FulfillmentStatus represents upstream order fulfillment states.
type FulfillmentStatus string

const (
	FulfillmentStatusPending   FulfillmentStatus = "PENDING"
	FulfillmentStatusFulfilled FulfillmentStatus = "FULFILLED"
	FulfillmentStatusCanceled  FulfillmentStatus = "CANCELED"
)

// Membership terms. The two constants are intentionally one day apart: the
// expiry date shown to members is 365 days after purchase, while the active
// check allows a 366-day window. Do not unify them.
const (
	MembershipTermDays = 365
	ActiveWindowDays   = 366
)

// MembershipOrder is one membership line item from one upstream order,
// normalized across all sources. order_id is globally unique; adapters
// namespace their native IDs so sources can never collide.
type MembershipOrder struct {
	ID                     snowflake.ID      `gorm:"primaryKey"`
	OrderID                string            `gorm:"column:order_id;uniqueIndex;not null"`
	OrderNumber            string            `gorm:"column:order_number;not null"`
	Channel                string            `gorm:"type:text"`
	ChannelName            string            `gorm:"type:text"`
	CustomerEmail          string            `gorm:"not null;index"`
	BillingFirstName       string            `gorm:"type:text"`
	BillingLastName        string            `gorm:"type:text"`
	ExternalOrderReference string            `gorm:"type:text"`
	CreatedOn              time.Time         `gorm:"not null"`
	ModifiedOn             time.Time         `gorm:"not null"`
	FulfilledOn            *time.Time        `gorm:""`
	FulfillmentStatus      FulfillmentStatus `gorm:"type:text;not null;default:PENDING"`
	SKU                    string            `gorm:"column:sku;type:text"`
	VariantID              string            `gorm:"column:variant_id;type:text"`
	ProductID              string            `gorm:"column:product_id;type:text"`
	ProductName            string            `gorm:"type:text"`
	LineItemID             string            `gorm:"column:line_item_id;type:text"`
	TestMode               bool              `gorm:"not null;default:false"`
	UserID                 *snowflake.ID     `gorm:"index"`
	CreatedAt              time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt              time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (MembershipOrder) TableName() string { return "annual_memberships" }

// IsCanceled reports whether the upstream order was canceled.
func (m *MembershipOrder) IsCanceled() bool {
	return m.FulfillmentStatus == FulfillmentStatusCanceled
}

// ExpiryDate is the date the membership term ends.
func (m *MembershipOrder) ExpiryDate() time.Time {
	return m.CreatedOn.AddDate(0, 0, MembershipTermDays)
}

// IsActive reports whether the membership is in good standing at the given
// time: not canceled, and purchased within the active window.
func (m *MembershipOrder) IsActive(now time.Time) bool {
	if m.IsCanceled() {
		return false
	}
	return m.CreatedOn.After(now.AddDate(0, 0, -ActiveWindowDays))
}

// DisplayName is the member-facing name derived from the billing address.
func (m *MembershipOrder) DisplayName() string {
	return strings.TrimSpace(m.BillingFirstName + " " + m.BillingLastName)
}
