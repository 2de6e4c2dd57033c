package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	membershipdomain "github.com/losverdes/membersync/internal/membership/domain"
	"gorm.io/gorm"
)

type repo struct {
	genID *snowflake.Node
}

func Provide(genID *snowflake.Node) membershipdomain.Repository {
	return &repo{genID: genID}
}

// columnValues maps a record onto its column set. Nullable fields are only
// included when present, so an upsert never clears fulfilled_on or user_id
// with a null from a sparser upstream payload.
func columnValues(m *membershipdomain.MembershipOrder) map[string]any {
	values := map[string]any{
		"order_id":                 m.OrderID,
		"order_number":             m.OrderNumber,
		"channel":                  m.Channel,
		"channel_name":             m.ChannelName,
		"customer_email":           strings.ToLower(m.CustomerEmail),
		"billing_first_name":       m.BillingFirstName,
		"billing_last_name":        m.BillingLastName,
		"external_order_reference": m.ExternalOrderReference,
		"created_on":               m.CreatedOn,
		"modified_on":              m.ModifiedOn,
		"fulfillment_status":       m.FulfillmentStatus,
		"sku":                      m.SKU,
		"variant_id":               m.VariantID,
		"product_id":               m.ProductID,
		"product_name":             m.ProductName,
		"line_item_id":             m.LineItemID,
		"test_mode":                m.TestMode,
	}
	if m.FulfilledOn != nil {
		values["fulfilled_on"] = *m.FulfilledOn
	}
	if m.UserID != nil {
		values["user_id"] = *m.UserID
	}
	return values
}

func (r *repo) GetOrUpdate(ctx context.Context, tx *gorm.DB, filters []string, record *membershipdomain.MembershipOrder) (*membershipdomain.MembershipOrder, bool, error) {
	values := columnValues(record)

	filterValues := make(map[string]any, len(filters))
	for _, field := range filters {
		value, ok := values[field]
		if !ok {
			return nil, false, membershipdomain.ErrUnknownFilterField
		}
		filterValues[field] = value
	}

	var matches []membershipdomain.MembershipOrder
	if err := tx.WithContext(ctx).Where(filterValues).Limit(2).Find(&matches).Error; err != nil {
		return nil, false, err
	}

	switch len(matches) {
	case 0:
		record.ID = r.genID.Generate()
		record.CustomerEmail = strings.ToLower(record.CustomerEmail)
		if err := tx.WithContext(ctx).Create(record).Error; err != nil {
			return nil, false, err
		}
		return record, true, nil
	case 1:
		existing := matches[0]
		if existing.UserID != nil {
			// The user back-reference is write-once.
			delete(values, "user_id")
		}
		if err := tx.WithContext(ctx).Model(&membershipdomain.MembershipOrder{}).
			Where("id = ?", existing.ID).
			Updates(values).Error; err != nil {
			return nil, false, err
		}
		var updated membershipdomain.MembershipOrder
		if err := tx.WithContext(ctx).First(&updated, "id = ?", existing.ID).Error; err != nil {
			return nil, false, err
		}
		return &updated, false, nil
	default:
		return nil, false, membershipdomain.ErrAmbiguousNaturalKey
	}
}

func (r *repo) SetUserID(ctx context.Context, tx *gorm.DB, order *membershipdomain.MembershipOrder, userID snowflake.ID) error {
	if order.UserID != nil {
		return nil
	}
	err := tx.WithContext(ctx).Model(&membershipdomain.MembershipOrder{}).
		Where("id = ? AND user_id IS NULL", order.ID).
		Update("user_id", userID).Error
	if err != nil {
		return err
	}
	order.UserID = &userID
	return nil
}

func (r *repo) FindByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (*membershipdomain.MembershipOrder, error) {
	var order membershipdomain.MembershipOrder
	if err := tx.WithContext(ctx).First(&order, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repo) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&membershipdomain.MembershipOrder{}).Count(&count).Error
	return count, err
}
