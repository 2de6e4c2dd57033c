package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	// ErrAmbiguousNaturalKey means a natural-key lookup matched more than
	// one row. The key is supposed to be unique, so this is a
	// data-integrity failure that must be surfaced, not merged over.
	ErrAmbiguousNaturalKey = errors.New("membership: natural key matched multiple rows")

	// ErrUnknownFilterField means a caller asked to match on a field the
	// model does not have.
	ErrUnknownFilterField = errors.New("membership: unknown filter field")
)

// Repository is the natural-key upsert store for membership orders.
//
// Neither method commits: callers own the transaction boundary so a page of
// records can be upserted atomically or in controlled batches.
type Repository interface {
	// GetOrUpdate looks up a row whose filter fields match the given
	// record. On a hit every provided field is merged into the existing
	// row (user_id is never overwritten once set); on a miss a new row is
	// inserted. The boolean reports whether a row was created.
	GetOrUpdate(ctx context.Context, tx *gorm.DB, filters []string, record *MembershipOrder) (*MembershipOrder, bool, error)

	// SetUserID sets the owning user back-reference, only if unset.
	SetUserID(ctx context.Context, tx *gorm.DB, order *MembershipOrder, userID snowflake.ID) error

	// FindByOrderID returns the row for a namespaced order ID, or
	// gorm.ErrRecordNotFound.
	FindByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (*MembershipOrder, error)

	// Count returns the total number of membership rows.
	Count(ctx context.Context, tx *gorm.DB) (int64, error)
}
