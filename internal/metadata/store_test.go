package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/losverdes/membersync/internal/metadata/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.TableMetadata{}))
	return NewStore(db)
}

func TestLastRunTimeDefaultsToEpoch(t *testing.T) {
	store := setupStore(t)

	got, err := store.LastRunTime(context.Background(), "squarespace_orders")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Unix(0, 0)))
}

func TestLastRunTimeRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	want := time.Date(2023, 8, 15, 10, 30, 0, 0, time.UTC)
	require.NoError(t, store.SetLastRunTime(ctx, "squarespace_orders", want))

	got, err := store.LastRunTime(ctx, "squarespace_orders")
	require.NoError(t, err)
	assert.True(t, got.Equal(want))
}

func TestSetLastRunTimeOverwrites(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first := time.Date(2023, 8, 15, 10, 30, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	require.NoError(t, store.SetLastRunTime(ctx, "squarespace_orders", first))
	require.NoError(t, store.SetLastRunTime(ctx, "squarespace_orders", second))

	got, err := store.LastRunTime(ctx, "squarespace_orders")
	require.NoError(t, err)
	assert.True(t, got.Equal(second))
}

func TestWatermarksAreScopedPerTable(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	squarespace := time.Date(2023, 8, 15, 10, 30, 0, 0, time.UTC)
	require.NoError(t, store.SetLastRunTime(ctx, "squarespace_orders", squarespace))

	got, err := store.LastRunTime(ctx, "bigcommerce_orders")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Unix(0, 0)))
}

func TestLastRunPageDefaultsToOne(t *testing.T) {
	store := setupStore(t)

	page, err := store.LastRunPage(context.Background(), "minibc_subscriptions")
	require.NoError(t, err)
	assert.Equal(t, 1, page)
}

func TestLastRunPageRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetLastRunPage(ctx, "minibc_subscriptions", 17))
	page, err := store.LastRunPage(ctx, "minibc_subscriptions")
	require.NoError(t, err)
	assert.Equal(t, 17, page)

	require.NoError(t, store.SetLastRunPage(ctx, "minibc_subscriptions", 1))
	page, err = store.LastRunPage(ctx, "minibc_subscriptions")
	require.NoError(t, err)
	assert.Equal(t, 1, page)
}

func TestTimeAndPageAttributesCoexist(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	stamp := time.Date(2023, 8, 15, 10, 30, 0, 0, time.UTC)
	require.NoError(t, store.SetLastRunTime(ctx, "minibc_subscriptions", stamp))
	require.NoError(t, store.SetLastRunPage(ctx, "minibc_subscriptions", 4))

	got, err := store.LastRunTime(ctx, "minibc_subscriptions")
	require.NoError(t, err)
	assert.True(t, got.Equal(stamp))

	page, err := store.LastRunPage(ctx, "minibc_subscriptions")
	require.NoError(t, err)
	assert.Equal(t, 4, page)
}
