// Package etl orchestrates sync runs: load raw orders from a source, reverse
// them oldest-first, and upsert each into the canonical membership table with
// its owning user.
package etl

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/losverdes/membersync/internal/clock"
	membershipdomain "github.com/losverdes/membersync/internal/membership/domain"
	"github.com/losverdes/membersync/internal/metadata"
	obsmetrics "github.com/losverdes/membersync/internal/observability/metrics"
	"github.com/losverdes/membersync/internal/queue"
	"github.com/losverdes/membersync/internal/sources/bigcommerce"
	"github.com/losverdes/membersync/internal/sources/minibc"
	"github.com/losverdes/membersync/internal/sources/squarespace"
	userdomain "github.com/losverdes/membersync/internal/user/domain"
)

// ErrRunInProgress means another worker instance holds the run lock for the
// requested source. The caller should skip, not retry.
var ErrRunInProgress = errors.New("etl: sync already running for source")

// Watermark keys, one per source feed.
const (
	watermarkSquarespace = "squarespace_orders"
	watermarkBigCommerce = "bigcommerce_orders"
	watermarkMinibc      = "minibc_subscriptions"
)

// Incremental windows reach back past the stored watermark so records
// modified while the previous run was in flight are picked up again. The
// upsert makes the overlap idempotent.
const (
	squarespaceOverlap = 24 * time.Hour
	bigcommerceOverlap = 12 * time.Hour
)

const runLockTTL = 30 * time.Minute

// Natural-key filters per source. Squarespace order IDs regenerate when an
// order is edited, so the order number participates in the match.
var (
	squarespaceFilters = []string{"order_id", "order_number"}
	bigcommerceFilters = []string{"order_id"}
	minibcFilters      = []string{"order_id"}
)

// RunLocker serializes runs per source. Satisfied by queue.RunLocker.
type RunLocker interface {
	TryLock(ctx context.Context, source string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, source, token string) error
}

// Service drives sync runs for all three sources.
type Service struct {
	db          *gorm.DB
	memberships membershipdomain.Repository
	users       userdomain.Repository
	watermarks  *metadata.Store
	locker      RunLocker
	clock       clock.Clock

	squarespace *squarespace.Adapter
	bigcommerce *bigcommerce.Adapter
	minibc      *minibc.Adapter

	log *zap.Logger
}

func NewService(
	db *gorm.DB,
	memberships membershipdomain.Repository,
	users userdomain.Repository,
	watermarks *metadata.Store,
	locker RunLocker,
	clk clock.Clock,
	sq *squarespace.Adapter,
	bc *bigcommerce.Adapter,
	mbc *minibc.Adapter,
	log *zap.Logger,
) *Service {
	return &Service{
		db:          db,
		memberships: memberships,
		users:       users,
		watermarks:  watermarks,
		locker:      locker,
		clock:       clk,
		squarespace: sq,
		bigcommerce: bc,
		minibc:      mbc,
		log:         log.Named("etl"),
	}
}

// RunStats summarizes one sync run.
type RunStats struct {
	Source   string
	Created  int
	Updated  int
	Skipped  int
	Active   int
	Inactive int
	Took     time.Duration
}

// SyncSquarespace syncs Squarespace orders. Incremental runs load orders
// modified since the last watermark minus the overlap; full runs walk the
// entire order history.
func (s *Service) SyncSquarespace(ctx context.Context, full bool) (*RunStats, error) {
	return s.withRunLock(ctx, "squarespace", func(ctx context.Context) (*RunStats, error) {
		runStart := s.clock.Now().UTC()

		var (
			orders []squarespace.Order
			err    error
		)
		if full {
			orders, err = s.squarespace.LoadAll(ctx)
		} else {
			var after time.Time
			after, err = s.watermarks.LastRunTime(ctx, watermarkSquarespace)
			if err != nil {
				return nil, err
			}
			orders, err = s.squarespace.LoadWindow(ctx, after.Add(-squarespaceOverlap), runStart)
		}
		if err != nil {
			return nil, err
		}

		// The API returns newest first; process oldest first so a crash
		// mid-run leaves the newest records for the retry window.
		reverse(orders)

		stats := &RunStats{Source: "squarespace"}
		for _, order := range orders {
			s.upsertRows(ctx, s.squarespace.Normalize(order), squarespaceFilters, stats)
		}

		if err := s.watermarks.SetLastRunTime(ctx, watermarkSquarespace, runStart); err != nil {
			return nil, err
		}
		return stats, nil
	})
}

// SyncBigCommerce syncs BigCommerce orders, windowed by creation date.
func (s *Service) SyncBigCommerce(ctx context.Context, full bool) (*RunStats, error) {
	return s.withRunLock(ctx, "bigcommerce", func(ctx context.Context) (*RunStats, error) {
		runStart := s.clock.Now().UTC()

		var (
			orders []bigcommerce.RawOrder
			err    error
		)
		if full {
			orders, err = s.bigcommerce.LoadAll(ctx)
		} else {
			var after time.Time
			after, err = s.watermarks.LastRunTime(ctx, watermarkBigCommerce)
			if err != nil {
				return nil, err
			}
			orders, err = s.bigcommerce.LoadWindow(ctx, after.Add(-bigcommerceOverlap), runStart)
		}
		if err != nil {
			return nil, err
		}

		reverse(orders)

		stats := &RunStats{Source: "bigcommerce"}
		for _, order := range orders {
			s.upsertRows(ctx, s.bigcommerce.Normalize(order), bigcommerceFilters, stats)
		}

		if err := s.watermarks.SetLastRunTime(ctx, watermarkBigCommerce, runStart); err != nil {
			return nil, err
		}
		return stats, nil
	})
}

// SyncMinibc syncs MiniBC subscriptions. MiniBC has no date filter, so runs
// resume from a stored page watermark instead of a timestamp.
func (s *Service) SyncMinibc(ctx context.Context) (*RunStats, error) {
	return s.withRunLock(ctx, "minibc", func(ctx context.Context) (*RunStats, error) {
		startPage, err := s.watermarks.LastRunPage(ctx, watermarkMinibc)
		if err != nil {
			return nil, err
		}

		result, err := s.minibc.SearchSubscriptions(ctx, startPage)
		if err != nil {
			return nil, err
		}

		stats := &RunStats{Source: "minibc"}
		for _, sub := range result.Subscriptions {
			s.upsertRows(ctx, s.minibc.Normalize(sub), minibcFilters, stats)
		}

		if err := s.watermarks.SetLastRunPage(ctx, watermarkMinibc, result.RestartPage); err != nil {
			return nil, err
		}
		return stats, nil
	})
}

// SyncOrder re-syncs one order from its source, for webhook-triggered jobs.
func (s *Service) SyncOrder(ctx context.Context, job queue.OrderSyncJob) error {
	stats := &RunStats{Source: job.Source}
	switch job.Source {
	case "squarespace":
		order, err := s.squarespace.LoadOrder(ctx, job.OrderID)
		if err != nil {
			return err
		}
		s.upsertRows(ctx, s.squarespace.Normalize(*order), squarespaceFilters, stats)
	case "bigcommerce":
		orderID, err := strconv.ParseInt(job.OrderID, 10, 64)
		if err != nil {
			return fmt.Errorf("etl: bad bigcommerce order id %q: %w", job.OrderID, err)
		}
		raw, err := s.bigcommerce.LoadOrder(ctx, orderID)
		if err != nil {
			return err
		}
		s.upsertRows(ctx, s.bigcommerce.Normalize(*raw), bigcommerceFilters, stats)
	default:
		return errors.New("etl: unknown job source " + job.Source)
	}
	obsmetrics.Sync().IncOrderSyncJob(job.Source)
	s.recordStats(stats)
	s.logStats(stats)
	return nil
}

func (s *Service) withRunLock(ctx context.Context, source string, run func(ctx context.Context) (*RunStats, error)) (*RunStats, error) {
	started := s.clock.Now()
	syncMetrics := obsmetrics.Sync()

	token, ok, err := s.locker.TryLock(ctx, source, runLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.log.Info("sync skipped, run already in progress", zap.String("source", source))
		return nil, ErrRunInProgress
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), source, token); err != nil {
			s.log.Warn("failed to release run lock", zap.String("source", source), zap.Error(err))
		}
	}()

	syncMetrics.IncRun(source)
	stats, err := run(ctx)
	if err != nil {
		syncMetrics.IncRunError(source)
		s.log.Error("sync run failed", zap.String("source", source), zap.Error(err))
		return nil, err
	}
	stats.Took = s.clock.Now().Sub(started)
	syncMetrics.ObserveRunDuration(source, stats.Took)
	s.recordStats(stats)
	s.logStats(stats)
	return stats, nil
}

func (s *Service) recordStats(stats *RunStats) {
	syncMetrics := obsmetrics.Sync()
	syncMetrics.AddRecords(stats.Source, obsmetrics.RecordOutcomeCreated, stats.Created)
	syncMetrics.AddRecords(stats.Source, obsmetrics.RecordOutcomeUpdated, stats.Updated)
	syncMetrics.AddRecords(stats.Source, obsmetrics.RecordOutcomeSkipped, stats.Skipped)
}

// upsertRows commits each row in its own transaction so one bad record never
// rolls back its neighbors. Errors are counted and logged, not propagated;
// the record is retried on the next run because the watermark window
// overlaps.
func (s *Service) upsertRows(ctx context.Context, rows []membershipdomain.MembershipOrder, filters []string, stats *RunStats) {
	for i := range rows {
		row := rows[i]
		if row.TestMode {
			stats.Skipped++
			continue
		}

		var created bool
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			order, wasCreated, err := s.memberships.GetOrUpdate(ctx, tx, filters, &row)
			if err != nil {
				return err
			}
			created = wasCreated

			user, err := s.users.EnsureUser(ctx, tx, row.CustomerEmail, row.BillingFirstName, row.BillingLastName)
			if err != nil {
				return err
			}
			return s.memberships.SetUserID(ctx, tx, order, user.ID)
		})
		if err != nil {
			stats.Skipped++
			s.log.Error("record upsert failed",
				zap.String("order_id", row.OrderID),
				zap.Error(err),
			)
			continue
		}
		if created {
			stats.Created++
		} else {
			stats.Updated++
		}
		if row.IsActive(s.clock.Now()) {
			stats.Active++
		} else {
			stats.Inactive++
		}
	}
}

func (s *Service) logStats(stats *RunStats) {
	s.log.Info("sync run finished",
		zap.String("source", stats.Source),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("active", stats.Active),
		zap.Int("inactive", stats.Inactive),
		zap.Duration("took", stats.Took),
	)
}

func reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
