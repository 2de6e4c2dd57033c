// Package metadata implements the sync watermark store. Watermarks bound
// each incremental sync run; a run that fails before advancing its watermark
// is simply retried over the same window.
package metadata

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/losverdes/membersync/internal/metadata/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store reads and writes per-table sync watermarks.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// LastRunTime returns the stored last-run-start watermark for a table, or the
// Unix epoch when no run has been recorded yet.
func (s *Store) LastRunTime(ctx context.Context, tableName string) (time.Time, error) {
	value, err := s.get(ctx, tableName, domain.AttrLastRunStartTime)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Unix(0, 0).UTC(), nil
		}
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func (s *Store) SetLastRunTime(ctx context.Context, tableName string, t time.Time) error {
	return s.set(ctx, tableName, domain.AttrLastRunStartTime, t.UTC().Format(time.RFC3339))
}

// LastRunPage returns the stored page watermark for a table, or 1 when no run
// has been recorded yet.
func (s *Store) LastRunPage(ctx context.Context, tableName string) (int, error) {
	value, err := s.get(ctx, tableName, domain.AttrLastRunStartPage)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 1, nil
		}
		return 0, err
	}
	page, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return page, nil
}

func (s *Store) SetLastRunPage(ctx context.Context, tableName string, page int) error {
	return s.set(ctx, tableName, domain.AttrLastRunStartPage, strconv.Itoa(page))
}

func (s *Store) get(ctx context.Context, tableName, attributeName string) (string, error) {
	var row domain.TableMetadata
	err := s.db.WithContext(ctx).
		Where("table_name = ? AND attribute_name = ?", tableName, attributeName).
		First(&row).Error
	if err != nil {
		return "", err
	}
	return row.AttributeValue, nil
}

func (s *Store) set(ctx context.Context, tableName, attributeName, attributeValue string) error {
	row := domain.TableMetadata{
		Table:          tableName,
		AttributeName:  attributeName,
		AttributeValue: attributeValue,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "table_name"}, {Name: "attribute_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"attribute_value"}),
	}).Create(&row).Error
}
