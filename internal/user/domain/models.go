package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// User owns one or more membership orders. Email is the identity key and is
// stored lower-cased.
type User struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Email     string       `gorm:"uniqueIndex;not null"`
	FirstName string       `gorm:"type:text"`
	LastName  string       `gorm:"type:text"`
	Fullname  string       `gorm:"type:text"`
	Active    bool         `gorm:"not null;default:true"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

func Fullname(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
