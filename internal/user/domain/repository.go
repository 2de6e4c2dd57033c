package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// EnsureUser returns the user matching the email (case-insensitive),
	// creating one with the given names when absent. An existing user is
	// returned unmodified.
	EnsureUser(ctx context.Context, tx *gorm.DB, email, firstName, lastName string) (*User, error)

	FindByEmail(ctx context.Context, tx *gorm.DB, email string) (*User, error)
}
