package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/losverdes/membersync/internal/user/domain"
	"github.com/losverdes/membersync/pkg/db"
	"gorm.io/gorm"
)

type repo struct {
	genID *snowflake.Node
}

func Provide(genID *snowflake.Node) userdomain.Repository {
	return &repo{genID: genID}
}

func (r *repo) EnsureUser(ctx context.Context, tx *gorm.DB, email, firstName, lastName string) (*userdomain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := r.FindByEmail(ctx, tx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user := &userdomain.User{
		ID:        r.genID.Generate(),
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Fullname:  userdomain.Fullname(firstName, lastName),
		Active:    true,
	}
	if err := tx.WithContext(ctx).Create(user).Error; err != nil {
		// Two records for the same new member can race on the unique
		// email index; the loser adopts the winner's row.
		if db.IsDuplicateKeyErr(err) {
			return r.FindByEmail(ctx, tx, email)
		}
		return nil, err
	}
	return user, nil
}

func (r *repo) FindByEmail(ctx context.Context, tx *gorm.DB, email string) (*userdomain.User, error) {
	var user userdomain.User
	err := tx.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
