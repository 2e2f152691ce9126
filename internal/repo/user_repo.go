// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the credential store: repository
// functions for the User model.
//
// Error semantics:
//   - Missing users yield ErrNotFound.
//   - A second user with the same username yields ErrDuplicate (unique index).
//   - Other DB errors are propagated raw.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-meme-gallery/internal/domain"
)

// CreateUser inserts a new user with an already-hashed password.
func CreateUser(ctx context.Context, db *gorm.DB, username, passwordHash string, role domain.Role) (*domain.User, error) {
	u := &domain.User{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, duplicateOr(err)
	}
	return u, nil
}

// GetUserByUsername fetches the full user row (including the hash) for
// credential checks. Returns ErrNotFound when absent.
func GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserView loads only the public columns of a user. The hash column is
// never selected. Returns ErrNotFound when absent.
func GetUserView(ctx context.Context, db *gorm.DB, id uint) (*domain.UserView, error) {
	var v domain.UserView
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Select("id", "username", "role").
		Where("id = ?", id).
		Limit(1).
		Scan(&v)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &v, nil
}
